package gaze

import (
	"gonum.org/v1/gonum/mat"

	"github.com/lexiscan/readtrace/internal/monitoring"
)

// DefaultCalibrationTargets is the standard 9-point calibration grid in
// normalized screen coordinates.
var DefaultCalibrationTargets = []Point{
	{X: 0.2, Y: 0.2}, {X: 0.5, Y: 0.2}, {X: 0.8, Y: 0.2},
	{X: 0.2, Y: 0.5}, {X: 0.5, Y: 0.5}, {X: 0.8, Y: 0.5},
	{X: 0.2, Y: 0.8}, {X: 0.5, Y: 0.8}, {X: 0.8, Y: 0.8},
}

// CalibrationModel is an immutable linear correction mapping raw gaze
// coordinates onto screen targets. The zero value is the identity
// (uncalibrated) model.
type CalibrationModel struct {
	// transform is the 2x2 linear map T with corrected = raw * T.
	transform    [4]float64
	isCalibrated bool
}

// IsCalibrated reports whether a fitted transform is installed.
func (m CalibrationModel) IsCalibrated() bool { return m.isCalibrated }

// Apply maps a raw gaze point through the calibration transform. Uncalibrated
// models return the point unchanged.
func (m CalibrationModel) Apply(p Point) Point {
	if !m.isCalibrated {
		return p
	}
	return Point{
		X: p.X*m.transform[0] + p.Y*m.transform[2],
		Y: p.X*m.transform[1] + p.Y*m.transform[3],
	}
}

// CalibrationSolver collects (screen target, raw gaze) pairs and produces a
// least-squares CalibrationModel. Failures are reported as a boolean, never
// as an error escaping the component: a bad calibration degrades quality, it
// does not break program integrity.
type CalibrationSolver struct {
	targets []Point
	gazes   []Point
}

// NewCalibrationSolver creates an empty solver.
func NewCalibrationSolver() *CalibrationSolver {
	return &CalibrationSolver{}
}

// Start drops any collected samples and begins a fresh collection run.
func (s *CalibrationSolver) Start() {
	s.targets = s.targets[:0]
	s.gazes = s.gazes[:0]
}

// Submit records one (target, raw gaze) pair.
func (s *CalibrationSolver) Submit(target, rawGaze Point) {
	s.targets = append(s.targets, target)
	s.gazes = append(s.gazes, rawGaze)
}

// PairCount returns the number of collected pairs.
func (s *CalibrationSolver) PairCount() int { return len(s.targets) }

// Solve fits the linear system gaze * T = target by least squares and returns
// the fitted model with ok=true. It returns the zero model and ok=false when
// fewer than MinCalibrationPairs pairs were collected or the system is too
// ill-conditioned to solve.
func (s *CalibrationSolver) Solve() (CalibrationModel, bool) {
	n := len(s.targets)
	if n < MinCalibrationPairs || n != len(s.gazes) {
		return CalibrationModel{}, false
	}

	a := mat.NewDense(n, 2, nil)
	b := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		a.Set(i, 0, s.gazes[i].X)
		a.Set(i, 1, s.gazes[i].Y)
		b.Set(i, 0, s.targets[i].X)
		b.Set(i, 1, s.targets[i].Y)
	}

	var t mat.Dense
	if err := t.Solve(a, b); err != nil {
		monitoring.Logf("calibration solve failed with %d pairs: %v", n, err)
		return CalibrationModel{}, false
	}

	return CalibrationModel{
		transform: [4]float64{
			t.At(0, 0), t.At(0, 1),
			t.At(1, 0), t.At(1, 1),
		},
		isCalibrated: true,
	}, true
}
