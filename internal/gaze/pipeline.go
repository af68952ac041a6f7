package gaze

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/lexiscan/readtrace/internal/monitoring"
)

// ErrReleased is returned by ProcessFrame after the session has been
// released. No other error leaves the pipeline: all per-frame failure modes
// degrade to "no update" states inside the metrics object.
var ErrReleased = errors.New("gaze: session pipeline released")

// enhancedSampleWindow is how many recent samples feed the linearity metric.
const enhancedSampleWindow = 30

// FrameInput is one raw record from the upstream landmark extractor. When no
// face was detected the extractor must set FaceDetected=false rather than
// sending zeroed geometry, so the pipeline can skip the frame instead of
// fabricating a zero-movement sample.
type FrameInput struct {
	UnixNanos    int64   `json:"unix_nanos"`
	FaceDetected bool    `json:"face_detected"`
	LeftGaze     Point   `json:"left_gaze"`
	RightGaze    Point   `json:"right_gaze"`
	LeftPupil    float64 `json:"left_pupil"`
	RightPupil   float64 `json:"right_pupil"`
	LeftEAR      float64 `json:"left_ear"`
	RightEAR     float64 `json:"right_ear"`
}

// Pipeline owns all streaming analysis state for one reading session. Frames
// must be fed strictly in arrival order. The pipeline serializes its mutation
// entry points internally so a control thread (calibration, reading test)
// can safely coexist with the frame feed; it is still one-session-one-
// pipeline, never shared across sessions.
type Pipeline struct {
	mu  sync.Mutex
	cfg Config

	samples   *sampleRing
	blink     *BlinkDetector
	fixation  *FixationSaccadeDetector
	baseline  *RollingBaselineTracker
	cognitive *CognitiveLoadEstimator
	fusion    *IndicatorFusionEngine
	kinetics  KinematicsTracker
	events    *eventWindow
	test      readingTest

	solver      *CalibrationSolver
	calibration CalibrationModel

	prevGaze  Point
	prevNanos int64
	havePrev  bool

	last     FrameMetrics
	released bool
}

// NewPipeline creates a session pipeline with the given configuration.
func NewPipeline(cfg Config) *Pipeline {
	if cfg.SampleBufferSize < 1 {
		cfg.SampleBufferSize = DefaultSampleBufferSize
	}
	return &Pipeline{
		cfg:       cfg,
		samples:   newSampleRing(cfg.SampleBufferSize),
		blink:     NewBlinkDetector(cfg.Blink),
		fixation:  NewFixationSaccadeDetector(cfg.Fixation),
		baseline:  NewRollingBaselineTracker(cfg.Baseline),
		cognitive: NewCognitiveLoadEstimator(cfg.CognitiveLoad),
		fusion:    NewIndicatorFusionEngine(cfg.Fusion),
		events:    newEventWindow(cfg.SampleBufferSize),
		solver:    NewCalibrationSolver(),
	}
}

// ProcessFrame advances the pipeline by one frame and returns the updated
// metrics object. It never fails on bad input; only a released session
// returns an error.
func (p *Pipeline) ProcessFrame(in FrameInput) (FrameMetrics, error) {
	start := time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()
	defer func() { monitoring.FrameLatency.Observe(time.Since(start).Seconds()) }()

	if p.released {
		return FrameMetrics{}, ErrReleased
	}

	dtNanos := int64(0)
	if p.prevNanos > 0 {
		dtNanos = in.UnixNanos - p.prevNanos
	}

	if !in.FaceDetected {
		// Missing landmarks: skip all metric updates rather than substituting
		// zeros, which would fabricate fixation/regression signals. The
		// fusion gate still ticks so the probability decays while no reader
		// is visible.
		monitoring.FramesSkipped.Inc()
		p.last.Dyslexia = p.fusion.Update(0, dtNanos, IndicatorInputs{}, in.UnixNanos)
		p.last.UnixNanos = in.UnixNanos
		p.last.Skipped = true
		p.prevNanos = in.UnixNanos
		return p.last, nil
	}

	sample, missing := p.buildSample(in)
	p.samples.Push(sample)
	monitoring.FramesProcessed.Inc()

	gaze := sample.Gaze()

	// Blink track. An EAR of exactly zero is a landmark failure, handled
	// inside the detector as "no data".
	if ev := p.blink.Update(sample.EAR(), in.UnixNanos); ev != nil {
		monitoring.BlinksDetected.Inc()
	}

	velocity, acceleration := p.kinetics.Update(gaze, in.UnixNanos)

	// Fixation/saccade track.
	res := p.fixation.Update(gaze, in.UnixNanos, missing)
	if res.Fixation != nil {
		p.baseline.Observe(MetricFixationDuration, res.Fixation.Duration)
		p.baseline.Observe(MetricGazeStability, res.Fixation.Stability)
		p.events.addFixation(*res.Fixation)
	}
	var saccadeZ float64
	if res.Saccade != nil {
		monitoring.SaccadesDetected.WithLabelValues(string(res.Saccade.Class)).Inc()
		saccadeZ = p.baseline.Normalize(MetricSaccadeVelocity, res.Saccade.Velocity)
		p.baseline.Observe(MetricSaccadeVelocity, res.Saccade.Velocity)
		p.events.addSaccade(*res.Saccade)
	}

	// Cognitive load track.
	pupil := p.cognitive.UpdatePupil(sample.PupilSize())
	load := p.cognitive.Estimate(pupil, p.blink)

	wpm := p.test.wpm(in.UnixNanos, p.cfg.ComplexityAdjustment)

	// Fusion.
	var dx float64
	if p.havePrev && !missing {
		dx = gaze.X - p.prevGaze.X
	}
	inputs := p.indicatorInputs(saccadeZ, load, wpm)
	dys := p.fusion.Update(dx, dtNanos, inputs, in.UnixNanos)

	p.prevGaze = gaze
	p.prevNanos = in.UnixNanos
	p.havePrev = true

	p.last = FrameMetrics{
		UnixNanos:        in.UnixNanos,
		FixationCount:    res.FixationCount,
		RegressionCount:  res.RegressionCount,
		ReadingSpeedWPM:  wpm,
		BlinkRate:        p.blink.Rate(),
		GazeVelocity:     velocity,
		GazeAcceleration: acceleration,
		Confidence:       confidence(p.samples.Len(), p.calibration.IsCalibrated()),
		CognitiveLoad:    load,
		Enhanced:         p.events.enhanced(p.samples.Recent(enhancedSampleWindow)),
		Dyslexia:         dys,
	}
	return p.last, nil
}

// buildSample applies calibration and coerces malformed geometry to the
// origin, tagging the sample so downstream fusion can discount it.
func (p *Pipeline) buildSample(in FrameInput) (GazeSample, bool) {
	left, okL := sanitize(in.LeftGaze)
	right, okR := sanitize(in.RightGaze)
	missing := !okL || !okR

	s := GazeSample{
		UnixNanos:  in.UnixNanos,
		LeftGaze:   p.calibration.Apply(left),
		RightGaze:  p.calibration.Apply(right),
		LeftPupil:  finiteOrZero(in.LeftPupil),
		RightPupil: finiteOrZero(in.RightPupil),
		LeftEAR:    finiteOrZero(in.LeftEAR),
		RightEAR:   finiteOrZero(in.RightEAR),
		Missing:    missing,
	}
	return s, missing
}

func (p *Pipeline) indicatorInputs(saccadeZ float64, load *CognitiveLoadSnapshot, wpm float64) IndicatorInputs {
	regressions, long := p.events.regressionStats()
	in := IndicatorInputs{
		BackwardRatio:             p.events.backwardRatio(),
		MeanFixationDuration:      p.events.meanFixationDuration(),
		FixationDurationThreshold: p.baseline.PercentileThreshold(MetricFixationDuration, 90),
		SaccadeVelocityZ:          saccadeZ,
		BlinkRate:                 p.blink.Rate(),
		MeanFixationStability:     p.events.meanFixationStability(),
		StabilityThreshold:        p.baseline.PercentileThreshold(MetricGazeStability, 10),
		RecentRegressions:         regressions,
		LongRegressions:           long,
		ReadingWPM:                wpm,
	}
	if load != nil {
		in.CognitiveLoad = load.Score
		in.HighLoad = load.Level == LoadHigh
	}
	return in
}

// StartCalibration begins collecting calibration pairs, discarding any
// previous collection run. Target points are supplied by the caller per
// sample; the default grid is DefaultCalibrationTargets.
func (p *Pipeline) StartCalibration() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.solver.Start()
}

// SubmitCalibrationSample records one (screen target, raw gaze) pair.
func (p *Pipeline) SubmitCalibrationSample(target, rawGaze Point) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.solver.Submit(target, rawGaze)
}

// FinalizeCalibration fits the collected pairs and installs the correction
// on success. On failure the previous calibration (if any) is left in place.
func (p *Pipeline) FinalizeCalibration() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	model, ok := p.solver.Solve()
	if !ok {
		return false
	}
	p.calibration = model
	return true
}

// IsCalibrated reports whether a calibration correction is installed.
func (p *Pipeline) IsCalibrated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calibration.IsCalibrated()
}

// StartReadingTest resets the word/time counters and begins timing the given
// text. Detector state is preserved; only reading-speed accounting restarts.
func (p *Pipeline) StartReadingTest(text string, unixNanos int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.test.start(text, unixNanos)
}

// LatestMetrics returns the metrics object from the most recent frame.
func (p *Pipeline) LatestMetrics() FrameMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Release frees all session state. It is idempotent; frames after release
// are rejected with ErrReleased.
func (p *Pipeline) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return
	}
	p.released = true
	p.samples.Reset()
	p.blink.Reset()
	p.fixation.Reset()
	p.baseline.Reset()
	p.cognitive.Reset()
	p.fusion.Reset()
	p.kinetics.Reset()
	p.events.reset()
	p.test.reset()
}

func sanitize(pt Point) (Point, bool) {
	if !isFinite(pt.X) || !isFinite(pt.Y) {
		return Point{}, false
	}
	return pt, true
}

func finiteOrZero(v float64) float64 {
	if !isFinite(v) {
		return 0
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
