package gaze

import (
	"gonum.org/v1/gonum/stat"
)

// LoadLevel is a qualitative cognitive load level.
type LoadLevel string

const (
	LoadLow    LoadLevel = "Low"
	LoadMedium LoadLevel = "Medium"
	LoadHigh   LoadLevel = "High"
)

// CognitiveLoadSnapshot is the fused cognitive load estimate for one frame.
type CognitiveLoadSnapshot struct {
	PupilLoad float64   `json:"pupil_load"`
	BlinkLoad float64   `json:"blink_load"`
	Score     float64   `json:"score"` // [0, 1]
	Level     LoadLevel `json:"level"`
}

// PupilMetrics are the derived pupil dilation statistics for one frame.
type PupilMetrics struct {
	Current          float64
	Mean             float64
	Variability      float64 // standard deviation over the window
	Velocity         float64 // last minus previous sample
	RelativeDilation float64 // (current - baseline) / baseline
}

// CognitiveLoadEstimator combines pupil-dilation and blink-variability
// signals into a 0-1 cognitive load score. The pupil baseline is fixed at the
// first computable window mean and never changes for the session.
type CognitiveLoadEstimator struct {
	cfg CognitiveLoadConfig

	pupilSizes []float64
	baseline   float64
	haveBase   bool
}

// NewCognitiveLoadEstimator creates an estimator with the given configuration.
func NewCognitiveLoadEstimator(cfg CognitiveLoadConfig) *CognitiveLoadEstimator {
	if cfg.PupilWindow < 3 {
		cfg.PupilWindow = 3
	}
	return &CognitiveLoadEstimator{cfg: cfg}
}

// UpdatePupil feeds one pupil size sample and returns derived metrics, or nil
// while fewer than three samples have accumulated.
func (e *CognitiveLoadEstimator) UpdatePupil(size float64) *PupilMetrics {
	e.pupilSizes = appendBounded(e.pupilSizes, size, e.cfg.PupilWindow)
	if len(e.pupilSizes) < 3 {
		return nil
	}

	mean, std := stat.MeanStdDev(e.pupilSizes, nil)
	m := &PupilMetrics{
		Current:     size,
		Mean:        mean,
		Variability: std,
		Velocity:    e.pupilSizes[len(e.pupilSizes)-1] - e.pupilSizes[len(e.pupilSizes)-2],
	}

	if !e.haveBase {
		e.baseline = mean
		e.haveBase = true
	}
	if e.baseline != 0 {
		m.RelativeDilation = (m.Current - e.baseline) / e.baseline
	}
	return m
}

// Estimate fuses pupil metrics with the blink detector's duration history
// into a cognitive load snapshot. It returns nil when either track lacks the
// minimum data (three pupil samples, two blink durations).
func (e *CognitiveLoadEstimator) Estimate(pupil *PupilMetrics, blink *BlinkDetector) *CognitiveLoadSnapshot {
	if pupil == nil || blink == nil || len(blink.Durations()) < 2 {
		return nil
	}

	meanDur, blinkVar := stat.MeanStdDev(blink.Durations(), nil)

	pupilLoad := pupil.RelativeDilation*e.cfg.PupilWeight + pupil.Variability*e.cfg.VariabilityWeight

	var blinkLoad float64
	if meanDur > 0 {
		blinkLoad = (blinkVar / meanDur) * e.cfg.BlinkWeight
	}

	score := clamp(pupilLoad+blinkLoad, 0, 1)

	level := LoadLow
	switch {
	case score >= e.cfg.HighThreshold:
		level = LoadHigh
	case score >= e.cfg.LowThreshold:
		level = LoadMedium
	}

	return &CognitiveLoadSnapshot{
		PupilLoad: pupilLoad,
		BlinkLoad: blinkLoad,
		Score:     score,
		Level:     level,
	}
}

// Reset drops all pupil history and the session baseline.
func (e *CognitiveLoadEstimator) Reset() {
	e.pupilSizes = nil
	e.baseline = 0
	e.haveBase = false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
