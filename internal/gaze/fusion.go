package gaze

import "math"

// ReadingState is the activity gate of the fusion engine. Indicators are only
// computed while Active; while Idle the reported probability decays toward
// zero and no indicators are published.
type ReadingState string

const (
	StateIdle   ReadingState = "idle"
	StateActive ReadingState = "active"
)

// Severity is the ordered qualitative label attached to a dyslexia
// probability.
type Severity string

const (
	SeverityMild               Severity = "mild"
	SeverityBorderline         Severity = "borderline"
	SeverityBorderlineModerate Severity = "borderline-to-moderate"
	SeverityModerate           Severity = "moderate"
	SeverityModerateSevere     Severity = "moderate-to-severe"
	SeveritySevere             Severity = "severe"
)

// SeverityFor maps a probability in [0, 1] onto the ordered severity scale.
// Bands are non-overlapping on the percent scale.
func SeverityFor(probability float64) Severity {
	pct := probability * 100
	switch {
	case pct <= 20:
		return SeverityMild
	case pct <= 35:
		return SeverityBorderline
	case pct <= 50:
		return SeverityBorderlineModerate
	case pct <= 65:
		return SeverityModerate
	case pct <= 80:
		return SeverityModerateSevere
	default:
		return SeveritySevere
	}
}

// Indicators are the per-frame behavioral abnormality booleans fed into the
// weighted fusion.
type Indicators struct {
	BackwardSaccades   bool `json:"backward_saccades"`
	LongFixations      bool `json:"long_fixations"`
	IrregularSaccades  bool `json:"irregular_saccades"`
	HighBlinkRate      bool `json:"high_blink_rate"`
	LowGazeStability   bool `json:"low_gaze_stability"`
	HighCognitiveLoad  bool `json:"high_cognitive_load"`
	FrequentRegression bool `json:"frequent_regressions"`
	SlowReadingSpeed   bool `json:"slow_reading_speed"`
}

// IndicatorInputs are the detector-side aggregates the engine evaluates each
// Active frame. The pipeline assembles them from the detectors and baseline
// tracker.
type IndicatorInputs struct {
	BackwardRatio             float64 // backward saccades / all recent saccades
	MeanFixationDuration      float64 // seconds
	FixationDurationThreshold float64 // adaptive percentile cutoff, seconds
	SaccadeVelocityZ          float64 // z-score of the latest saccade velocity
	BlinkRate                 float64 // blinks per minute
	MeanFixationStability     float64 // [0, 1]
	StabilityThreshold        float64 // adaptive lower cutoff
	CognitiveLoad             float64 // [0, 1], 0 when unavailable
	HighLoad                  bool    // cognitive load level is High
	RecentRegressions         int     // regressions in the rolling window
	LongRegressions           bool    // any long-tier regression in the window
	ReadingWPM                float64 // 0 while no reading test is running
}

// DyslexiaIndicatorScore is the externally reported fusion output.
type DyslexiaIndicatorScore struct {
	Probability    float64      `json:"probability"` // smoothed, rate limited, [0, 1]
	RawProbability float64      `json:"raw_probability"`
	Severity       Severity     `json:"severity"`
	State          ReadingState `json:"state"`
	// Indicators is nil while Idle: stale indicators are withheld rather
	// than recomputed on data the reader is not producing.
	Indicators *Indicators `json:"indicators,omitempty"`
	UnixNanos  int64       `json:"unix_nanos"`
}

// IndicatorFusionEngine combines detector outputs into a temporally smoothed
// and rate-limited dyslexia probability, gated on an active-reading detector.
type IndicatorFusionEngine struct {
	cfg FusionConfig

	state       ReadingState
	movement    []float64 // recent |dx| per frame
	activeNanos int64     // accumulated sustained-movement time while Idle

	probability float64 // rate-limited internal value
	smoothed    float64 // EMA of the rate-limited value, externally reported
	history     []float64
}

// NewIndicatorFusionEngine creates a fusion engine with the given
// configuration.
func NewIndicatorFusionEngine(cfg FusionConfig) *IndicatorFusionEngine {
	if cfg.MovementWindow < 1 {
		cfg.MovementWindow = 1
	}
	return &IndicatorFusionEngine{cfg: cfg, state: StateIdle}
}

// State returns the current reading gate state.
func (e *IndicatorFusionEngine) State() ReadingState { return e.state }

// History returns the bounded window of recently reported probabilities,
// oldest first. The returned slice is shared; callers must not mutate it.
func (e *IndicatorFusionEngine) History() []float64 { return e.history }

// Update advances the engine by one frame. dx is the signed horizontal gaze
// movement since the previous frame (0 for missing frames), dtNanos the
// elapsed time. inputs are only consulted while the gate is Active.
func (e *IndicatorFusionEngine) Update(dx float64, dtNanos int64, inputs IndicatorInputs, unixNanos int64) DyslexiaIndicatorScore {
	e.updateGate(dx, dtNanos)

	score := DyslexiaIndicatorScore{State: e.state, UnixNanos: unixNanos}

	if e.state != StateActive {
		// Idle decay: the reported value shrinks by a bounded step each
		// frame and indicators are withheld.
		e.probability = math.Max(0, e.probability-e.cfg.DecayStep)
		e.smoothed = math.Max(0, e.smoothed-e.cfg.DecayStep)
	} else {
		ind := e.evaluate(inputs)
		raw := e.weigh(ind)
		target := logistic(raw, e.cfg.LogisticGain, e.cfg.LogisticMidpoint)

		// Rate limit the change so a single frame can never spike the score.
		delta := clamp(target-e.probability, -e.cfg.ProbabilityChangeRate, e.cfg.ProbabilityChangeRate)
		e.probability = clamp(e.probability+delta, 0, 1)

		e.smoothed = e.cfg.SmoothingAlpha*e.probability + (1-e.cfg.SmoothingAlpha)*e.smoothed
		score.RawProbability = raw
		score.Indicators = &ind
	}

	e.history = appendBounded(e.history, e.smoothed, e.cfg.SmoothingWindow)

	score.Probability = e.smoothed
	score.Severity = SeverityFor(e.smoothed)
	return score
}

// updateGate maintains the Idle/Active state machine from sustained
// horizontal movement.
func (e *IndicatorFusionEngine) updateGate(dx float64, dtNanos int64) {
	e.movement = appendBounded(e.movement, math.Abs(dx), e.cfg.MovementWindow)

	var sum float64
	for _, v := range e.movement {
		sum += v
	}
	moving := sum/float64(len(e.movement)) >= e.cfg.MovementThreshold

	switch e.state {
	case StateIdle:
		if moving {
			e.activeNanos += dtNanos
			if e.activeNanos >= e.cfg.MinActiveReadingTime.Nanoseconds() {
				e.state = StateActive
			}
		} else {
			e.activeNanos = 0
		}
	case StateActive:
		if !moving {
			e.state = StateIdle
			e.activeNanos = 0
		}
	}
}

func (e *IndicatorFusionEngine) evaluate(in IndicatorInputs) Indicators {
	return Indicators{
		BackwardSaccades:   in.BackwardRatio > e.cfg.BackwardRatioThreshold,
		LongFixations:      in.MeanFixationDuration > in.FixationDurationThreshold,
		IrregularSaccades:  in.SaccadeVelocityZ > e.cfg.IrregularSaccadeZScore,
		HighBlinkRate:      in.BlinkRate > e.cfg.HighBlinkRateThreshold,
		LowGazeStability:   in.MeanFixationStability > 0 && in.MeanFixationStability < in.StabilityThreshold,
		HighCognitiveLoad:  in.HighLoad,
		FrequentRegression: in.RecentRegressions > e.cfg.FrequentRegressionCount || in.LongRegressions,
		SlowReadingSpeed:   in.ReadingWPM > 0 && in.ReadingWPM < e.cfg.SlowReadingWPM,
	}
}

func (e *IndicatorFusionEngine) weigh(ind Indicators) float64 {
	w := e.cfg.Weights
	var raw float64
	if ind.BackwardSaccades {
		raw += w.BackwardSaccades
	}
	if ind.LongFixations {
		raw += w.LongFixations
	}
	if ind.IrregularSaccades {
		raw += w.IrregularSaccades
	}
	if ind.HighBlinkRate {
		raw += w.HighBlinkRate
	}
	if ind.LowGazeStability {
		raw += w.LowGazeStability
	}
	if ind.HighCognitiveLoad {
		raw += w.HighCognitiveLoad
	}
	if ind.FrequentRegression {
		raw += w.FrequentRegression
	}
	if ind.SlowReadingSpeed {
		raw += w.SlowReadingSpeed
	}
	if total := w.Sum(); total > 0 {
		raw /= total
	}
	return raw
}

// logistic sharpens separation around the midpoint.
func logistic(v, gain, midpoint float64) float64 {
	return 1 / (1 + math.Exp(-gain*(v-midpoint)))
}

// Reset returns the engine to Idle with zero probability.
func (e *IndicatorFusionEngine) Reset() {
	e.state = StateIdle
	e.movement = nil
	e.activeNanos = 0
	e.probability = 0
	e.smoothed = 0
	e.history = nil
}
