package gaze

import "time"

// Constants shared across detector configuration.
const (
	// DefaultSampleBufferSize is the ring-buffer capacity for raw samples
	// (about 10 seconds at 30 Hz).
	DefaultSampleBufferSize = 300
	// DefaultFrameRate is the nominal upstream frame rate, used only for
	// documentation-level sizing of windows; the pipeline itself is driven by
	// sample timestamps.
	DefaultFrameRate = 30
	// MinCalibrationPairs is the minimum number of (target, gaze) pairs
	// required for a least-squares calibration fit.
	MinCalibrationPairs = 5
)

// BlinkConfig holds thresholds for the EAR-based blink state machine.
type BlinkConfig struct {
	Window      int     // frames averaged to smooth EAR before thresholding
	Threshold   float64 // smoothed EAR below this counts as eyes closed
	HistoryLen  int     // max stored blink durations / inter-blink intervals
	MinValidEAR float64 // EAR at or below this is treated as missing data, not a blink
}

// DefaultBlinkConfig returns default blink detection configuration.
func DefaultBlinkConfig() BlinkConfig {
	return BlinkConfig{
		Window:      10,
		Threshold:   0.21,
		HistoryLen:  10,
		MinValidEAR: 0.0,
	}
}

// RegressionTiers bucket regression saccades by horizontal magnitude, as a
// fraction of normalized screen width. Tiers are half-open and exhaustive:
// (0, Short], (Short, Medium], (Medium, Long], (Long, inf).
type RegressionTiers struct {
	Short  float64
	Medium float64
	Long   float64
}

// FixationConfig holds thresholds for fixation/saccade classification.
// SaccadeThreshold must exceed FixationThreshold; movement between the two is
// a dead zone classified as neither.
type FixationConfig struct {
	FixationThreshold   float64       // max movement to extend a fixation
	SaccadeThreshold    float64       // min movement to emit a saccade
	MinFixationDuration time.Duration // fixations shorter than this are noise
	RegressionThreshold float64       // min |dx| for a backward saccade to be a regression
	VerticalThreshold   float64       // min |dy| to count as a line-change regression
	Tiers               RegressionTiers
}

// DefaultFixationConfig returns default fixation/saccade configuration.
func DefaultFixationConfig() FixationConfig {
	return FixationConfig{
		FixationThreshold:   0.1,
		SaccadeThreshold:    0.25,
		MinFixationDuration: 200 * time.Millisecond,
		RegressionThreshold: 0.35,
		VerticalThreshold:   0.3,
		Tiers:               RegressionTiers{Short: 0.15, Medium: 0.30, Long: 0.45},
	}
}

// BaselineConfig holds sizing and fallback defaults for the rolling baseline
// tracker. Fallbacks apply until enough history accumulates.
type BaselineConfig struct {
	MaxHistory int

	DefaultFixationDuration float64 // seconds
	DefaultSaccadeVelocity  float64 // normalized units per second
	DefaultGazeStability    float64 // [0, 1]
}

// DefaultBaselineConfig returns default baseline tracker configuration.
func DefaultBaselineConfig() BaselineConfig {
	return BaselineConfig{
		MaxHistory:              1000,
		DefaultFixationDuration: 0.3,
		DefaultSaccadeVelocity:  100,
		DefaultGazeStability:    0.7,
	}
}

// CognitiveLoadConfig holds windowing and fusion weights for the cognitive
// load estimator. The weights are tunable constants; the estimator does not
// self-calibrate them.
type CognitiveLoadConfig struct {
	PupilWindow int // pupil size samples kept (about 2 seconds at 30 Hz)

	PupilWeight       float64 // weight of relative dilation
	VariabilityWeight float64 // weight of dilation variability
	BlinkWeight       float64 // weight of the blink irregularity term

	LowThreshold  float64 // below this the level is Low
	HighThreshold float64 // at or above this the level is High
}

// DefaultCognitiveLoadConfig returns default cognitive load configuration.
func DefaultCognitiveLoadConfig() CognitiveLoadConfig {
	return CognitiveLoadConfig{
		PupilWindow:       60,
		PupilWeight:       0.4,
		VariabilityWeight: 0.3,
		BlinkWeight:       0.3,
		LowThreshold:      0.3,
		HighThreshold:     0.7,
	}
}

// FusionWeights are the per-indicator contributions to the raw dyslexia
// probability. They must sum to 1.0.
type FusionWeights struct {
	BackwardSaccades   float64
	LongFixations      float64
	IrregularSaccades  float64
	HighBlinkRate      float64
	LowGazeStability   float64
	HighCognitiveLoad  float64
	FrequentRegression float64
	SlowReadingSpeed   float64
}

// Sum returns the total of all weights.
func (w FusionWeights) Sum() float64 {
	return w.BackwardSaccades + w.LongFixations + w.IrregularSaccades +
		w.HighBlinkRate + w.LowGazeStability + w.HighCognitiveLoad +
		w.FrequentRegression + w.SlowReadingSpeed
}

// FusionConfig holds the indicator fusion engine configuration: the active
// reading gate, indicator thresholds, fusion weights, and the temporal
// smoothing/rate-limiting applied to the reported probability.
type FusionConfig struct {
	Weights FusionWeights

	// Active reading gate.
	MinActiveReadingTime time.Duration // sustained movement required to enter Active
	MovementThreshold    float64       // mean |dx| per frame below this is "not reading"
	MovementWindow       int           // frames averaged for the movement gate

	// Indicator thresholds.
	BackwardRatioThreshold  float64 // backward saccade ratio above this is abnormal
	IrregularSaccadeZScore  float64 // saccade velocity z-score above this is irregular
	HighBlinkRateThreshold  float64 // blinks per minute above this is abnormal
	FrequentRegressionCount int     // regressions in the recent window above this is abnormal
	SlowReadingWPM          float64 // words per minute below this is slow

	// Probability shaping.
	LogisticGain          float64 // steepness of the logistic squash
	LogisticMidpoint      float64 // raw probability mapped to 0.5
	DecayStep             float64 // per-frame probability decay while Idle
	ProbabilityChangeRate float64 // max per-frame |delta probability|
	SmoothingAlpha        float64 // EMA coefficient for the reported probability
	SmoothingWindow       int     // frames of smoothed history retained
}

// DefaultFusionConfig returns default fusion configuration. The indicator
// weights sum to 1.0.
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		Weights: FusionWeights{
			BackwardSaccades:   0.20,
			LongFixations:      0.15,
			IrregularSaccades:  0.15,
			HighBlinkRate:      0.10,
			LowGazeStability:   0.10,
			HighCognitiveLoad:  0.10,
			FrequentRegression: 0.10,
			SlowReadingSpeed:   0.10,
		},
		MinActiveReadingTime:    2 * time.Second,
		MovementThreshold:       0.004,
		MovementWindow:          15,
		BackwardRatioThreshold:  0.4,
		IrregularSaccadeZScore:  2.0,
		HighBlinkRateThreshold:  30,
		FrequentRegressionCount: 5,
		SlowReadingWPM:          100,
		LogisticGain:            10,
		LogisticMidpoint:        0.5,
		DecayStep:               0.01,
		ProbabilityChangeRate:   0.1,
		SmoothingAlpha:          0.1,
		SmoothingWindow:         30,
	}
}

// Config aggregates all pipeline component configuration.
type Config struct {
	SampleBufferSize int

	Blink         BlinkConfig
	Fixation      FixationConfig
	Baseline      BaselineConfig
	CognitiveLoad CognitiveLoadConfig
	Fusion        FusionConfig

	// ComplexityAdjustment scales the plain words-per-minute figure by mean
	// word length relative to a five-character reference word.
	ComplexityAdjustment bool
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		SampleBufferSize:     DefaultSampleBufferSize,
		Blink:                DefaultBlinkConfig(),
		Fixation:             DefaultFixationConfig(),
		Baseline:             DefaultBaselineConfig(),
		CognitiveLoad:        DefaultCognitiveLoadConfig(),
		Fusion:               DefaultFusionConfig(),
		ComplexityAdjustment: true,
	}
}
