package gaze

// FrameMetrics is the per-frame output of the pipeline, consumable by the
// transport layer every frame. All values reflect session-scoped state; no
// process-wide counters are involved.
type FrameMetrics struct {
	UnixNanos int64 `json:"unix_nanos"`

	FixationCount   int     `json:"fixation_count"`
	RegressionCount int     `json:"regression_count"`
	ReadingSpeedWPM float64 `json:"reading_speed_wpm"`
	BlinkRate       float64 `json:"blink_rate"`

	GazeVelocity     float64 `json:"gaze_velocity"`
	GazeAcceleration float64 `json:"gaze_acceleration"`

	// Confidence in the analysis, from sample volume and calibration state.
	Confidence float64 `json:"confidence"`

	// CognitiveLoad is nil until the estimator has its minimum data
	// (three pupil samples and two completed blinks).
	CognitiveLoad *CognitiveLoadSnapshot `json:"cognitive_load,omitempty"`

	Enhanced EnhancedMetrics        `json:"enhanced_metrics"`
	Dyslexia DyslexiaIndicatorScore `json:"dyslexia_indicators"`

	// Skipped marks a frame with no face landmarks: detectors were not
	// updated and the values above are carried state, not new measurements.
	Skipped bool `json:"skipped,omitempty"`
}
