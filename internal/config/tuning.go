package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lexiscan/readtrace/internal/gaze"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tuning parameters.
// The schema matches the /api/tuning endpoint so the same JSON can be
// used for both startup configuration and runtime inspection.
type TuningConfig struct {
	// Blink params
	BlinkThreshold *float64 `json:"blink_threshold,omitempty"`
	BlinkWindow    *int     `json:"blink_window,omitempty"`

	// Fixation and saccade params
	FixationThreshold   *float64 `json:"fixation_threshold,omitempty"`
	SaccadeThreshold    *float64 `json:"saccade_threshold,omitempty"`
	MinFixationDuration *string  `json:"min_fixation_duration,omitempty"` // duration string like "200ms"
	RegressionThreshold *float64 `json:"regression_threshold,omitempty"`

	// Cognitive load params
	PupilWindow *int     `json:"pupil_window,omitempty"`
	PupilWeight *float64 `json:"pupil_weight,omitempty"`
	BlinkWeight *float64 `json:"blink_weight,omitempty"`

	// Fusion params
	MovementThreshold     *float64 `json:"movement_threshold,omitempty"`
	MinActiveReadingTime  *string  `json:"min_active_reading_time,omitempty"` // duration string like "2s"
	ProbabilityChangeRate *float64 `json:"probability_change_rate,omitempty"`
	SmoothingAlpha        *float64 `json:"smoothing_alpha,omitempty"`
	IdleDecayStep         *float64 `json:"idle_decay_step,omitempty"`

	// Reading speed params
	ComplexityAdjustment *bool `json:"complexity_adjustment,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. Pipeline defaults fill any fields not
	// specified in the JSON when Apply runs.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.BlinkThreshold != nil {
		if *c.BlinkThreshold <= 0 || *c.BlinkThreshold >= 1 {
			return fmt.Errorf("blink_threshold must be between 0 and 1, got %f", *c.BlinkThreshold)
		}
	}

	if c.BlinkWindow != nil && *c.BlinkWindow < 1 {
		return fmt.Errorf("blink_window must be positive, got %d", *c.BlinkWindow)
	}

	// The band between the two thresholds is the dead zone; it must exist.
	fix := gaze.DefaultFixationConfig().FixationThreshold
	if c.FixationThreshold != nil {
		fix = *c.FixationThreshold
	}
	sac := gaze.DefaultFixationConfig().SaccadeThreshold
	if c.SaccadeThreshold != nil {
		sac = *c.SaccadeThreshold
	}
	if fix >= sac {
		return fmt.Errorf("fixation_threshold %f must be below saccade_threshold %f", fix, sac)
	}

	if c.MinFixationDuration != nil && *c.MinFixationDuration != "" {
		if _, err := time.ParseDuration(*c.MinFixationDuration); err != nil {
			return fmt.Errorf("invalid min_fixation_duration '%s': %w", *c.MinFixationDuration, err)
		}
	}

	if c.MinActiveReadingTime != nil && *c.MinActiveReadingTime != "" {
		if _, err := time.ParseDuration(*c.MinActiveReadingTime); err != nil {
			return fmt.Errorf("invalid min_active_reading_time '%s': %w", *c.MinActiveReadingTime, err)
		}
	}

	if c.PupilWindow != nil && *c.PupilWindow < 3 {
		return fmt.Errorf("pupil_window must be at least 3, got %d", *c.PupilWindow)
	}

	if c.PupilWeight != nil && (*c.PupilWeight < 0 || *c.PupilWeight > 1) {
		return fmt.Errorf("pupil_weight must be between 0 and 1, got %f", *c.PupilWeight)
	}

	if c.BlinkWeight != nil && (*c.BlinkWeight < 0 || *c.BlinkWeight > 1) {
		return fmt.Errorf("blink_weight must be between 0 and 1, got %f", *c.BlinkWeight)
	}

	if c.SmoothingAlpha != nil {
		if *c.SmoothingAlpha <= 0 || *c.SmoothingAlpha > 1 {
			return fmt.Errorf("smoothing_alpha must be in (0, 1], got %f", *c.SmoothingAlpha)
		}
	}

	if c.ProbabilityChangeRate != nil && *c.ProbabilityChangeRate <= 0 {
		return fmt.Errorf("probability_change_rate must be positive, got %f", *c.ProbabilityChangeRate)
	}

	if c.IdleDecayStep != nil && *c.IdleDecayStep < 0 {
		return fmt.Errorf("idle_decay_step must be non-negative, got %f", *c.IdleDecayStep)
	}

	return nil
}

// GetMinFixationDuration parses and returns the MinFixationDuration as a time.Duration.
func (c *TuningConfig) GetMinFixationDuration() time.Duration {
	if c.MinFixationDuration == nil || *c.MinFixationDuration == "" {
		return gaze.DefaultFixationConfig().MinFixationDuration
	}
	d, err := time.ParseDuration(*c.MinFixationDuration)
	if err != nil {
		return gaze.DefaultFixationConfig().MinFixationDuration
	}
	return d
}

// GetMinActiveReadingTime parses and returns the MinActiveReadingTime as a time.Duration.
func (c *TuningConfig) GetMinActiveReadingTime() time.Duration {
	if c.MinActiveReadingTime == nil || *c.MinActiveReadingTime == "" {
		return gaze.DefaultFusionConfig().MinActiveReadingTime
	}
	d, err := time.ParseDuration(*c.MinActiveReadingTime)
	if err != nil {
		return gaze.DefaultFusionConfig().MinActiveReadingTime
	}
	return d
}

// Apply overlays the set fields on top of the pipeline defaults and returns
// the resulting pipeline configuration.
func (c *TuningConfig) Apply() gaze.Config {
	cfg := gaze.DefaultConfig()

	if c.BlinkThreshold != nil {
		cfg.Blink.Threshold = *c.BlinkThreshold
	}
	if c.BlinkWindow != nil {
		cfg.Blink.Window = *c.BlinkWindow
	}
	if c.FixationThreshold != nil {
		cfg.Fixation.FixationThreshold = *c.FixationThreshold
	}
	if c.SaccadeThreshold != nil {
		cfg.Fixation.SaccadeThreshold = *c.SaccadeThreshold
	}
	cfg.Fixation.MinFixationDuration = c.GetMinFixationDuration()
	if c.RegressionThreshold != nil {
		cfg.Fixation.RegressionThreshold = *c.RegressionThreshold
	}
	if c.PupilWindow != nil {
		cfg.CognitiveLoad.PupilWindow = *c.PupilWindow
	}
	if c.PupilWeight != nil {
		cfg.CognitiveLoad.PupilWeight = *c.PupilWeight
	}
	if c.BlinkWeight != nil {
		cfg.CognitiveLoad.BlinkWeight = *c.BlinkWeight
	}
	if c.MovementThreshold != nil {
		cfg.Fusion.MovementThreshold = *c.MovementThreshold
	}
	cfg.Fusion.MinActiveReadingTime = c.GetMinActiveReadingTime()
	if c.ProbabilityChangeRate != nil {
		cfg.Fusion.ProbabilityChangeRate = *c.ProbabilityChangeRate
	}
	if c.SmoothingAlpha != nil {
		cfg.Fusion.SmoothingAlpha = *c.SmoothingAlpha
	}
	if c.IdleDecayStep != nil {
		cfg.Fusion.DecayStep = *c.IdleDecayStep
	}
	if c.ComplexityAdjustment != nil {
		cfg.ComplexityAdjustment = *c.ComplexityAdjustment
	}

	return cfg
}
