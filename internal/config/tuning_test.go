package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lexiscan/readtrace/internal/gaze"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadTuningConfigPartial(t *testing.T) {
	path := writeConfig(t, "tuning.json", `{
		"blink_threshold": 0.25,
		"min_fixation_duration": "150ms",
		"complexity_adjustment": false
	}`)

	cfg, err := LoadTuningConfig(path)
	if err != nil {
		t.Fatalf("LoadTuningConfig: %v", err)
	}

	pipeline := cfg.Apply()
	if pipeline.Blink.Threshold != 0.25 {
		t.Errorf("Blink.Threshold = %v, want 0.25", pipeline.Blink.Threshold)
	}
	if pipeline.Fixation.MinFixationDuration != 150*time.Millisecond {
		t.Errorf("MinFixationDuration = %v, want 150ms", pipeline.Fixation.MinFixationDuration)
	}
	if pipeline.ComplexityAdjustment {
		t.Error("ComplexityAdjustment should be disabled")
	}

	// Unset fields keep pipeline defaults.
	def := gaze.DefaultConfig()
	if pipeline.Fixation.SaccadeThreshold != def.Fixation.SaccadeThreshold {
		t.Errorf("SaccadeThreshold = %v, want default %v",
			pipeline.Fixation.SaccadeThreshold, def.Fixation.SaccadeThreshold)
	}
	if pipeline.Fusion.SmoothingAlpha != def.Fusion.SmoothingAlpha {
		t.Errorf("SmoothingAlpha = %v, want default %v",
			pipeline.Fusion.SmoothingAlpha, def.Fusion.SmoothingAlpha)
	}
}

func TestLoadTuningConfigRejectsNonJSON(t *testing.T) {
	path := writeConfig(t, "tuning.yaml", "blink_threshold: 0.25")

	if _, err := LoadTuningConfig(path); err == nil {
		t.Fatal("expected error for non-.json extension")
	}
}

func TestLoadTuningConfigRejectsBadJSON(t *testing.T) {
	path := writeConfig(t, "tuning.json", "{not json")

	if _, err := LoadTuningConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadTuningConfigMissingFile(t *testing.T) {
	if _, err := LoadTuningConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *TuningConfig
		wantErr string
	}{
		{"empty is valid", EmptyTuningConfig(), ""},
		{"blink threshold out of range",
			&TuningConfig{BlinkThreshold: ptrFloat64(1.5)}, "blink_threshold"},
		{"blink window zero",
			&TuningConfig{BlinkWindow: ptrInt(0)}, "blink_window"},
		{"fixation threshold above saccade",
			&TuningConfig{FixationThreshold: ptrFloat64(0.3)}, "fixation_threshold"},
		{"dead zone collapsed explicitly",
			&TuningConfig{FixationThreshold: ptrFloat64(0.2), SaccadeThreshold: ptrFloat64(0.2)},
			"fixation_threshold"},
		{"bad duration",
			&TuningConfig{MinFixationDuration: ptrString("soon")}, "min_fixation_duration"},
		{"bad reading gate duration",
			&TuningConfig{MinActiveReadingTime: ptrString("never")}, "min_active_reading_time"},
		{"alpha above one",
			&TuningConfig{SmoothingAlpha: ptrFloat64(1.1)}, "smoothing_alpha"},
		{"negative decay",
			&TuningConfig{IdleDecayStep: ptrFloat64(-0.1)}, "idle_decay_step"},
		{"valid overrides",
			&TuningConfig{
				FixationThreshold:    ptrFloat64(0.08),
				SaccadeThreshold:     ptrFloat64(0.2),
				ComplexityAdjustment: ptrBool(true),
			}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestGetDurationsFallBackToDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()
	if got := cfg.GetMinFixationDuration(); got != gaze.DefaultFixationConfig().MinFixationDuration {
		t.Errorf("GetMinFixationDuration = %v, want default", got)
	}
	if got := cfg.GetMinActiveReadingTime(); got != gaze.DefaultFusionConfig().MinActiveReadingTime {
		t.Errorf("GetMinActiveReadingTime = %v, want default", got)
	}
}
