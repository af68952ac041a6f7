package gaze

import (
	"testing"
)

func TestCognitiveLoadEstimator_NeedsThreePupilSamples(t *testing.T) {
	e := NewCognitiveLoadEstimator(DefaultCognitiveLoadConfig())

	if m := e.UpdatePupil(3.0); m != nil {
		t.Error("expected nil after 1 sample")
	}
	if m := e.UpdatePupil(3.1); m != nil {
		t.Error("expected nil after 2 samples")
	}
	if m := e.UpdatePupil(3.2); m == nil {
		t.Error("expected metrics after 3 samples")
	}
}

func TestCognitiveLoadEstimator_BaselineFixedAtFirstMean(t *testing.T) {
	e := NewCognitiveLoadEstimator(DefaultCognitiveLoadConfig())

	e.UpdatePupil(3.0)
	e.UpdatePupil(3.0)
	m := e.UpdatePupil(3.0)
	if m == nil {
		t.Fatal("expected metrics")
	}
	if m.RelativeDilation != 0 {
		t.Errorf("relative dilation at baseline = %v, want 0", m.RelativeDilation)
	}

	// Baseline stays at 3.0 even as the mean drifts upward.
	for i := 0; i < 30; i++ {
		m = e.UpdatePupil(6.0)
	}
	if m.RelativeDilation <= 0.9 {
		t.Errorf("relative dilation after doubling = %v, want ~1.0 against the original baseline", m.RelativeDilation)
	}
}

func TestCognitiveLoadEstimator_EstimateRequiresBlinkHistory(t *testing.T) {
	e := NewCognitiveLoadEstimator(DefaultCognitiveLoadConfig())
	b := NewBlinkDetector(DefaultBlinkConfig())

	e.UpdatePupil(3.0)
	e.UpdatePupil(3.1)
	pupil := e.UpdatePupil(3.2)

	if snap := e.Estimate(pupil, b); snap != nil {
		t.Error("expected nil snapshot with no blink history")
	}
	if snap := e.Estimate(nil, b); snap != nil {
		t.Error("expected nil snapshot with nil pupil metrics")
	}
}

func TestCognitiveLoadEstimator_ScoreClampedAndLevelled(t *testing.T) {
	e := NewCognitiveLoadEstimator(DefaultCognitiveLoadConfig())
	b := NewBlinkDetector(DefaultBlinkConfig())

	// Two synthetic blinks to satisfy the minimum history.
	feedEAR(b, []float64{0.3, 0.3, 0.3, 0.3, 0.3, 0.3, 0.3, 0.3, 0.3, 0.3,
		0.05, 0.05, 0.05, 0.05, 0.05, 0.05,
		0.3, 0.3, 0.3, 0.3, 0.3, 0.3, 0.3, 0.3, 0.3, 0.3,
		0.05, 0.05, 0.05, 0.05, 0.05, 0.05,
		0.3, 0.3, 0.3, 0.3, 0.3, 0.3, 0.3, 0.3, 0.3, 0.3}, 1e9)
	if len(b.Durations()) < 2 {
		t.Fatalf("test setup: expected >= 2 blink durations, got %d", len(b.Durations()))
	}

	// Strong dilation with high variability should push the score hard; it
	// must remain clamped to [0, 1].
	e.UpdatePupil(2.0)
	e.UpdatePupil(2.0)
	e.UpdatePupil(2.0)
	var pupil *PupilMetrics
	for _, v := range []float64{8, 2, 9, 1, 10, 2, 9} {
		pupil = e.UpdatePupil(v)
	}

	snap := e.Estimate(pupil, b)
	if snap == nil {
		t.Fatal("expected a snapshot")
	}
	if snap.Score < 0 || snap.Score > 1 {
		t.Errorf("score = %v, want within [0, 1]", snap.Score)
	}
	if snap.Score >= 0.7 && snap.Level != LoadHigh {
		t.Errorf("level = %q for score %v, want High", snap.Level, snap.Score)
	}
	if snap.Score < 0.3 && snap.Level != LoadLow {
		t.Errorf("level = %q for score %v, want Low", snap.Level, snap.Score)
	}
}
