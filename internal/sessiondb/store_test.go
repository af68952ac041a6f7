package sessiondb

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/lexiscan/readtrace/internal/gaze"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func frameMetrics(nanos int64, probability, stability float64, regressions int) gaze.FrameMetrics {
	return gaze.FrameMetrics{
		UnixNanos:       nanos,
		RegressionCount: regressions,
		BlinkRate:       12,
		CognitiveLoad:   &gaze.CognitiveLoadSnapshot{Score: 0.4, Level: gaze.LoadMedium},
		Enhanced:        gaze.EnhancedMetrics{FixationStability: stability},
		Dyslexia: gaze.DyslexiaIndicatorScore{
			Probability: probability,
			Severity:    gaze.SeverityFor(probability),
		},
	}
}

func TestMigrateUpIsIdempotent(t *testing.T) {
	s := openTestStore(t)

	// Open already migrated; a second run must be a no-op.
	if err := s.MigrateUp(); err != nil {
		t.Fatalf("second MigrateUp: %v", err)
	}

	version, dirty, err := s.MigrateVersion()
	if err != nil {
		t.Fatalf("MigrateVersion: %v", err)
	}
	if dirty {
		t.Error("migration state is dirty")
	}
	if version == 0 {
		t.Error("expected a non-zero migration version")
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := openTestStore(t)

	start := time.Now()
	if err := s.CreateSession("sess-1", start); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := s.RecordFrame("sess-1", frameMetrics(1e9, 0.3, 0.8, 2)); err != nil {
		t.Fatalf("RecordFrame: %v", err)
	}
	if err := s.CloseSession("sess-1", start.Add(time.Minute)); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}

	ids, err := s.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(ids) != 1 || ids[0] != "sess-1" {
		t.Errorf("ListSessions = %v, want [sess-1]", ids)
	}
}

func TestSkippedFramesAreNotStored(t *testing.T) {
	s := openTestStore(t)

	if err := s.CreateSession("sess-1", time.Now()); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := s.RecordFrame("sess-1", gaze.FrameMetrics{Skipped: true}); err != nil {
		t.Fatalf("RecordFrame skipped: %v", err)
	}

	if _, err := s.AnalyzeSession("sess-1"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("AnalyzeSession error = %v, want sql.ErrNoRows", err)
	}
}

func TestAnalyzeSession(t *testing.T) {
	s := openTestStore(t)

	if err := s.CreateSession("sess-1", time.Now()); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	// Probability drops over the session, so the trend reads as improving.
	probs := []float64{0.6, 0.5, 0.4, 0.3}
	for i, p := range probs {
		m := frameMetrics(int64(i+1)*1e9, p, 0.5, i)
		if err := s.RecordFrame("sess-1", m); err != nil {
			t.Fatalf("RecordFrame %d: %v", i, err)
		}
	}

	sum, err := s.AnalyzeSession("sess-1")
	if err != nil {
		t.Fatalf("AnalyzeSession: %v", err)
	}
	if sum.Frames != 4 {
		t.Errorf("Frames = %d, want 4", sum.Frames)
	}
	if got, want := sum.AvgProbability, 0.45; !closeTo(got, want) {
		t.Errorf("AvgProbability = %v, want %v", got, want)
	}
	if got, want := sum.FinalProbability, 0.3; !closeTo(got, want) {
		t.Errorf("FinalProbability = %v, want %v", got, want)
	}
	if sum.MaxRegressionCount != 3 {
		t.Errorf("MaxRegressionCount = %d, want 3", sum.MaxRegressionCount)
	}
	if !sum.Improving {
		t.Error("expected a falling probability series to read as improving")
	}
}

func TestAnalyzeSessionNotImprovingWhenRising(t *testing.T) {
	s := openTestStore(t)

	if err := s.CreateSession("sess-1", time.Now()); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	for i, p := range []float64{0.2, 0.3, 0.5} {
		if err := s.RecordFrame("sess-1", frameMetrics(int64(i+1)*1e9, p, 0.5, 0)); err != nil {
			t.Fatalf("RecordFrame %d: %v", i, err)
		}
	}

	sum, err := s.AnalyzeSession("sess-1")
	if err != nil {
		t.Fatalf("AnalyzeSession: %v", err)
	}
	if sum.Improving {
		t.Error("rising probability series should not read as improving")
	}
}

func TestTimelineOrdersByTime(t *testing.T) {
	s := openTestStore(t)

	if err := s.CreateSession("sess-1", time.Now()); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	// Insert out of order; Timeline must sort by timestamp.
	for _, nanos := range []int64{3e9, 1e9, 2e9} {
		if err := s.RecordFrame("sess-1", frameMetrics(nanos, 0.1, 0.5, 0)); err != nil {
			t.Fatalf("RecordFrame: %v", err)
		}
	}

	points, err := s.Timeline("sess-1")
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("Timeline returned %d points, want 3", len(points))
	}
	for i := 1; i < len(points); i++ {
		if points[i].UnixNanos < points[i-1].UnixNanos {
			t.Errorf("timeline out of order at %d: %d < %d", i, points[i].UnixNanos, points[i-1].UnixNanos)
		}
	}
}

func closeTo(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}
