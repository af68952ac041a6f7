package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lexiscan/readtrace/internal/config"
	"github.com/lexiscan/readtrace/internal/gaze"
	"github.com/lexiscan/readtrace/internal/monitoring"
	"github.com/lexiscan/readtrace/internal/session"
	"github.com/lexiscan/readtrace/internal/sessiondb"
)

func init() {
	monitoring.SetLogger(nil)
}

func newTestServer(t *testing.T) (*Server, *session.Manager) {
	t.Helper()
	store, err := sessiondb.Open(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	sessions := session.NewManager(gaze.DefaultConfig())
	t.Cleanup(sessions.ReleaseAll)

	return NewServer(sessions, store, config.EmptyTuningConfig()), sessions
}

func doJSON(t *testing.T, mux *http.ServeMux, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func createSession(t *testing.T, mux *http.ServeMux) string {
	t.Helper()
	rec := doJSON(t, mux, http.MethodPost, "/api/sessions", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if resp["session_id"] == "" {
		t.Fatal("create response missing session_id")
	}
	return resp["session_id"]
}

func testFrame(nanos int64, x float64) gaze.FrameInput {
	return gaze.FrameInput{
		UnixNanos:    nanos,
		FaceDetected: true,
		LeftGaze:     gaze.Point{X: x, Y: 0.5},
		RightGaze:    gaze.Point{X: x, Y: 0.5},
		LeftPupil:    4.0,
		RightPupil:   4.0,
		LeftEAR:      0.3,
		RightEAR:     0.3,
	}
}

func TestCreateAndListSessions(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.ServeMux()

	id := createSession(t, mux)

	rec := doJSON(t, mux, http.MethodGet, "/api/sessions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list sessions: status %d", rec.Code)
	}
	var resp map[string][]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if len(resp["sessions"]) != 1 || resp["sessions"][0] != id {
		t.Errorf("sessions = %v, want [%s]", resp["sessions"], id)
	}
}

func TestIngestFrameReturnsMetrics(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.ServeMux()
	id := createSession(t, mux)

	rec := doJSON(t, mux, http.MethodPost, "/api/frames?session="+id, testFrame(1e9, 0.5))
	if rec.Code != http.StatusOK {
		t.Fatalf("ingest frame: status %d, body %s", rec.Code, rec.Body.String())
	}

	var metrics gaze.FrameMetrics
	if err := json.Unmarshal(rec.Body.Bytes(), &metrics); err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
	if metrics.UnixNanos != 1e9 {
		t.Errorf("UnixNanos = %d, want 1e9", metrics.UnixNanos)
	}
	if metrics.Skipped {
		t.Error("frame with landmarks should not be skipped")
	}
}

func TestIngestFrameUnknownSession(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.ServeMux()

	rec := doJSON(t, mux, http.MethodPost, "/api/frames?session=nope", testFrame(1e9, 0.5))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestIngestFrameMissingSessionParam(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.ServeMux()

	rec := doJSON(t, mux, http.MethodPost, "/api/frames", testFrame(1e9, 0.5))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestIngestFrameBadPayload(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.ServeMux()
	id := createSession(t, mux)

	req := httptest.NewRequest(http.MethodPost, "/api/frames?session="+id, strings.NewReader("{bad"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.ServeMux()

	for _, target := range []string{
		"/api/frames",
		"/api/calibration/start",
		"/api/reading/start",
		"/api/sessions/release",
	} {
		rec := doJSON(t, mux, http.MethodGet, target, nil)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("GET %s: status = %d, want 405", target, rec.Code)
		}
	}
}

func TestReleaseSession(t *testing.T) {
	srv, sessions := newTestServer(t)
	mux := srv.ServeMux()
	id := createSession(t, mux)

	rec := doJSON(t, mux, http.MethodPost, "/api/sessions/release?session="+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("release: status %d", rec.Code)
	}
	if sessions.Count() != 0 {
		t.Errorf("manager count = %d after release, want 0", sessions.Count())
	}

	// Released sessions are gone from the live manager.
	rec = doJSON(t, mux, http.MethodPost, "/api/frames?session="+id, testFrame(1e9, 0.5))
	if rec.Code != http.StatusNotFound {
		t.Errorf("frame after release: status = %d, want 404", rec.Code)
	}
}

func TestCalibrationLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.ServeMux()
	id := createSession(t, mux)

	rec := doJSON(t, mux, http.MethodPost, "/api/calibration/start?session="+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("calibration start: status %d", rec.Code)
	}
	var startResp map[string][]gaze.Point
	if err := json.Unmarshal(rec.Body.Bytes(), &startResp); err != nil {
		t.Fatalf("decode start response: %v", err)
	}
	targets := startResp["targets"]
	if len(targets) != 9 {
		t.Fatalf("got %d calibration targets, want 9", len(targets))
	}

	// Gaze reads at half scale; the fit should still converge.
	for _, target := range targets {
		sample := calibrationSampleRequest{
			Target: target,
			Gaze:   gaze.Point{X: target.X * 0.5, Y: target.Y * 0.5},
		}
		rec = doJSON(t, mux, http.MethodPost, "/api/calibration/sample?session="+id, sample)
		if rec.Code != http.StatusOK {
			t.Fatalf("calibration sample: status %d", rec.Code)
		}
	}

	rec = doJSON(t, mux, http.MethodPost, "/api/calibration/finalize?session="+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("calibration finalize: status %d", rec.Code)
	}
	var finResp map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &finResp); err != nil {
		t.Fatalf("decode finalize response: %v", err)
	}
	if !finResp["calibrated"] {
		t.Error("finalize reported calibrated=false for a clean grid")
	}
}

func TestStartReadingTestRequiresText(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.ServeMux()
	id := createSession(t, mux)

	rec := doJSON(t, mux, http.MethodPost, "/api/reading/start?session="+id, readingTestRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, mux, http.MethodPost, "/api/reading/start?session="+id,
		readingTestRequest{Text: "the quick brown fox", UnixNanos: 1e9})
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestSessionReport(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.ServeMux()
	id := createSession(t, mux)

	// Feed a short burst of frames so the report has data.
	for i := 0; i < 30; i++ {
		x := 0.2
		if i%2 == 1 {
			x = 0.7
		}
		nanos := int64(i+1) * 1e8
		rec := doJSON(t, mux, http.MethodPost,
			fmt.Sprintf("/api/frames?session=%s", id), testFrame(nanos, x))
		if rec.Code != http.StatusOK {
			t.Fatalf("frame %d: status %d", i, rec.Code)
		}
	}

	rec := doJSON(t, mux, http.MethodGet, "/api/sessions/report?session="+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("report: status %d, body %s", rec.Code, rec.Body.String())
	}
	var summary sessiondb.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Frames != 30 {
		t.Errorf("Frames = %d, want 30", summary.Frames)
	}
}

func TestSessionReportUnknown(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.ServeMux()

	rec := doJSON(t, mux, http.MethodGet, "/api/sessions/report?session=nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSessionTimelineHTML(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.ServeMux()
	id := createSession(t, mux)

	for i := 0; i < 5; i++ {
		doJSON(t, mux, http.MethodPost, "/api/frames?session="+id, testFrame(int64(i+1)*1e8, 0.5))
	}

	rec := doJSON(t, mux, http.MethodGet, "/api/sessions/timeline?session="+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("timeline: status %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	if !strings.Contains(rec.Body.String(), "probability") {
		t.Error("timeline HTML missing probability series")
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.ServeMux()

	rec := doJSON(t, mux, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected healthz body: %s", rec.Body.String())
	}
}

func TestShowTuning(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.ServeMux()

	rec := doJSON(t, mux, http.MethodGet, "/api/tuning", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("tuning: status %d", rec.Code)
	}
	// Empty tuning serializes to an empty object: all overrides unset.
	if strings.TrimSpace(rec.Body.String()) != "{}" {
		t.Errorf("tuning body = %s, want {}", rec.Body.String())
	}
}
