package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lexiscan/readtrace/internal/config"
	"github.com/lexiscan/readtrace/internal/gaze"
	"github.com/lexiscan/readtrace/internal/monitoring"
	"github.com/lexiscan/readtrace/internal/report"
	"github.com/lexiscan/readtrace/internal/session"
	"github.com/lexiscan/readtrace/internal/sessiondb"
	"github.com/lexiscan/readtrace/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	sessions *session.Manager
	store    *sessiondb.Store
	tuning   *config.TuningConfig
}

func NewServer(sessions *session.Manager, store *sessiondb.Store, tuning *config.TuningConfig) *Server {
	return &Server{
		sessions: sessions,
		store:    store,
		tuning:   tuning,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/sessions/release", s.releaseSession)
	mux.HandleFunc("/api/sessions/report", s.sessionReport)
	mux.HandleFunc("/api/sessions/timeline", s.sessionTimeline)
	mux.HandleFunc("/api/frames", s.ingestFrame)
	mux.HandleFunc("/api/metrics/latest", s.latestMetrics)
	mux.HandleFunc("/api/calibration/start", s.startCalibration)
	mux.HandleFunc("/api/calibration/sample", s.submitCalibrationSample)
	mux.HandleFunc("/api/calibration/finalize", s.finalizeCalibration)
	mux.HandleFunc("/api/reading/start", s.startReadingTest)
	mux.HandleFunc("/api/tuning", s.showTuning)
	mux.HandleFunc("/healthz", s.healthz)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// sessionFromQuery resolves the "session" query parameter to a live session.
// It writes the error response itself and returns nil on failure.
func (s *Server) sessionFromQuery(w http.ResponseWriter, r *http.Request) *session.Session {
	id := r.URL.Query().Get("session")
	if id == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'session' parameter")
		return nil
	}
	sess, err := s.sessions.Get(id)
	if err != nil {
		s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("Unknown session %q", id))
		return nil
	}
	return sess
}

// handleSessions serves GET (list stored sessions) and POST (create a new
// live session) on the same path.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodGet:
		ids, err := s.store.ListSessions()
		if err != nil {
			s.writeJSONError(w, http.StatusInternalServerError,
				fmt.Sprintf("Failed to list sessions: %v", err))
			return
		}
		if ids == nil {
			ids = []string{}
		}
		json.NewEncoder(w).Encode(map[string][]string{"sessions": ids})

	case http.MethodPost:
		sess := s.sessions.Create()
		if err := s.store.CreateSession(sess.ID, sess.CreatedAt); err != nil {
			s.sessions.Release(sess.ID)
			s.writeJSONError(w, http.StatusInternalServerError,
				fmt.Sprintf("Failed to persist session: %v", err))
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"session_id": sess.ID})

	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) releaseSession(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	sess := s.sessionFromQuery(w, r)
	if sess == nil {
		return
	}

	s.sessions.Release(sess.ID)
	if err := s.store.CloseSession(sess.ID, time.Now()); err != nil {
		monitoring.Logf("failed to close session %s in store: %v", sess.ID, err)
	}
	json.NewEncoder(w).Encode(map[string]string{"released": sess.ID})
}

func (s *Server) ingestFrame(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	sess := s.sessionFromQuery(w, r)
	if sess == nil {
		return
	}

	var in gaze.FrameInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid frame payload: %v", err))
		return
	}

	metrics, err := sess.Pipeline.ProcessFrame(in)
	if err != nil {
		s.writeJSONError(w, http.StatusConflict, fmt.Sprintf("Failed to process frame: %v", err))
		return
	}

	// Persistence failures must not stall the live stream.
	if err := s.store.RecordFrame(sess.ID, metrics); err != nil {
		monitoring.Logf("failed to record frame for session %s: %v", sess.ID, err)
	}

	if err := json.NewEncoder(w).Encode(metrics); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write metrics")
	}
}

func (s *Server) latestMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	sess := s.sessionFromQuery(w, r)
	if sess == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(sess.Pipeline.LatestMetrics()); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write metrics")
	}
}

func (s *Server) startCalibration(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	sess := s.sessionFromQuery(w, r)
	if sess == nil {
		return
	}

	sess.Pipeline.StartCalibration()
	json.NewEncoder(w).Encode(map[string]interface{}{
		"targets": gaze.DefaultCalibrationTargets,
	})
}

type calibrationSampleRequest struct {
	Target gaze.Point `json:"target"`
	Gaze   gaze.Point `json:"gaze"`
}

func (s *Server) submitCalibrationSample(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	sess := s.sessionFromQuery(w, r)
	if sess == nil {
		return
	}

	var req calibrationSampleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid calibration sample: %v", err))
		return
	}

	sess.Pipeline.SubmitCalibrationSample(req.Target, req.Gaze)
	json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}

func (s *Server) finalizeCalibration(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	sess := s.sessionFromQuery(w, r)
	if sess == nil {
		return
	}

	ok := sess.Pipeline.FinalizeCalibration()
	json.NewEncoder(w).Encode(map[string]bool{"calibrated": ok})
}

type readingTestRequest struct {
	Text      string `json:"text"`
	UnixNanos int64  `json:"unix_nanos"`
}

func (s *Server) startReadingTest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	sess := s.sessionFromQuery(w, r)
	if sess == nil {
		return
	}

	var req readingTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid reading test payload: %v", err))
		return
	}
	if req.Text == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'text' field")
		return
	}
	if req.UnixNanos == 0 {
		req.UnixNanos = time.Now().UnixNano()
	}

	sess.Pipeline.StartReadingTest(req.Text, req.UnixNanos)
	json.NewEncoder(w).Encode(map[string]string{"status": "started"})
}

// sessionReport aggregates stored frames for any session, live or released.
func (s *Server) sessionReport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id := r.URL.Query().Get("session")
	if id == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'session' parameter")
		return
	}

	summary, err := s.store.AnalyzeSession(id)
	if errors.Is(err, sql.ErrNoRows) {
		s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("No frames recorded for session %q", id))
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to analyze session: %v", err))
		return
	}

	if err := json.NewEncoder(w).Encode(summary); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write report")
	}
}

// sessionTimeline renders the stored probability series as an HTML chart.
func (s *Server) sessionTimeline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Content-Type", "application/json")
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id := r.URL.Query().Get("session")
	if id == "" {
		w.Header().Set("Content-Type", "application/json")
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'session' parameter")
		return
	}

	points, err := s.store.Timeline(id)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to load timeline: %v", err))
		return
	}
	if len(points) == 0 {
		w.Header().Set("Content-Type", "application/json")
		s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("No frames recorded for session %q", id))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.RenderTimeline(w, id, points); err != nil {
		monitoring.Logf("failed to render timeline for session %s: %v", id, err)
	}
}

func (s *Server) showTuning(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := json.NewEncoder(w).Encode(s.tuning); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write tuning config")
	}
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":          "ok",
		"version":         version.Version,
		"active_sessions": s.sessions.Count(),
	})
}
