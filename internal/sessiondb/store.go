// Package sessiondb persists per-session reading metrics to sqlite for
// after-the-fact review. The live pipeline never blocks on it; callers record
// what they need and query summaries later.
package sessiondb

import (
	"database/sql"
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"
	_ "modernc.org/sqlite"

	"github.com/lexiscan/readtrace/internal/gaze"
)

// Store wraps the sqlite handle for session persistence.
type Store struct {
	*sql.DB
}

// Open opens (creating if needed) the sqlite database at path and applies
// pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	s := &Store{db}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// CreateSession records a new session row.
func (s *Store) CreateSession(id string, createdAt time.Time) error {
	_, err := s.Exec(
		`INSERT INTO sessions (id, created_at) VALUES (?, ?)`,
		id, createdAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", id, err)
	}
	return nil
}

// CloseSession marks a session released.
func (s *Store) CloseSession(id string, releasedAt time.Time) error {
	_, err := s.Exec(
		`UPDATE sessions SET released_at = ? WHERE id = ?`,
		releasedAt.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("close session %s: %w", id, err)
	}
	return nil
}

// RecordFrame appends one frame's metrics for the session. Frames flagged as
// skipped carry no new measurements and are not stored.
func (s *Store) RecordFrame(sessionID string, m gaze.FrameMetrics) error {
	if m.Skipped {
		return nil
	}
	var load float64
	if m.CognitiveLoad != nil {
		load = m.CognitiveLoad.Score
	}
	_, err := s.Exec(
		`INSERT INTO frame_metrics
			(session_id, unix_nanos, fixation_count, regression_count,
			 reading_speed_wpm, blink_rate, gaze_stability, cognitive_load,
			 probability, severity)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, m.UnixNanos, m.FixationCount, m.RegressionCount,
		m.ReadingSpeedWPM, m.BlinkRate, m.Enhanced.FixationStability, load,
		m.Dyslexia.Probability, string(m.Dyslexia.Severity),
	)
	if err != nil {
		return fmt.Errorf("record frame for session %s: %w", sessionID, err)
	}
	return nil
}

// Summary is the aggregate view of one stored session.
type Summary struct {
	SessionID          string  `json:"session_id"`
	Frames             int     `json:"frames"`
	AvgGazeStability   float64 `json:"avg_gaze_stability"`
	AvgBlinkRate       float64 `json:"avg_blink_rate"`
	AvgCognitiveLoad   float64 `json:"avg_cognitive_load"`
	AvgProbability     float64 `json:"avg_probability"`
	FinalProbability   float64 `json:"final_probability"`
	MaxRegressionCount int     `json:"max_regression_count"`
	// Improving is set when the final probability sits below the session
	// mean, suggesting the reader settled in over the course of the test.
	Improving bool `json:"improving"`
}

// AnalyzeSession aggregates all stored frames of a session. It returns
// sql.ErrNoRows when the session has no frames.
func (s *Store) AnalyzeSession(sessionID string) (*Summary, error) {
	rows, err := s.Query(
		`SELECT gaze_stability, blink_rate, cognitive_load, probability, regression_count
		 FROM frame_metrics WHERE session_id = ? ORDER BY unix_nanos`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query frames for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var stability, blinkRates, loads, probabilities []float64
	maxRegressions := 0
	for rows.Next() {
		var st, br, cl, pb float64
		var rc int
		if err := rows.Scan(&st, &br, &cl, &pb, &rc); err != nil {
			return nil, fmt.Errorf("scan frame row: %w", err)
		}
		stability = append(stability, st)
		blinkRates = append(blinkRates, br)
		loads = append(loads, cl)
		probabilities = append(probabilities, pb)
		if rc > maxRegressions {
			maxRegressions = rc
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(probabilities) == 0 {
		return nil, sql.ErrNoRows
	}

	meanProb := stat.Mean(probabilities, nil)
	final := probabilities[len(probabilities)-1]

	return &Summary{
		SessionID:          sessionID,
		Frames:             len(probabilities),
		AvgGazeStability:   stat.Mean(stability, nil),
		AvgBlinkRate:       stat.Mean(blinkRates, nil),
		AvgCognitiveLoad:   stat.Mean(loads, nil),
		AvgProbability:     meanProb,
		FinalProbability:   final,
		MaxRegressionCount: maxRegressions,
		Improving:          len(probabilities) > 1 && final < meanProb,
	}, nil
}

// TimelinePoint is one stored frame's probability and load, for reports.
type TimelinePoint struct {
	UnixNanos     int64   `json:"unix_nanos"`
	Probability   float64 `json:"probability"`
	CognitiveLoad float64 `json:"cognitive_load"`
}

// Timeline returns the stored probability/load series of a session, oldest
// first.
func (s *Store) Timeline(sessionID string) ([]TimelinePoint, error) {
	rows, err := s.Query(
		`SELECT unix_nanos, probability, cognitive_load
		 FROM frame_metrics WHERE session_id = ? ORDER BY unix_nanos`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query timeline for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var points []TimelinePoint
	for rows.Next() {
		var p TimelinePoint
		if err := rows.Scan(&p.UnixNanos, &p.Probability, &p.CognitiveLoad); err != nil {
			return nil, fmt.Errorf("scan timeline row: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// ListSessions returns the IDs of all stored sessions, newest first.
func (s *Store) ListSessions() ([]string, error) {
	rows, err := s.Query(`SELECT id FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
