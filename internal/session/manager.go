// Package session owns the lifecycle of concurrent reading sessions. Each
// session wraps exactly one gaze pipeline; sessions share no mutable state
// and may be driven from independent goroutines.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lexiscan/readtrace/internal/gaze"
	"github.com/lexiscan/readtrace/internal/monitoring"
)

// ErrNotFound is returned when no live session matches the given ID.
var ErrNotFound = errors.New("session: not found")

// Session binds a pipeline to its identity and creation time. The pipeline
// serializes its own mutation entry points, so a Session handle may be used
// directly by transport handlers.
type Session struct {
	ID        string
	CreatedAt time.Time
	Pipeline  *gaze.Pipeline
}

// Manager tracks live sessions by ID. The map is guarded by a mutex; the
// per-session pipelines are not, relying on their own single-writer
// serialization.
type Manager struct {
	mu       sync.RWMutex
	cfg      gaze.Config
	sessions map[string]*Session
}

// NewManager creates a manager that builds pipelines from cfg.
func NewManager(cfg gaze.Config) *Manager {
	return &Manager{
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session with a fresh pipeline and returns it.
func (m *Manager) Create() *Session {
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		Pipeline:  gaze.NewPipeline(m.cfg),
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	monitoring.ActiveSessions.Inc()
	monitoring.Logf("session %s created", s.ID)
	return s
}

// Get returns the live session with the given ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Release frees the session's pipeline state and forgets the session. It is
// idempotent: releasing an unknown or already-released ID is a no-op.
func (m *Manager) Release(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	s.Pipeline.Release()
	monitoring.ActiveSessions.Dec()
	monitoring.Logf("session %s released", id)
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// ReleaseAll releases every live session, for shutdown.
func (m *Manager) ReleaseAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Release(id)
	}
}
