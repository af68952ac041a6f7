package session

import (
	"sync"
	"testing"

	"github.com/lexiscan/readtrace/internal/gaze"
	"github.com/lexiscan/readtrace/internal/monitoring"
)

func init() {
	monitoring.SetLogger(nil) // mute diagnostics in tests
}

func TestManager_CreateGetRelease(t *testing.T) {
	m := NewManager(gaze.DefaultConfig())

	s := m.Create()
	if s.ID == "" {
		t.Fatal("expected a non-empty session ID")
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != s {
		t.Error("Get returned a different session")
	}

	m.Release(s.ID)
	if _, err := m.Get(s.ID); err != ErrNotFound {
		t.Errorf("Get after release = %v, want ErrNotFound", err)
	}

	// Releasing again is a no-op.
	m.Release(s.ID)
	m.Release("no-such-id")
}

func TestManager_SessionsAreIndependent(t *testing.T) {
	m := NewManager(gaze.DefaultConfig())

	a := m.Create()
	b := m.Create()

	frame := gaze.FrameInput{
		UnixNanos:    1e9,
		FaceDetected: true,
		LeftGaze:     gaze.Point{X: 0.1},
		RightGaze:    gaze.Point{X: 0.1},
		LeftEAR:      0.3,
		RightEAR:     0.3,
	}
	if _, err := a.Pipeline.ProcessFrame(frame); err != nil {
		t.Fatal(err)
	}

	// Releasing a must not affect b.
	m.Release(a.ID)
	if _, err := b.Pipeline.ProcessFrame(frame); err != nil {
		t.Errorf("session b rejected a frame after releasing a: %v", err)
	}
}

func TestManager_ConcurrentSessions(t *testing.T) {
	m := NewManager(gaze.DefaultConfig())

	// Independent pipelines may run fully in parallel.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := m.Create()
			ts := int64(1e9)
			for f := 0; f < 200; f++ {
				x := 0.1
				if f%2 == 0 {
					x = 0.6
				}
				frame := gaze.FrameInput{
					UnixNanos:    ts,
					FaceDetected: true,
					LeftGaze:     gaze.Point{X: x},
					RightGaze:    gaze.Point{X: x},
					LeftEAR:      0.3,
					RightEAR:     0.3,
				}
				if _, err := s.Pipeline.ProcessFrame(frame); err != nil {
					t.Errorf("session %s: %v", s.ID, err)
					return
				}
				ts += int64(33e6)
			}
			m.Release(s.ID)
		}()
	}
	wg.Wait()

	if got := m.Count(); got != 0 {
		t.Errorf("live sessions after ReleaseAll = %d, want 0", got)
	}
}
