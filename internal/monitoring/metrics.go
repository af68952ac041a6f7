package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus collectors for the gaze pipeline. Registered on the default
// registry so the API server can expose them at /metrics without extra wiring.
var (
	// FramesProcessed counts gaze frames accepted by a pipeline.
	FramesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "readtrace",
		Subsystem: "pipeline",
		Name:      "frames_processed_total",
		Help:      "Total gaze frames processed across all sessions.",
	})

	// FramesSkipped counts frames dropped because no face landmarks were present.
	FramesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "readtrace",
		Subsystem: "pipeline",
		Name:      "frames_skipped_total",
		Help:      "Total frames skipped due to missing landmarks.",
	})

	// BlinksDetected counts completed blink events.
	BlinksDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "readtrace",
		Subsystem: "pipeline",
		Name:      "blinks_detected_total",
		Help:      "Total blink events detected across all sessions.",
	})

	// SaccadesDetected counts emitted saccade events, labelled by class.
	SaccadesDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "readtrace",
		Subsystem: "pipeline",
		Name:      "saccades_detected_total",
		Help:      "Total saccade events detected, by class (normal or regression).",
	}, []string{"class"})

	// ActiveSessions tracks the number of live session pipelines.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "readtrace",
		Subsystem: "session",
		Name:      "active_sessions",
		Help:      "Number of live reading sessions.",
	})

	// FrameLatency observes per-frame pipeline processing time in seconds.
	FrameLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "readtrace",
		Subsystem: "pipeline",
		Name:      "frame_latency_seconds",
		Help:      "Wall-clock time spent processing a single gaze frame.",
		Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
	})
)
