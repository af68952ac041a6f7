package gaze

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Metric identifies a tracked baseline metric.
type Metric string

const (
	MetricFixationDuration Metric = "fixation_duration"
	MetricSaccadeVelocity  Metric = "saccade_velocity"
	MetricGazeStability    Metric = "gaze_stability"
)

// RollingBaselineTracker keeps a bounded per-metric history and derives
// adaptive thresholds from it: percentile cutoffs and z-score normalization.
// History is evicted FIFO and never persisted across sessions.
type RollingBaselineTracker struct {
	cfg      BaselineConfig
	history  map[Metric][]float64
	defaults map[Metric]float64
}

// NewRollingBaselineTracker creates a tracker with the given configuration.
func NewRollingBaselineTracker(cfg BaselineConfig) *RollingBaselineTracker {
	if cfg.MaxHistory < 1 {
		cfg.MaxHistory = 1
	}
	return &RollingBaselineTracker{
		cfg:     cfg,
		history: make(map[Metric][]float64),
		defaults: map[Metric]float64{
			MetricFixationDuration: cfg.DefaultFixationDuration,
			MetricSaccadeVelocity:  cfg.DefaultSaccadeVelocity,
			MetricGazeStability:    cfg.DefaultGazeStability,
		},
	}
}

// Observe appends a value to the metric's history, evicting the oldest entry
// once the bound is reached.
func (t *RollingBaselineTracker) Observe(m Metric, v float64) {
	t.history[m] = appendBounded(t.history[m], v, t.cfg.MaxHistory)
}

// PercentileThreshold returns the p-th percentile of the metric's history
// (element at floor(len*p/100) of the sorted history, clamped to the last
// index). With no history it returns the configured per-metric default.
func (t *RollingBaselineTracker) PercentileThreshold(m Metric, p float64) float64 {
	h := t.history[m]
	if len(h) == 0 {
		return t.defaults[m]
	}
	sorted := make([]float64, len(h))
	copy(sorted, h)
	sort.Float64s(sorted)

	idx := int(float64(len(sorted)) * p / 100)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

// Normalize returns the z-score of v against the metric's running mean and
// standard deviation. When the history is empty or the deviation is zero it
// returns v unchanged to avoid divide-by-zero amplification.
func (t *RollingBaselineTracker) Normalize(m Metric, v float64) float64 {
	h := t.history[m]
	if len(h) < 2 {
		return v
	}
	mean, std := stat.MeanStdDev(h, nil)
	if std == 0 {
		return v
	}
	return (v - mean) / std
}

// Mean returns the running mean of the metric's history and true, or 0 and
// false when no history exists.
func (t *RollingBaselineTracker) Mean(m Metric) (float64, bool) {
	h := t.history[m]
	if len(h) == 0 {
		return 0, false
	}
	return stat.Mean(h, nil), true
}

// Len returns the number of stored observations for the metric.
func (t *RollingBaselineTracker) Len(m Metric) int { return len(t.history[m]) }

// Reset drops all history for all metrics.
func (t *RollingBaselineTracker) Reset() {
	t.history = make(map[Metric][]float64)
}
