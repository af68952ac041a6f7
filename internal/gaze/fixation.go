package gaze

import "math"

// SaccadeDirection is the horizontal reading direction of a saccade.
type SaccadeDirection string

const (
	DirectionForward  SaccadeDirection = "forward"
	DirectionBackward SaccadeDirection = "backward"
)

// SaccadeClass distinguishes ordinary saccades from re-reading regressions.
type SaccadeClass string

const (
	SaccadeNormal     SaccadeClass = "normal"
	SaccadeRegression SaccadeClass = "regression"
)

// RegressionTier buckets a regression by its horizontal magnitude, or marks a
// line-change when the vertical component dominates.
type RegressionTier string

const (
	TierNone     RegressionTier = ""
	TierShort    RegressionTier = "short"
	TierMedium   RegressionTier = "medium"
	TierLong     RegressionTier = "long"
	TierVertical RegressionTier = "vertical"
)

// FixationEvent is one completed period of near-stationary gaze.
type FixationEvent struct {
	StartUnixNanos int64   `json:"start_unix_nanos"`
	EndUnixNanos   int64   `json:"end_unix_nanos"`
	Position       Point   `json:"position"`
	Duration       float64 `json:"duration"`  // seconds
	Stability      float64 `json:"stability"` // [0, 1], decays with intra-fixation jitter
}

// SaccadeEvent is one rapid gaze jump exceeding the saccade threshold.
type SaccadeEvent struct {
	StartPosition   Point            `json:"start_position"`
	EndPosition     Point            `json:"end_position"`
	Length          float64          `json:"length"`
	Direction       SaccadeDirection `json:"direction"`
	Class           SaccadeClass     `json:"class"`
	Tier            RegressionTier   `json:"tier,omitempty"`
	HorizontalDelta float64          `json:"horizontal_delta"`
	VerticalDelta   float64          `json:"vertical_delta"`
	Velocity        float64          `json:"velocity"` // normalized units per second
	UnixNanos       int64            `json:"unix_nanos"`
	// Discounted marks a saccade derived from a frame with missing or
	// malformed gaze data; fusion ignores these when counting regressions.
	Discounted bool `json:"discounted,omitempty"`
}

// FixationResult is the per-frame output of the detector: newly closed events
// plus running counters.
type FixationResult struct {
	Fixation *FixationEvent
	Saccade  *SaccadeEvent

	FixationCount   int
	RegressionCount int
}

// FixationSaccadeDetector classifies consecutive calibrated gaze samples into
// fixation and saccade segments. It is a stateful time-series machine: frames
// must arrive in order.
type FixationSaccadeDetector struct {
	cfg FixationConfig

	havePrev   bool
	prev       Point
	prevNanos  int64
	prevMissed bool

	// Open fixation, if any.
	inFixation bool
	fixStart   int64
	fixPos     Point
	fixStab    float64

	fixationCount   int
	regressionCount int
}

// NewFixationSaccadeDetector creates a detector with the given configuration.
func NewFixationSaccadeDetector(cfg FixationConfig) *FixationSaccadeDetector {
	return &FixationSaccadeDetector{cfg: cfg}
}

// Update feeds one calibrated gaze point. Malformed input is expected to have
// been coerced to the origin with missing=true by the caller; such frames
// still advance the state machine but any resulting saccade is discounted.
func (d *FixationSaccadeDetector) Update(p Point, unixNanos int64, missing bool) FixationResult {
	res := FixationResult{FixationCount: d.fixationCount, RegressionCount: d.regressionCount}

	if !d.havePrev {
		d.havePrev = true
		d.prev = p
		d.prevNanos = unixNanos
		d.prevMissed = missing
		return res
	}

	delta := p.Sub(d.prev)
	movement := delta.Norm()
	dt := Seconds(unixNanos - d.prevNanos)

	switch {
	case movement < d.cfg.FixationThreshold:
		if !d.inFixation {
			d.inFixation = true
			d.fixStart = d.prevNanos
			d.fixPos = d.prev
			d.fixStab = 1.0
		} else {
			// Geometric stability decay: any jitter reduces stability
			// multiplicatively, never below zero.
			d.fixStab *= math.Max(0, 1-movement)
		}

	case movement >= d.cfg.SaccadeThreshold:
		if ev := d.closeFixation(unixNanos); ev != nil {
			res.Fixation = ev
		}
		sac := d.classifySaccade(d.prev, p, delta, dt, unixNanos)
		sac.Discounted = missing || d.prevMissed
		if sac.Class == SaccadeRegression && !sac.Discounted {
			d.regressionCount++
		}
		res.Saccade = &sac

	default:
		// Dead zone between the two thresholds: neither fixation nor saccade.
		// An open fixation survives moderate drift until a true saccade or a
		// sub-threshold frame extends it.
	}

	d.prev = p
	d.prevNanos = unixNanos
	d.prevMissed = missing

	res.FixationCount = d.fixationCount
	res.RegressionCount = d.regressionCount
	return res
}

// closeFixation finalises the open fixation, discarding it as noise when it
// lasted less than the minimum duration.
func (d *FixationSaccadeDetector) closeFixation(unixNanos int64) *FixationEvent {
	if !d.inFixation {
		return nil
	}
	d.inFixation = false

	duration := Seconds(unixNanos - d.fixStart)
	if duration < d.cfg.MinFixationDuration.Seconds() {
		return nil
	}
	d.fixationCount++
	return &FixationEvent{
		StartUnixNanos: d.fixStart,
		EndUnixNanos:   unixNanos,
		Position:       d.fixPos,
		Duration:       duration,
		Stability:      d.fixStab,
	}
}

func (d *FixationSaccadeDetector) classifySaccade(from, to Point, delta Point, dt float64, unixNanos int64) SaccadeEvent {
	ev := SaccadeEvent{
		StartPosition:   from,
		EndPosition:     to,
		Length:          delta.Norm(),
		Direction:       DirectionForward,
		Class:           SaccadeNormal,
		HorizontalDelta: delta.X,
		VerticalDelta:   delta.Y,
		UnixNanos:       unixNanos,
	}
	if dt > 0 {
		ev.Velocity = ev.Length / dt
	}

	if delta.X < 0 {
		ev.Direction = DirectionBackward
	}

	absX := math.Abs(delta.X)
	lineChange := math.Abs(delta.Y) > d.cfg.VerticalThreshold

	if ev.Direction == DirectionBackward && absX > d.cfg.RegressionThreshold {
		ev.Class = SaccadeRegression
	}
	if lineChange && ev.Direction == DirectionBackward {
		// A large vertical component on a backward sweep is a line change,
		// counted as a regression regardless of horizontal magnitude.
		ev.Class = SaccadeRegression
		ev.Tier = TierVertical
		return ev
	}
	if ev.Class == SaccadeRegression {
		ev.Tier = d.tierFor(absX)
	}
	return ev
}

// tierFor maps a horizontal regression magnitude onto the configured tier
// cutoffs. The buckets are mutually exclusive and exhaustive.
func (d *FixationSaccadeDetector) tierFor(absX float64) RegressionTier {
	t := d.cfg.Tiers
	switch {
	case absX <= t.Short:
		return TierShort
	case absX <= t.Medium:
		return TierMedium
	default:
		return TierLong
	}
}

// Counts returns the running fixation and regression counters.
func (d *FixationSaccadeDetector) Counts() (fixations, regressions int) {
	return d.fixationCount, d.regressionCount
}

// Reset drops all detector state and counters.
func (d *FixationSaccadeDetector) Reset() {
	*d = FixationSaccadeDetector{cfg: d.cfg}
}
