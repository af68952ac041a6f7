package gaze

// BlinkEvent is one completed blink. Durations are derived from sample
// timestamps, never wall-clock time.
type BlinkEvent struct {
	StartUnixNanos int64   `json:"start_unix_nanos"`
	EndUnixNanos   int64   `json:"end_unix_nanos"`
	Duration       float64 `json:"duration"` // seconds, >= 0
}

// BlinkDetector is a single-flag state machine over smoothed eye-aspect-ratio
// values. Open -> closed opens a blink interval; closed -> open closes it.
// Because there is a single flag, blink events can never overlap.
type BlinkDetector struct {
	cfg BlinkConfig

	earWindow []float64 // last cfg.Window raw EAR values
	blinking  bool
	startNano int64

	durations []float64 // completed blink durations, seconds
	intervals []float64 // inter-blink intervals, seconds
	lastBlink int64     // end timestamp of the previous blink, 0 if none
}

// NewBlinkDetector creates a blink detector with the given configuration.
func NewBlinkDetector(cfg BlinkConfig) *BlinkDetector {
	if cfg.Window < 1 {
		cfg.Window = 1
	}
	return &BlinkDetector{cfg: cfg}
}

// Update feeds one frame's combined EAR value. It returns a completed
// BlinkEvent when this frame closes a blink interval, else nil.
//
// An EAR at or below MinValidEAR means the landmark extractor had no data for
// this frame; it is treated as "eyes not closed" so a dropped face can never
// register as a blink.
func (d *BlinkDetector) Update(ear float64, unixNanos int64) *BlinkEvent {
	if ear <= d.cfg.MinValidEAR {
		// No landmark data. Keep the smoothing window untouched so a burst of
		// dropped frames does not drag the average toward zero.
		return nil
	}

	d.earWindow = append(d.earWindow, ear)
	if len(d.earWindow) > d.cfg.Window {
		d.earWindow = d.earWindow[1:]
	}

	var sum float64
	for _, v := range d.earWindow {
		sum += v
	}
	smoothed := sum / float64(len(d.earWindow))
	closed := smoothed < d.cfg.Threshold

	switch {
	case closed && !d.blinking:
		d.blinking = true
		d.startNano = unixNanos

	case !closed && d.blinking:
		d.blinking = false
		ev := &BlinkEvent{
			StartUnixNanos: d.startNano,
			EndUnixNanos:   unixNanos,
			Duration:       Seconds(unixNanos - d.startNano),
		}
		if ev.Duration < 0 {
			ev.Duration = 0
		}
		d.durations = appendBounded(d.durations, ev.Duration, d.cfg.HistoryLen)
		if d.lastBlink > 0 {
			d.intervals = appendBounded(d.intervals, Seconds(unixNanos-d.lastBlink), d.cfg.HistoryLen)
		}
		d.lastBlink = unixNanos
		return ev
	}
	return nil
}

// IsBlinking reports whether a blink interval is currently open.
func (d *BlinkDetector) IsBlinking() bool { return d.blinking }

// Rate returns the blink rate in blinks per minute. It requires at least two
// completed blinks (one recorded interval); before that it returns 0.
func (d *BlinkDetector) Rate() float64 {
	if len(d.intervals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range d.intervals {
		sum += v
	}
	mean := sum / float64(len(d.intervals))
	if mean <= 0 {
		return 0
	}
	return 60 / mean
}

// Durations returns the bounded history of completed blink durations in
// seconds, oldest first. The returned slice is shared; callers must not
// mutate it.
func (d *BlinkDetector) Durations() []float64 { return d.durations }

// Intervals returns the bounded history of inter-blink intervals in seconds.
func (d *BlinkDetector) Intervals() []float64 { return d.intervals }

// Reset drops all blink state and history.
func (d *BlinkDetector) Reset() {
	d.earWindow = d.earWindow[:0]
	d.blinking = false
	d.startNano = 0
	d.durations = nil
	d.intervals = nil
	d.lastBlink = 0
}

// appendBounded appends v and trims the slice to at most max entries,
// dropping the oldest.
func appendBounded(s []float64, v float64, max int) []float64 {
	s = append(s, v)
	if max > 0 && len(s) > max {
		s = s[len(s)-max:]
	}
	return s
}
