package gaze

import (
	"strings"

	"gonum.org/v1/gonum/stat"
)

// referenceWordLength is the standard word length used for complexity
// adjustment of reading speed.
const referenceWordLength = 5.0

// readingTest tracks the word/time counters of one reading test run. Speed is
// word-count over elapsed time; the fixation-count estimate used by earlier
// revisions of the analysis is intentionally not implemented.
type readingTest struct {
	active         bool
	startNanos     int64
	words          int
	meanWordLength float64
}

func (r *readingTest) start(text string, unixNanos int64) {
	fields := strings.Fields(text)
	r.active = len(fields) > 0
	r.startNanos = unixNanos
	r.words = len(fields)

	var chars int
	for _, w := range fields {
		chars += len(w)
	}
	if r.words > 0 {
		r.meanWordLength = float64(chars) / float64(r.words)
	}
}

// wpm returns the (optionally complexity-adjusted) words-per-minute figure,
// or 0 while no test is running or no time has elapsed.
func (r *readingTest) wpm(unixNanos int64, complexityAdjust bool) float64 {
	if !r.active || r.words == 0 {
		return 0
	}
	elapsed := Seconds(unixNanos - r.startNanos)
	if elapsed <= 0 {
		return 0
	}
	wpm := float64(r.words) / elapsed * 60
	if complexityAdjust && r.meanWordLength > 0 {
		// Longer-than-reference words make the same wpm represent more
		// reading work, so the reported figure is scaled up accordingly.
		wpm *= r.meanWordLength / referenceWordLength
	}
	return wpm
}

func (r *readingTest) reset() {
	*r = readingTest{}
}

// EnhancedMetrics are second-order reading quality measures derived from the
// recent event history.
type EnhancedMetrics struct {
	FixationStability float64 `json:"fixation_stability"` // mean stability of recent fixations
	ReadingLinearity  float64 `json:"reading_linearity"`  // [0,1], 1 = perfectly line-like gaze
	AvgSaccadeTime    float64 `json:"avg_saccade_time"`   // mean seconds between saccades
	RereadScore       float64 `json:"reread_score"`       // [0,1], backward / forward travel ratio
}

// eventWindow keeps bounded recent fixation and saccade events for aggregate
// metrics and indicator inputs.
type eventWindow struct {
	max       int
	fixations []FixationEvent
	saccades  []SaccadeEvent
}

func newEventWindow(max int) *eventWindow {
	if max < 1 {
		max = 1
	}
	return &eventWindow{max: max}
}

func (w *eventWindow) addFixation(ev FixationEvent) {
	w.fixations = append(w.fixations, ev)
	if len(w.fixations) > w.max {
		w.fixations = w.fixations[1:]
	}
}

func (w *eventWindow) addSaccade(ev SaccadeEvent) {
	w.saccades = append(w.saccades, ev)
	if len(w.saccades) > w.max {
		w.saccades = w.saccades[1:]
	}
}

// backwardRatio returns the share of backward saccades among recent
// non-discounted saccades.
func (w *eventWindow) backwardRatio() float64 {
	var total, backward int
	for _, s := range w.saccades {
		if s.Discounted {
			continue
		}
		total++
		if s.Direction == DirectionBackward {
			backward++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(backward) / float64(total)
}

// regressionStats returns the count of recent regressions and whether any
// long-tier regression occurred.
func (w *eventWindow) regressionStats() (count int, long bool) {
	for _, s := range w.saccades {
		if s.Discounted || s.Class != SaccadeRegression {
			continue
		}
		count++
		if s.Tier == TierLong {
			long = true
		}
	}
	return count, long
}

func (w *eventWindow) meanFixationDuration() float64 {
	if len(w.fixations) == 0 {
		return 0
	}
	vals := make([]float64, len(w.fixations))
	for i, f := range w.fixations {
		vals[i] = f.Duration
	}
	return stat.Mean(vals, nil)
}

func (w *eventWindow) meanFixationStability() float64 {
	if len(w.fixations) == 0 {
		return 0
	}
	vals := make([]float64, len(w.fixations))
	for i, f := range w.fixations {
		vals[i] = f.Stability
	}
	return stat.Mean(vals, nil)
}

// enhanced derives the second-order metrics from the windows. samples are the
// recent gaze samples used for linearity.
func (w *eventWindow) enhanced(samples []GazeSample) EnhancedMetrics {
	m := EnhancedMetrics{
		FixationStability: w.meanFixationStability(),
		ReadingLinearity:  linearity(samples),
	}

	// Mean time between consecutive saccade events.
	if len(w.saccades) >= 2 {
		var sum float64
		var n int
		for i := 1; i < len(w.saccades); i++ {
			d := Seconds(w.saccades[i].UnixNanos - w.saccades[i-1].UnixNanos)
			if d > 0 {
				sum += d
				n++
			}
		}
		if n > 0 {
			m.AvgSaccadeTime = sum / float64(n)
		}
	}

	// Reread tendency: backward travel over forward travel, clipped to [0,1].
	var forward, backward float64
	for _, s := range w.saccades {
		if s.Discounted {
			continue
		}
		if s.Direction == DirectionBackward {
			backward += s.Length
		} else {
			forward += s.Length
		}
	}
	if forward > 0 {
		m.RereadScore = clamp(backward/forward, 0, 1)
	}
	return m
}

func (w *eventWindow) reset() {
	w.fixations = nil
	w.saccades = nil
}

// linearity measures how line-like the recent gaze trace is: 1 minus the
// vertical standard deviation scaled into [0, 1]. A reader sweeping along a
// text line holds Y nearly constant.
func linearity(samples []GazeSample) float64 {
	if len(samples) < 3 {
		return 1
	}
	ys := make([]float64, 0, len(samples))
	for _, s := range samples {
		if s.Missing {
			continue
		}
		ys = append(ys, s.Gaze().Y)
	}
	if len(ys) < 3 {
		return 1
	}
	std := stat.StdDev(ys, nil)
	return clamp(1-std, 0, 1)
}

// confidence estimates how trustworthy the current analysis is from sample
// volume and calibration state.
func confidence(sampleCount int, calibrated bool) float64 {
	c := float64(sampleCount) / 100
	if c > 1 {
		c = 1
	}
	if !calibrated {
		c *= 0.5
	}
	return c
}
