package gaze

import "math"

// Point is a normalized 2D gaze coordinate. X and Y are in [-1, 1] with the
// screen centre at the origin.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns the component-wise difference p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Norm returns the Euclidean magnitude of the point treated as a vector.
func (p Point) Norm() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y)
}

// GazeSample is one frame of eye geometry as produced by the upstream
// landmark extractor, after calibration correction. Samples are immutable
// once constructed.
type GazeSample struct {
	UnixNanos int64 `json:"unix_nanos"`

	LeftGaze  Point `json:"left_gaze"`
	RightGaze Point `json:"right_gaze"`

	LeftPupil  float64 `json:"left_pupil"`
	RightPupil float64 `json:"right_pupil"`

	LeftEAR  float64 `json:"left_ear"`
	RightEAR float64 `json:"right_ear"`

	// Missing marks a frame whose gaze tuple was absent or malformed and was
	// coerced to the origin. Downstream consumers discount such frames rather
	// than treating them as genuine zero-movement observations.
	Missing bool `json:"missing,omitempty"`
}

// Gaze returns the combined gaze point (average of both eyes).
func (s GazeSample) Gaze() Point {
	return Point{
		X: (s.LeftGaze.X + s.RightGaze.X) / 2,
		Y: (s.LeftGaze.Y + s.RightGaze.Y) / 2,
	}
}

// PupilSize returns the combined pupil size scalar (average of both eyes).
func (s GazeSample) PupilSize() float64 {
	return (s.LeftPupil + s.RightPupil) / 2
}

// EAR returns the combined eye-aspect-ratio (average of both eyes).
func (s GazeSample) EAR() float64 {
	return (s.LeftEAR + s.RightEAR) / 2
}

// Seconds converts a nanosecond timestamp delta to seconds.
func Seconds(deltaNanos int64) float64 {
	return float64(deltaNanos) / 1e9
}

// sampleRing is a fixed-capacity ring buffer of gaze samples. When full, the
// oldest sample is overwritten, keeping per-session memory constant.
type sampleRing struct {
	buf   []GazeSample
	head  int // index of the next write
	count int
}

func newSampleRing(capacity int) *sampleRing {
	if capacity < 1 {
		capacity = 1
	}
	return &sampleRing{buf: make([]GazeSample, capacity)}
}

// Push appends a sample, evicting the oldest when the ring is full.
func (r *sampleRing) Push(s GazeSample) {
	r.buf[r.head] = s
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// Len returns the number of stored samples.
func (r *sampleRing) Len() int { return r.count }

// At returns the i-th stored sample, oldest first. Panics if i is out of range.
func (r *sampleRing) At(i int) GazeSample {
	if i < 0 || i >= r.count {
		panic("gaze: sample ring index out of range")
	}
	start := r.head - r.count
	if start < 0 {
		start += len(r.buf)
	}
	return r.buf[(start+i)%len(r.buf)]
}

// Last returns the most recent sample and true, or a zero sample and false
// when the ring is empty.
func (r *sampleRing) Last() (GazeSample, bool) {
	if r.count == 0 {
		return GazeSample{}, false
	}
	return r.At(r.count - 1), true
}

// Recent copies up to n of the most recent samples into a new slice, oldest
// first. When fewer samples exist, all of them are returned.
func (r *sampleRing) Recent(n int) []GazeSample {
	if n > r.count {
		n = r.count
	}
	out := make([]GazeSample, n)
	for i := 0; i < n; i++ {
		out[i] = r.At(r.count - n + i)
	}
	return out
}

// Reset drops all stored samples without reallocating.
func (r *sampleRing) Reset() {
	r.head = 0
	r.count = 0
}
