// Package gaze implements the streaming analysis pipeline that turns raw
// per-frame eye geometry (gaze vectors, eye-aspect-ratio, pupil size) into
// reading-behavior metrics: fixations, saccades, regressions, blink dynamics,
// cognitive load, and a smoothed dyslexia-indicator score.
//
// One Pipeline instance owns all state for a single reading session. Frames
// must be fed in arrival order through a single writer; independent sessions
// may run concurrently without sharing any state.
package gaze
