package gaze

// KinematicsTracker derives per-frame gaze velocity and acceleration from
// consecutive calibrated gaze points. Zero time deltas yield zero rather
// than dividing.
type KinematicsTracker struct {
	havePoint bool
	lastPoint Point
	lastNanos int64

	haveVel  bool
	lastVel  float64
	velNanos int64
}

// Update feeds one gaze point and returns (velocity, acceleration) in
// normalized units per second and per second squared. The first frame
// returns zeros.
func (k *KinematicsTracker) Update(p Point, unixNanos int64) (velocity, acceleration float64) {
	if !k.havePoint {
		k.havePoint = true
		k.lastPoint = p
		k.lastNanos = unixNanos
		return 0, 0
	}

	dt := Seconds(unixNanos - k.lastNanos)
	if dt > 0 {
		velocity = p.Sub(k.lastPoint).Norm() / dt
	}
	k.lastPoint = p
	k.lastNanos = unixNanos

	if !k.haveVel {
		k.haveVel = true
		k.lastVel = velocity
		k.velNanos = unixNanos
		return velocity, 0
	}

	adt := Seconds(unixNanos - k.velNanos)
	if adt > 0 {
		acceleration = (velocity - k.lastVel) / adt
	}
	k.lastVel = velocity
	k.velNanos = unixNanos
	return velocity, acceleration
}

// Reset drops all kinematic state.
func (k *KinematicsTracker) Reset() {
	*k = KinematicsTracker{}
}
