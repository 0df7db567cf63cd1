package domain

import "time"

// SkewTolerance bounds both the clock-skew correction window and the
// time-proximity windows used by stale-update override and duplicate merge.
const SkewTolerance = 5 * time.Minute

// Offset measures the peer clock drift from a transfer's sentAt stamp.
// An offset outside tolerance is suspect and treated as zero rather than
// propagated into embedded timestamps.
func Offset(receivedAt, sentAt time.Time) time.Duration {
	if sentAt.IsZero() {
		return 0
	}
	off := receivedAt.Sub(sentAt)
	if off < -SkewTolerance || off > SkewTolerance {
		return 0
	}
	return off
}

// Shift applies a measured offset to an embedded timestamp. Zero times stay
// zero so optional fields survive correction.
func Shift(t time.Time, offset time.Duration) time.Time {
	if t.IsZero() || offset == 0 {
		return t
	}
	return t.Add(offset)
}

// SkewNoiseFloor is the offset magnitude below which measured drift is
// ordinary clock noise rather than a correction worth counting.
const SkewNoiseFloor = time.Second

// SignificantOffset reports whether an offset moves embedded timestamps by
// more than clock noise.
func SignificantOffset(offset time.Duration) bool {
	if offset < 0 {
		offset = -offset
	}
	return offset >= SkewNoiseFloor
}

// WithinTolerance reports whether two timestamps sit close enough that
// ordering between them cannot be trusted.
func WithinTolerance(a, b time.Time) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= SkewTolerance
}
