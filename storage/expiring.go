package storage

import "time"

// Expiring pairs a value with the moment it was captured.
type Expiring[T any] struct {
	Value      T
	CapturedAt time.Time
}

// Read returns the value while it is younger than ttl.
func (e Expiring[T]) Read(ttl time.Duration, now time.Time) (T, bool) {
	if !Fresh(e.CapturedAt, now, ttl) {
		var zero T
		return zero, false
	}
	return e.Value, true
}

// Fresh reports whether something captured at capturedAt is still within ttl.
func Fresh(capturedAt, now time.Time, ttl time.Duration) bool {
	return now.Sub(capturedAt) < ttl
}

// UnixMillis converts t to the millisecond timestamps used in stored records.
func UnixMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromUnixMillis is the inverse of UnixMillis.
func FromUnixMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}
