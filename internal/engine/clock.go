package engine

import "time"

// Clock supplies wall-clock time for report timestamps and durations.
//
// Outcomes never depend on it; it exists so tests can pin timestamps and
// produce byte-identical reports.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time {
	return time.Now()
}
