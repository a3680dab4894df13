// Package timing measures durations on the monotonic clock.
package timing

import "time"

// Instant is a point on the monotonic clock.
type Instant struct {
	t time.Time
}

// Clock returns the current instant. Tests replace it with a fake.
type Clock interface {
	Now() Instant
}

type systemClock struct{}

func (systemClock) Now() Instant { return Now() }

// System is the process clock.
var System Clock = systemClock{}

// Now returns the current instant.
func Now() Instant {
	return Instant{t: time.Now()}
}

// At returns the instant for t, keeping its monotonic reading if it has one.
func At(t time.Time) Instant {
	return Instant{t: t}
}

// Sub returns the duration from start to i.
func (i Instant) Sub(start Instant) time.Duration {
	return i.t.Sub(start.t)
}

// ElapsedSeconds returns the seconds between start and end. It is negative
// when end precedes start.
func ElapsedSeconds(start, end Instant) float64 {
	return end.Sub(start).Seconds()
}
