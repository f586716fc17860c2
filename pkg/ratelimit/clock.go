package ratelimit

import "time"

// Clock supplies the current time. Tests inject a manual clock so that
// window expiry can be simulated without sleeping.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
