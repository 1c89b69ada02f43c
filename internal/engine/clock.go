package engine

import "time"

// Clock is the time source for container discovery.
//
// Discovery only needs "now" and "wake me after d"; tests substitute a
// fake clock so that the bounded retry runs to its deadline instantly.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock returns the wall clock.
func SystemClock() Clock {
	return systemClock{}
}
