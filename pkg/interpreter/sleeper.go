package interpreter

import "time"

// Sleeper blocks the calling goroutine for a tea break.
type Sleeper interface {
	Sleep(d time.Duration)
}

// RealSleeper waits on the wall clock.
type RealSleeper struct{}

// Sleep calls time.Sleep.
func (RealSleeper) Sleep(d time.Duration) {
	time.Sleep(d)
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(d time.Duration)

// Sleep calls f(d).
func (f SleeperFunc) Sleep(d time.Duration) {
	f(d)
}
