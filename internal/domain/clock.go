package domain

import "github.com/jonboulle/clockwork"

// clock stamps capture times. Tests freeze it with SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the capture time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// CapturedNow returns the current capture timestamp text.
func CapturedNow() string {
	return clock.Now().Format(CapturedAtLayout)
}
