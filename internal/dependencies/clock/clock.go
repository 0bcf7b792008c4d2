package clock

import "time"

// Clock supplies the current time and can be mocked for testing
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the system clock
type RealClock struct{}

// New creates a new RealClock
func New() *RealClock {
	return &RealClock{}
}

// Now returns the current time
func (c *RealClock) Now() time.Time {
	return time.Now()
}

// Unix returns the clock reading as Unix seconds, the resolution farm records use
func Unix(c Clock) int64 {
	return c.Now().Unix()
}
