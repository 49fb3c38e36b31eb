// Package clock provides the daemon's single monotonic millisecond
// time source, consulted by the delay scheduler and the virtual-input
// protocol timestamps.
package clock

import "time"

// Clock reports monotonic milliseconds since it was created.
type Clock struct {
	start time.Time
}

// New returns a Clock epoched at the current moment.
func New() *Clock {
	return &Clock{start: time.Now()}
}

// NowMillis returns the number of milliseconds elapsed since the clock
// was created. time.Since uses the monotonic component of time.Time,
// so this is immune to wall-clock adjustments.
func (c *Clock) NowMillis() int64 {
	return time.Since(c.start).Milliseconds()
}
