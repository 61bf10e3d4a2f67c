package plc

import (
	"fmt"
	"time"
)

const nanosPerSecond = int64(time.Second)

// Clock is the logical time seen by the program. It only moves by whole
// tick periods, so it doesn't drift when a tick fires late.
type Clock struct {
	Sec  int64
	Nsec int64
}

// Advance adds d, carrying whole seconds out of Nsec.
func (c *Clock) Advance(d time.Duration) {
	c.Nsec += int64(d)
	for c.Nsec >= nanosPerSecond {
		c.Nsec -= nanosPerSecond
		c.Sec++
	}
}

// Elapsed returns the logical time as a duration.
func (c Clock) Elapsed() time.Duration {
	return time.Duration(c.Sec)*time.Second + time.Duration(c.Nsec)
}

// Millis returns the logical time in milliseconds.
func (c Clock) Millis() int64 {
	return c.Sec*1000 + c.Nsec/int64(time.Millisecond)
}

func (c Clock) String() string {
	return fmt.Sprintf("%d.%03ds", c.Sec, c.Nsec/int64(time.Millisecond))
}
