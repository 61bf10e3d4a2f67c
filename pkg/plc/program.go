package plc

import "time"

// Program is the user logic executed on every tick.
type Program interface {
	// Init locates the program variables in img. TickPeriod is read after
	// Init.
	Init(img *Image) error
	// Run executes one scan. now is the logical clock.
	Run(tick uint64, now Clock)
	TickPeriod() time.Duration
}
