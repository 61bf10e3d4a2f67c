package gpio

import (
	"fmt"
	"sync"
)

// Bank is an in-memory pin set. It backs simulated nodes and tests: inputs
// are driven with Drive, outputs are observed with Level.
type Bank struct {
	lock   sync.Mutex
	modes  map[int]Mode
	levels map[int]uint16
}

// NewBank creates an empty bank.
func NewBank() *Bank {
	return &Bank{modes: make(map[int]Mode), levels: make(map[int]uint16)}
}

func (b *Bank) check(pin int, modes ...Mode) error {
	mode, ok := b.modes[pin]
	if !ok {
		return fmt.Errorf("pin %d not configured", pin)
	}
	for _, m := range modes {
		if m == mode {
			return nil
		}
	}
	return fmt.Errorf("pin %d is %s", pin, mode)
}

// SetMode implements Pins.
func (b *Bank) SetMode(pin int, mode Mode) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.modes[pin] = mode
	return nil
}

// ReadDigital implements Pins.
func (b *Bank) ReadDigital(pin int) (bool, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.check(pin, ModeDigitalInput, ModeDigitalOutput); err != nil {
		return false, err
	}
	return b.levels[pin] != 0, nil
}

// WriteDigital implements Pins.
func (b *Bank) WriteDigital(pin int, value bool) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.check(pin, ModeDigitalOutput); err != nil {
		return err
	}
	b.levels[pin] = 0
	if value {
		b.levels[pin] = 1
	}
	return nil
}

// ReadAnalog implements Pins.
func (b *Bank) ReadAnalog(pin int) (uint16, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.check(pin, ModeAnalogInput, ModeAnalogOutput); err != nil {
		return 0, err
	}
	return b.levels[pin], nil
}

// WriteAnalog implements Pins.
func (b *Bank) WriteAnalog(pin int, value uint16) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.check(pin, ModeAnalogOutput); err != nil {
		return err
	}
	b.levels[pin] = value
	return nil
}

// Drive sets the level seen on a pin regardless of its mode.
func (b *Bank) Drive(pin int, level uint16) {
	b.lock.Lock()
	b.levels[pin] = level
	b.lock.Unlock()
}

// Level returns the current level of a pin.
func (b *Bank) Level(pin int) uint16 {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.levels[pin]
}
