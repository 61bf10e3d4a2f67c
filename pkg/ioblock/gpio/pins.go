// Package gpio serves I/O blocks from local hardware pins.
package gpio

import (
	"errors"
	"fmt"
)

// Mode is the direction and type of a pin.
type Mode uint8

// Pin modes.
const (
	ModeDigitalInput Mode = iota
	ModeDigitalOutput
	ModeAnalogInput
	ModeAnalogOutput
)

func (m Mode) String() string {
	switch m {
	case ModeDigitalInput:
		return "DI"
	case ModeDigitalOutput:
		return "DO"
	case ModeAnalogInput:
		return "AI"
	case ModeAnalogOutput:
		return "AO"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// ErrUnsupportedMode is returned when the pin can't be used in a mode.
var ErrUnsupportedMode = errors.New("unsupported pin mode")

// Pins abstracts the hardware pin layer.
type Pins interface {
	SetMode(pin int, mode Mode) error
	ReadDigital(pin int) (bool, error)
	WriteDigital(pin int, value bool) error
	ReadAnalog(pin int) (uint16, error)
	WriteAnalog(pin int, value uint16) error
}
