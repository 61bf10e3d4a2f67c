package gpio

import (
	"context"
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/plc.go/pkg/ioblock"
)

// Driver maps the points of one block onto pins, point i on Numbers[i].
type Driver struct {
	Pins    Pins
	Numbers []int
	// Inverted negates digital values on both directions.
	Inverted bool
}

// New creates a driver.
func New(pins Pins, inverted bool, numbers ...int) *Driver {
	return &Driver{Pins: pins, Numbers: numbers, Inverted: inverted}
}

// Type implements ioblock.Driver.
func (d *Driver) Type() ioblock.DriverType {
	return ioblock.DriverGPIO
}

func modeOf(kind ioblock.Kind) Mode {
	switch kind {
	case ioblock.DigitalOutput:
		return ModeDigitalOutput
	case ioblock.AnalogInput:
		return ModeAnalogInput
	case ioblock.AnalogOutput:
		return ModeAnalogOutput
	}
	return ModeDigitalInput
}

// Init implements ioblock.Driver.
func (d *Driver) Init(ctx context.Context, kind ioblock.Kind, b *ioblock.Block) error {
	if len(d.Numbers) != b.Len() {
		return fmt.Errorf("%d pins for %d points: %w", len(d.Numbers), b.Len(), ioblock.ErrLengthMismatch)
	}
	mode := modeOf(kind)
	for _, pin := range d.Numbers {
		glog.V(1).Infof("initializing %s pin %d", mode, pin)
		if err := d.Pins.SetMode(pin, mode); err != nil {
			return fmt.Errorf("pin %d: %w", pin, err)
		}
	}
	if kind == ioblock.DigitalOutput {
		// drive the idle level right away
		for _, pin := range d.Numbers {
			if err := d.Pins.WriteDigital(pin, d.Inverted); err != nil {
				return fmt.Errorf("pin %d: %w", pin, err)
			}
		}
	}
	return nil
}

// Read implements ioblock.Driver.
func (d *Driver) Read(ctx context.Context, kind ioblock.Kind, b *ioblock.Block) error {
	values := make([]uint16, len(d.Numbers))
	for i, pin := range d.Numbers {
		if kind.IOType() == ioblock.Digital {
			on, err := d.Pins.ReadDigital(pin)
			if err != nil {
				return fmt.Errorf("pin %d: %v: %w", pin, err, ioblock.ErrHardware)
			}
			if on != d.Inverted {
				values[i] = 1
			}
			continue
		}
		v, err := d.Pins.ReadAnalog(pin)
		if err != nil {
			return fmt.Errorf("pin %d: %v: %w", pin, err, ioblock.ErrHardware)
		}
		values[i] = v
	}
	_, err := b.Store(values)
	return err
}

// Write implements ioblock.Driver.
func (d *Driver) Write(ctx context.Context, kind ioblock.Kind, b *ioblock.Block) error {
	values := b.Values()
	for i, pin := range d.Numbers {
		var err error
		if kind.IOType() == ioblock.Digital {
			err = d.Pins.WriteDigital(pin, (values[i] != 0) != d.Inverted)
		} else {
			err = d.Pins.WriteAnalog(pin, values[i])
		}
		if err != nil {
			return fmt.Errorf("pin %d: %v: %w", pin, err, ioblock.ErrHardware)
		}
	}
	return nil
}
