// Package ioblock models the node's process I/O as blocks: fixed-length runs
// of same-kind points served by one driver.
package ioblock

import (
	"context"
	"fmt"
)

// IOType tells digital from analog points.
type IOType uint8

// I/O types.
const (
	Digital IOType = iota
	Analog
)

func (t IOType) String() string {
	if t == Digital {
		return "digital"
	}
	return "analog"
}

// Kind is one of the four block sequences.
type Kind uint8

// Block kinds, in the order of the sequences.
const (
	DigitalInput Kind = iota
	DigitalOutput
	AnalogInput
	AnalogOutput

	// NumKinds is the number of block sequences.
	NumKinds = 4
)

// Kinds lists all kinds in sequence order.
var Kinds = [NumKinds]Kind{DigitalInput, DigitalOutput, AnalogInput, AnalogOutput}

// IOType returns the point type of the kind.
func (k Kind) IOType() IOType {
	if k == DigitalInput || k == DigitalOutput {
		return Digital
	}
	return Analog
}

// IsInput tells input kinds from output kinds.
func (k Kind) IsInput() bool {
	return k == DigitalInput || k == AnalogInput
}

func (k Kind) String() string {
	switch k {
	case DigitalInput:
		return "DI"
	case DigitalOutput:
		return "DO"
	case AnalogInput:
		return "AI"
	case AnalogOutput:
		return "AO"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind parses DI, DO, AI or AO.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown I/O kind %q", s)
}

// DriverType tags the driver variant serving a block.
type DriverType string

// Driver variants.
const (
	DriverGPIO      DriverType = "gpio"
	DriverRemote    DriverType = "remote"
	DriverSparkplug DriverType = "sparkplug"
)

// Driver moves values between a block buffer and the outside world.
// Implementations only use the Block's exported methods.
type Driver interface {
	Type() DriverType
	// Init prepares the driver for the block (pin modes, binding checks).
	Init(ctx context.Context, kind Kind, b *Block) error
	// Read refreshes the buffer of an input block, calling b.Store.
	Read(ctx context.Context, kind Kind, b *Block) error
	// Write pushes the buffer of a dirty output block.
	Write(ctx context.Context, kind Kind, b *Block) error
}

// Deferring is implemented by drivers completing writes asynchronously.
// WriteBlock leaves such blocks dirty; the driver clears the flag once the
// values are acknowledged.
type Deferring interface {
	DefersWrites() bool
}
