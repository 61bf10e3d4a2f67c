// Package can defines classic CAN frames and the bus abstraction the
// transfer layer is built on.
package can

import (
	"errors"
	"fmt"
)

// MaxDataLen is the payload limit of a classic CAN frame.
const MaxDataLen = 8

// Identifier masks and flags, laid out as the Linux can_id.
const (
	MaskStandard uint32 = 0x000007ff
	MaskExtended uint32 = 0x1fffffff
	FlagError    uint32 = 0x20000000
	FlagRemote   uint32 = 0x40000000
	FlagExtended uint32 = 0x80000000
)

var (
	// ErrDataTooLong indicates more than MaxDataLen bytes of data.
	ErrDataTooLong = errors.New("frame data too long")
	// ErrBusClosed is returned by Send after the bus is closed.
	ErrBusClosed = errors.New("bus closed")
)

// Frame is a classic CAN data frame.
type Frame struct {
	// ID is the 11-bit or 29-bit identifier without flags.
	ID       uint32
	Extended bool
	Data     []byte
}

// Validate checks identifier range and data length.
func (f Frame) Validate() error {
	if len(f.Data) > MaxDataLen {
		return ErrDataTooLong
	}
	limit := MaskStandard
	if f.Extended {
		limit = MaskExtended
	}
	if f.ID > limit {
		return fmt.Errorf("identifier %#x out of range", f.ID)
	}
	return nil
}

// RawID returns the identifier with the extended flag, as on the wire.
func (f Frame) RawID() uint32 {
	if f.Extended {
		return f.ID | FlagExtended
	}
	return f.ID
}

// FromRawID fills ID and Extended from a flagged identifier.
func FromRawID(raw uint32, data []byte) Frame {
	if raw&FlagExtended != 0 {
		return Frame{ID: raw & MaskExtended, Extended: true, Data: data}
	}
	return Frame{ID: raw & MaskStandard, Data: data}
}

func (f Frame) String() string {
	if f.Extended {
		return fmt.Sprintf("%08x#% x", f.ID, f.Data)
	}
	return fmt.Sprintf("%03x#% x", f.ID, f.Data)
}

// Bus sends and receives frames.
type Bus interface {
	// Send queues one frame for transmission.
	Send(Frame) error
	// Frames delivers received data frames.
	Frames() <-chan Frame
}
