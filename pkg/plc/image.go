package plc

import (
	"fmt"

	"github.com/robotalks/plc.go/pkg/ioblock"
)

// Slot is a program variable located at one I/O point.
type Slot struct {
	Kind  ioblock.Kind
	Point int
	Value uint16
}

// Bool reads a digital slot.
func (s *Slot) Bool() bool {
	return s.Value != 0
}

// SetBool writes a digital slot.
func (s *Slot) SetBool(v bool) {
	s.Value = 0
	if v {
		s.Value = 1
	}
}

var locationPrefix = [ioblock.NumKinds]string{"IX", "QX", "IW", "QW"}

// Name returns the IEC located variable name, e.g. QX0.2 or IW3.
func (s *Slot) Name() string {
	if s.Kind.IOType() == ioblock.Digital {
		return fmt.Sprintf("%s%d.%d", locationPrefix[s.Kind], s.Point/8, s.Point%8)
	}
	return fmt.Sprintf("%s%d", locationPrefix[s.Kind], s.Point)
}

// Image is the program's view of the I/O points: one slot per point, nil
// when the program didn't locate a variable there.
type Image struct {
	slots [ioblock.NumKinds][]*Slot
}

// NewImage creates an image sized to the points of table.
func NewImage(table *ioblock.Table) *Image {
	img := &Image{}
	for _, kind := range ioblock.Kinds {
		img.slots[kind] = make([]*Slot, table.Len(kind))
	}
	return img
}

// Locate wires a variable at point of kind and returns it. Locating the
// same point twice returns the same slot.
func (img *Image) Locate(kind ioblock.Kind, point int) (*Slot, error) {
	if point < 0 || point >= len(img.slots[kind]) {
		return nil, fmt.Errorf("%s%d: %w", kind, point, ioblock.ErrNoSuchPoint)
	}
	if img.slots[kind][point] == nil {
		img.slots[kind][point] = &Slot{Kind: kind, Point: point}
	}
	return img.slots[kind][point], nil
}

// Slot returns the slot at point, nil if not wired.
func (img *Image) Slot(kind ioblock.Kind, point int) *Slot {
	if point < 0 || point >= len(img.slots[kind]) {
		return nil
	}
	return img.slots[kind][point]
}

// Wired reports whether any point of [start, start+length) is wired. It's
// the ioblock.EnableFunc used when a program is loaded.
func (img *Image) Wired(kind ioblock.Kind, start, length int) bool {
	for i := start; i < start+length; i++ {
		if img.Slot(kind, i) != nil {
			return true
		}
	}
	return false
}
