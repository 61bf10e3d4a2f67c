package ioblock

import "sync"

// Block is a fixed-length run of same-type points. The block owns its
// buffer: values are only exchanged as whole copies under the block lock.
type Block struct {
	// Name is used in logs and Sparkplug metric names.
	Name   string
	Driver Driver

	ioType IOType
	length int

	lock    sync.Mutex
	enabled bool
	dirty   bool
	gen     uint64
	values  []uint16
}

// NewBlock creates a block of length points.
func NewBlock(ioType IOType, length int, driver Driver) *Block {
	return &Block{
		Driver: driver,
		ioType: ioType,
		length: length,
		values: make([]uint16, length),
	}
}

// Len returns the fixed number of points.
func (b *Block) Len() int {
	return b.length
}

// IOType returns the point type.
func (b *Block) IOType() IOType {
	return b.ioType
}

// DriverType returns the type of the driver, empty if there's none.
func (b *Block) DriverType() DriverType {
	if b.Driver == nil {
		return ""
	}
	return b.Driver.Type()
}

// Enabled reports whether the block is serviced.
func (b *Block) Enabled() bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.enabled
}

// SetEnabled changes the enabled flag.
func (b *Block) SetEnabled(enabled bool) {
	b.lock.Lock()
	b.enabled = enabled
	b.lock.Unlock()
}

// Dirty reports whether values changed since last consumed.
func (b *Block) Dirty() bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.dirty
}

// MarkDirty sets the dirty flag and bumps the generation.
func (b *Block) MarkDirty() {
	b.lock.Lock()
	b.dirty = true
	b.gen++
	b.lock.Unlock()
}

// ClearDirty clears the dirty flag.
func (b *Block) ClearDirty() {
	b.lock.Lock()
	b.dirty = false
	b.lock.Unlock()
}

// ClearDirtyIf clears the dirty flag only if the buffer is still at
// generation gen, i.e. nothing changed since the snapshot was taken.
func (b *Block) ClearDirtyIf(gen uint64) bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.gen != gen {
		return false
	}
	b.dirty = false
	return true
}

// Values returns a copy of the buffer.
func (b *Block) Values() []uint16 {
	values, _ := b.Snapshot()
	return values
}

// Value returns one point.
func (b *Block) Value(i int) uint16 {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.values[i]
}

// Snapshot returns a copy of the buffer and its generation.
func (b *Block) Snapshot() ([]uint16, uint64) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]uint16(nil), b.values...), b.gen
}

// Consume returns a copy of the buffer and clears the dirty flag. ok is
// false, and nothing is returned, if the block isn't dirty.
func (b *Block) Consume() (values []uint16, ok bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if !b.dirty {
		return nil, false
	}
	b.dirty = false
	return append([]uint16(nil), b.values...), true
}

// Store replaces the whole buffer. If any value changed the block becomes
// dirty. Digital values are normalized to 0/1.
func (b *Block) Store(values []uint16) (bool, error) {
	if len(values) != b.length {
		return false, ErrLengthMismatch
	}
	return b.StoreAt(0, values), nil
}

// StoreAt replaces values starting at point start; values past the end of
// the block are ignored. If any value changed the block becomes dirty.
func (b *Block) StoreAt(start int, values []uint16) bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	changed := false
	for i, v := range values {
		pos := start + i
		if pos < 0 || pos >= b.length {
			continue
		}
		if b.ioType == Digital && v != 0 {
			v = 1
		}
		if b.values[pos] != v {
			b.values[pos] = v
			changed = true
		}
	}
	if changed {
		b.dirty = true
		b.gen++
	}
	return changed
}
