package ioblock

import (
	"context"

	"github.com/golang/glog"

	fx "github.com/robotalks/plc.go/pkg/framework"
)

// Table holds the four ordered block sequences. The position of a block in
// its sequence defines its first global point index.
type Table struct {
	blocks [NumKinds][]*Block
	starts [NumKinds][]int
	// lookup maps a global point index to the index of its block.
	lookup [NumKinds][]int
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{}
}

// Add appends blocks to the sequence of kind. Blocks must be added before
// the table is shared.
func (t *Table) Add(kind Kind, blocks ...*Block) *Table {
	for _, b := range blocks {
		start := t.Len(kind)
		idx := len(t.blocks[kind])
		t.blocks[kind] = append(t.blocks[kind], b)
		t.starts[kind] = append(t.starts[kind], start)
		for i := 0; i < b.Len(); i++ {
			t.lookup[kind] = append(t.lookup[kind], idx)
		}
	}
	return t
}

// Blocks returns the sequence of kind.
func (t *Table) Blocks(kind Kind) []*Block {
	return t.blocks[kind]
}

// Start returns the first global point index of block i of kind.
func (t *Table) Start(kind Kind, i int) int {
	return t.starts[kind][i]
}

// Len returns the number of points of kind.
func (t *Table) Len(kind Kind) int {
	return len(t.lookup[kind])
}

// Locate finds the block holding global point index point, and the point's
// index inside the block.
func (t *Table) Locate(kind Kind, point int) (*Block, int, error) {
	if point < 0 || point >= len(t.lookup[kind]) {
		return nil, 0, ErrNoSuchPoint
	}
	idx := t.lookup[kind][point]
	return t.blocks[kind][idx], point - t.starts[kind][idx], nil
}

// Each calls fn for every block of kind with its sequence index and start.
func (t *Table) Each(kind Kind, fn func(idx, start int, b *Block)) {
	for i, b := range t.blocks[kind] {
		fn(i, t.starts[kind][i], b)
	}
}

// EnableFunc decides whether the points [start, start+length) of kind are
// used.
type EnableFunc func(kind Kind, start, length int) bool

// EnableAll enables every block.
func EnableAll(Kind, int, int) bool { return true }

// Init sets the enabled flag of every block using enable and initializes the
// drivers of enabled blocks. Failing blocks are disabled and reported in the
// aggregated error.
func (t *Table) Init(ctx context.Context, enable EnableFunc) error {
	var errs fx.AggregatedError
	for _, kind := range Kinds {
		t.Each(kind, func(idx, start int, b *Block) {
			enabled := enable(kind, start, b.Len())
			glog.V(1).Infof("%s block %d: addr=%d len=%d driver=%s enabled=%v",
				kind, idx, start, b.Len(), b.DriverType(), enabled)
			if enabled {
				if err := InitBlock(ctx, kind, b); err != nil {
					errs.Add(&BlockError{Kind: kind, Index: idx, Err: err})
					enabled = false
				}
			}
			b.SetEnabled(enabled)
		})
	}
	return errs.Aggregate()
}

// OfDriver returns the enabled blocks of kind served by driver type dt.
func (t *Table) OfDriver(kind Kind, dt DriverType) []*Block {
	var blocks []*Block
	for _, b := range t.blocks[kind] {
		if b.DriverType() == dt && b.Enabled() {
			blocks = append(blocks, b)
		}
	}
	return blocks
}
