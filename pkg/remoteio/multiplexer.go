package remoteio

import (
	"context"

	"github.com/golang/glog"

	"github.com/robotalks/plc.go/pkg/ioblock"
)

// Multiplexer maps a point-range request onto the local blocks. A range may
// start inside a block and span several consecutive blocks, each served by
// its own driver.
type Multiplexer struct {
	Table *ioblock.Table
}

// span is the part of a request falling into one block: block positions
// [lo, hi) map to request positions [lo-offset, hi-offset).
type span struct {
	idx    int
	block  *ioblock.Block
	offset int
	lo, hi int
	last   bool
}

// walk calls fn for every block overlapping [index, index+count) in order.
// fn returning a non-Ok result stops the walk. If no block covers the end
// of the range the result is BadArgument.
func (m *Multiplexer) walk(kind ioblock.Kind, index, count int, fn func(span) Result) Result {
	blockStart := 0
	for idx, b := range m.Table.Blocks(kind) {
		offset := index - blockStart
		blockStart += b.Len()
		if offset >= b.Len() {
			continue
		}
		s := span{idx: idx, block: b, offset: offset, lo: offset, hi: count + offset}
		if s.lo < 0 {
			s.lo = 0
		}
		if s.hi > b.Len() {
			s.hi = b.Len()
		}
		s.last = count+offset <= b.Len()
		if !b.Enabled() {
			glog.Warningf("%s block %d disabled", kind, idx)
			return ResultHardwareError
		}
		if r := fn(s); r != ResultOk {
			return r
		}
		if s.last {
			return ResultOk
		}
	}
	return ResultBadArgument
}

// SetOutputs stores values from point index on and writes every touched
// block through its driver.
func (m *Multiplexer) SetOutputs(ctx context.Context, kind ioblock.Kind, index int, values []uint16) Result {
	return m.walk(kind, index, len(values), func(s span) Result {
		s.block.StoreAt(s.lo, values[s.lo-s.offset:s.hi-s.offset])
		s.block.MarkDirty()
		if err := ioblock.WriteBlock(ctx, kind, s.block); err != nil {
			glog.Errorf("set: %v", &ioblock.BlockError{Kind: kind, Index: s.idx, Err: err})
			return ResultHardwareError
		}
		return ResultOk
	})
}

// GetInputs reads count values from point index on, refreshing every
// touched block through its driver first.
func (m *Multiplexer) GetInputs(ctx context.Context, kind ioblock.Kind, index, count int) (Result, []uint16) {
	values := make([]uint16, count)
	result := m.walk(kind, index, count, func(s span) Result {
		if err := ioblock.ReadBlock(ctx, kind, s.block); err != nil {
			glog.Errorf("get: %v", &ioblock.BlockError{Kind: kind, Index: s.idx, Err: err})
			return ResultHardwareError
		}
		copy(values[s.lo-s.offset:s.hi-s.offset], s.block.Values()[s.lo:s.hi])
		return ResultOk
	})
	if result != ResultOk {
		return result, nil
	}
	return result, values
}
