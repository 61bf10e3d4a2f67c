package ioblock

import "context"

// InitBlock configures the block's driver.
func InitBlock(ctx context.Context, kind Kind, b *Block) error {
	if b.Driver == nil {
		return ErrNoDriver
	}
	return b.Driver.Init(ctx, kind, b)
}

// ReadBlock pulls fresh values into the buffer of an input block. The block
// becomes dirty only if a value changed.
func ReadBlock(ctx context.Context, kind Kind, b *Block) error {
	if b.Driver == nil {
		return ErrNoDriver
	}
	return b.Driver.Read(ctx, kind, b)
}

// WriteBlock pushes the buffer of a dirty block to its driver, then clears
// the dirty flag. Clean blocks are left alone. Drivers implementing
// Deferring clear the flag themselves once the write is acknowledged.
func WriteBlock(ctx context.Context, kind Kind, b *Block) error {
	if b.Driver == nil {
		return ErrNoDriver
	}
	_, gen := b.Snapshot()
	if !b.Dirty() {
		return nil
	}
	if err := b.Driver.Write(ctx, kind, b); err != nil {
		return err
	}
	if d, ok := b.Driver.(Deferring); ok && d.DefersWrites() {
		return nil
	}
	b.ClearDirtyIf(gen)
	return nil
}
