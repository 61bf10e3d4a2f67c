package ioblock

import (
	"errors"
	"fmt"
)

var (
	// ErrHardware indicates a pin or peripheral failure.
	ErrHardware = errors.New("hardware error")
	// ErrNoSuchPoint indicates a point index outside the configured blocks.
	ErrNoSuchPoint = errors.New("no such point")
	// ErrLengthMismatch indicates a value slice not matching the block length.
	ErrLengthMismatch = errors.New("length mismatch")
	// ErrNoDriver indicates a block without driver.
	ErrNoDriver = errors.New("block has no driver")
)

// BlockError tells which block failed.
type BlockError struct {
	Kind  Kind
	Index int
	Err   error
}

// Error implements error.
func (e *BlockError) Error() string {
	return fmt.Sprintf("%s block %d: %v", e.Kind, e.Index, e.Err)
}

// Unwrap returns the driver error.
func (e *BlockError) Unwrap() error {
	return e.Err
}
