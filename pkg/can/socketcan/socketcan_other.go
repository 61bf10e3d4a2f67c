//go:build !linux
// +build !linux

package socketcan

import (
	"context"
	"errors"

	"github.com/robotalks/plc.go/pkg/busmon"
	"github.com/robotalks/plc.go/pkg/can"
)

// ErrUnsupported is returned by Open outside Linux.
var ErrUnsupported = errors.New("socketcan is only available on linux")

// Bus is unavailable on this platform.
type Bus struct {
	Interface string
}

// Open always fails.
func Open(ifname string) (*Bus, error) {
	return nil, ErrUnsupported
}

// Send implements can.Bus.
func (b *Bus) Send(can.Frame) error { return ErrUnsupported }

// Frames implements can.Bus.
func (b *Bus) Frames() <-chan can.Frame { return nil }

// Alerts implements busmon.AlertSource.
func (b *Bus) Alerts() <-chan busmon.Alert { return nil }

// Name implements framework.Named.
func (b *Bus) Name() string { return "socketcan:" + b.Interface }

// Run implements framework.Runnable.
func (b *Bus) Run(ctx context.Context) error { return ErrUnsupported }
