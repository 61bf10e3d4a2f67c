//go:build linux
// +build linux

package socketcan

import (
	"context"
	"fmt"
	"net"
	"os"

	bcan "github.com/brutella/can"
	"github.com/golang/glog"
	"golang.org/x/sys/unix"

	"github.com/robotalks/plc.go/pkg/busmon"
	"github.com/robotalks/plc.go/pkg/can"
	fx "github.com/robotalks/plc.go/pkg/framework"
)

// Bus is a SocketCAN raw socket. It implements can.Bus and
// busmon.AlertSource.
type Bus struct {
	Interface string

	bus    *bcan.Bus
	rx     chan can.Frame
	alerts chan busmon.Alert
}

// Open binds a raw CAN socket to the named interface with controller error
// frames enabled.
func Open(ifname string) (*Bus, error) {
	iface, err := net.InterfaceByName(ifname)
	if err != nil {
		return nil, err
	}
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}
	if err = unix.SetsockoptInt(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_ERR_FILTER, int(ErrorMask)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("error filter: %w", err)
	}
	if err = unix.Bind(fd, &unix.SockaddrCAN{Ifindex: iface.Index}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind %s: %w", ifname, err)
	}
	f := os.NewFile(uintptr(fd), ifname)
	b := &Bus{
		Interface: ifname,
		bus:       bcan.NewBus(bcan.NewReadWriteCloser(f)),
		rx:        make(chan can.Frame, 256),
		alerts:    make(chan busmon.Alert, 16),
	}
	b.bus.SubscribeFunc(b.handle)
	return b, nil
}

// Send implements can.Bus.
func (b *Bus) Send(f can.Frame) error {
	if err := f.Validate(); err != nil {
		return err
	}
	wire := bcan.Frame{ID: f.RawID(), Length: uint8(len(f.Data))}
	copy(wire.Data[:], f.Data)
	return b.bus.Publish(wire)
}

// Frames implements can.Bus.
func (b *Bus) Frames() <-chan can.Frame {
	return b.rx
}

// Alerts implements busmon.AlertSource.
func (b *Bus) Alerts() <-chan busmon.Alert {
	return b.alerts
}

// Name implements framework.Named.
func (b *Bus) Name() string {
	return "socketcan:" + b.Interface
}

// Run receives frames until ctx is done.
func (b *Bus) Run(ctx context.Context) error {
	return fx.RunWithContextCancel(ctx, func() { b.bus.Disconnect() }, b.bus.ConnectAndPublish)
}

func (b *Bus) handle(f bcan.Frame) {
	if f.ID&can.FlagError != 0 {
		for _, alert := range AlertsOf(f.ID, f.Data[:f.Length]) {
			glog.Warningf("%s: controller alert %s", b.Interface, alert)
			select {
			case b.alerts <- alert:
			default:
				glog.Errorf("%s: alert %s dropped", b.Interface, alert)
			}
		}
		return
	}
	if f.ID&can.FlagRemote != 0 || f.Length > can.MaxDataLen {
		return
	}
	select {
	case b.rx <- can.FromRawID(f.ID, append([]byte(nil), f.Data[:f.Length]...)):
	default:
		glog.V(2).Infof("%s: rx overrun", b.Interface)
	}
}
