package tunnel

import (
	"context"
	"fmt"
	"io"
	"sync"

	bcan "github.com/brutella/can"
	"github.com/golang/glog"

	"github.com/robotalks/plc.go/pkg/can"
	fx "github.com/robotalks/plc.go/pkg/framework"
)

// EncodeFrame packs a frame in the SocketCAN can_frame layout.
func EncodeFrame(f can.Frame) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	wire := bcan.Frame{ID: f.RawID(), Length: uint8(len(f.Data))}
	copy(wire.Data[:], f.Data)
	return bcan.Marshal(wire)
}

// DecodeFrame unpacks a frame encoded by EncodeFrame.
func DecodeFrame(pkt []byte) (can.Frame, error) {
	var wire bcan.Frame
	if err := bcan.Unmarshal(pkt, &wire); err != nil {
		return can.Frame{}, fmt.Errorf("%v: %w", err, ErrBadFrame)
	}
	if wire.ID&(can.FlagError|can.FlagRemote) != 0 || wire.Length > can.MaxDataLen {
		return can.Frame{}, ErrBadFrame
	}
	return can.FromRawID(wire.ID, append([]byte(nil), wire.Data[:wire.Length]...)), nil
}

// DefaultRxBuffer is the number of received frames a Bus holds.
const DefaultRxBuffer = 256

// Bus implements can.Bus over a packet connection.
type Bus struct {
	Conn PacketReadWriter

	rx        chan can.Frame
	sendLock  sync.Mutex
	closeOnce sync.Once
}

// NewBus creates a Bus on conn.
func NewBus(conn PacketReadWriter) *Bus {
	return &Bus{Conn: conn, rx: make(chan can.Frame, DefaultRxBuffer)}
}

// Send implements can.Bus.
func (b *Bus) Send(f can.Frame) error {
	pkt, err := EncodeFrame(f)
	if err != nil {
		return err
	}
	b.sendLock.Lock()
	defer b.sendLock.Unlock()
	return b.Conn.WritePacket(pkt)
}

// Frames implements can.Bus. The chan is closed when Run returns.
func (b *Bus) Frames() <-chan can.Frame {
	return b.rx
}

// Name implements framework.Named.
func (b *Bus) Name() string {
	return "tunnel"
}

// Run receives frames until ctx is done or the connection fails. A
// connection which is itself Runnable (e.g. Link) is run alongside.
func (b *Bus) Run(ctx context.Context) error {
	defer b.closeOnce.Do(func() { close(b.rx) })
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if runnable, ok := b.Conn.(fx.Runnable); ok {
		go func() {
			if err := runnable.Run(ctx); err != nil && ctx.Err() == nil {
				glog.Errorf("tunnel: link stopped: %v", err)
				cancel()
			}
		}()
	}
	if closer, ok := b.Conn.(io.Closer); ok {
		return fx.RunWithContextCloser(ctx, closer, b.receive)
	}
	return fx.RunWithContextCancel(ctx, nil, b.receive)
}

func (b *Bus) receive() error {
	for {
		pkt, err := b.Conn.ReadPacket()
		if err != nil {
			return err
		}
		f, err := DecodeFrame(pkt)
		if err != nil {
			glog.Warningf("tunnel: %v", err)
			continue
		}
		select {
		case b.rx <- f:
		default:
			glog.V(2).Infof("tunnel: rx overrun, dropped %s", f)
		}
	}
}
