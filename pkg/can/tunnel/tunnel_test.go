package tunnel

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/plc.go/pkg/can"
)

func TestFrameCodec(t *testing.T) {
	frames := []can.Frame{
		{ID: 0x107d552a, Extended: true, Data: []byte{1, 2, 3, 4, 5, 6, 7, 0xe0}},
		{ID: 0x123},
	}
	for _, f := range frames {
		pkt, err := EncodeFrame(f)
		require.NoError(t, err)
		got, err := DecodeFrame(pkt)
		require.NoError(t, err)
		require.Equal(t, f, got)
	}
	_, err := EncodeFrame(can.Frame{ID: 1, Data: make([]byte, 9)})
	require.Equal(t, can.ErrDataTooLong, err)
}

func TestLinkParser(t *testing.T) {
	feed := func(p *linkParser, data []byte) (results []parseResult) {
		for _, b := range data {
			results = append(results, p.parse(b))
		}
		return
	}
	synced := func() *linkParser {
		p := &linkParser{}
		p.resync()
		rs := feed(p, []byte{syncREQ, 5})
		require.Equal(t, syncACK, rs[1].reply)
		require.True(t, p.ready())
		return p
	}

	t.Run("packets in sequence", func(t *testing.T) {
		p := synced()
		rs := feed(p, EncodeLinkPacket(5, []byte{1, 2, 3}))
		require.Equal(t, []byte{1, 2, 3}, rs[len(rs)-1].packet)
		rs = feed(p, EncodeLinkPacket(6, []byte{4}))
		require.Equal(t, []byte{4}, rs[len(rs)-1].packet)
	})

	t.Run("ack while synchronized", func(t *testing.T) {
		p := synced()
		rs := feed(p, []byte{syncACK, 5})
		require.Equal(t, parseResult{}, rs[1])
		require.True(t, p.ready())
	})

	t.Run("wrong sequence resyncs", func(t *testing.T) {
		p := synced()
		rs := feed(p, EncodeLinkPacket(7, []byte{1}))
		require.Equal(t, syncREQ, rs[0].reply)
		require.False(t, p.ready())
	})

	t.Run("bad check resyncs", func(t *testing.T) {
		p := synced()
		pkt := EncodeLinkPacket(5, []byte{1, 2})
		pkt[len(pkt)-1] ^= 0xff
		rs := feed(p, pkt)
		require.Equal(t, syncREQ, rs[len(rs)-1].reply)
		require.Nil(t, rs[len(rs)-1].packet)
	})

	t.Run("invalid length resyncs", func(t *testing.T) {
		p := synced()
		rs := feed(p, []byte{5, 0})
		require.Equal(t, syncREQ, rs[1].reply)
	})
}

// chanPipe is one end of a buffered in-memory byte pipe.
type chanPipe struct {
	in      <-chan []byte
	out     chan<- []byte
	pending []byte
	closed  chan struct{}
	once    sync.Once
}

func pipePair() (*chanPipe, *chanPipe) {
	a2b, b2a := make(chan []byte, 64), make(chan []byte, 64)
	return &chanPipe{in: b2a, out: a2b, closed: make(chan struct{})},
		&chanPipe{in: a2b, out: b2a, closed: make(chan struct{})}
}

func (p *chanPipe) Read(b []byte) (int, error) {
	if len(p.pending) == 0 {
		select {
		case p.pending = <-p.in:
		case <-p.closed:
			return 0, io.EOF
		}
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *chanPipe) Write(b []byte) (int, error) {
	select {
	case <-p.closed:
		return 0, io.ErrClosedPipe
	case p.out <- append([]byte(nil), b...):
		return len(b), nil
	}
}

func (p *chanPipe) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func TestLinkOverPipe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.TODO())
	defer cancel()
	pa, pb := pipePair()
	la, lb := NewLink(pa), NewLink(pb)
	require.Equal(t, ErrNotReady, la.WritePacket([]byte{1}))

	busA, busB := NewBus(la), NewBus(lb)
	go busA.Run(ctx)
	go busB.Run(ctx)
	require.Eventually(t, func() bool { return la.Ready() && lb.Ready() }, time.Second, time.Millisecond)

	sent := can.Frame{ID: 0x136b8a0a, Extended: true, Data: []byte{0xe0}}
	require.NoError(t, busA.Send(sent))
	select {
	case got := <-busB.Frames():
		require.Equal(t, sent, got)
	case <-time.After(time.Second):
		t.Fatal("frame not received")
	}
	require.Equal(t, ErrPacketTooLong, la.WritePacket(make([]byte, MaxLinkPacket+1)))
}

func TestServerOverTCP(t *testing.T) {
	ctx, cancel := context.WithCancel(context.TODO())
	defer cancel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	server := NewServer()
	go server.ServeListener(ctx, ln)

	dial := func() *Bus {
		bus, err := Dial("tcp://" + ln.Addr().String())
		require.NoError(t, err)
		go bus.Run(ctx)
		return bus
	}
	a, b := dial(), dial()
	require.Eventually(t, func() bool { return server.Hub.Len() == 2 }, time.Second, time.Millisecond)

	sent := can.Frame{ID: 0x10, Extended: true, Data: []byte{1, 2, 3}}
	require.NoError(t, a.Send(sent))
	select {
	case got := <-b.Frames():
		require.Equal(t, sent, got)
	case <-time.After(time.Second):
		t.Fatal("frame not forwarded")
	}
}

func TestDialRejectsScheme(t *testing.T) {
	_, err := Dial("udp://localhost:1")
	require.Error(t, err)
}

type chanBus struct {
	rx   chan can.Frame
	sent chan can.Frame
}

func (b *chanBus) Send(f can.Frame) error { b.sent <- f; return nil }
func (b *chanBus) Frames() <-chan can.Frame { return b.rx }

func TestBridge(t *testing.T) {
	ctx, cancel := context.WithCancel(context.TODO())
	defer cancel()
	server := NewServer()
	local := &chanBus{rx: make(chan can.Frame, 1), sent: make(chan can.Frame, 1)}
	go server.Bridge(ctx, local)
	require.Eventually(t, func() bool { return server.Hub.Len() == 1 }, time.Second, time.Millisecond)

	peer := server.Hub.Attach()
	defer peer.Close()
	up := can.Frame{ID: 0x20, Extended: true, Data: []byte{1}}
	local.rx <- up
	select {
	case got := <-peer.Frames():
		require.Equal(t, up, got)
	case <-time.After(time.Second):
		t.Fatal("frame not bridged to hub")
	}

	down := can.Frame{ID: 0x21, Extended: true, Data: []byte{2}}
	require.NoError(t, peer.Send(down))
	select {
	case got := <-local.sent:
		require.Equal(t, down, got)
	case <-time.After(time.Second):
		t.Fatal("frame not bridged to bus")
	}
}
