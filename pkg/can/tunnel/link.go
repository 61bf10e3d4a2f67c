package tunnel

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"
)

// A Link carries packets over a byte stream without framing of its own,
// e.g. a serial line. Both ends synchronize by exchanging their sequence
// numbers:
//
//	REQ: 0xff seq    ACK: 0xfe seq
//
// and then send packets as
//
//	seq len data... crc8
//
// where seq increments for every packet (1 to 0xef) and len is 1 to 127.
// A byte out of place or a CRC mismatch restarts synchronization; packets
// lost that way are not retransmitted.

const (
	syncREQ byte = 0xff
	syncACK byte = 0xfe

	// MaxLinkPacket is the largest packet a Link carries.
	MaxLinkPacket = 0x7f
)

// Seq is a link packet sequence number.
type Seq byte

// Next returns the following sequence number.
func (s Seq) Next() Seq {
	n := byte(s) + 1
	if n == 0 || n >= 0xf0 {
		n = 1
	}
	return Seq(n)
}

// IsValid checks if it's a valid sequence number.
func (s Seq) IsValid() bool {
	return s > 0 && s < 0xf0
}

// CRC8 computes the packet check byte (polynomial 0x07).
func CRC8(crc byte, data []byte) byte {
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x07
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// EncodeLinkPacket produces the bytes of one packet.
func EncodeLinkPacket(seq Seq, data []byte) []byte {
	b := make([]byte, 0, len(data)+3)
	b = append(b, byte(seq), byte(len(data)))
	b = append(b, data...)
	return append(b, CRC8(0, b))
}

type linkState int

const (
	stateSyncWait   linkState = iota // REQ sent, waiting for REQ or ACK
	stateSyncReqSeq                  // waiting for seq after REQ
	stateSyncAckSeq                  // waiting for seq after ACK
	stateSeq                         // synchronized, waiting for packet seq
	stateAckSeq                      // ACK received while synchronized
	stateLen
	stateData
	stateCheck
)

// parseResult is the outcome of one parsing step.
type parseResult struct {
	// reply is a sync byte to send back with the local seq, 0 for none.
	reply  byte
	packet []byte
}

// linkParser is the receiving state machine.
type linkParser struct {
	state   linkState
	peerSeq Seq
	head    [2]byte
	data    []byte
}

func (p *linkParser) ready() bool {
	return p.state >= stateSeq
}

// busy reports a packet or synchronization in progress.
func (p *linkParser) busy() bool {
	return p.state != stateSyncWait && p.state != stateSeq
}

func (p *linkParser) resync() parseResult {
	p.state, p.data = stateSyncWait, nil
	return parseResult{reply: syncREQ}
}

func (p *linkParser) parse(b byte) parseResult {
	switch p.state {
	case stateSyncWait:
		switch b {
		case syncREQ:
			p.state = stateSyncReqSeq
		case syncACK:
			p.state = stateSyncAckSeq
		}
	case stateSyncReqSeq, stateSyncAckSeq:
		seq := Seq(b)
		if !seq.IsValid() {
			return p.resync()
		}
		acked := p.state == stateSyncAckSeq
		p.peerSeq, p.state = seq, stateSeq
		if !acked {
			return parseResult{reply: syncACK}
		}
	case stateSeq:
		switch {
		case b == syncREQ:
			p.state = stateSyncReqSeq
		case b == syncACK:
			p.state = stateAckSeq
		case Seq(b) == p.peerSeq:
			p.head[0] = b
			p.state = stateLen
		default:
			return p.resync()
		}
	case stateAckSeq:
		if Seq(b) != p.peerSeq {
			return p.resync()
		}
		p.state = stateSeq
	case stateLen:
		if b == 0 || b > MaxLinkPacket {
			return p.resync()
		}
		p.head[1] = b
		p.data = make([]byte, 0, b)
		p.state = stateData
	case stateData:
		p.data = append(p.data, b)
		if len(p.data) == cap(p.data) {
			p.state = stateCheck
		}
	case stateCheck:
		if CRC8(CRC8(0, p.head[:]), p.data) != b {
			return p.resync()
		}
		pkt := p.data
		p.data, p.state = nil, stateSeq
		p.peerSeq = p.peerSeq.Next()
		return parseResult{packet: pkt}
	}
	return parseResult{}
}

// DefaultSyncTimeout is how long a Link waits for the peer in the middle of
// synchronization or a packet.
const DefaultSyncTimeout = 100 * time.Millisecond

// Link implements PacketReadWriter on a byte stream.
type Link struct {
	Port        io.ReadWriteCloser
	SyncTimeout time.Duration

	seq    Seq
	synced bool
	lock   sync.Mutex
	parser linkParser

	rx        chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewLink creates a Link on port.
func NewLink(port io.ReadWriteCloser) *Link {
	return &Link{
		Port:        port,
		SyncTimeout: DefaultSyncTimeout,
		seq:         Seq(byte(time.Now().UnixNano())).Next(),
		rx:          make(chan []byte, DefaultRxBuffer),
		done:        make(chan struct{}),
	}
}

// Ready reports whether the link is synchronized.
func (l *Link) Ready() bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.synced
}

// WritePacket implements PacketWriter.
func (l *Link) WritePacket(pkt []byte) error {
	if len(pkt) == 0 || len(pkt) > MaxLinkPacket {
		return ErrPacketTooLong
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	if !l.synced {
		return ErrNotReady
	}
	if _, err := l.Port.Write(EncodeLinkPacket(l.seq, pkt)); err != nil {
		return err
	}
	l.seq = l.seq.Next()
	return nil
}

// ReadPacket implements PacketReader.
func (l *Link) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-l.rx:
		return pkt, nil
	case <-l.done:
		return nil, ErrLinkClosed
	}
}

// Close stops the link and closes the port.
func (l *Link) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		err = l.Port.Close()
	})
	return err
}

// Run processes received bytes until ctx is done or the port fails.
func (l *Link) Run(ctx context.Context) error {
	defer l.Close()
	chunks, errCh := make(chan []byte, 16), make(chan error, 1)
	go l.readLoop(chunks, errCh)

	var timer <-chan time.Time
	apply := func(pr parseResult) error {
		l.lock.Lock()
		synced := l.parser.ready()
		if synced != l.synced {
			glog.Infof("tunnel: link synchronized=%v", synced)
			l.synced = synced
		}
		var err error
		if pr.reply != 0 {
			_, err = l.Port.Write([]byte{pr.reply, byte(l.seq)})
		}
		l.lock.Unlock()
		switch {
		case pr.reply == syncREQ || l.parser.busy():
			timer = time.After(l.SyncTimeout)
		case synced:
			timer = nil
		}
		if pr.packet != nil {
			select {
			case l.rx <- pr.packet:
			default:
				glog.V(2).Info("tunnel: link rx overrun")
			}
		}
		return err
	}

	if err := apply(l.parser.resync()); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case <-timer:
			if err := apply(l.parser.resync()); err != nil {
				return err
			}
		case chunk := <-chunks:
			for _, b := range chunk {
				if err := apply(l.parser.parse(b)); err != nil {
					return err
				}
			}
		}
	}
}

func (l *Link) readLoop(chunks chan<- []byte, errCh chan<- error) {
	for {
		buf := make([]byte, 64)
		n, err := l.Port.Read(buf)
		if err != nil {
			errCh <- err
			return
		}
		if n == 0 {
			continue
		}
		select {
		case chunks <- buf[:n]:
		case <-l.done:
			return
		}
	}
}
