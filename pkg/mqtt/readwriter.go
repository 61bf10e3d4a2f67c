package mqtt

import (
	"io"
	"sync"

	"github.com/golang/glog"
)

// ReadWriter carries packets between stations sharing a topic. A station
// publishes on <topic>/<station> and reads what the others publish.
type ReadWriter struct {
	PubSub  PubSub
	Topic   string
	Station string

	packetCh  chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewPacketReadWriter subscribes to the packets of the other stations.
func NewPacketReadWriter(ps PubSub, topic, station string) (*ReadWriter, error) {
	p := &ReadWriter{
		PubSub:   ps,
		Topic:    topic,
		Station:  station,
		packetCh: make(chan []byte, 64),
		done:     make(chan struct{}),
	}
	if err := ps.Sub(topic+"/+", p.handleMsg); err != nil {
		return nil, err
	}
	return p, nil
}

// ReadPacket implements tunnel.PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-p.packetCh:
		return pkt, nil
	case <-p.done:
		return nil, io.EOF
	}
}

// WritePacket implements tunnel.PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	return p.PubSub.Pub(p.Topic+"/"+p.Station, pkt, 0, false)
}

// Close stops reading. The subscription stays with the broker connection.
func (p *ReadWriter) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	return nil
}

func (p *ReadWriter) handleMsg(topic string, payload []byte) {
	if topic == p.Topic+"/"+p.Station {
		return
	}
	select {
	case p.packetCh <- payload:
	case <-p.done:
	default:
		glog.V(2).Infof("mqtt: packet from %s dropped", topic)
	}
}
