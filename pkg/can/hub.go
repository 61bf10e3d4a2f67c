package can

import (
	"sync"

	"github.com/golang/glog"
)

// DefaultPortBuffer is the number of received frames a Port holds.
const DefaultPortBuffer = 256

// Hub is an in-memory CAN segment. A frame sent from one Port is received by
// all the others.
type Hub struct {
	ports map[*Port]struct{}
	lock  sync.RWMutex
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{ports: make(map[*Port]struct{})}
}

// Attach connects a new Port.
func (h *Hub) Attach() *Port {
	p := &Port{hub: h, rx: make(chan Frame, DefaultPortBuffer)}
	h.lock.Lock()
	h.ports[p] = struct{}{}
	h.lock.Unlock()
	return p
}

// Len returns the number of attached ports.
func (h *Hub) Len() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.ports)
}

func (h *Hub) detach(p *Port) {
	h.lock.Lock()
	delete(h.ports, p)
	h.lock.Unlock()
}

func (h *Hub) broadcast(from *Port, f Frame) {
	h.lock.RLock()
	defer h.lock.RUnlock()
	for p := range h.ports {
		if p == from {
			continue
		}
		rx := f
		rx.Data = append([]byte(nil), f.Data...)
		select {
		case p.rx <- rx:
		default:
			glog.V(2).Infof("hub: port overrun, dropped %s", f)
		}
	}
}

// Port is one station on a Hub. It implements Bus.
type Port struct {
	hub    *Hub
	rx     chan Frame
	closed bool
	lock   sync.Mutex
}

// Send implements Bus.
func (p *Port) Send(f Frame) error {
	if err := f.Validate(); err != nil {
		return err
	}
	p.lock.Lock()
	closed := p.closed
	p.lock.Unlock()
	if closed {
		return ErrBusClosed
	}
	p.hub.broadcast(p, f)
	return nil
}

// Frames implements Bus.
func (p *Port) Frames() <-chan Frame {
	return p.rx
}

// Close detaches the port from the hub.
func (p *Port) Close() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if !p.closed {
		p.closed = true
		p.hub.detach(p)
	}
	return nil
}
