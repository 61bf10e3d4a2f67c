package transfer

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
)

// Network is an in-memory bus connecting Endpoints. It's used to run several
// nodes in one process and in tests.
type Network struct {
	endpoints map[NodeID]*Endpoint
	lock      sync.RWMutex
}

// NewNetwork creates an empty Network.
func NewNetwork() *Network {
	return &Network{endpoints: make(map[NodeID]*Endpoint)}
}

// Attach creates the Endpoint for node. It panics if node is already attached.
func (n *Network) Attach(node NodeID) *Endpoint {
	n.lock.Lock()
	defer n.lock.Unlock()
	if _, exist := n.endpoints[node]; exist {
		panic("node already attached")
	}
	ep := &Endpoint{
		network: n,
		node:    node,
		inbox:   make(chan *Transfer, DefaultQueueCapacity),
	}
	n.endpoints[node] = ep
	return ep
}

// Detach removes the Endpoint of node.
func (n *Network) Detach(node NodeID) {
	n.lock.Lock()
	delete(n.endpoints, node)
	n.lock.Unlock()
}

func (n *Network) deliver(from NodeID, t *Transfer) error {
	n.lock.RLock()
	defer n.lock.RUnlock()
	if t.Kind == KindMessage {
		for id, ep := range n.endpoints {
			if id != from {
				ep.enqueue(from, t)
			}
		}
		return nil
	}
	ep, ok := n.endpoints[t.RemoteNode]
	if !ok {
		glog.V(2).Infof("loopback: no node %d, dropped %s", t.RemoteNode, t)
		return nil
	}
	if !ep.enqueue(from, t) {
		return ErrBusy
	}
	return nil
}

// Endpoint is one node attached to a Network. It implements Transport.
type Endpoint struct {
	Router

	network *Network
	node    NodeID
	inbox   chan *Transfer
}

// LocalNode implements Transport.
func (e *Endpoint) LocalNode() NodeID {
	return e.node
}

// Send implements Transport.
func (e *Endpoint) Send(t *Transfer) error {
	return e.network.deliver(e.node, t)
}

// Name implements framework.Named.
func (e *Endpoint) Name() string {
	return "loopback"
}

// Run dispatches received transfers until ctx is done.
func (e *Endpoint) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-e.inbox:
			e.Dispatch(ctx, t)
		}
	}
}

func (e *Endpoint) enqueue(from NodeID, t *Transfer) bool {
	rx := *t
	rx.RemoteNode = from
	rx.Timestamp = time.Now()
	rx.Payload = append([]byte(nil), t.Payload...)
	select {
	case e.inbox <- &rx:
		return true
	default:
		return false
	}
}
