package remoteio

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/plc.go/pkg/transfer"
)

// ResponseFunc receives the response of a call, or ErrNoReply once the
// call expired.
type ResponseFunc func(resp *transfer.Transfer, err error)

type call struct {
	deadline time.Time
	fn       ResponseFunc
}

// Caller sends requests and correlates responses by (node, port,
// transfer-id). Unanswered calls expire after Timeout and are never
// retried.
type Caller struct {
	Transport transfer.Transport
	Timeout   time.Duration
	Priority  transfer.Priority

	now     func() time.Time
	counter transfer.Counter

	lock    sync.Mutex
	pending map[transfer.Key]*call
	ports   map[transfer.PortID]bool
}

// NewCaller creates a caller over t.
func NewCaller(t transfer.Transport) *Caller {
	return &Caller{
		Transport: t,
		Timeout:   transfer.DefaultTimeout,
		Priority:  transfer.PriorityNominal,
		now:       time.Now,
		pending:   make(map[transfer.Key]*call),
		ports:     make(map[transfer.PortID]bool),
	}
}

// Listen subscribes to responses on ports. Ports already listened to are
// skipped.
func (c *Caller) Listen(ports ...transfer.PortID) error {
	for _, port := range ports {
		c.lock.Lock()
		done := c.ports[port]
		c.ports[port] = true
		c.lock.Unlock()
		if done {
			continue
		}
		err := c.Transport.Subscribe(transfer.Subscription{
			Kind:    transfer.KindResponse,
			Port:    port,
			Extent:  responseExtent(port),
			Timeout: c.Timeout,
		}, c)
		if err != nil {
			return err
		}
	}
	return nil
}

// Call sends a request and registers fn for its response. fn is never
// called if Call returns an error.
func (c *Caller) Call(node transfer.NodeID, port transfer.PortID, payload []byte, fn ResponseFunc) (transfer.Key, error) {
	tid := c.counter.Next(port, node)
	key := transfer.Key{Node: node, Port: port, TransferID: tid}
	c.lock.Lock()
	c.pending[key] = &call{deadline: c.now().Add(c.Timeout), fn: fn}
	c.lock.Unlock()
	t := &transfer.Transfer{
		Kind:       transfer.KindRequest,
		Port:       port,
		RemoteNode: node,
		TransferID: tid,
		Priority:   c.Priority,
		Payload:    payload,
	}
	glog.V(2).Infof("-> %s", t)
	if err := c.Transport.Send(t); err != nil {
		c.Cancel(key)
		return key, err
	}
	return key, nil
}

// Cancel forgets a pending call without calling its ResponseFunc.
func (c *Caller) Cancel(key transfer.Key) {
	c.lock.Lock()
	delete(c.pending, key)
	c.lock.Unlock()
}

// Pending returns the number of calls waiting for a response.
func (c *Caller) Pending() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.pending)
}

// HandleTransfer implements transfer.Handler.
func (c *Caller) HandleTransfer(ctx context.Context, t *transfer.Transfer) {
	glog.V(2).Infof("<- %s", t)
	key := transfer.KeyOf(t)
	c.lock.Lock()
	pending, ok := c.pending[key]
	delete(c.pending, key)
	c.lock.Unlock()
	if !ok {
		glog.Warningf("unexpected response: %s", t)
		return
	}
	pending.fn(t, nil)
}

// Expire drops the calls past their deadline, reporting ErrNoReply.
func (c *Caller) Expire() {
	now := c.now()
	var expired []*call
	c.lock.Lock()
	for key, pending := range c.pending {
		if !now.Before(pending.deadline) {
			expired = append(expired, pending)
			delete(c.pending, key)
		}
	}
	c.lock.Unlock()
	for _, pending := range expired {
		pending.fn(nil, ErrNoReply)
	}
}

// Name implements framework.Named.
func (c *Caller) Name() string {
	return "caller"
}

// Run expires calls periodically until ctx is done.
func (c *Caller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.Timeout / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.Expire()
		}
	}
}
