package cyphal

import (
	"context"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/plc.go/pkg/can"
	"github.com/robotalks/plc.go/pkg/transfer"
)

// Transport implements transfer.Transport on a CAN bus.
type Transport struct {
	transfer.Router

	Bus  can.Bus
	Node transfer.NodeID

	queue *transfer.TxQueue
	rx    Reassembler
	now   func() time.Time
}

// New creates a Transport for local node on bus.
func New(bus can.Bus, node transfer.NodeID) *Transport {
	return &Transport{
		Bus:   bus,
		Node:  node,
		queue: transfer.NewTxQueue(transfer.DefaultQueueCapacity),
		now:   time.Now,
	}
}

// LocalNode implements transfer.Transport.
func (t *Transport) LocalNode() transfer.NodeID {
	return t.Node
}

// Send implements transfer.Transport.
func (t *Transport) Send(tr *transfer.Transfer) error {
	if _, err := HeaderOf(tr, t.Node).ID(); err != nil {
		return err
	}
	return t.queue.Push(tr)
}

// Name implements framework.Named.
func (t *Transport) Name() string {
	return "cyphal"
}

// Run transmits queued transfers and dispatches received ones until ctx is
// done or the bus is closed.
func (t *Transport) Run(ctx context.Context) error {
	frames := t.Bus.Frames()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.queue.Ready():
			t.flush()
		case f, ok := <-frames:
			if !ok {
				return transfer.ErrClosed
			}
			t.receive(ctx, f)
		}
	}
}

func (t *Transport) flush() {
	for tr := t.queue.Pop(); tr != nil; tr = t.queue.Pop() {
		frames, err := Fragment(tr, t.Node)
		if err != nil {
			glog.Errorf("cyphal: drop %s: %v", tr, err)
			continue
		}
		glog.V(2).Infof("cyphal: tx %s in %d frames", tr, len(frames))
		for _, f := range frames {
			if err := t.Bus.Send(f); err != nil {
				glog.Errorf("cyphal: send %s: %v", tr, err)
				break
			}
		}
	}
}

func (t *Transport) receive(ctx context.Context, f can.Frame) {
	if !f.Extended {
		return
	}
	h, ok := ParseID(f.ID)
	if !ok {
		return
	}
	if h.Kind != transfer.KindMessage && h.Destination != t.Node {
		return
	}
	sub, ok := t.Subscribed(h.Kind, h.Port)
	if !ok {
		return
	}
	if tr := t.rx.Accept(h, f.Data, t.now(), sub.Timeout); tr != nil {
		glog.V(2).Infof("cyphal: rx %s", tr)
		t.Dispatch(ctx, tr)
	}
}
