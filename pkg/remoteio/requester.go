package remoteio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/plc.go/pkg/framework"
	"github.com/robotalks/plc.go/pkg/ioblock"
	"github.com/robotalks/plc.go/pkg/transfer"
)

// Binding maps a block onto a point range of a peer.
type Binding struct {
	Node  transfer.NodeID
	Start uint8
}

func (b Binding) String() string {
	return fmt.Sprintf("%d@%d", b.Start, b.Node)
}

type bound struct {
	Binding
	kind     ioblock.Kind
	block    *ioblock.Block
	inflight bool
}

// Requester polls the peers for remote-bound blocks: GetInputs for every
// input block, SetOutputs for every dirty output block. At most one request
// per block is outstanding.
type Requester struct {
	Caller   *Caller
	Interval time.Duration

	lock   sync.Mutex
	blocks []*bound
}

// NewRequester creates a requester polling every interval.
func NewRequester(caller *Caller, interval time.Duration) *Requester {
	return &Requester{Caller: caller, Interval: interval}
}

// Bind creates the driver of a block bound to a peer range.
func (r *Requester) Bind(binding Binding) *Driver {
	return &Driver{Binding: binding, requester: r}
}

// Listen subscribes to the responses of the I/O services.
func (r *Requester) Listen() error {
	return r.Caller.Listen(PortSetDOs, PortSetAOs, PortGetDIs, PortGetAIs)
}

func (r *Requester) add(kind ioblock.Kind, b *ioblock.Block, binding Binding) {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, e := range r.blocks {
		if e.block == b {
			return
		}
	}
	r.blocks = append(r.blocks, &bound{Binding: binding, kind: kind, block: b})
}

// Name implements fx.Named.
func (r *Requester) Name() string {
	return "remoteio"
}

// Run polls every Interval until ctx is done.
func (r *Requester) Run(ctx context.Context) error {
	return fx.NewLoop(r.Name(), r.Interval).Add(fx.ControlFunc(func(cc fx.ControlContext) error {
		r.Poll(cc.Context())
		return nil
	})).Run(ctx)
}

// Poll expires stale requests and issues the requests due.
func (r *Requester) Poll(ctx context.Context) {
	r.Caller.Expire()
	r.lock.Lock()
	var due []*bound
	for _, e := range r.blocks {
		if e.inflight || !e.block.Enabled() {
			continue
		}
		if !e.kind.IsInput() && !e.block.Dirty() {
			continue
		}
		e.inflight = true
		due = append(due, e)
	}
	r.lock.Unlock()
	for _, e := range due {
		if err := r.request(e); err != nil {
			glog.Errorf("%s %s: request failed: %v", e.kind, e.Binding, err)
			r.done(e)
		}
	}
}

func (r *Requester) done(e *bound) {
	r.lock.Lock()
	e.inflight = false
	r.lock.Unlock()
}

func (r *Requester) request(e *bound) error {
	port := PortOf(e.kind)
	ioType := e.kind.IOType()
	if e.kind.IsInput() {
		req := &GetInputsRequest{Index: e.Start, Count: uint8(e.block.Len())}
		glog.V(2).Infof("<- %s%d-%d@%d = ?", e.kind, e.Start, int(e.Start)+e.block.Len()-1, e.Node)
		_, err := r.Caller.Call(e.Node, port, req.Encode(), func(resp *transfer.Transfer, err error) {
			defer r.done(e)
			if err != nil {
				glog.V(1).Infof("%s %s: %v", e.kind, e.Binding, err)
				return
			}
			r.applyInputs(e, resp)
		})
		return err
	}
	values, gen := e.block.Snapshot()
	req := &SetOutputsRequest{Index: e.Start, Values: values}
	glog.V(2).Infof("<- %s%d-%d@%d = %v", e.kind, e.Start, int(e.Start)+len(values)-1, e.Node, values)
	_, err := r.Caller.Call(e.Node, port, req.Encode(ioType), func(resp *transfer.Transfer, err error) {
		defer r.done(e)
		if err != nil {
			glog.V(1).Infof("%s %s: %v", e.kind, e.Binding, err)
			return
		}
		r.applyOutputsAck(e, gen, resp)
	})
	return err
}

func (r *Requester) applyInputs(e *bound, resp *transfer.Transfer) {
	msg, err := DecodeGetInputsResponse(e.kind.IOType(), resp.Payload)
	if err != nil {
		glog.Warningf("%s %s: invalid response: %v", e.kind, e.Binding, err)
		return
	}
	if msg.Result != ResultOk {
		glog.Errorf("can't get %s %s-%d: %s", e.kind, e.Binding, int(e.Start)+e.block.Len(), msg.Result)
		return
	}
	if msg.Index != e.Start || len(msg.Values) != e.block.Len() {
		glog.Warningf("%s %s: %v", e.kind, e.Binding, ErrUnexpectedResponse)
		return
	}
	glog.V(2).Infof("-> %s%d@%d = %v", e.kind, e.Start, e.Node, msg.Values)
	e.block.Store(msg.Values)
}

func (r *Requester) applyOutputsAck(e *bound, gen uint64, resp *transfer.Transfer) {
	msg, err := DecodeSetOutputsResponse(resp.Payload)
	if err != nil {
		glog.Warningf("%s %s: invalid response: %v", e.kind, e.Binding, err)
		return
	}
	if msg.Result != ResultOk {
		glog.Errorf("can't set %s %s: %s", e.kind, e.Binding, msg.Result)
		return
	}
	if msg.Index != e.Start {
		glog.Warningf("%s %s: %v", e.kind, e.Binding, ErrUnexpectedResponse)
		return
	}
	// values changed while in flight go out with the next poll
	e.block.ClearDirtyIf(gen)
}

// Driver serves a block from a peer. Transfers happen on the requester's
// poll, so Read and Write only validate.
type Driver struct {
	Binding
	requester *Requester
}

// Type implements ioblock.Driver.
func (d *Driver) Type() ioblock.DriverType {
	return ioblock.DriverRemote
}

// Init implements ioblock.Driver.
func (d *Driver) Init(ctx context.Context, kind ioblock.Kind, b *ioblock.Block) error {
	if !d.Node.IsValid() {
		return fmt.Errorf("invalid node id %d", d.Node)
	}
	if max := MaxValues(kind.IOType()); b.Len() > max {
		return fmt.Errorf("%d points, at most %d: %w", b.Len(), max, ErrTooManyValues)
	}
	if int(d.Start)+b.Len() > 256 {
		return fmt.Errorf("range %s+%d out of addressable points", d.Binding, b.Len())
	}
	d.requester.add(kind, b, d.Binding)
	return nil
}

// Read implements ioblock.Driver. Inputs arrive asynchronously.
func (d *Driver) Read(ctx context.Context, kind ioblock.Kind, b *ioblock.Block) error {
	return nil
}

// Write implements ioblock.Driver. Dirty outputs are sent on the next poll.
func (d *Driver) Write(ctx context.Context, kind ioblock.Kind, b *ioblock.Block) error {
	return nil
}

// DefersWrites implements ioblock.Deferring.
func (d *Driver) DefersWrites() bool {
	return true
}
