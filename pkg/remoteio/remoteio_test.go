package remoteio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/plc.go/pkg/ioblock"
	"github.com/robotalks/plc.go/pkg/ioblock/gpio"
	"github.com/robotalks/plc.go/pkg/transfer"
)

const (
	nodeA transfer.NodeID = 10
	nodeB transfer.NodeID = 20
)

// recorder keeps a copy of every transfer sent.
type recorder struct {
	transfer.Transport
	lock sync.Mutex
	sent []*transfer.Transfer
}

func (r *recorder) Send(t *transfer.Transfer) error {
	r.lock.Lock()
	r.sent = append(r.sent, t)
	r.lock.Unlock()
	return r.Transport.Send(t)
}

func (r *recorder) requests(port transfer.PortID) []*transfer.Transfer {
	r.lock.Lock()
	defer r.lock.Unlock()
	var found []*transfer.Transfer
	for _, t := range r.sent {
		if t.Kind == transfer.KindRequest && t.Port == port {
			found = append(found, t)
		}
	}
	return found
}

type fixture struct {
	ctx       context.Context
	requester *Requester
	sent      *recorder
	local     *ioblock.Table
	remote    *ioblock.Table
	bank      *gpio.Bank
	server    *Server
}

// newFixture wires node A, holding remote-bound blocks, to node B serving
// them from gpio pins.
func newFixture(t *testing.T, localBlocks func(*Requester) *ioblock.Table) *fixture {
	ctx, cancel := context.WithCancel(context.TODO())
	t.Cleanup(cancel)
	network := transfer.NewNetwork()
	epA, epB := network.Attach(nodeA), network.Attach(nodeB)
	go epA.Run(ctx)
	go epB.Run(ctx)

	f := &fixture{ctx: ctx, sent: &recorder{Transport: epA}, bank: gpio.NewBank()}
	f.remote = ioblock.NewTable().
		Add(ioblock.DigitalOutput, ioblock.NewBlock(ioblock.Digital, 4, gpio.New(f.bank, false, 0, 1, 2, 3))).
		Add(ioblock.DigitalInput, ioblock.NewBlock(ioblock.Digital, 4, gpio.New(f.bank, false, 10, 11, 12, 13))).
		Add(ioblock.AnalogInput, ioblock.NewBlock(ioblock.Analog, 2, gpio.New(f.bank, false, 20, 21)))
	require.NoError(t, f.remote.Init(ctx, ioblock.EnableAll))
	f.server = &Server{Transport: epB, Mux: &Multiplexer{Table: f.remote}, Info: NodeInfo{Name: "node-b"}}
	require.NoError(t, f.server.Listen())

	f.requester = NewRequester(NewCaller(f.sent), time.Millisecond)
	require.NoError(t, f.requester.Listen())
	f.local = localBlocks(f.requester)
	require.NoError(t, f.local.Init(ctx, ioblock.EnableAll))
	return f
}

func TestSetOutputsEndToEnd(t *testing.T) {
	f := newFixture(t, func(r *Requester) *ioblock.Table {
		return ioblock.NewTable().Add(ioblock.DigitalOutput,
			ioblock.NewBlock(ioblock.Digital, 4, r.Bind(Binding{Node: nodeB, Start: 0})))
	})
	block := f.local.Blocks(ioblock.DigitalOutput)[0]

	f.requester.Poll(f.ctx)
	require.Empty(t, f.sent.requests(PortSetDOs), "clean block isn't sent")

	block.StoreAt(2, []uint16{1})
	require.NoError(t, ioblock.WriteBlock(f.ctx, ioblock.DigitalOutput, block))
	require.True(t, block.Dirty())

	f.requester.Poll(f.ctx)
	f.requester.Poll(f.ctx)
	reqs := f.sent.requests(PortSetDOs)
	require.Len(t, reqs, 1)
	require.Equal(t, nodeB, reqs[0].RemoteNode)
	msg, err := DecodeSetOutputsRequest(ioblock.Digital, reqs[0].Payload)
	require.NoError(t, err)
	require.Equal(t, &SetOutputsRequest{Index: 0, Values: []uint16{0, 0, 1, 0}}, msg)

	require.Eventually(t, func() bool { return !block.Dirty() }, time.Second, time.Millisecond)
	require.Equal(t, uint16(1), f.bank.Level(2))
	require.Equal(t, 0, f.requester.Caller.Pending())

	require.Eventually(t, func() bool {
		f.requester.Poll(f.ctx)
		return f.requester.Caller.Pending() == 0
	}, time.Second, time.Millisecond)
	require.Len(t, f.sent.requests(PortSetDOs), 1)
}

func TestSetOutputsRejected(t *testing.T) {
	f := newFixture(t, func(r *Requester) *ioblock.Table {
		return ioblock.NewTable().Add(ioblock.DigitalOutput,
			ioblock.NewBlock(ioblock.Digital, 4, r.Bind(Binding{Node: nodeB, Start: 2})))
	})
	block := f.local.Blocks(ioblock.DigitalOutput)[0]
	block.StoreAt(0, []uint16{1})
	f.requester.Poll(f.ctx)
	require.Eventually(t, func() bool { return f.requester.Caller.Pending() == 0 }, time.Second, time.Millisecond)
	require.True(t, block.Dirty(), "BadArgument keeps the block dirty")
}

func TestGetInputsEndToEnd(t *testing.T) {
	f := newFixture(t, func(r *Requester) *ioblock.Table {
		return ioblock.NewTable().
			Add(ioblock.DigitalInput, ioblock.NewBlock(ioblock.Digital, 3, r.Bind(Binding{Node: nodeB, Start: 1}))).
			Add(ioblock.AnalogInput, ioblock.NewBlock(ioblock.Analog, 2, r.Bind(Binding{Node: nodeB, Start: 0})))
	})
	f.bank.Drive(12, 1)
	f.bank.Drive(21, 777)
	di := f.local.Blocks(ioblock.DigitalInput)[0]
	ai := f.local.Blocks(ioblock.AnalogInput)[0]

	f.requester.Poll(f.ctx)
	require.Eventually(t, func() bool { return di.Dirty() && ai.Dirty() }, time.Second, time.Millisecond)
	values, ok := di.Consume()
	require.True(t, ok)
	require.Equal(t, []uint16{0, 1, 0}, values)
	require.Equal(t, []uint16{0, 777}, ai.Values())
}

func TestRequestExpiry(t *testing.T) {
	network := transfer.NewNetwork()
	ep := network.Attach(nodeA)
	caller := NewCaller(ep)
	now := time.Now()
	caller.now = func() time.Time { return now }
	r := NewRequester(caller, time.Millisecond)
	table := ioblock.NewTable().Add(ioblock.DigitalInput,
		ioblock.NewBlock(ioblock.Digital, 2, r.Bind(Binding{Node: 99})))
	require.NoError(t, table.Init(context.TODO(), ioblock.EnableAll))

	r.Poll(context.TODO())
	require.Equal(t, 1, caller.Pending())
	r.Poll(context.TODO())
	require.Equal(t, 1, caller.Pending())

	now = now.Add(transfer.DefaultTimeout)
	r.Poll(context.TODO())
	require.Equal(t, 1, caller.Pending(), "expired request replaced by a new one")
}

func TestRemoteDriverInit(t *testing.T) {
	r := NewRequester(NewCaller(transfer.NewNetwork().Attach(nodeA)), time.Millisecond)
	cases := []struct {
		name    string
		binding Binding
		block   *ioblock.Block
		kind    ioblock.Kind
		valid   bool
	}{
		{"valid", Binding{Node: 5}, ioblock.NewBlock(ioblock.Analog, 4, nil), ioblock.AnalogOutput, true},
		{"bad node", Binding{Node: 200}, ioblock.NewBlock(ioblock.Digital, 1, nil), ioblock.DigitalInput, false},
		{"too long", Binding{Node: 5}, ioblock.NewBlock(ioblock.Analog, 5, nil), ioblock.AnalogInput, false},
		{"past addressable", Binding{Node: 5, Start: 250}, ioblock.NewBlock(ioblock.Digital, 8, nil), ioblock.DigitalInput, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := r.Bind(c.binding).Init(context.TODO(), c.kind, c.block)
			if c.valid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.TODO())
	defer cancel()
	network := transfer.NewNetwork()
	epA, epB := network.Attach(nodeA), network.Attach(nodeB)
	go epA.Run(ctx)
	go epB.Run(ctx)

	bank := gpio.NewBank()
	table := ioblock.NewTable().
		Add(ioblock.AnalogOutput, ioblock.NewBlock(ioblock.Analog, 2, gpio.New(bank, false, 1, 2)))
	require.NoError(t, table.Init(ctx, ioblock.EnableAll))
	restarted := make(chan struct{}, 1)
	server := &Server{
		Transport: epB,
		Mux:       &Multiplexer{Table: table},
		Info:      NodeInfo{Protocol: ProtocolVersion, Name: "node-b"},
		OnRestart: func() { restarted <- struct{}{} },
	}
	require.NoError(t, server.Listen())

	client, err := NewClient(NewCaller(epA))
	require.NoError(t, err)
	callCtx, callCancel := context.WithTimeout(ctx, time.Second)
	defer callCancel()

	info, err := client.GetInfo(callCtx, nodeB)
	require.NoError(t, err)
	require.Equal(t, "node-b", info.Name)
	require.Equal(t, ProtocolVersion, info.Protocol)

	require.NoError(t, client.SetOutputs(callCtx, nodeB, ioblock.AnalogOutput, 1, []uint16{300}))
	require.Equal(t, uint16(300), bank.Level(2))

	err = client.SetOutputs(callCtx, nodeB, ioblock.AnalogOutput, 1, []uint16{1, 2})
	var resultErr *ResultError
	require.True(t, errors.As(err, &resultErr))
	require.Equal(t, ResultBadArgument, resultErr.Result)

	require.NoError(t, client.Restart(callCtx, nodeB))
	<-restarted

	shortCtx, shortCancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer shortCancel()
	_, err = client.GetInfo(shortCtx, 77)
	require.Equal(t, context.DeadlineExceeded, err)
	require.Equal(t, 0, client.Caller.Pending())
}

func TestHeartbeatAndPeers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.TODO())
	defer cancel()
	network := transfer.NewNetwork()
	epA, epB := network.Attach(nodeA), network.Attach(nodeB)
	go epB.Run(ctx)

	peers := NewPeers()
	require.NoError(t, peers.Listen(epB))
	status := NewNodeStatus()
	hb := NewHeartbeater(epA, status)
	hb.now = func() time.Time { return hb.started.Add(42 * time.Second) }

	status.SetMode(ModeOperational)
	require.NoError(t, hb.Beat())
	require.Eventually(t, func() bool { return len(peers.List(0)) == 1 }, time.Second, time.Millisecond)
	peer := peers.List(time.Minute)[0]
	require.Equal(t, nodeA, peer.Node)
	require.Equal(t, uint32(42), peer.Uptime)
	require.Equal(t, ModeOperational, peer.Mode)
	require.Equal(t, transfer.TransferID(1), hb.tid)
}

func TestPollManyPeers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.TODO())
	defer cancel()
	network := transfer.NewNetwork()
	epA := network.Attach(nodeA)
	go epA.Run(ctx)

	const numPeers = transfer.TransferIDModulo
	banks := make(map[transfer.NodeID]*gpio.Bank)
	r := NewRequester(NewCaller(epA), time.Millisecond)
	require.NoError(t, r.Listen())
	local := ioblock.NewTable()
	for i := 0; i < numPeers; i++ {
		node := nodeB + transfer.NodeID(i)
		ep := network.Attach(node)
		go ep.Run(ctx)
		bank := gpio.NewBank()
		banks[node] = bank
		table := ioblock.NewTable().
			Add(ioblock.DigitalInput, ioblock.NewBlock(ioblock.Digital, 1, gpio.New(bank, false, 0)))
		require.NoError(t, table.Init(ctx, ioblock.EnableAll))
		server := &Server{Transport: ep, Mux: &Multiplexer{Table: table}}
		require.NoError(t, server.Listen())
		local.Add(ioblock.DigitalInput, ioblock.NewBlock(ioblock.Digital, 1, r.Bind(Binding{Node: node})))
	}
	require.NoError(t, local.Init(ctx, ioblock.EnableAll))

	r.Poll(ctx)
	require.Eventually(t, func() bool { return r.Caller.Pending() == 0 }, time.Second, time.Millisecond)

	banks[nodeB].Drive(0, 1)
	r.Poll(ctx)
	require.Eventually(t, func() bool { return r.Caller.Pending() == 0 }, time.Second, time.Millisecond,
		"every peer answers the second round")
	block := local.Blocks(ioblock.DigitalInput)[0]
	require.Eventually(t, func() bool { return block.Value(0) == 1 }, time.Second, time.Millisecond)
}

func TestSetOutputsTooManyValues(t *testing.T) {
	ctx, cancel := context.WithCancel(context.TODO())
	defer cancel()
	network := transfer.NewNetwork()
	epA, epB := network.Attach(nodeA), network.Attach(nodeB)
	go epA.Run(ctx)
	go epB.Run(ctx)

	bank := gpio.NewBank()
	table := ioblock.NewTable().
		Add(ioblock.AnalogOutput, ioblock.NewBlock(ioblock.Analog, 6, gpio.New(bank, false, 1, 2, 3, 4, 5, 6)))
	require.NoError(t, table.Init(ctx, ioblock.EnableAll))
	server := &Server{Transport: epB, Mux: &Multiplexer{Table: table}}
	require.NoError(t, server.Listen())
	client, err := NewClient(NewCaller(epA))
	require.NoError(t, err)

	callCtx, callCancel := context.WithTimeout(ctx, time.Second)
	defer callCancel()
	err = client.SetOutputs(callCtx, nodeB, ioblock.AnalogOutput, 0, []uint16{1, 2, 3, 4, 5, 6})
	require.Equal(t, ErrTooManyValues, err)
	require.Equal(t, []uint16{0, 0, 0, 0, 0, 0}, table.Blocks(ioblock.AnalogOutput)[0].Values())
	require.Equal(t, 0, client.Caller.Pending())

	require.NoError(t, client.SetOutputs(callCtx, nodeB, ioblock.AnalogOutput, 2, []uint16{1, 2, 3, 4}))
	require.Equal(t, uint16(4), bank.Level(6))
}

// responses records what the server answers without a peer attached.
type responses struct {
	transfer.Transport
	lock sync.Mutex
	sent []*transfer.Transfer
}

func (r *responses) Send(t *transfer.Transfer) error {
	r.lock.Lock()
	r.sent = append(r.sent, t)
	r.lock.Unlock()
	return nil
}

func TestServerRequestRules(t *testing.T) {
	table := ioblock.NewTable().
		Add(ioblock.DigitalInput, ioblock.NewBlock(ioblock.Digital, 8, gpio.New(gpio.NewBank(), false, 0, 1, 2, 3, 4, 5, 6, 7))).
		Add(ioblock.AnalogInput, ioblock.NewBlock(ioblock.Analog, 8, gpio.New(gpio.NewBank(), false, 0, 1, 2, 3, 4, 5, 6, 7))).
		Add(ioblock.AnalogOutput, ioblock.NewBlock(ioblock.Analog, 8, gpio.New(gpio.NewBank(), false, 0, 1, 2, 3, 4, 5, 6, 7)))
	require.NoError(t, table.Init(context.TODO(), ioblock.EnableAll))

	cases := []struct {
		name    string
		port    transfer.PortID
		payload []byte
		reply   bool
		index   uint8
	}{
		{"65 DIs", PortGetDIs, []byte{5, 65}, true, 5},
		{"5 AIs", PortGetAIs, []byte{1, 5}, true, 1},
		{"5 AOs", PortSetAOs, []byte{3, 5}, true, 3},
		{"truncated GetDIs", PortGetDIs, []byte{5}, false, 0},
		{"truncated SetAOs", PortSetAOs, []byte{}, false, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			sent := &responses{}
			server := &Server{Transport: sent, Mux: &Multiplexer{Table: table}}
			server.HandleTransfer(context.TODO(), &transfer.Transfer{
				Kind:       transfer.KindRequest,
				Port:       c.port,
				RemoteNode: nodeA,
				TransferID: 3,
				Payload:    c.payload,
			})
			if !c.reply {
				require.Empty(t, sent.sent)
				return
			}
			require.Len(t, sent.sent, 1)
			resp := sent.sent[0]
			require.Equal(t, transfer.KindResponse, resp.Kind)
			require.Equal(t, nodeA, resp.RemoteNode)
			require.Equal(t, transfer.TransferID(3), resp.TransferID)
			kind, _ := KindOf(c.port)
			var result Result
			var index uint8
			if kind.IsInput() {
				msg, err := DecodeGetInputsResponse(kind.IOType(), resp.Payload)
				require.NoError(t, err)
				result, index = msg.Result, msg.Index
				require.Empty(t, msg.Values)
			} else {
				msg, err := DecodeSetOutputsResponse(resp.Payload)
				require.NoError(t, err)
				result, index = msg.Result, msg.Index
			}
			require.Equal(t, ResultBadArgument, result)
			require.Equal(t, c.index, index)
		})
	}
}
