package remoteio

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/plc.go/pkg/framework"
	"github.com/robotalks/plc.go/pkg/transfer"
)

// DefaultHeartbeatPeriod is the heartbeat period.
const DefaultHeartbeatPeriod = time.Second

// Heartbeater broadcasts the node status.
type Heartbeater struct {
	Transport transfer.Transport
	Status    *NodeStatus
	Period    time.Duration

	started time.Time
	now     func() time.Time
	tid     transfer.TransferID
}

// NewHeartbeater creates a heartbeater, uptime counting from now.
func NewHeartbeater(t transfer.Transport, status *NodeStatus) *Heartbeater {
	return &Heartbeater{
		Transport: t,
		Status:    status,
		Period:    DefaultHeartbeatPeriod,
		started:   time.Now(),
		now:       time.Now,
	}
}

// Beat sends one heartbeat. The transfer-id only advances when the
// heartbeat was accepted by the transport.
func (h *Heartbeater) Beat() error {
	health, mode, vssc := h.Status.Get()
	msg := &Heartbeat{
		Uptime:       uint32(h.now().Sub(h.started) / time.Second),
		Health:       health,
		Mode:         mode,
		VendorStatus: vssc,
	}
	err := h.Transport.Send(&transfer.Transfer{
		Kind:       transfer.KindMessage,
		Port:       PortHeartbeat,
		RemoteNode: transfer.NodeIDUnset,
		TransferID: h.tid,
		Priority:   transfer.PriorityNominal,
		Payload:    msg.Encode(),
	})
	if err == nil {
		h.tid = h.tid.Next()
	}
	return err
}

// Name implements fx.Named.
func (h *Heartbeater) Name() string {
	return "heartbeat"
}

// Run beats every Period until ctx is done.
func (h *Heartbeater) Run(ctx context.Context) error {
	return fx.NewLoop(h.Name(), h.Period).Add(fx.ControlFunc(func(fx.ControlContext) error {
		return h.Beat()
	})).Run(ctx)
}

// Peer is the last heartbeat seen from a node.
type Peer struct {
	Node     transfer.NodeID
	LastSeen time.Time
	Heartbeat
}

// Peers tracks the heartbeats of the other nodes.
type Peers struct {
	lock  sync.Mutex
	peers map[transfer.NodeID]*Peer
}

// NewPeers creates an empty table.
func NewPeers() *Peers {
	return &Peers{peers: make(map[transfer.NodeID]*Peer)}
}

// Listen subscribes to heartbeats.
func (p *Peers) Listen(t transfer.Transport) error {
	return t.Subscribe(transfer.Subscription{
		Kind:   transfer.KindMessage,
		Port:   PortHeartbeat,
		Extent: ExtentHeartbeat,
	}, p)
}

// HandleTransfer implements transfer.Handler.
func (p *Peers) HandleTransfer(ctx context.Context, t *transfer.Transfer) {
	msg, err := DecodeHeartbeat(t.Payload)
	if err != nil {
		glog.Warningf("heartbeat from %d: %v", t.RemoteNode, err)
		return
	}
	seen := t.Timestamp
	if seen.IsZero() {
		seen = time.Now()
	}
	p.lock.Lock()
	prev, known := p.peers[t.RemoteNode]
	p.peers[t.RemoteNode] = &Peer{Node: t.RemoteNode, LastSeen: seen, Heartbeat: *msg}
	p.lock.Unlock()
	if !known || prev.Mode != msg.Mode || prev.Health != msg.Health {
		glog.Infof("node %d: health=%s mode=%s uptime=%ds", t.RemoteNode, msg.Health, msg.Mode, msg.Uptime)
	}
}

// List returns the peers seen within maxAge (all if maxAge is 0), ordered
// by node id.
func (p *Peers) List(maxAge time.Duration) []Peer {
	now := time.Now()
	p.lock.Lock()
	defer p.lock.Unlock()
	var peers []Peer
	for id := 0; id <= int(transfer.NodeIDMax); id++ {
		peer, ok := p.peers[transfer.NodeID(id)]
		if !ok || (maxAge > 0 && now.Sub(peer.LastSeen) > maxAge) {
			continue
		}
		peers = append(peers, *peer)
	}
	return peers
}
