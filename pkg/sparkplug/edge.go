package sparkplug

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/plc.go/pkg/ioblock"
	"github.com/robotalks/plc.go/pkg/mqtt"
)

// Namespace is the topic namespace of Sparkplug B.
const Namespace = "spBv1.0"

// MessageType is the type element of a Sparkplug topic.
type MessageType string

// Edge node message types.
const (
	NBIRTH MessageType = "NBIRTH"
	NDATA  MessageType = "NDATA"
	NCMD   MessageType = "NCMD"
	NDEATH MessageType = "NDEATH"
)

// Topic builds spBv1.0/<group>/<type>/<edge>.
func Topic(group string, t MessageType, edge string) string {
	return Namespace + "/" + group + "/" + string(t) + "/" + edge
}

// Node control metrics.
const (
	MetricRebirth = "Node Control/Rebirth"
	MetricReboot  = "Node Control/Reboot"
	MetricBdSeq   = "bdSeq"
)

// MaxMetrics limits the metrics in the birth certificate, node control and
// bdSeq included.
const MaxMetrics = 16

var (
	// ErrTooManyMetrics indicates the bound blocks exceed MaxMetrics.
	ErrTooManyMetrics = errors.New("too many sparkplug metrics")
	// ErrUnnamedBlock indicates a bound block without name.
	ErrUnnamedBlock = errors.New("sparkplug block requires a name")
)

const numControlMetrics = 3

type point struct {
	name  string
	kind  ioblock.Kind
	block *ioblock.Block
	index int
}

func (p *point) dataType() DataType {
	if p.kind.IOType() == ioblock.Digital {
		return TypeBoolean
	}
	return TypeUInt16
}

func (p *point) metric() *Metric {
	return NewMetric(p.name, p.dataType(), uint64(p.block.Value(p.index)))
}

// EdgeNode publishes bound blocks as metrics of one edge node and applies
// commands to input blocks.
type EdgeNode struct {
	PubSub mqtt.PubSub
	Group  string
	Edge   string
	// BdSeq pairs the birth certificate with the death certificate
	// registered as will.
	BdSeq uint64
	// OnReboot is called on a Node Control/Reboot command.
	OnReboot func()

	lock    sync.Mutex
	seq     uint64
	points  []*point
	byName  map[string]*point
	overrun bool
	now     func() time.Time
}

// NewEdgeNode creates an EdgeNode.
func NewEdgeNode(ps mqtt.PubSub, group, edge string, bdSeq uint64) *EdgeNode {
	return &EdgeNode{
		PubSub: ps,
		Group:  group,
		Edge:   edge,
		BdSeq:  bdSeq,
		byName: make(map[string]*point),
		now:    time.Now,
	}
}

// Death returns the death certificate to register as the MQTT will.
func (n *EdgeNode) Death() (*mqtt.Message, error) {
	payload := &Payload{
		Timestamp: timestampOf(n.now()),
		Metrics:   []*Metric{NewMetric(MetricBdSeq, TypeUInt64, n.BdSeq)},
	}
	data, err := payload.Encode()
	if err != nil {
		return nil, err
	}
	return &mqtt.Message{Topic: Topic(n.Group, NDEATH, n.Edge), Payload: data, QoS: 1}, nil
}

// Bind adds the points of block b as metrics: the block name for a single
// point, <name>/<i> otherwise.
func (n *EdgeNode) Bind(kind ioblock.Kind, b *ioblock.Block) error {
	if b.Name == "" {
		return ErrUnnamedBlock
	}
	n.lock.Lock()
	defer n.lock.Unlock()
	if numControlMetrics+len(n.points)+b.Len() > MaxMetrics {
		n.overrun = true
		return ErrTooManyMetrics
	}
	for i := 0; i < b.Len(); i++ {
		name := b.Name
		if b.Len() > 1 {
			name += "/" + strconv.Itoa(i)
		}
		if _, exist := n.byName[name]; exist {
			return fmt.Errorf("duplicated sparkplug metric %q", name)
		}
		p := &point{name: name, kind: kind, block: b, index: i}
		n.points = append(n.points, p)
		n.byName[name] = p
	}
	glog.V(1).Infof("sparkplug: %s block %q bound", kind, b.Name)
	return nil
}

// Check fails if any block was rejected for exceeding MaxMetrics.
func (n *EdgeNode) Check() error {
	n.lock.Lock()
	defer n.lock.Unlock()
	if n.overrun {
		return ErrTooManyMetrics
	}
	return nil
}

// Listen subscribes to the commands of the edge node.
func (n *EdgeNode) Listen() error {
	return n.PubSub.Sub(Topic(n.Group, NCMD, n.Edge), n.handleCommand)
}

// Birth publishes the birth certificate with all metrics. The sequence
// number restarts from 0.
func (n *EdgeNode) Birth() error {
	n.lock.Lock()
	n.seq = 0
	points := append([]*point(nil), n.points...)
	n.lock.Unlock()

	metrics := []*Metric{
		NewMetric(MetricRebirth, TypeBoolean, 0),
		NewMetric(MetricReboot, TypeBoolean, 0),
		NewMetric(MetricBdSeq, TypeUInt64, n.BdSeq),
	}
	for _, p := range points {
		metrics = append(metrics, p.metric())
	}
	glog.Infof("sparkplug: %s/%s birth with %d metrics", n.Group, n.Edge, len(metrics))
	return n.publish(NBIRTH, metrics)
}

// PublishBlock publishes the current values of block b, one metric per
// point.
func (n *EdgeNode) PublishBlock(b *ioblock.Block) error {
	var metrics []*Metric
	n.lock.Lock()
	for _, p := range n.points {
		if p.block == b {
			metrics = append(metrics, p.metric())
		}
	}
	n.lock.Unlock()
	if len(metrics) == 0 {
		return nil
	}
	return n.publish(NDATA, metrics)
}

func (n *EdgeNode) publish(t MessageType, metrics []*Metric) error {
	n.lock.Lock()
	seq := n.seq
	n.seq = (n.seq + 1) % 256
	n.lock.Unlock()

	ts := timestampOf(n.now())
	payload := &Payload{Timestamp: ts, Metrics: metrics, Seq: &seq}
	data, err := payload.Encode()
	if err != nil {
		return err
	}
	glog.V(2).Infof("sparkplug: %s seq=%d metrics=%d", t, seq, len(metrics))
	return n.PubSub.Pub(Topic(n.Group, t, n.Edge), data, 0, false)
}

func (n *EdgeNode) handleCommand(topic string, data []byte) {
	payload, err := DecodePayload(data)
	if err != nil {
		glog.Warningf("sparkplug: bad command payload: %v", err)
		return
	}
	var confirmed []*Metric
	for _, m := range payload.Metrics {
		v, ok := m.Uint()
		if !ok {
			glog.Warningf("sparkplug: command %q without value", m.GetName())
			continue
		}
		switch name := m.GetName(); name {
		case MetricRebirth:
			if v != 0 {
				if err := n.Birth(); err != nil {
					glog.Errorf("sparkplug: rebirth: %v", err)
				}
			}
		case MetricReboot:
			if v != 0 && n.OnReboot != nil {
				glog.Info("sparkplug: reboot requested")
				n.OnReboot()
			}
		default:
			n.lock.Lock()
			p := n.byName[name]
			n.lock.Unlock()
			if p == nil || !p.kind.IsInput() {
				glog.Warningf("sparkplug: command to unknown or output metric %q", name)
				continue
			}
			if p.block.StoreAt(p.index, []uint16{uint16(v)}) {
				glog.V(3).Infof("sparkplug: %s = %d", name, v)
			}
			confirmed = append(confirmed, p.metric())
		}
	}
	if len(confirmed) > 0 {
		if err := n.publish(NDATA, confirmed); err != nil {
			glog.Errorf("sparkplug: confirm command: %v", err)
		}
	}
}

func timestampOf(t time.Time) *uint64 {
	ms := uint64(t.UnixNano() / int64(time.Millisecond))
	return &ms
}

// Driver is the ioblock driver of Sparkplug-bound blocks. Input values
// arrive as commands, output values are published when dirty.
type Driver struct {
	Node *EdgeNode
}

// Type implements ioblock.Driver.
func (d *Driver) Type() ioblock.DriverType {
	return ioblock.DriverSparkplug
}

// Init implements ioblock.Driver.
func (d *Driver) Init(ctx context.Context, kind ioblock.Kind, b *ioblock.Block) error {
	return d.Node.Bind(kind, b)
}

// Read implements ioblock.Driver.
func (d *Driver) Read(ctx context.Context, kind ioblock.Kind, b *ioblock.Block) error {
	return nil
}

// Write implements ioblock.Driver.
func (d *Driver) Write(ctx context.Context, kind ioblock.Kind, b *ioblock.Block) error {
	return d.Node.PublishBlock(b)
}
