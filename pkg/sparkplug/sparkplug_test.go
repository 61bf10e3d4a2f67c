package sparkplug

import (
	"context"
	"testing"

	"github.com/golang/protobuf/proto"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/plc.go/pkg/ioblock"
	"github.com/robotalks/plc.go/pkg/mqtt"
)

func TestPayloadCodec(t *testing.T) {
	p := &Payload{
		Timestamp: proto.Uint64(1234),
		Seq:       proto.Uint64(7),
		Metrics: []*Metric{
			NewMetric("flag", TypeBoolean, 1),
			NewMetric("level", TypeUInt16, 300),
			NewMetric("count", TypeUInt32, 70000),
		},
	}
	data, err := p.Encode()
	require.NoError(t, err)
	got, err := DecodePayload(data)
	require.NoError(t, err)
	require.Equal(t, uint64(7), got.GetSeq())
	require.Len(t, got.Metrics, 3)

	cases := []struct {
		name  string
		dtype DataType
		value uint64
	}{
		{"flag", TypeBoolean, 1},
		{"level", TypeUInt16, 300},
		{"count", TypeUInt32, 70000},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m := got.Find(c.name)
			require.NotNil(t, m)
			require.Equal(t, c.dtype, m.Type())
			v, ok := m.Uint()
			require.True(t, ok)
			require.Equal(t, c.value, v)
		})
	}
	require.NotNil(t, got.Find("level").IntValue)
	require.NotNil(t, got.Find("count").LongValue)
}

type fixture struct {
	broker *mqtt.Memory
	node   *EdgeNode
	table  *ioblock.Table
	di, do *ioblock.Block
	ai     *ioblock.Block
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{broker: mqtt.NewMemory()}
	f.node = NewEdgeNode(f.broker, "plant", "plc1", 3)
	drv := &Driver{Node: f.node}
	f.di = ioblock.NewBlock(ioblock.Digital, 1, drv)
	f.di.Name = "start"
	f.do = ioblock.NewBlock(ioblock.Digital, 2, drv)
	f.do.Name = "lamp"
	f.ai = ioblock.NewBlock(ioblock.Analog, 1, drv)
	f.ai.Name = "setpoint"
	f.table = ioblock.NewTable().
		Add(ioblock.DigitalInput, f.di).
		Add(ioblock.DigitalOutput, f.do).
		Add(ioblock.AnalogInput, f.ai)
	require.NoError(t, f.table.Init(context.TODO(), ioblock.EnableAll))
	require.NoError(t, f.node.Check())
	require.NoError(t, f.node.Listen())
	return f
}

func (f *fixture) last(t *testing.T, mt MessageType) *Payload {
	msgs := f.broker.Published(Topic("plant", mt, "plc1"))
	require.NotEmpty(t, msgs)
	p, err := DecodePayload(msgs[len(msgs)-1].Payload)
	require.NoError(t, err)
	return p
}

func TestBirth(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.node.Birth())
	p := f.last(t, NBIRTH)
	require.Equal(t, uint64(0), p.GetSeq())
	for _, name := range []string{MetricRebirth, MetricReboot, MetricBdSeq, "start", "lamp/0", "lamp/1", "setpoint"} {
		require.NotNil(t, p.Find(name), name)
	}
	require.Equal(t, TypeUInt16, p.Find("setpoint").Type())
	bdSeq, _ := p.Find(MetricBdSeq).Uint()
	require.Equal(t, uint64(3), bdSeq)

	death, err := f.node.Death()
	require.NoError(t, err)
	require.Equal(t, "spBv1.0/plant/NDEATH/plc1", death.Topic)
	dp, err := DecodePayload(death.Payload)
	require.NoError(t, err)
	v, _ := dp.Find(MetricBdSeq).Uint()
	require.Equal(t, uint64(3), v)
}

func TestOutputsPublished(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.node.Birth())
	f.do.StoreAt(1, []uint16{1})
	require.NoError(t, ioblock.WriteBlock(context.TODO(), ioblock.DigitalOutput, f.do))
	require.False(t, f.do.Dirty())

	p := f.last(t, NDATA)
	require.Equal(t, uint64(1), p.GetSeq())
	require.Len(t, p.Metrics, 2)
	v, _ := p.Find("lamp/1").Uint()
	require.Equal(t, uint64(1), v)

	before := len(f.broker.Published(Topic("plant", NDATA, "plc1")))
	require.NoError(t, ioblock.WriteBlock(context.TODO(), ioblock.DigitalOutput, f.do))
	require.Len(t, f.broker.Published(Topic("plant", NDATA, "plc1")), before, "clean block not published")
}

func TestCommands(t *testing.T) {
	cmd := func(f *fixture, metrics ...*Metric) {
		data, err := (&Payload{Metrics: metrics}).Encode()
		require.NoError(t, err)
		require.NoError(t, f.broker.Pub(Topic("plant", NCMD, "plc1"), data, 0, false))
	}

	t.Run("input updated and confirmed", func(t *testing.T) {
		f := newFixture(t)
		cmd(f, NewMetric("setpoint", TypeUInt16, 42))
		require.Equal(t, uint16(42), f.ai.Value(0))
		require.True(t, f.ai.Dirty())
		v, _ := f.last(t, NDATA).Find("setpoint").Uint()
		require.Equal(t, uint64(42), v)
	})

	t.Run("output not writable", func(t *testing.T) {
		f := newFixture(t)
		cmd(f, NewMetric("lamp/0", TypeBoolean, 1))
		require.Equal(t, uint16(0), f.do.Value(0))
		require.Empty(t, f.broker.Published(Topic("plant", NDATA, "plc1")))
	})

	t.Run("rebirth", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.node.Birth())
		cmd(f, NewMetric("start", TypeBoolean, 1))
		cmd(f, NewMetric(MetricRebirth, TypeBoolean, 1))
		require.Len(t, f.broker.Published(Topic("plant", NBIRTH, "plc1")), 2)
		p := f.last(t, NBIRTH)
		require.Equal(t, uint64(0), p.GetSeq())
		v, _ := p.Find("start").Uint()
		require.Equal(t, uint64(1), v)
	})

	t.Run("reboot", func(t *testing.T) {
		f := newFixture(t)
		rebooted := false
		f.node.OnReboot = func() { rebooted = true }
		cmd(f, NewMetric(MetricReboot, TypeBoolean, 1))
		require.True(t, rebooted)
	})
}

func TestMetricLimit(t *testing.T) {
	node := NewEdgeNode(mqtt.NewMemory(), "g", "e", 0)
	drv := &Driver{Node: node}
	b1 := ioblock.NewBlock(ioblock.Digital, 10, drv)
	b1.Name = "a"
	b2 := ioblock.NewBlock(ioblock.Digital, 4, drv)
	b2.Name = "b"
	unnamed := ioblock.NewBlock(ioblock.Digital, 1, drv)
	table := ioblock.NewTable().Add(ioblock.DigitalInput, b1, b2, unnamed)
	require.Error(t, table.Init(context.TODO(), ioblock.EnableAll))
	require.True(t, b1.Enabled())
	require.False(t, b2.Enabled())
	require.False(t, unnamed.Enabled())
	require.Equal(t, ErrTooManyMetrics, node.Check())
}

func TestNewQueue(t *testing.T) {
	n := NewEdgeNode(nil, "plant", "edge1", 3)
	q, err := NewQueue("mqtt://localhost:1883/ignored/?client-id=plc", n)
	require.NoError(t, err)
	require.Empty(t, q.TopicPrefix)
	require.NotNil(t, q.OnConnect)
	require.Equal(t, q, n.PubSub)
}
