// Package sparkplug publishes the node's I/O blocks as a Sparkplug B edge
// node over MQTT.
package sparkplug

import (
	"github.com/golang/protobuf/proto"
)

// DataType is a Sparkplug B metric data type.
type DataType uint32

// Metric data types used by the node.
const (
	TypeUInt16  DataType = 6
	TypeUInt32  DataType = 7
	TypeUInt64  DataType = 8
	TypeBoolean DataType = 11
)

func (t DataType) String() string {
	switch t {
	case TypeUInt16:
		return "UInt16"
	case TypeUInt32:
		return "UInt32"
	case TypeUInt64:
		return "UInt64"
	case TypeBoolean:
		return "Boolean"
	}
	return "Unknown"
}

// Payload is the Sparkplug B payload. Only the fields the node uses are
// declared, other fields are skipped when decoding.
type Payload struct {
	Timestamp *uint64   `protobuf:"varint,1,opt,name=timestamp" json:"timestamp,omitempty"`
	Metrics   []*Metric `protobuf:"bytes,2,rep,name=metrics" json:"metrics,omitempty"`
	Seq       *uint64   `protobuf:"varint,3,opt,name=seq" json:"seq,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *Payload) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Payload) Reset() { *m = Payload{} }

// String implements proto.Message.
func (m *Payload) String() string { return proto.CompactTextString(m) }

// Metric is a Sparkplug B metric. The value fields belong to a oneof in the
// schema, at most one is set.
type Metric struct {
	Name         *string `protobuf:"bytes,1,opt,name=name" json:"name,omitempty"`
	Alias        *uint64 `protobuf:"varint,2,opt,name=alias" json:"alias,omitempty"`
	Timestamp    *uint64 `protobuf:"varint,3,opt,name=timestamp" json:"timestamp,omitempty"`
	Datatype     *uint32 `protobuf:"varint,4,opt,name=datatype" json:"datatype,omitempty"`
	IsNull       *bool   `protobuf:"varint,7,opt,name=is_null" json:"is_null,omitempty"`
	IntValue     *uint32 `protobuf:"varint,10,opt,name=int_value" json:"int_value,omitempty"`
	LongValue    *uint64 `protobuf:"varint,11,opt,name=long_value" json:"long_value,omitempty"`
	BooleanValue *bool   `protobuf:"varint,14,opt,name=boolean_value" json:"boolean_value,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *Metric) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Metric) Reset() { *m = Metric{} }

// String implements proto.Message.
func (m *Metric) String() string { return proto.CompactTextString(m) }

// GetName returns the name or empty.
func (m *Metric) GetName() string {
	if m == nil || m.Name == nil {
		return ""
	}
	return *m.Name
}

// Type returns the declared data type, 0 if absent.
func (m *Metric) Type() DataType {
	if m == nil || m.Datatype == nil {
		return 0
	}
	return DataType(*m.Datatype)
}

// Uint returns the value as an unsigned integer, booleans as 0/1. ok is
// false when no value is set.
func (m *Metric) Uint() (v uint64, ok bool) {
	switch {
	case m.BooleanValue != nil:
		if *m.BooleanValue {
			return 1, true
		}
		return 0, true
	case m.IntValue != nil:
		return uint64(*m.IntValue), true
	case m.LongValue != nil:
		return *m.LongValue, true
	}
	return 0, false
}

// NewMetric creates a metric of type t holding v, stored in the value
// field the data type maps to.
func NewMetric(name string, t DataType, v uint64) *Metric {
	m := &Metric{Name: proto.String(name), Datatype: proto.Uint32(uint32(t))}
	switch t {
	case TypeBoolean:
		m.BooleanValue = proto.Bool(v != 0)
	case TypeUInt16:
		m.IntValue = proto.Uint32(uint32(v))
	default:
		m.LongValue = proto.Uint64(v)
	}
	return m
}

// Encode serializes the payload.
func (m *Payload) Encode() ([]byte, error) {
	buf := proto.NewBuffer(nil)
	if err := buf.Marshal(m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodePayload parses a payload.
func DecodePayload(data []byte) (*Payload, error) {
	p := &Payload{}
	if err := proto.NewBuffer(data).Unmarshal(p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetSeq returns the sequence number or 0.
func (m *Payload) GetSeq() uint64 {
	if m == nil || m.Seq == nil {
		return 0
	}
	return *m.Seq
}

// Find returns the first metric named name.
func (m *Payload) Find(name string) *Metric {
	for _, metric := range m.Metrics {
		if metric.GetName() == name {
			return metric
		}
	}
	return nil
}
