// Package transfer defines the logical transfers exchanged with the CAN
// transport and the transport contract the remote I/O protocol consumes.
package transfer

import (
	"fmt"
	"time"
)

// Kind is the transfer kind.
type Kind uint8

// Transfer kinds.
const (
	KindMessage Kind = iota
	KindRequest
	KindResponse
)

func (k Kind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// PortID identifies a subject (messages) or a service (requests/responses).
type PortID uint16

// NodeID identifies a node on the bus.
type NodeID uint8

// Identifier limits.
const (
	SubjectIDMax PortID = 8191
	ServiceIDMax PortID = 511
	NodeIDMax    NodeID = 127
	// NodeIDUnset is used as remote node of broadcast messages.
	NodeIDUnset NodeID = 255
)

// IsValid checks the node id is a unicast address.
func (n NodeID) IsValid() bool {
	return n <= NodeIDMax
}

// TransferIDBits is the width of the transfer-id on the wire.
const TransferIDBits = 5

// TransferIDModulo is the number of distinct transfer-ids.
const TransferIDModulo = 1 << TransferIDBits

// TransferID is the small wrapping counter correlating responses with
// requests and detecting duplicates.
type TransferID uint8

// Next returns the following transfer-id, wrapping at TransferIDModulo.
func (t TransferID) Next() TransferID {
	return TransferID((uint8(t) + 1) % TransferIDModulo)
}

// Priority is the transfer priority, 0 being the most urgent.
type Priority uint8

// Priority levels.
const (
	PriorityExceptional Priority = iota
	PriorityImmediate
	PriorityFast
	PriorityHigh
	PriorityNominal
	PriorityLow
	PrioritySlow
	PriorityOptional

	// PriorityLevels is the number of priority levels.
	PriorityLevels = int(PriorityOptional) + 1
)

// DefaultTimeout is the transfer-id timeout: the time a request waits for
// its response, and the window in which duplicates are detected.
const DefaultTimeout = 2 * time.Second

// Transfer is one logical protocol unit. It's treated as immutable once built.
type Transfer struct {
	Kind       Kind
	Port       PortID
	RemoteNode NodeID
	TransferID TransferID
	Priority   Priority
	Payload    []byte
	// Timestamp is the reception time, zero for outgoing transfers.
	Timestamp time.Time
}

func (t *Transfer) String() string {
	return fmt.Sprintf("%s port=%d node=%d tid=%d len=%d",
		t.Kind, t.Port, t.RemoteNode, t.TransferID, len(t.Payload))
}

// Key identifies the session of a transfer. A response carries the same key
// as its request.
type Key struct {
	Node       NodeID
	Port       PortID
	TransferID TransferID
}

// KeyOf returns the session key of a transfer.
func KeyOf(t *Transfer) Key {
	return Key{Node: t.RemoteNode, Port: t.Port, TransferID: t.TransferID}
}

// Subscription registers interest in one (kind, port).
type Subscription struct {
	Kind Kind
	Port PortID
	// Extent is the maximum payload size accepted, longer payloads are
	// truncated to it.
	Extent int
	// Timeout is the transfer-id timeout for the session.
	Timeout time.Duration
}
