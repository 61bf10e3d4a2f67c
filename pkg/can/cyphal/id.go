// Package cyphal carries transfers over classic CAN frames: identifier
// layout, tail bytes, multi-frame segmentation with CRC and reassembly.
package cyphal

import (
	"errors"

	"github.com/robotalks/plc.go/pkg/transfer"
)

const (
	offsetPriority = 26
	offsetSubject  = 8
	offsetService  = 14
	offsetDest     = 7

	flagService    uint32 = 1 << 25
	flagAnonymous  uint32 = 1 << 24
	flagRequest    uint32 = 1 << 24
	flagReserved23 uint32 = 1 << 23
	// bit 7 is reserved in message identifiers only.
	flagReserved07 uint32 = 1 << 7
	// bits 21 and 22 are transmitted as 1 in message identifiers.
	messageFixed   uint32 = 3 << 21

	maskNode    = 0x7f
	maskSubject = 0x1fff
	maskService = 0x1ff
)

var (
	// ErrPortOutOfRange indicates a subject or service id above its limit.
	ErrPortOutOfRange = errors.New("port id out of range")
	// ErrBadDestination indicates a service transfer without a valid peer.
	ErrBadDestination = errors.New("invalid destination node")
	// ErrAnonymous indicates the local node id is unset.
	ErrAnonymous = errors.New("anonymous node can't send")
)

// Header is the session information carried by the CAN identifier.
type Header struct {
	Priority    transfer.Priority
	Kind        transfer.Kind
	Port        transfer.PortID
	Source      transfer.NodeID
	Destination transfer.NodeID
	Anonymous   bool
}

// ID builds the 29-bit identifier.
func (h Header) ID() (uint32, error) {
	if !h.Source.IsValid() {
		return 0, ErrAnonymous
	}
	id := uint32(h.Priority&7)<<offsetPriority | uint32(h.Source)
	if h.Kind == transfer.KindMessage {
		if h.Port > transfer.SubjectIDMax {
			return 0, ErrPortOutOfRange
		}
		id |= messageFixed | uint32(h.Port)<<offsetSubject
		if h.Anonymous {
			id |= flagAnonymous
		}
		return id, nil
	}
	if h.Port > transfer.ServiceIDMax {
		return 0, ErrPortOutOfRange
	}
	if !h.Destination.IsValid() {
		return 0, ErrBadDestination
	}
	id |= flagService | uint32(h.Port)<<offsetService | uint32(h.Destination)<<offsetDest
	if h.Kind == transfer.KindRequest {
		id |= flagRequest
	}
	return id, nil
}

// ParseID decodes a 29-bit identifier. ok is false for identifiers with
// reserved bits set.
func ParseID(id uint32) (h Header, ok bool) {
	if id&flagReserved23 != 0 {
		return h, false
	}
	h.Priority = transfer.Priority(id >> offsetPriority & 7)
	h.Source = transfer.NodeID(id & maskNode)
	if id&flagService == 0 {
		if id&flagReserved07 != 0 {
			return h, false
		}
		h.Kind = transfer.KindMessage
		h.Port = transfer.PortID(id >> offsetSubject & maskSubject)
		h.Destination = transfer.NodeIDUnset
		h.Anonymous = id&flagAnonymous != 0
		return h, true
	}
	h.Kind = transfer.KindResponse
	if id&flagRequest != 0 {
		h.Kind = transfer.KindRequest
	}
	h.Port = transfer.PortID(id >> offsetService & maskService)
	h.Destination = transfer.NodeID(id >> offsetDest & maskNode)
	if h.Source == h.Destination {
		return h, false
	}
	return h, true
}
