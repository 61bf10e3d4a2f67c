package cyphal

import (
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/plc.go/pkg/can"
	"github.com/robotalks/plc.go/pkg/transfer"
)

const (
	tailStart  byte = 0x80
	tailEnd    byte = 0x40
	tailToggle byte = 0x20
	tailTID    byte = 0x1f

	// payload bytes per frame, the last byte is the tail.
	frameCapacity = can.MaxDataLen - 1
	crcSize       = 2
)

// CRC16 computes CRC-16-CCITT-FALSE, the multi-frame transfer checksum.
func CRC16(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// CRC16Initial is the initial value of CRC16.
const CRC16Initial uint16 = 0xffff

// HeaderOf builds the header for an outgoing transfer from local.
func HeaderOf(t *transfer.Transfer, local transfer.NodeID) Header {
	return Header{
		Priority:    t.Priority,
		Kind:        t.Kind,
		Port:        t.Port,
		Source:      local,
		Destination: t.RemoteNode,
	}
}

// Fragment splits a transfer into frames. Payloads not fitting a single
// frame get a CRC appended and the toggle bit alternates from 1.
func Fragment(t *transfer.Transfer, local transfer.NodeID) ([]can.Frame, error) {
	id, err := HeaderOf(t, local).ID()
	if err != nil {
		return nil, err
	}
	tid := byte(t.TransferID) & tailTID
	if len(t.Payload) <= frameCapacity {
		data := make([]byte, 0, len(t.Payload)+1)
		data = append(data, t.Payload...)
		data = append(data, tailStart|tailEnd|tailToggle|tid)
		return []can.Frame{{ID: id, Extended: true, Data: data}}, nil
	}

	crc := CRC16(CRC16Initial, t.Payload)
	buf := make([]byte, 0, len(t.Payload)+crcSize)
	buf = append(buf, t.Payload...)
	buf = append(buf, byte(crc>>8), byte(crc))

	frames := make([]can.Frame, 0, (len(buf)+frameCapacity-1)/frameCapacity)
	toggle := tailToggle
	for offset := 0; offset < len(buf); offset += frameCapacity {
		end := offset + frameCapacity
		if end > len(buf) {
			end = len(buf)
		}
		tail := toggle | tid
		if offset == 0 {
			tail |= tailStart
		}
		if end == len(buf) {
			tail |= tailEnd
		}
		data := make([]byte, 0, end-offset+1)
		data = append(data, buf[offset:end]...)
		data = append(data, tail)
		frames = append(frames, can.Frame{ID: id, Extended: true, Data: data})
		toggle ^= tailToggle
	}
	return frames, nil
}

type rxKey struct {
	kind transfer.Kind
	port transfer.PortID
	node transfer.NodeID
}

type rxSession struct {
	tid     transfer.TransferID
	toggle  byte
	started time.Time
	buf     []byte
}

// Reassembler rebuilds transfers from frames, one session per
// (kind, port, source node).
type Reassembler struct {
	sessions map[rxKey]*rxSession
}

// Accept consumes the data of one frame. It returns the transfer once its
// last frame arrives. Frames out of sequence abort the session.
func (r *Reassembler) Accept(h Header, data []byte, now time.Time, timeout time.Duration) *transfer.Transfer {
	if len(data) == 0 {
		return nil
	}
	tail := data[len(data)-1]
	payload := data[:len(data)-1]
	tid := transfer.TransferID(tail & tailTID)
	start, end, toggle := tail&tailStart != 0, tail&tailEnd != 0, tail&tailToggle

	if start && end {
		if toggle == 0 {
			return nil
		}
		return r.complete(h, tid, now, append([]byte(nil), payload...))
	}
	if h.Anonymous {
		return nil
	}
	if r.sessions == nil {
		r.sessions = make(map[rxKey]*rxSession)
	}
	key := rxKey{kind: h.Kind, port: h.Port, node: h.Source}
	if start {
		if toggle == 0 || len(data) < can.MaxDataLen {
			return nil
		}
		r.sessions[key] = &rxSession{
			tid:     tid,
			toggle:  0,
			started: now,
			buf:     append([]byte(nil), payload...),
		}
		return nil
	}

	s := r.sessions[key]
	if s == nil {
		return nil
	}
	if s.tid != tid || s.toggle != toggle || now.Sub(s.started) > timeout {
		glog.V(2).Infof("cyphal: %s %d from node %d aborted", h.Kind, h.Port, h.Source)
		delete(r.sessions, key)
		return nil
	}
	if !end && len(data) < can.MaxDataLen {
		delete(r.sessions, key)
		return nil
	}
	s.buf = append(s.buf, payload...)
	s.toggle ^= tailToggle
	if !end {
		return nil
	}
	delete(r.sessions, key)
	if len(s.buf) < crcSize || CRC16(CRC16Initial, s.buf) != 0 {
		glog.Warningf("cyphal: CRC mismatch on %s %d from node %d", h.Kind, h.Port, h.Source)
		return nil
	}
	return r.complete(h, tid, s.started, s.buf[:len(s.buf)-crcSize])
}

// Pending returns the number of incomplete sessions.
func (r *Reassembler) Pending() int {
	return len(r.sessions)
}

func (r *Reassembler) complete(h Header, tid transfer.TransferID, at time.Time, payload []byte) *transfer.Transfer {
	remote := h.Source
	if h.Anonymous {
		remote = transfer.NodeIDUnset
	}
	return &transfer.Transfer{
		Kind:       h.Kind,
		Port:       h.Port,
		RemoteNode: remote,
		TransferID: tid,
		Priority:   h.Priority,
		Payload:    payload,
		Timestamp:  at,
	}
}
