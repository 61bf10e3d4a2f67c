package remoteio

import (
	"fmt"

	"github.com/robotalks/plc.go/pkg/dsdl"
	"github.com/robotalks/plc.go/pkg/ioblock"
)

// Health of a node reported in heartbeats.
type Health uint8

// Health values.
const (
	HealthNominal Health = iota
	HealthAdvisory
	HealthCaution
	HealthWarning
)

func (h Health) String() string {
	switch h {
	case HealthNominal:
		return "nominal"
	case HealthAdvisory:
		return "advisory"
	case HealthCaution:
		return "caution"
	case HealthWarning:
		return "warning"
	}
	return fmt.Sprintf("health(%d)", uint8(h))
}

// Mode of a node reported in heartbeats.
type Mode uint8

// Mode values.
const (
	ModeOperational Mode = iota
	ModeInitialization
	ModeMaintenance
	ModeSoftwareUpdate
)

func (m Mode) String() string {
	switch m {
	case ModeOperational:
		return "operational"
	case ModeInitialization:
		return "initialization"
	case ModeMaintenance:
		return "maintenance"
	case ModeSoftwareUpdate:
		return "software update"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// Heartbeat is broadcast periodically by every node.
type Heartbeat struct {
	Uptime       uint32
	Health       Health
	Mode         Mode
	VendorStatus uint8
}

// HeartbeatSize is the encoded size of Heartbeat.
const HeartbeatSize = 7

// Encode serializes the heartbeat.
func (h *Heartbeat) Encode() []byte {
	buf := make([]byte, HeartbeatSize)
	dsdl.EncodeField(buf, 0, 32, uint64(h.Uptime))
	dsdl.EncodeField(buf, 32, 2, uint64(h.Health))
	dsdl.EncodeField(buf, 40, 3, uint64(h.Mode))
	dsdl.EncodeField(buf, 48, 8, uint64(h.VendorStatus))
	return buf
}

// DecodeHeartbeat parses a heartbeat payload.
func DecodeHeartbeat(payload []byte) (*Heartbeat, error) {
	var fields [4]uint64
	for i, f := range [][2]int{{0, 32}, {32, 2}, {40, 3}, {48, 8}} {
		v, err := dsdl.DecodeField(payload, f[0], f[1])
		if err != nil {
			return nil, err
		}
		fields[i] = v
	}
	return &Heartbeat{
		Uptime:       uint32(fields[0]),
		Health:       Health(fields[1]),
		Mode:         Mode(fields[2]),
		VendorStatus: uint8(fields[3]),
	}, nil
}

// Version is a major.minor pair.
type Version struct {
	Major uint8
	Minor uint8
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// ProtocolVersion is reported in NodeInfo.
var ProtocolVersion = Version{Major: 1, Minor: 0}

// MaxNameLength limits NodeInfo.Name.
const MaxNameLength = 50

// NodeInfo is the GetInfo response.
type NodeInfo struct {
	Protocol    Version
	Hardware    Version
	Software    Version
	VCSRevision uint64
	UniqueID    [16]byte
	Name        string
}

const nameOffset = 240

// Encode serializes the info. Names longer than MaxNameLength are cut.
func (n *NodeInfo) Encode() []byte {
	bits := nameOffset + 8 + MaxNameLength*8 + 16
	buf := make([]byte, dsdl.BytesFor(bits))
	off := 0
	for _, v := range []Version{n.Protocol, n.Hardware, n.Software} {
		off = dsdl.EncodeField(buf, off, 8, uint64(v.Major))
		off = dsdl.EncodeField(buf, off, 8, uint64(v.Minor))
	}
	off = dsdl.EncodeField(buf, off, 64, n.VCSRevision)
	for _, b := range n.UniqueID {
		off = dsdl.EncodeField(buf, off, 8, uint64(b))
	}
	off = dsdl.EncodeVarBytes(buf, off, 8, MaxNameLength, []byte(n.Name))
	// empty software image CRC and certificate of authenticity
	off += 16
	return buf[:dsdl.BytesFor(off)]
}

// DecodeNodeInfo parses a GetInfo response.
func DecodeNodeInfo(payload []byte) (*NodeInfo, error) {
	if dsdl.Remaining(payload, 0) < nameOffset+8 {
		return nil, dsdl.ErrTruncatedPayload
	}
	n := &NodeInfo{}
	versions := []*Version{&n.Protocol, &n.Hardware, &n.Software}
	for i, v := range versions {
		v.Major = uint8(dsdl.GetUxx(payload, i*16, 8))
		v.Minor = uint8(dsdl.GetUxx(payload, i*16+8, 8))
	}
	n.VCSRevision = dsdl.GetUxx(payload, 48, 64)
	for i := range n.UniqueID {
		n.UniqueID[i] = uint8(dsdl.GetUxx(payload, 112+i*8, 8))
	}
	name, _, err := dsdl.DecodeVarBytes(payload, nameOffset, 8, MaxNameLength)
	if err != nil {
		return nil, err
	}
	n.Name = string(name)
	return n, nil
}

// SetOutputsRequest asks a peer to adopt values from point Index on.
type SetOutputsRequest struct {
	Index  uint8
	Values []uint16
}

// Encode serializes the request. Values beyond the protocol maximum are
// dropped, analog values use 16 bits each.
func (r *SetOutputsRequest) Encode(t ioblock.IOType) []byte {
	n := len(r.Values)
	if max := MaxValues(t); n > max {
		n = max
	}
	width := valueWidth(t)
	buf := make([]byte, 2+dsdl.BytesFor(n*width))
	off := dsdl.EncodeField(buf, 0, 8, uint64(r.Index))
	off = dsdl.EncodeField(buf, off, 8, uint64(n))
	if t == ioblock.Digital {
		dsdl.EncodeBitArray(buf, off, r.Values[:n])
	} else {
		dsdl.EncodeUintArray(buf, off, width, r.Values[:n])
	}
	return buf
}

// decodeRange reads the index:8 count:8 header shared by requests. A count
// above max is returned with ErrTooManyValues.
func decodeRange(payload []byte, max int) (index uint8, count int, err error) {
	var v uint64
	if v, err = dsdl.DecodeField(payload, 0, 8); err != nil {
		return
	}
	index = uint8(v)
	if v, err = dsdl.DecodeField(payload, 8, 8); err != nil {
		return
	}
	count = int(v)
	if count > max {
		err = ErrTooManyValues
	}
	return
}

// DecodeSetOutputsRequest parses a SetOutputs request. On ErrTooManyValues
// the returned request carries Index only.
func DecodeSetOutputsRequest(t ioblock.IOType, payload []byte) (*SetOutputsRequest, error) {
	index, count, err := decodeRange(payload, MaxValues(t))
	if err == ErrTooManyValues {
		return &SetOutputsRequest{Index: index}, err
	}
	if err != nil {
		return nil, err
	}
	req := &SetOutputsRequest{Index: index}
	if t == ioblock.Digital {
		req.Values, err = dsdl.DecodeBitArray(payload, 16, count)
	} else {
		req.Values, err = dsdl.DecodeUintArray(payload, 16, 16, count)
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

// SetOutputsResponse acknowledges a SetOutputs request.
type SetOutputsResponse struct {
	Result Result
	Index  uint8
}

// Encode serializes the response.
func (r *SetOutputsResponse) Encode() []byte {
	buf := make([]byte, 2)
	dsdl.EncodeField(buf, 0, 2, uint64(r.Result))
	dsdl.EncodeField(buf, 2, 8, uint64(r.Index))
	return buf
}

// DecodeSetOutputsResponse parses a SetOutputs response.
func DecodeSetOutputsResponse(payload []byte) (*SetOutputsResponse, error) {
	result, err := dsdl.DecodeField(payload, 0, 2)
	if err != nil {
		return nil, err
	}
	index, err := dsdl.DecodeField(payload, 2, 8)
	if err != nil {
		return nil, err
	}
	return &SetOutputsResponse{Result: Result(result), Index: uint8(index)}, nil
}

// GetInputsRequest asks a peer for Count values from point Index on.
type GetInputsRequest struct {
	Index uint8
	Count uint8
}

// Encode serializes the request.
func (r *GetInputsRequest) Encode() []byte {
	buf := make([]byte, 2)
	dsdl.EncodeField(buf, 0, 8, uint64(r.Index))
	dsdl.EncodeField(buf, 8, 8, uint64(r.Count))
	return buf
}

// DecodeGetInputsRequest parses a GetInputs request. ErrTooManyValues comes
// with the decoded request.
func DecodeGetInputsRequest(t ioblock.IOType, payload []byte) (*GetInputsRequest, error) {
	index, count, err := decodeRange(payload, MaxValues(t))
	if err != nil && err != ErrTooManyValues {
		return nil, err
	}
	return &GetInputsRequest{Index: index, Count: uint8(count)}, err
}

// GetInputsResponse carries the requested values.
type GetInputsResponse struct {
	Result Result
	Index  uint8
	Values []uint16
}

// valuesOffset is where the value array starts, byte aligned.
const valuesOffset = 24

// Encode serializes the response.
func (r *GetInputsResponse) Encode(t ioblock.IOType) []byte {
	n := len(r.Values)
	if max := MaxValues(t); n > max {
		n = max
	}
	width := valueWidth(t)
	buf := make([]byte, dsdl.BytesFor(valuesOffset+n*width))
	dsdl.EncodeField(buf, 0, 2, uint64(r.Result))
	dsdl.EncodeField(buf, 2, 8, uint64(r.Index))
	dsdl.EncodeField(buf, 16, 8, uint64(n))
	if t == ioblock.Digital {
		dsdl.EncodeBitArray(buf, valuesOffset, r.Values[:n])
	} else {
		dsdl.EncodeUintArray(buf, valuesOffset, width, r.Values[:n])
	}
	return buf
}

// DecodeGetInputsResponse parses a GetInputs response.
func DecodeGetInputsResponse(t ioblock.IOType, payload []byte) (*GetInputsResponse, error) {
	result, err := dsdl.DecodeField(payload, 0, 2)
	if err != nil {
		return nil, err
	}
	index, err := dsdl.DecodeField(payload, 2, 8)
	if err != nil {
		return nil, err
	}
	count, err := dsdl.DecodeField(payload, 16, 8)
	if err != nil {
		return nil, err
	}
	if int(count) > MaxValues(t) {
		return nil, ErrTooManyValues
	}
	resp := &GetInputsResponse{Result: Result(result), Index: uint8(index)}
	if t == ioblock.Digital {
		resp.Values, err = dsdl.DecodeBitArray(payload, valuesOffset, int(count))
	} else {
		resp.Values, err = dsdl.DecodeUintArray(payload, valuesOffset, 16, int(count))
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// CommandRestart is the ExecuteCommand command restarting the node.
const CommandRestart uint16 = 65535

// CommandStatus is the ExecuteCommand response status.
type CommandStatus uint8

// Command statuses.
const (
	CommandSuccess CommandStatus = iota
	CommandFailure
	CommandNotAuthorized
	CommandBadCommand
	CommandBadParameter
	CommandBadState
	CommandInternalError
)

// CommandRequest is the ExecuteCommand request.
type CommandRequest struct {
	Command   uint16
	Parameter string
}

const maxParameterLength = 255

// Encode serializes the request.
func (r *CommandRequest) Encode() []byte {
	buf := make([]byte, dsdl.BytesFor(16+8+len(r.Parameter)*8))
	off := dsdl.EncodeField(buf, 0, 16, uint64(r.Command))
	off = dsdl.EncodeVarBytes(buf, off, 8, maxParameterLength, []byte(r.Parameter))
	return buf[:dsdl.BytesFor(off)]
}

// DecodeCommandRequest parses an ExecuteCommand request.
func DecodeCommandRequest(payload []byte) (*CommandRequest, error) {
	cmd, err := dsdl.DecodeField(payload, 0, 16)
	if err != nil {
		return nil, err
	}
	param, _, err := dsdl.DecodeVarBytes(payload, 16, 8, maxParameterLength)
	if err != nil {
		return nil, err
	}
	return &CommandRequest{Command: uint16(cmd), Parameter: string(param)}, nil
}

// EncodeCommandResponse serializes the ExecuteCommand response.
func EncodeCommandResponse(status CommandStatus) []byte {
	return []byte{byte(status)}
}

// DecodeCommandResponse parses the ExecuteCommand response.
func DecodeCommandResponse(payload []byte) (CommandStatus, error) {
	v, err := dsdl.DecodeField(payload, 0, 8)
	return CommandStatus(v), err
}
