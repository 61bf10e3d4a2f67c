// Package remoteio implements the remote I/O protocol: point-range
// SetOutputs/GetInputs exchanges with peer nodes, node heartbeat and info,
// and the multiplexer mapping a request onto the local blocks.
package remoteio

import (
	"fmt"

	"github.com/robotalks/plc.go/pkg/ioblock"
	"github.com/robotalks/plc.go/pkg/transfer"
)

// Port IDs.
const (
	PortHeartbeat      transfer.PortID = 7509
	PortGetInfo        transfer.PortID = 430
	PortExecuteCommand transfer.PortID = 435
	PortSetDOs         transfer.PortID = 200
	PortSetAOs         transfer.PortID = 201
	PortGetDIs         transfer.PortID = 210
	PortGetAIs         transfer.PortID = 211
)

// Maximum number of values in one request.
const (
	MaxDigitalValues = 64
	MaxAnalogValues  = 4
)

// Payload extents.
const (
	ExtentHeartbeat          = 12
	ExtentGetInfoRequest     = 0
	ExtentGetInfoResponse    = 448
	ExtentCommandRequest     = 300
	ExtentCommandResponse    = 48
	ExtentSetOutputsRequest  = 21
	ExtentSetOutputsResponse = 7
	ExtentGetInputsRequest   = 7
	ExtentGetInputsResponse  = 21
)

// PortOf returns the service port serving kind.
func PortOf(kind ioblock.Kind) transfer.PortID {
	switch kind {
	case ioblock.DigitalInput:
		return PortGetDIs
	case ioblock.DigitalOutput:
		return PortSetDOs
	case ioblock.AnalogInput:
		return PortGetAIs
	}
	return PortSetAOs
}

// KindOf is the inverse of PortOf.
func KindOf(port transfer.PortID) (ioblock.Kind, bool) {
	switch port {
	case PortGetDIs:
		return ioblock.DigitalInput, true
	case PortSetDOs:
		return ioblock.DigitalOutput, true
	case PortGetAIs:
		return ioblock.AnalogInput, true
	case PortSetAOs:
		return ioblock.AnalogOutput, true
	}
	return 0, false
}

// MaxValues returns the protocol limit of values per request.
func MaxValues(t ioblock.IOType) int {
	if t == ioblock.Digital {
		return MaxDigitalValues
	}
	return MaxAnalogValues
}

func valueWidth(t ioblock.IOType) int {
	if t == ioblock.Digital {
		return 1
	}
	return 16
}

// requestExtent and responseExtent give the accepted payload size per
// service port.
func requestExtent(port transfer.PortID) int {
	switch port {
	case PortGetInfo:
		return ExtentGetInfoRequest
	case PortExecuteCommand:
		return ExtentCommandRequest
	case PortSetDOs, PortSetAOs:
		return ExtentSetOutputsRequest
	}
	return ExtentGetInputsRequest
}

func responseExtent(port transfer.PortID) int {
	switch port {
	case PortGetInfo:
		return ExtentGetInfoResponse
	case PortExecuteCommand:
		return ExtentCommandResponse
	case PortSetDOs, PortSetAOs:
		return ExtentSetOutputsResponse
	}
	return ExtentGetInputsResponse
}

// Result is the outcome of a SetOutputs/GetInputs request.
type Result uint8

// Results.
const (
	ResultOk Result = iota
	ResultBadArgument
	ResultHardwareError
)

func (r Result) String() string {
	switch r {
	case ResultOk:
		return "ok"
	case ResultBadArgument:
		return "bad argument"
	case ResultHardwareError:
		return "hardware error"
	}
	return fmt.Sprintf("result(%d)", uint8(r))
}
