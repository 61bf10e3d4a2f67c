package remoteio

import (
	"context"

	"github.com/golang/glog"

	"github.com/robotalks/plc.go/pkg/ioblock"
	"github.com/robotalks/plc.go/pkg/transfer"
)

// Server answers the requests of peers: GetInfo, ExecuteCommand and the
// I/O services backed by the multiplexer.
type Server struct {
	Transport transfer.Transport
	Mux       *Multiplexer
	Info      NodeInfo
	// OnRestart is called after a restart command was acknowledged.
	OnRestart func()
}

// Listen subscribes to the served requests. The I/O services are only
// served when Mux is set.
func (s *Server) Listen() error {
	ports := []transfer.PortID{PortGetInfo, PortExecuteCommand}
	if s.Mux != nil {
		ports = append(ports, PortSetDOs, PortSetAOs, PortGetDIs, PortGetAIs)
	}
	for _, port := range ports {
		err := s.Transport.Subscribe(transfer.Subscription{
			Kind:   transfer.KindRequest,
			Port:   port,
			Extent: requestExtent(port),
		}, s)
		if err != nil {
			return err
		}
	}
	return nil
}

// HandleTransfer implements transfer.Handler.
func (s *Server) HandleTransfer(ctx context.Context, t *transfer.Transfer) {
	glog.V(2).Infof("<- %s", t)
	var payload []byte
	restart := false
	switch t.Port {
	case PortGetInfo:
		payload = s.Info.Encode()
	case PortExecuteCommand:
		payload, restart = s.executeCommand(t)
	default:
		kind, ok := KindOf(t.Port)
		if !ok {
			glog.Warningf("unhandled request: %s", t)
			return
		}
		if kind.IsInput() {
			payload = s.getInputs(ctx, kind, t)
		} else {
			payload = s.setOutputs(ctx, kind, t)
		}
	}
	if payload == nil {
		return
	}
	s.respond(t, payload)
	if restart && s.OnRestart != nil {
		s.OnRestart()
	}
}

func (s *Server) respond(req *transfer.Transfer, payload []byte) {
	resp := &transfer.Transfer{
		Kind:       transfer.KindResponse,
		Port:       req.Port,
		RemoteNode: req.RemoteNode,
		TransferID: req.TransferID,
		Priority:   req.Priority,
		Payload:    payload,
	}
	glog.V(2).Infof("-> %s", resp)
	if err := s.Transport.Send(resp); err != nil {
		glog.Errorf("response to %d failed: %v", req.RemoteNode, err)
	}
}

func (s *Server) setOutputs(ctx context.Context, kind ioblock.Kind, t *transfer.Transfer) []byte {
	req, err := DecodeSetOutputsRequest(kind.IOType(), t.Payload)
	switch err {
	case nil:
	case ErrTooManyValues:
		glog.Warningf("invalid length in Set%ss request from %d", kind, t.RemoteNode)
		return (&SetOutputsResponse{Result: ResultBadArgument, Index: req.Index}).Encode()
	default:
		glog.Warningf("Set%ss request from %d rejected: %v", kind, t.RemoteNode, err)
		return nil
	}
	glog.V(2).Infof("-> %s%d@%d = %v", kind, req.Index, t.RemoteNode, req.Values)
	result := s.Mux.SetOutputs(ctx, kind, int(req.Index), req.Values)
	if result != ResultOk {
		glog.Errorf("Set%ss %d+%d from %d: %s", kind, req.Index, len(req.Values), t.RemoteNode, result)
	}
	return (&SetOutputsResponse{Result: result, Index: req.Index}).Encode()
}

func (s *Server) getInputs(ctx context.Context, kind ioblock.Kind, t *transfer.Transfer) []byte {
	req, err := DecodeGetInputsRequest(kind.IOType(), t.Payload)
	switch err {
	case nil:
	case ErrTooManyValues:
		glog.Warningf("invalid length in Get%ss request from %d", kind, t.RemoteNode)
		return (&GetInputsResponse{Result: ResultBadArgument, Index: req.Index}).Encode(kind.IOType())
	default:
		glog.Warningf("Get%ss request from %d rejected: %v", kind, t.RemoteNode, err)
		return nil
	}
	result, values := s.Mux.GetInputs(ctx, kind, int(req.Index), int(req.Count))
	if result != ResultOk {
		glog.Errorf("Get%ss %d+%d from %d: %s", kind, req.Index, req.Count, t.RemoteNode, result)
	}
	return (&GetInputsResponse{Result: result, Index: req.Index, Values: values}).Encode(kind.IOType())
}

func (s *Server) executeCommand(t *transfer.Transfer) ([]byte, bool) {
	req, err := DecodeCommandRequest(t.Payload)
	if err != nil {
		glog.Warningf("ExecuteCommand request from %d rejected: %v", t.RemoteNode, err)
		return nil, false
	}
	if req.Command != CommandRestart {
		glog.Warningf("unsupported command %d from %d", req.Command, t.RemoteNode)
		return EncodeCommandResponse(CommandBadCommand), false
	}
	glog.Infof("restart requested by node %d", t.RemoteNode)
	return EncodeCommandResponse(CommandSuccess), true
}
