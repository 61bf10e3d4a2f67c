package remoteio

import (
	"context"

	"github.com/robotalks/plc.go/pkg/ioblock"
	"github.com/robotalks/plc.go/pkg/transfer"
)

// Client issues one request at a time and waits for the response. It's
// used by operator tools.
type Client struct {
	Caller *Caller
}

// NewClient creates a client listening to all service responses.
func NewClient(caller *Caller) (*Client, error) {
	err := caller.Listen(PortGetInfo, PortExecuteCommand,
		PortSetDOs, PortSetAOs, PortGetDIs, PortGetAIs)
	if err != nil {
		return nil, err
	}
	return &Client{Caller: caller}, nil
}

type reply struct {
	t   *transfer.Transfer
	err error
}

func (c *Client) do(ctx context.Context, node transfer.NodeID, port transfer.PortID, payload []byte) (*transfer.Transfer, error) {
	ch := make(chan reply, 1)
	key, err := c.Caller.Call(node, port, payload, func(t *transfer.Transfer, err error) {
		ch <- reply{t: t, err: err}
	})
	if err != nil {
		return nil, err
	}
	select {
	case r := <-ch:
		return r.t, r.err
	case <-ctx.Done():
		c.Caller.Cancel(key)
		return nil, ctx.Err()
	}
}

// GetInfo queries the identity of node.
func (c *Client) GetInfo(ctx context.Context, node transfer.NodeID) (*NodeInfo, error) {
	resp, err := c.do(ctx, node, PortGetInfo, nil)
	if err != nil {
		return nil, err
	}
	return DecodeNodeInfo(resp.Payload)
}

// GetInputs reads count input points of kind from index on.
func (c *Client) GetInputs(ctx context.Context, node transfer.NodeID, kind ioblock.Kind, index, count uint8) ([]uint16, error) {
	req := &GetInputsRequest{Index: index, Count: count}
	resp, err := c.do(ctx, node, PortOf(kind), req.Encode())
	if err != nil {
		return nil, err
	}
	msg, err := DecodeGetInputsResponse(kind.IOType(), resp.Payload)
	if err != nil {
		return nil, err
	}
	if msg.Result != ResultOk {
		return nil, &ResultError{Result: msg.Result}
	}
	if msg.Index != index {
		return nil, ErrUnexpectedResponse
	}
	return msg.Values, nil
}

// SetOutputs writes output points of kind from index on. More values than
// one request carries fail with ErrTooManyValues.
func (c *Client) SetOutputs(ctx context.Context, node transfer.NodeID, kind ioblock.Kind, index uint8, values []uint16) error {
	if len(values) > MaxValues(kind.IOType()) {
		return ErrTooManyValues
	}
	req := &SetOutputsRequest{Index: index, Values: values}
	resp, err := c.do(ctx, node, PortOf(kind), req.Encode(kind.IOType()))
	if err != nil {
		return err
	}
	msg, err := DecodeSetOutputsResponse(resp.Payload)
	if err != nil {
		return err
	}
	if msg.Result != ResultOk {
		return &ResultError{Result: msg.Result}
	}
	return nil
}

// Restart asks node to restart.
func (c *Client) Restart(ctx context.Context, node transfer.NodeID) error {
	req := &CommandRequest{Command: CommandRestart}
	resp, err := c.do(ctx, node, PortExecuteCommand, req.Encode())
	if err != nil {
		return err
	}
	status, err := DecodeCommandResponse(resp.Payload)
	if err != nil {
		return err
	}
	if status != CommandSuccess {
		return &CommandError{Status: status}
	}
	return nil
}
