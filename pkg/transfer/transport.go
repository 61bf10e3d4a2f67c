package transfer

import (
	"context"
	"errors"
)

var (
	// ErrBusy indicates the transmit queue can't accept the transfer now.
	ErrBusy = errors.New("transport busy")
	// ErrDuplicateSubscription indicates (kind, port) is already subscribed.
	ErrDuplicateSubscription = errors.New("duplicate subscription")
	// ErrClosed indicates the transport is no longer usable.
	ErrClosed = errors.New("transport closed")
)

// Handler is called with each fully reassembled transfer accepted by a
// subscription.
type Handler interface {
	HandleTransfer(context.Context, *Transfer)
}

// HandlerFunc is the func form of Handler.
type HandlerFunc func(context.Context, *Transfer)

// HandleTransfer implements Handler.
func (f HandlerFunc) HandleTransfer(ctx context.Context, t *Transfer) {
	f(ctx, t)
}

// Transport is the transfer-oriented CAN stack.
type Transport interface {
	// LocalNode returns the node id of this node.
	LocalNode() NodeID
	// Subscribe registers the handler for transfers matching sub.
	Subscribe(sub Subscription, h Handler) error
	// Send enqueues a transfer for transmission. It returns ErrBusy when
	// the queue is full.
	Send(t *Transfer) error
}
