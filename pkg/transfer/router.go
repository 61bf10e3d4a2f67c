package transfer

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
)

type subKey struct {
	kind Kind
	port PortID
}

type session struct {
	sub     Subscription
	handler Handler
	lastTID map[NodeID]seenTransfer
}

type seenTransfer struct {
	tid TransferID
	at  time.Time
}

// Router keeps the subscription table and dispatches received transfers.
// Transports embed it to implement Subscribe.
type Router struct {
	subs map[subKey]*session
	lock sync.Mutex
}

// Subscribe implements Transport.
func (r *Router) Subscribe(sub Subscription, h Handler) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.subs == nil {
		r.subs = make(map[subKey]*session)
	}
	key := subKey{kind: sub.Kind, port: sub.Port}
	if _, exist := r.subs[key]; exist {
		return ErrDuplicateSubscription
	}
	if sub.Timeout <= 0 {
		sub.Timeout = DefaultTimeout
	}
	r.subs[key] = &session{sub: sub, handler: h, lastTID: make(map[NodeID]seenTransfer)}
	return nil
}

// Subscribed returns the subscription of (kind, port) if any.
func (r *Router) Subscribed(kind Kind, port PortID) (Subscription, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	s, ok := r.subs[subKey{kind: kind, port: port}]
	if !ok {
		return Subscription{}, false
	}
	return s.sub, true
}

// Dispatch passes t to the subscribed handler. It returns false if nothing is
// subscribed or t duplicates a transfer already seen within the timeout.
func (r *Router) Dispatch(ctx context.Context, t *Transfer) bool {
	now := t.Timestamp
	if now.IsZero() {
		now = time.Now()
	}
	r.lock.Lock()
	s, ok := r.subs[subKey{kind: t.Kind, port: t.Port}]
	if !ok {
		r.lock.Unlock()
		return false
	}
	if t.RemoteNode.IsValid() {
		if seen, exist := s.lastTID[t.RemoteNode]; exist &&
			seen.tid == t.TransferID && now.Sub(seen.at) < s.sub.Timeout {
			r.lock.Unlock()
			glog.V(2).Infof("duplicate transfer dropped: %s", t)
			return false
		}
		s.lastTID[t.RemoteNode] = seenTransfer{tid: t.TransferID, at: now}
	}
	h, extent := s.handler, s.sub.Extent
	r.lock.Unlock()

	if extent > 0 && len(t.Payload) > extent {
		truncated := *t
		truncated.Payload = t.Payload[:extent]
		t = &truncated
	}
	h.HandleTransfer(ctx, t)
	return true
}
