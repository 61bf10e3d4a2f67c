package framework

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLatchTimeout is returned by Latch.Wait when the timeout expires first.
var ErrLatchTimeout = errors.New("readiness timeout")

// Latch is a one-shot readiness signal. Once set it stays set.
type Latch struct {
	once sync.Once
	ch   chan struct{}
	lock sync.Mutex
}

func (l *Latch) done() chan struct{} {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.ch == nil {
		l.ch = make(chan struct{})
	}
	return l.ch
}

// Set releases all waiters.
func (l *Latch) Set() {
	ch := l.done()
	l.once.Do(func() { close(ch) })
}

// IsSet reports whether Set was called.
func (l *Latch) IsSet() bool {
	select {
	case <-l.done():
		return true
	default:
		return false
	}
}

// Done returns a chan closed by Set.
func (l *Latch) Done() <-chan struct{} {
	return l.done()
}

// Wait blocks until Set is called, ctx is done or timeout (if positive)
// expires.
func (l *Latch) Wait(ctx context.Context, timeout time.Duration) error {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case <-l.done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-expired:
		return ErrLatchTimeout
	}
}
