package busmon

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type chanSource chan Alert

func (s chanSource) Alerts() <-chan Alert { return s }

type fakeRecoverer struct {
	lock  sync.Mutex
	calls int
	err   error
	done  chan struct{}
}

func (r *fakeRecoverer) Recover(ctx context.Context) error {
	r.lock.Lock()
	r.calls++
	r.lock.Unlock()
	r.done <- struct{}{}
	return r.err
}

func (r *fakeRecoverer) count() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.calls
}

type harness struct {
	alerts    chanSource
	recoverer *fakeRecoverer
	timer     chan time.Time
	delays    chan time.Duration
	states    chan State
	mon       *Monitor
	errCh     chan error
	cancel    context.CancelFunc
}

func start(t *testing.T, recoverErr error) *harness {
	h := &harness{
		alerts:    make(chanSource),
		recoverer: &fakeRecoverer{err: recoverErr, done: make(chan struct{}, 4)},
		timer:     make(chan time.Time),
		delays:    make(chan time.Duration, 4),
		states:    make(chan State, 8),
		errCh:     make(chan error, 1),
	}
	h.mon = New(h.alerts, h.recoverer)
	h.mon.after = func(d time.Duration) <-chan time.Time {
		h.delays <- d
		return h.timer
	}
	h.mon.OnStateChange(func(from, to State) { h.states <- to })
	var ctx context.Context
	ctx, h.cancel = context.WithCancel(context.TODO())
	t.Cleanup(h.cancel)
	go func() { h.errCh <- h.mon.Run(ctx) }()
	return h
}

func TestBusFaultSequence(t *testing.T) {
	h := start(t, nil)

	h.alerts <- AlertErrorWarning
	h.alerts <- AlertErrorPassive
	require.Equal(t, ErrorPassive, <-h.states)
	h.alerts <- AlertBusOff
	require.Equal(t, BusOff, <-h.states)
	require.Equal(t, DefaultSettleDelay, <-h.delays)

	// no recovery before the settle delay, and only one recovery per bus-off
	h.alerts <- AlertBusOff
	h.alerts <- AlertErrorPassive
	require.Equal(t, 0, h.recoverer.count())
	require.Equal(t, BusOff, h.mon.State())

	h.timer <- time.Now()
	<-h.recoverer.done
	require.Equal(t, DefaultSettleDelay, <-h.delays)
	h.alerts <- AlertBusOff
	require.Equal(t, 1, h.recoverer.count())

	h.alerts <- AlertRecovered
	require.Equal(t, ErrorActive, <-h.states)
	require.Len(t, h.delays, 0)
}

func TestRecoveryRetriedWhileBusOff(t *testing.T) {
	h := start(t, nil)
	h.alerts <- AlertBusOff
	require.Equal(t, BusOff, <-h.states)
	<-h.delays

	for i := 1; i <= 3; i++ {
		h.timer <- time.Now()
		<-h.recoverer.done
		require.Equal(t, DefaultSettleDelay, <-h.delays)
		require.Equal(t, i, h.recoverer.count())
		require.Equal(t, BusOff, h.mon.State())
	}

	h.alerts <- AlertRecovered
	require.Equal(t, ErrorActive, <-h.states)
	require.Len(t, h.delays, 0)
}

func TestErrorActiveIgnoredWhileBusOff(t *testing.T) {
	h := start(t, nil)
	h.alerts <- AlertBusOff
	require.Equal(t, BusOff, <-h.states)
	h.alerts <- AlertErrorActive
	h.alerts <- AlertErrorWarning
	require.Equal(t, BusOff, h.mon.State())
}

func TestRecoveryFailureIsFatal(t *testing.T) {
	h := start(t, errors.New("link down"))
	h.alerts <- AlertBusOff
	<-h.delays
	h.timer <- time.Now()
	<-h.recoverer.done
	err := <-h.errCh
	require.True(t, errors.Is(err, ErrRecoveryFailed))
}

func TestStopsOnCancel(t *testing.T) {
	h := start(t, nil)
	h.cancel()
	require.Equal(t, context.Canceled, <-h.errCh)
}
