package framework

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
)

// DefaultInterval is used when Loop.Interval is not set.
const DefaultInterval = 100 * time.Millisecond

// Loop runs its controllers in order at a fixed interval. A failing
// controller is logged and never stops the loop.
type Loop struct {
	Interval time.Duration
	// Label names the loop in logs.
	Label string

	controllers []Controller
	lock        sync.Mutex

	wakeUpCh  chan struct{}
	iteration uint64
}

type loopIteration struct {
	ctx       context.Context
	time      time.Time
	iteration uint64
}

func (t *loopIteration) Context() context.Context { return t.ctx }
func (t *loopIteration) Time() time.Time          { return t.time }
func (t *loopIteration) Iteration() uint64        { return t.iteration }

// NewLoop creates a Loop.
func NewLoop(label string, interval time.Duration) *Loop {
	return &Loop{Label: label, Interval: interval, wakeUpCh: make(chan struct{}, 1)}
}

// Add registers controllers, run in the order added.
func (l *Loop) Add(ctls ...Controller) *Loop {
	l.lock.Lock()
	l.controllers = append(l.controllers, ctls...)
	l.lock.Unlock()
	return l
}

// Name implements Named.
func (l *Loop) Name() string {
	return l.Label
}

// Run implements Runnable.
func (l *Loop) Run(ctx context.Context) error {
	if l.wakeUpCh == nil {
		l.wakeUpCh = make(chan struct{}, 1)
	}
	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			l.RunIteration(ctx, now)
		case <-l.wakeUpCh:
			l.RunIteration(ctx, time.Now())
		}
	}
}

// TriggerNext schedules an iteration right away.
func (l *Loop) TriggerNext() {
	select {
	case l.wakeUpCh <- struct{}{}:
	default:
	}
}

// RunIteration runs all controllers once. Run calls it on every tick; it's
// exported so callers can drive the loop by hand.
func (l *Loop) RunIteration(ctx context.Context, now time.Time) {
	l.lock.Lock()
	ctls := l.controllers
	iter := &loopIteration{ctx: ctx, time: now, iteration: l.iteration}
	l.iteration++
	l.lock.Unlock()
	for _, ctl := range ctls {
		if err := ctl.Control(iter); err != nil {
			glog.Errorf("%s: controller error: %v", l.Label, err)
		}
	}
}
