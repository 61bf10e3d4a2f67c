// Package plc runs the scan cycle: pull inputs into the program image, run
// the program, push changed outputs back through the block drivers.
package plc

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/plc.go/pkg/framework"
	"github.com/robotalks/plc.go/pkg/ioblock"
)

// State is the run state of the scheduler.
type State int

// Scheduler states.
const (
	StatePaused State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "paused"
}

// StateListener is notified on every SetState.
type StateListener func(State)

// DefaultTickPeriod is used when the program doesn't declare one.
const DefaultTickPeriod = 10 * time.Millisecond

// ErrStartTimeout is returned by Run if no run command arrives in time.
var ErrStartTimeout = errors.New("plc not started in time")

// Scheduler executes Program on a fixed period over the blocks of Table.
type Scheduler struct {
	Table   *ioblock.Table
	Program Program
	// StartTimeout bounds the wait for the first run command, 0 waits
	// forever.
	StartTimeout time.Duration

	image  *Image
	period time.Duration
	clock  Clock
	tick   uint64

	lock        sync.Mutex
	state       State
	listeners   []StateListener
	initialized fx.Latch
	started     fx.Latch
}

// New creates a scheduler. program may be nil for an I/O-only node, in
// which case all blocks are enabled.
func New(table *ioblock.Table, program Program) *Scheduler {
	return &Scheduler{Table: table, Program: program}
}

// Init initializes the program, enables the blocks it uses and initializes
// their drivers. Blocks failing to initialize are disabled and logged.
func (s *Scheduler) Init(ctx context.Context) error {
	s.image = NewImage(s.Table)
	enable := ioblock.EnableAll
	s.period = DefaultTickPeriod
	if s.Program != nil {
		if err := s.Program.Init(s.image); err != nil {
			return err
		}
		if p := s.Program.TickPeriod(); p > 0 {
			s.period = p
		}
		enable = s.image.Wired
	}
	if err := s.Table.Init(ctx, enable); err != nil {
		glog.Errorf("I/O init: %v", err)
	}
	glog.Infof("plc initialized, tick period %v", s.period)
	s.initialized.Set()
	return nil
}

// Initialized is set once Init completes.
func (s *Scheduler) Initialized() *fx.Latch {
	return &s.initialized
}

// Image returns the program image, valid after Init.
func (s *Scheduler) Image() *Image {
	return s.image
}

// Period returns the tick period, valid after Init.
func (s *Scheduler) Period() time.Duration {
	return s.period
}

// Clock returns the logical clock. Only safe from the scheduler task or
// when the scheduler isn't running.
func (s *Scheduler) Clock() Clock {
	return s.clock
}

// Tick returns the number of ticks so far.
func (s *Scheduler) Tick() uint64 {
	return s.tick
}

// OnStateChange registers a listener.
func (s *Scheduler) OnStateChange(l StateListener) {
	s.lock.Lock()
	s.listeners = append(s.listeners, l)
	s.lock.Unlock()
}

// State returns the current state.
func (s *Scheduler) State() State {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state
}

// SetState switches between running and paused and notifies listeners.
func (s *Scheduler) SetState(state State) {
	s.lock.Lock()
	s.state = state
	listeners := s.listeners
	s.lock.Unlock()
	if state == StateRunning {
		s.started.Set()
	}
	glog.Infof("plc %s", state)
	for _, l := range listeners {
		l(state)
	}
}

// Toggle flips the state and returns the new one.
func (s *Scheduler) Toggle() State {
	s.lock.Lock()
	state := StateRunning
	if s.state == StateRunning {
		state = StatePaused
	}
	s.lock.Unlock()
	s.SetState(state)
	return state
}

// Name implements fx.Named.
func (s *Scheduler) Name() string {
	return "plc"
}

// Run waits for the first run command then ticks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.initialized.Wait(ctx, 0); err != nil {
		return err
	}
	if err := s.started.Wait(ctx, s.StartTimeout); err != nil {
		if err == fx.ErrLatchTimeout {
			return ErrStartTimeout
		}
		return err
	}
	loop := fx.NewLoop(s.Name(), s.period).Add(fx.ControlFunc(func(cc fx.ControlContext) error {
		s.Step(cc.Context())
		return nil
	}))
	return loop.Run(ctx)
}

// Step executes one tick. Time advances even when paused.
func (s *Scheduler) Step(ctx context.Context) {
	s.clock.Advance(s.period)
	s.tick++
	if s.State() != StateRunning || s.Program == nil {
		return
	}
	glog.V(3).Infof("tick=%d time=%v", s.tick, s.clock)
	s.pullInputs(ctx)
	s.Program.Run(s.tick, s.clock)
	s.pushOutputs(ctx)
}

func (s *Scheduler) pullInputs(ctx context.Context) {
	for _, kind := range []ioblock.Kind{ioblock.DigitalInput, ioblock.AnalogInput} {
		s.Table.Each(kind, func(idx, start int, b *ioblock.Block) {
			if !b.Enabled() {
				return
			}
			if err := ioblock.ReadBlock(ctx, kind, b); err != nil {
				glog.Errorf("read: %v", &ioblock.BlockError{Kind: kind, Index: idx, Err: err})
			}
			values, ok := b.Consume()
			if !ok {
				return
			}
			for i, v := range values {
				if slot := s.image.Slot(kind, start+i); slot != nil {
					slot.Value = v
					glog.V(3).Infof("%s = %d", slot.Name(), v)
				}
			}
		})
	}
}

func (s *Scheduler) pushOutputs(ctx context.Context) {
	for _, kind := range []ioblock.Kind{ioblock.DigitalOutput, ioblock.AnalogOutput} {
		s.Table.Each(kind, func(idx, start int, b *ioblock.Block) {
			if !b.Enabled() {
				return
			}
			for i := 0; i < b.Len(); i++ {
				if slot := s.image.Slot(kind, start+i); slot != nil {
					if b.StoreAt(i, []uint16{slot.Value}) {
						glog.V(3).Infof("%s = %d", slot.Name(), slot.Value)
					}
				}
			}
			if err := ioblock.WriteBlock(ctx, kind, b); err != nil {
				glog.Errorf("write: %v", &ioblock.BlockError{Kind: kind, Index: idx, Err: err})
			}
		})
	}
}
