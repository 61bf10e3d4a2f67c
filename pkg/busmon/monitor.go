// Package busmon follows the CAN controller error state and recovers the
// bus after bus-off.
package busmon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
)

// State is the fault confinement state of the controller.
type State int

// Bus states.
const (
	ErrorActive State = iota
	ErrorPassive
	BusOff
)

func (s State) String() string {
	switch s {
	case ErrorActive:
		return "error-active"
	case ErrorPassive:
		return "error-passive"
	case BusOff:
		return "bus-off"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Alert is a signal reported by the controller.
type Alert int

// Alerts.
const (
	// AlertErrorActive reports error counters back under the passive limit.
	AlertErrorActive Alert = iota
	// AlertErrorWarning reports error counters above the warning limit.
	AlertErrorWarning
	AlertErrorPassive
	AlertBusOff
	// AlertRecovered reports the controller restarted after bus-off.
	AlertRecovered
)

func (a Alert) String() string {
	switch a {
	case AlertErrorActive:
		return "error-active"
	case AlertErrorWarning:
		return "error-warning"
	case AlertErrorPassive:
		return "error-passive"
	case AlertBusOff:
		return "bus-off"
	case AlertRecovered:
		return "recovered"
	}
	return fmt.Sprintf("alert(%d)", int(a))
}

// DefaultSettleDelay covers the 128 occurrences of 11 recessive bits the
// controller needs before leaving bus-off.
const DefaultSettleDelay = 3 * time.Second

// ErrRecoveryFailed is returned by Run when recovery can't be started.
var ErrRecoveryFailed = errors.New("bus recovery failed")

// AlertSource delivers controller alerts.
type AlertSource interface {
	Alerts() <-chan Alert
}

// Recoverer restarts the controller after bus-off.
type Recoverer interface {
	Recover(ctx context.Context) error
}

// StateListener is notified on every state change.
type StateListener func(from, to State)

// Monitor drives the bus state from alerts. It runs on its own and never
// waits for other tasks.
type Monitor struct {
	Source      AlertSource
	Recoverer   Recoverer
	SettleDelay time.Duration

	after     func(time.Duration) <-chan time.Time
	lock      sync.Mutex
	state     State
	listeners []StateListener
}

// New creates a monitor with the default settle delay.
func New(source AlertSource, recoverer Recoverer) *Monitor {
	return &Monitor{
		Source:      source,
		Recoverer:   recoverer,
		SettleDelay: DefaultSettleDelay,
		after:       time.After,
	}
}

// State returns the current state.
func (m *Monitor) State() State {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.state
}

// OnStateChange registers a listener.
func (m *Monitor) OnStateChange(l StateListener) {
	m.lock.Lock()
	m.listeners = append(m.listeners, l)
	m.lock.Unlock()
}

func (m *Monitor) setState(to State) bool {
	m.lock.Lock()
	from := m.state
	m.state = to
	listeners := m.listeners
	m.lock.Unlock()
	if from == to {
		return false
	}
	glog.Infof("CAN bus %s -> %s", from, to)
	for _, l := range listeners {
		l(from, to)
	}
	return true
}

// Name implements framework.Named.
func (m *Monitor) Name() string {
	return "busmon"
}

// Run follows alerts until ctx is done. Recovery is requested again every
// settle delay until the controller reports it's back. A recovery that can't
// be started is returned as ErrRecoveryFailed.
func (m *Monitor) Run(ctx context.Context) error {
	alerts := m.Source.Alerts()
	var settled <-chan time.Time
	recovering := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case alert, ok := <-alerts:
			if !ok {
				return nil
			}
			glog.V(1).Infof("CAN alert: %s", alert)
			switch alert {
			case AlertErrorWarning:
			case AlertErrorPassive:
				if m.State() != BusOff {
					m.setState(ErrorPassive)
				}
			case AlertErrorActive, AlertRecovered:
				if m.State() == BusOff && alert != AlertRecovered {
					break
				}
				m.setState(ErrorActive)
				settled, recovering = nil, false
			case AlertBusOff:
				if m.setState(BusOff) && !recovering {
					glog.Warningf("CAN bus-off, recovering in %v", m.SettleDelay)
					settled = m.after(m.SettleDelay)
				}
			}
		case <-settled:
			if recovering {
				glog.Warning("CAN bus still off after recovery, retrying")
			} else {
				glog.Info("CAN bus recovery requested")
			}
			settled, recovering = nil, true
			if err := m.Recoverer.Recover(ctx); err != nil {
				return fmt.Errorf("%w: %v", ErrRecoveryFailed, err)
			}
			// retried unless the controller reports it's back
			settled = m.after(m.SettleDelay)
		}
	}
}
