package node

import (
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/plc.go/pkg/mqtt"
	"github.com/robotalks/plc.go/pkg/plc"
)

// Status values published on <root>status.
const (
	StatusStarting = "starting"
	StatusRunning  = "running"
	StatusPaused   = "paused"
	StatusOffline  = "offline"
)

// StatusOf maps the scheduler state to a status value.
func StatusOf(state plc.State) string {
	if state == plc.StateRunning {
		return StatusRunning
	}
	return StatusPaused
}

// StatusWill is the will marking the node offline.
func StatusWill(root string) *mqtt.Message {
	return &mqtt.Message{Topic: root + "status", Payload: []byte(StatusOffline), QoS: 1, Retain: true}
}

// StatusReporter publishes the PLC status as a retained message and takes
// pause and reset commands.
type StatusReporter struct {
	PubSub mqtt.PubSub
	Root   string
	// OnPause is called for every message on <root>pause.
	OnPause func()
	// OnReset is called for every message on <root>reset.
	OnReset func()

	lock   sync.Mutex
	status string
}

// Listen subscribes to the command topics.
func (r *StatusReporter) Listen() error {
	if err := r.PubSub.Sub(r.Root+"pause", func(string, []byte) {
		glog.Info("pause/resume requested")
		if r.OnPause != nil {
			r.OnPause()
		}
	}); err != nil {
		return err
	}
	return r.PubSub.Sub(r.Root+"reset", func(string, []byte) {
		glog.Info("reset requested")
		if r.OnReset != nil {
			r.OnReset()
		}
	})
}

// Report publishes status.
func (r *StatusReporter) Report(status string) error {
	r.lock.Lock()
	r.status = status
	r.lock.Unlock()
	return r.PubSub.Pub(r.Root+"status", []byte(status), 1, true)
}

// Republish publishes the last status again, e.g. after reconnecting.
func (r *StatusReporter) Republish() error {
	r.lock.Lock()
	status := r.status
	r.lock.Unlock()
	if status == "" {
		return nil
	}
	return r.Report(status)
}
