// Package socketcan connects to a Linux SocketCAN interface. Controller
// error frames are turned into bus monitor alerts.
package socketcan

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/robotalks/plc.go/pkg/busmon"
	"github.com/robotalks/plc.go/pkg/can"
)

// Error frame classes and controller status bits, from linux/can/error.h.
const (
	errClassCtrl      uint32 = 0x00000004
	errClassBusOff    uint32 = 0x00000040
	errClassRestarted uint32 = 0x00000100

	ctrlRxWarning byte = 0x04
	ctrlTxWarning byte = 0x08
	ctrlRxPassive byte = 0x10
	ctrlTxPassive byte = 0x20
	ctrlActive    byte = 0x40

	// ErrorMask subscribes to the classes AlertsOf understands.
	ErrorMask = errClassCtrl | errClassBusOff | errClassRestarted
)

// AlertsOf maps an error frame to bus monitor alerts. id carries the error
// flag and class bits, data[1] the controller status.
func AlertsOf(id uint32, data []byte) []busmon.Alert {
	if id&can.FlagError == 0 {
		return nil
	}
	var alerts []busmon.Alert
	if id&errClassCtrl != 0 && len(data) > 1 {
		switch status := data[1]; {
		case status&(ctrlRxPassive|ctrlTxPassive) != 0:
			alerts = append(alerts, busmon.AlertErrorPassive)
		case status&(ctrlRxWarning|ctrlTxWarning) != 0:
			alerts = append(alerts, busmon.AlertErrorWarning)
		case status&ctrlActive != 0:
			alerts = append(alerts, busmon.AlertErrorActive)
		}
	}
	if id&errClassBusOff != 0 {
		alerts = append(alerts, busmon.AlertBusOff)
	}
	if id&errClassRestarted != 0 {
		alerts = append(alerts, busmon.AlertRecovered)
	}
	return alerts
}

// Recoverer restarts a CAN interface after bus-off with iproute2.
type Recoverer struct {
	Interface string
	// Command overrides the restart command, for tests and non-iproute2
	// systems.
	Command []string
}

// Recover implements busmon.Recoverer.
func (r *Recoverer) Recover(ctx context.Context) error {
	args := r.Command
	if len(args) == 0 {
		args = []string{"ip", "link", "set", r.Interface, "type", "can", "restart"}
	}
	out, err := exec.CommandContext(ctx, args[0], args[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("restart %s: %v: %s", r.Interface, err, out)
	}
	return nil
}
