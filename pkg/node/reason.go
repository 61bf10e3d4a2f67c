package node

import (
	"errors"
	"fmt"
	"os"

	"github.com/golang/glog"
)

// Reason tells why the process halts or restarts.
type Reason int

// Halt reasons.
const (
	ReasonUnknown Reason = iota
	ReasonInitFailed
	ReasonUnreachableReached
	ReasonTaskCreation
	ReasonInitializationTimeout
)

// Restart reasons.
const (
	ReasonRemoteRestart Reason = iota + 16
	ReasonBusOffUnrecoverable
	ReasonOperatorReset
)

// ExitRestart is the exit code asking the supervisor to start the process
// again.
const ExitRestart = 75

// IsRestart tells restart reasons from halt reasons.
func (r Reason) IsRestart() bool {
	return r >= ReasonRemoteRestart
}

// ExitCode is 10 + reason for halts, ExitRestart for restarts.
func (r Reason) ExitCode() int {
	if r.IsRestart() {
		return ExitRestart
	}
	return 10 + int(r)
}

func (r Reason) String() string {
	switch r {
	case ReasonUnknown:
		return "unknown"
	case ReasonInitFailed:
		return "init failed"
	case ReasonUnreachableReached:
		return "unreachable reached"
	case ReasonTaskCreation:
		return "task creation"
	case ReasonInitializationTimeout:
		return "initialization timeout"
	case ReasonRemoteRestart:
		return "remote restart"
	case ReasonBusOffUnrecoverable:
		return "bus-off unrecoverable"
	case ReasonOperatorReset:
		return "operator reset"
	}
	return fmt.Sprintf("reason(%d)", int(r))
}

// FatalError terminates or restarts the process.
type FatalError struct {
	Reason Reason
	Err    error
}

// Fatal wraps err with reason.
func Fatal(reason Reason, err error) *FatalError {
	return &FatalError{Reason: reason, Err: err}
}

// Error implements error.
func (e *FatalError) Error() string {
	if e.Err == nil {
		return e.Reason.String()
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

// Unwrap returns the cause.
func (e *FatalError) Unwrap() error {
	return e.Err
}

// ReasonOf finds the reason carried by err, ReasonUnknown if there's none.
func ReasonOf(err error) Reason {
	var fatal *FatalError
	if errors.As(err, &fatal) {
		return fatal.Reason
	}
	return ReasonUnknown
}

var exit = os.Exit

// Die logs err, flushes the log and exits with the code of its reason.
func Die(err error) {
	reason := ReasonOf(err)
	if reason.IsRestart() {
		glog.Warningf("restarting: %v", err)
	} else {
		glog.Errorf("halted: %v", err)
	}
	glog.Flush()
	exit(reason.ExitCode())
}
