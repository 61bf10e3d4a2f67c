package remoteio

import (
	"errors"
	"fmt"
)

var (
	// ErrNoReply indicates a request expired without response.
	ErrNoReply = errors.New("no reply")
	// ErrTooManyValues indicates a count above the protocol maximum.
	ErrTooManyValues = errors.New("too many values")
	// ErrUnexpectedResponse indicates a response not matching its request.
	ErrUnexpectedResponse = errors.New("unexpected response")
)

// ResultError is a non-Ok result returned by a peer.
type ResultError struct {
	Result Result
}

// Error implements error.
func (e *ResultError) Error() string {
	return fmt.Sprintf("remote result: %s", e.Result)
}

// CommandError is a non-success status of ExecuteCommand.
type CommandError struct {
	Status CommandStatus
}

// Error implements error.
func (e *CommandError) Error() string {
	return fmt.Sprintf("command status: %d", e.Status)
}
