package framework

import (
	"fmt"
	"strings"
)

// AggregatedError aggregates multiple errors.
type AggregatedError struct {
	Errors []error
}

// Error implements error.
func (e *AggregatedError) Error() string {
	switch len(e.Errors) {
	case 0:
		return ""
	case 1:
		return e.Errors[0].Error()
	}
	msg := make([]string, len(e.Errors)+1)
	msg[0] = fmt.Sprintf("%d errors:", len(e.Errors))
	for n, err := range e.Errors {
		msg[n+1] = "  " + err.Error()
	}
	return strings.Join(msg, "\n")
}

// Unwrap exposes the aggregated errors to errors.Is and errors.As.
func (e *AggregatedError) Unwrap() []error {
	return e.Errors
}

// Add adds errors to be aggregated. nil will be skipped.
func (e *AggregatedError) Add(errs ...error) *AggregatedError {
	for _, err := range errs {
		if err != nil {
			e.Errors = append(e.Errors, err)
		}
	}
	return e
}

// Aggregate returns aggregated error if any error happened.
func (e *AggregatedError) Aggregate() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// TaskError tells which task failed.
type TaskError struct {
	Task string
	Err  error
}

// Error implements error.
func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s: %v", e.Task, e.Err)
}

// Unwrap returns the task's error.
func (e *TaskError) Unwrap() error {
	return e.Err
}
