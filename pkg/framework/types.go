// Package framework provides the task plumbing shared by the node: runnable
// tasks, a runner collecting their errors, fixed-period loops and readiness
// latches.
package framework

import (
	"context"
	"time"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background tasks.
type Runnable interface {
	Run(context.Context) error
}

// RunFunc is the func form of Runnable.
type RunFunc func(context.Context) error

// Run implements Runnable.
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Controller is one step executed on every iteration of a Loop.
type Controller interface {
	Control(ControlContext) error
}

// ControlFunc is the func form of Controller.
type ControlFunc func(ControlContext) error

// Control implements Controller.
func (f ControlFunc) Control(cc ControlContext) error {
	return f(cc)
}

// ControlContext describes the current loop iteration.
type ControlContext interface {
	// Context retrieves context.Context.
	Context() context.Context
	// Time is the wall time the iteration started.
	Time() time.Time
	// Iteration counts iterations from 0.
	Iteration() uint64
}
