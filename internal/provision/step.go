// Package provision runs an ordered list of steps with fail-fast error handling.
//
// Each step either completes, is skipped because its Satisfied check reports
// the work as already done, is tolerated because its error only means the
// work was done before, or fails. The first failure stops the run; steps
// after it are never started.
package provision

import (
	"context"
	"fmt"
	"time"
)

// Step is one idempotent unit of provisioning work
type Step struct {
	// Name labels the step in output, logs and errors.
	Name string

	// Action performs the work.
	Action func(ctx context.Context) error

	// Satisfied, if set, reports whether the work is already done. A satisfied
	// step is skipped without running Action.
	Satisfied func(ctx context.Context) (bool, error)

	// Tolerate, if set, classifies an Action error as benign.
	Tolerate func(err error) bool

	// Describe, if set, returns the detail shown by dry runs (usually the command line).
	Describe func() string
}

// Status is the outcome of a step
type Status string

const (
	StatusPending   Status = "pending"
	StatusDone      Status = "done"
	StatusSkipped   Status = "skipped"
	StatusTolerated Status = "tolerated"
	StatusFailed    Status = "failed"
)

// Result records what happened to one step
type Result struct {
	Index    int
	Name     string
	Status   Status
	Duration time.Duration
	Err      error
}

// StepError reports the step that aborted a run
type StepError struct {
	Index int // 1-based
	Name  string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s) failed: %v", e.Index, e.Name, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
