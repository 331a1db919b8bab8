package scheduler

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTaskFailed is matched by every *TaskExecutionError.
var ErrTaskFailed = errors.New("task failed")

// TaskExecutionError wraps the cause of a task failure: an error returned
// by the task body, a recovered panic or a staleness evaluation error such
// as a missing input.
type TaskExecutionError struct {
	Task string
	Err  error
}

func (e *TaskExecutionError) Error() string {
	return fmt.Sprintf("task '%s' failed: %v", e.Task, e.Err)
}

func (e *TaskExecutionError) Unwrap() error { return e.Err }

func (e *TaskExecutionError) Is(target error) bool {
	return target == ErrTaskFailed
}

// AggregateBuildFailure collects every task failure of a parallel build
// that failed in more than one place.
type AggregateBuildFailure struct {
	Errors []error
}

func (e *AggregateBuildFailure) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d tasks failed: %s", len(e.Errors), strings.Join(msgs, "; "))
}

func (e *AggregateBuildFailure) Unwrap() []error { return e.Errors }
