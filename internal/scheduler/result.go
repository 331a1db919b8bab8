package scheduler

import (
	"time"

	"github.com/vk/pakego/internal/staleness"
)

// Outcome is the final state of one task in one build.
type Outcome int

const (
	// Pending tasks never started because the build halted first.
	Pending Outcome = iota
	// Skipped tasks were up to date.
	Skipped
	Succeeded
	Failed
	// Aborted tasks requested graceful early termination. They count as
	// successful.
	Aborted
	// Visited tasks were stale during a dry run and were not executed.
	Visited
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Skipped:
		return "skipped"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Aborted:
		return "aborted"
	case Visited:
		return "visited"
	}
	return "unknown"
}

// satisfied reports whether dependents of a task with this outcome may run.
func (o Outcome) satisfied() bool {
	return o == Skipped || o == Succeeded || o == Aborted || o == Visited
}

// executed reports whether the task counts as having run in this build.
func (o Outcome) executed() bool {
	return o == Succeeded || o == Aborted || o == Visited
}

// Status is the overall verdict of a build.
type Status int

const (
	StatusSucceeded Status = iota
	StatusFailed
	StatusTerminatedEarly
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusTerminatedEarly:
		return "terminated early"
	}
	return "unknown"
}

// TaskResult records what happened to one task.
type TaskResult struct {
	Name    string
	Outcome Outcome
	// Reason is the staleness verdict that led to the outcome.
	Reason staleness.Reason
	// Err is a *TaskExecutionError for failed tasks.
	Err      error
	Output   string
	Started  time.Time
	Finished time.Time
}

// Duration is how long the task body ran. Zero for tasks that did not run.
func (r TaskResult) Duration() time.Duration {
	if r.Started.IsZero() || r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// BuildResult is the report of one Run.
type BuildResult struct {
	ID     string
	Status Status
	// Tasks holds one entry per task of the closure, in topological order.
	Tasks []TaskResult
	// Completed lists executed tasks in the order they finished.
	Completed []string
	Failed    []string
	// Unexecuted lists tasks that never started because the build halted.
	Unexecuted []string
	// TerminatedBy names the task that requested early termination.
	TerminatedBy string
	// Err is nil on success, a *TaskExecutionError, an
	// *AggregateBuildFailure or the context error of a cancelled build.
	Err      error
	DryRun   bool
	Started  time.Time
	Finished time.Time
}

// Task looks up the result of a task by name.
func (r *BuildResult) Task(name string) (TaskResult, bool) {
	for _, t := range r.Tasks {
		if t.Name == name {
			return t, true
		}
	}
	return TaskResult{}, false
}

// Executed counts the tasks that ran successfully, or would have run in a
// dry run.
func (r *BuildResult) Executed() int {
	n := 0
	for _, t := range r.Tasks {
		if t.Outcome.executed() {
			n++
		}
	}
	return n
}

// Succeeded reports whether the build finished without failures. Early
// termination counts as success.
func (r *BuildResult) Succeeded() bool {
	return r.Status != StatusFailed
}
