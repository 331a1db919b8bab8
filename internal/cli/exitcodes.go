package cli

import (
	"errors"

	"github.com/vk/pakego/internal/app"
	"github.com/vk/pakego/internal/buildfile"
	"github.com/vk/pakego/internal/dag"
	"github.com/vk/pakego/internal/process"
	"github.com/vk/pakego/internal/scheduler"
	"github.com/vk/pakego/internal/staleness"
	"github.com/vk/pakego/internal/task"
)

// Process exit codes.
const (
	ExitSuccess           = 0
	ExitFailure           = 1
	ExitBadArguments      = 2
	ExitNoTasksDefined    = 3
	ExitNoTasksSpecified  = 4
	ExitInputNotFound     = 5
	ExitUndefinedTask     = 6
	ExitCyclicDependency  = 7
	ExitTaskFailure       = 8
	ExitSubprocessFailure = 9
	ExitSubBuildFailure   = 10
	ExitBadDefine         = 11
	ExitRedefinedTask     = 12
	ExitBuildFileError    = 13
)

// ExitCode picks the exit code for err. When err carries several failures
// the most specific kind wins.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	var fileErr *buildfile.Error

	switch {
	case errors.Is(err, app.ErrBadArguments):
		return ExitBadArguments
	case errors.Is(err, app.ErrNoTasksDefined):
		return ExitNoTasksDefined
	case errors.Is(err, app.ErrNoTasksSpecified):
		return ExitNoTasksSpecified
	case errors.Is(err, dag.ErrDuplicateTask):
		return ExitRedefinedTask
	case errors.Is(err, app.ErrBuildFile), errors.Is(err, task.ErrInvalidTask), errors.As(err, &fileErr):
		return ExitBuildFileError
	case errors.Is(err, dag.ErrCycle):
		return ExitCyclicDependency
	case errors.Is(err, dag.ErrUnknownTask):
		return ExitUndefinedTask
	case errors.Is(err, staleness.ErrMissingInput):
		return ExitInputNotFound
	case errors.Is(err, process.ErrSubBuildFailed):
		return ExitSubBuildFailure
	case errors.Is(err, process.ErrCommandFailed):
		return ExitSubprocessFailure
	case errors.Is(err, scheduler.ErrTaskFailed):
		return ExitTaskFailure
	}
	return ExitFailure
}

// Wrap converts err into an *ExitError carrying its exit code.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	return &ExitError{Code: ExitCode(err), Message: err.Error(), Err: err}
}
