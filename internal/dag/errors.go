package dag

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDuplicateTask = errors.New("duplicate task")
	ErrUnknownTask   = errors.New("unknown task")
	ErrCycle         = errors.New("dependency cycle")
	ErrGraphSealed   = errors.New("graph is already built")
	ErrGraphNotBuilt = errors.New("graph is not built")
)

// DuplicateTaskError is returned when a task name is registered twice.
type DuplicateTaskError struct {
	Name string
}

func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("%s: task '%s' is already defined", ErrDuplicateTask, e.Name)
}

func (e *DuplicateTaskError) Unwrap() error { return ErrDuplicateTask }

// UnknownDependencyError is returned when a task depends on a name that was
// never registered.
type UnknownDependencyError struct {
	Task       string
	Dependency string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("%s: task '%s' depends on undefined task '%s'", ErrUnknownTask, e.Task, e.Dependency)
}

func (e *UnknownDependencyError) Unwrap() error { return ErrUnknownTask }

// UnknownTaskError is returned when a requested target does not exist.
type UnknownTaskError struct {
	Name string
}

func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("%s: '%s'", ErrUnknownTask, e.Name)
}

func (e *UnknownTaskError) Unwrap() error { return ErrUnknownTask }

// CycleError names the tasks forming a dependency cycle. Path starts and
// ends with the same task, so a self-dependency is [a a].
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return ErrCycle.Error()
	}
	return fmt.Sprintf("%s: %s", ErrCycle, strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }
