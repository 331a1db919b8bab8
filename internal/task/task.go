// Package task defines the unit of work the build engine schedules and the
// execution context handed to a task body while it runs.
package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/pakego/internal/artifact"
)

// ErrInvalidTask is returned for definitions the engine cannot accept.
var ErrInvalidTask = errors.New("invalid task definition")

// Action is a task body. A nil Action is a no-op, which is how aggregate
// tasks that only group dependencies are expressed.
type Action func(ctx context.Context, tc *Context) error

// Definition is a named unit of work. Inputs and Outputs keep declaration
// order; DependsOn lists explicit dependencies by task name.
type Definition struct {
	Name      string
	Doc       string
	Inputs    []artifact.Ref
	Outputs   []artifact.Ref
	DependsOn []string
	Action    Action
}

// Validate checks the definition in isolation.
func (d *Definition) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: nil definition", ErrInvalidTask)
	}
	if d.Name == "" {
		return fmt.Errorf("%w: task name cannot be empty", ErrInvalidTask)
	}
	for _, dep := range d.DependsOn {
		if dep == "" {
			return fmt.Errorf("%w: task '%s' has an empty dependency name", ErrInvalidTask, d.Name)
		}
	}
	return nil
}

// DependencyOnly reports whether the task declares no artifacts at all and
// exists only to order or group its dependencies.
func (d *Definition) DependencyOnly() bool {
	return len(d.Inputs) == 0 && len(d.Outputs) == 0 && len(d.DependsOn) > 0
}

// Pair couples an input with the output derived from it, for tasks that
// declare the same number of inputs and outputs.
type Pair struct {
	Input  artifact.Ref
	Output artifact.Ref
}
