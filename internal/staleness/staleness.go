// Package staleness decides whether a task must run by comparing the
// modification times of its declared inputs and outputs.
package staleness

import (
	"errors"
	"fmt"
	"time"

	"github.com/vk/pakego/internal/artifact"
	"github.com/vk/pakego/internal/task"
)

// ErrMissingInput is matched by every *MissingInputError.
var ErrMissingInput = errors.New("missing input")

// MissingInputError reports a declared input that does not exist while all
// outputs do.
type MissingInputError struct {
	Task  string
	Input artifact.Ref
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("task '%s': input '%s' does not exist", e.Task, e.Input.Path)
}

func (e *MissingInputError) Unwrap() error { return ErrMissingInput }

// Reason explains a decision.
type Reason string

const (
	ReasonUpToDate         Reason = "up to date"
	ReasonUpstreamExecuted Reason = "a dependency was executed"
	ReasonNoOutputs        Reason = "no outputs declared"
	ReasonMissingOutput    Reason = "an output is missing"
	ReasonInputNewer       Reason = "an input is newer than an output"
)

// Decision is the verdict for one task.
type Decision struct {
	Stale  bool
	Reason Reason
	// OutdatedInputs are the inputs newer than the oldest output. All
	// inputs when an output is missing or no outputs are declared.
	OutdatedInputs []artifact.Ref
	// OutdatedOutputs are the outputs missing or older than the newest input.
	OutdatedOutputs []artifact.Ref
	// OutdatedPairs is only filled when inputs and outputs have the same
	// length; input i is paired with output i.
	OutdatedPairs []task.Pair
}

// Evaluate applies the staleness policy, in order:
//
//  1. a task with no artifacts but with dependencies is stale exactly when
//     one of its direct dependencies executed in this build;
//  2. a task without outputs is always stale;
//  3. a missing output makes the task stale;
//  4. a missing input (with all outputs present) is an error;
//  5. otherwise the task is stale when its oldest output is strictly older
//     than its newest input.
func Evaluate(def *task.Definition, upstreamExecuted bool) (Decision, error) {
	if def.DependencyOnly() {
		if upstreamExecuted {
			return Decision{Stale: true, Reason: ReasonUpstreamExecuted}, nil
		}
		return Decision{Reason: ReasonUpToDate}, nil
	}

	if len(def.Outputs) == 0 {
		return Decision{
			Stale:          true,
			Reason:         ReasonNoOutputs,
			OutdatedInputs: clone(def.Inputs),
		}, nil
	}

	outputs, err := statAll(def.Outputs)
	if err != nil {
		return Decision{}, err
	}
	inputs, err := statAll(def.Inputs)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{}
	for _, out := range outputs {
		if !out.Exists {
			d.Stale = true
			d.Reason = ReasonMissingOutput
			break
		}
	}
	if !d.Stale {
		for _, in := range inputs {
			if !in.Exists {
				return Decision{}, &MissingInputError{Task: def.Name, Input: in.Ref}
			}
		}
	}

	oldestOut, newestIn := oldest(outputs), newest(inputs)
	if !d.Stale && len(inputs) > 0 && oldestOut.Before(newestIn) {
		d.Stale = true
		d.Reason = ReasonInputNewer
	}
	if !d.Stale {
		d.Reason = ReasonUpToDate
		return d, nil
	}

	missingOutput := d.Reason == ReasonMissingOutput
	for _, in := range inputs {
		if missingOutput || in.ModTime.After(oldestOut) {
			d.OutdatedInputs = append(d.OutdatedInputs, in.Ref)
		}
	}
	for _, out := range outputs {
		if !out.Exists || (len(inputs) > 0 && out.ModTime.Before(newestIn)) {
			d.OutdatedOutputs = append(d.OutdatedOutputs, out.Ref)
		}
	}
	if len(inputs) == len(outputs) {
		for i := range inputs {
			in, out := inputs[i], outputs[i]
			if !out.Exists || (in.Exists && out.ModTime.Before(in.ModTime)) {
				d.OutdatedPairs = append(d.OutdatedPairs, task.Pair{Input: in.Ref, Output: out.Ref})
			}
		}
	}
	return d, nil
}

// IsStale is Evaluate reduced to its verdict.
func IsStale(def *task.Definition, upstreamExecuted bool) (bool, error) {
	d, err := Evaluate(def, upstreamExecuted)
	return d.Stale, err
}

func statAll(refs []artifact.Ref) ([]artifact.Info, error) {
	infos := make([]artifact.Info, 0, len(refs))
	for _, r := range refs {
		info, err := r.Stat()
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// oldest returns the earliest modification time among existing artifacts.
func oldest(infos []artifact.Info) time.Time {
	var t time.Time
	for _, i := range infos {
		if !i.Exists {
			continue
		}
		if t.IsZero() || i.ModTime.Before(t) {
			t = i.ModTime
		}
	}
	return t
}

// newest returns the latest modification time among existing artifacts.
func newest(infos []artifact.Info) time.Time {
	var t time.Time
	for _, i := range infos {
		if i.Exists && i.ModTime.After(t) {
			t = i.ModTime
		}
	}
	return t
}

func clone(refs []artifact.Ref) []artifact.Ref {
	if len(refs) == 0 {
		return nil
	}
	out := make([]artifact.Ref, len(refs))
	copy(out, refs)
	return out
}
