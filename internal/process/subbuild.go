package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strconv"
)

// ErrSubBuildFailed is matched by every *SubBuildError.
var ErrSubBuildFailed = errors.New("sub-build failed")

// SubBuildError reports a nested build that did not succeed.
type SubBuildError struct {
	File string
	Code int
	Err  error
}

func (e *SubBuildError) Error() string {
	return fmt.Sprintf("sub-build %s failed with status %d", e.File, e.Code)
}

func (e *SubBuildError) Unwrap() error { return e.Err }

func (e *SubBuildError) Is(target error) bool {
	return target == ErrSubBuildFailed
}

// SubBuild launches a nested build of another build file by re-invoking
// the orchestrator's own executable. Defines are exported to the child.
type SubBuild struct {
	Executable string
	// Depth is the nesting level of the current build; children run at Depth+1.
	Depth   int
	Defines map[string]string
	Runner  Runner
}

// Command assembles the child invocation for file and extra arguments
// (usually target names). The child runs in the directory holding file.
func (s *SubBuild) Command(file string, args ...string) Command {
	argv := []string{
		"-f", filepath.Base(file),
		"-C", filepath.Dir(file),
		"--depth", strconv.Itoa(s.Depth + 1),
	}
	names := make([]string, 0, len(s.Defines))
	for k := range s.Defines {
		names = append(names, k)
	}
	slices.Sort(names)
	for _, k := range names {
		argv = append(argv, "-D", k+"="+s.Defines[k])
	}
	argv = append(argv, args...)
	return Command{Name: s.Executable, Args: argv}
}

// Run executes the nested build and waits for it. A failed child is
// reported as *SubBuildError unless ignoreErrors is set.
func (s *SubBuild) Run(ctx context.Context, file string, args []string, ignoreErrors bool, out io.Writer) error {
	runner := s.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	cmd := s.Command(file, args...)
	code, err := runner.Run(ctx, cmd, out)
	if err == nil {
		return nil
	}
	if ignoreErrors && errors.Is(err, ErrCommandFailed) {
		return nil
	}
	return &SubBuildError{File: file, Code: code, Err: err}
}
