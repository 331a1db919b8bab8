// Package process runs external programs on behalf of tasks: plain commands,
// shell-style command lines and nested builds.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// ErrCommandFailed is matched by every *ExitError.
var ErrCommandFailed = errors.New("command failed")

// Command describes one program invocation.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env holds extra KEY=VALUE pairs appended to the process environment.
	Env   []string
	Stdin io.Reader
	// IgnoreErrors turns a non-zero exit status into a successful result.
	IgnoreErrors bool
	// Silent discards the program's output.
	Silent bool
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// ExitError reports a command that exited with a non-zero status.
type ExitError struct {
	Command string
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command %q exited with status %d", e.Command, e.Code)
}

func (e *ExitError) Is(target error) bool {
	return target == ErrCommandFailed
}

// Runner executes commands. Output (stdout and stderr combined) is written
// to out.
type Runner interface {
	Run(ctx context.Context, cmd Command, out io.Writer) (exitCode int, err error)
}

// ExecRunner runs commands as child processes.
type ExecRunner struct{}

var _ Runner = ExecRunner{}

// Run starts the command and waits for it. Cancelling ctx kills the child.
func (ExecRunner) Run(ctx context.Context, cmd Command, out io.Writer) (int, error) {
	if cmd.Name == "" {
		return -1, errors.New("command name cannot be empty")
	}
	if cmd.Silent || out == nil {
		out = io.Discard
	}

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Stdin = cmd.Stdin
	c.Stdout = out
	c.Stderr = out
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}

	err := c.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return -1, fmt.Errorf("exec %s: %w", cmd.Name, err)
	}
	code := exitErr.ExitCode()
	if cmd.IgnoreErrors {
		return code, nil
	}
	return code, &ExitError{Command: cmd.String(), Code: code}
}
