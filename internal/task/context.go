package task

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/vk/pakego/internal/artifact"
	"github.com/vk/pakego/internal/ctxlog"
	"github.com/vk/pakego/internal/process"
)

// ContextOptions is everything the scheduler knows about a task at the
// moment it decides to run it.
type ContextOptions struct {
	Definition        *Definition
	OutdatedInputs    []artifact.Ref
	OutdatedOutputs   []artifact.Ref
	OutdatedPairs     []Pair
	DependencyOutputs []artifact.Ref
	// Dir is the default working directory for commands.
	Dir      string
	Runner   process.Runner
	SubBuild *process.SubBuild
}

// Context is the execution context handed to a running task body. It
// exposes the task's artifacts, a buffered output stream, process helpers
// and the graceful early-termination signal. It never touches the
// filesystem itself.
type Context struct {
	def        *Definition
	outInputs  []artifact.Ref
	outOutputs []artifact.Ref
	pairs      []Pair
	depOutputs []artifact.Ref
	dir        string
	runner     process.Runner
	subBuild   *process.SubBuild

	mu  sync.Mutex
	buf bytes.Buffer

	terminated atomic.Bool
}

// NewContext creates an execution context for a single run of a task.
func NewContext(opts ContextOptions) *Context {
	runner := opts.Runner
	if runner == nil {
		runner = process.ExecRunner{}
	}
	return &Context{
		def:        opts.Definition,
		outInputs:  opts.OutdatedInputs,
		outOutputs: opts.OutdatedOutputs,
		pairs:      opts.OutdatedPairs,
		depOutputs: opts.DependencyOutputs,
		dir:        opts.Dir,
		runner:     runner,
		subBuild:   opts.SubBuild,
	}
}

func (c *Context) Name() string { return c.def.Name }

// Inputs returns the declared inputs in declaration order.
func (c *Context) Inputs() []artifact.Ref { return clone(c.def.Inputs) }

// Outputs returns the declared outputs in declaration order.
func (c *Context) Outputs() []artifact.Ref { return clone(c.def.Outputs) }

// OutdatedInputs returns the inputs newer than the oldest output.
func (c *Context) OutdatedInputs() []artifact.Ref { return clone(c.outInputs) }

// OutdatedOutputs returns the outputs that are missing or older than the
// newest input.
func (c *Context) OutdatedOutputs() []artifact.Ref { return clone(c.outOutputs) }

// OutdatedPairs returns input/output pairs where the output is missing or
// older than its input. Empty unless inputs and outputs have equal length.
func (c *Context) OutdatedPairs() []Pair {
	out := make([]Pair, len(c.pairs))
	copy(out, c.pairs)
	return out
}

// DependencyOutputs returns the outputs declared by the task's direct
// dependencies, in dependency order.
func (c *Context) DependencyOutputs() []artifact.Ref { return clone(c.depOutputs) }

// Out is the task's output stream. Everything written here is buffered and
// emitted in one piece when the task finishes.
func (c *Context) Out() io.Writer { return (*lockedWriter)(c) }

// Printf formats to the task's output stream.
func (c *Context) Printf(format string, args ...any) {
	fmt.Fprintf(c.Out(), format, args...)
}

// Output returns everything written to the task's output stream so far.
func (c *Context) Output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// Terminate asks the scheduler to stop dispatching new tasks once this one
// returns. The current task's result is still reported as successful.
func (c *Context) Terminate() { c.terminated.Store(true) }

// Terminated reports whether Terminate was called.
func (c *Context) Terminated() bool { return c.terminated.Load() }

// Env is the variable set available to command lines run through Shell.
// List values are joined with single spaces.
func (c *Context) Env() map[string]string {
	return map[string]string{
		"task":               c.def.Name,
		"inputs":             join(c.def.Inputs),
		"outputs":            join(c.def.Outputs),
		"outdated_inputs":    join(c.outInputs),
		"outdated_outputs":   join(c.outOutputs),
		"dependency_outputs": join(c.depOutputs),
	}
}

// Call runs an external command, streaming its output into the task's
// output. Commands without a directory run in the context's directory.
func (c *Context) Call(ctx context.Context, cmd process.Command) error {
	if cmd.Dir == "" {
		cmd.Dir = c.dir
	}
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Running command.", "task", c.def.Name, "command", cmd.String(), "dir", cmd.Dir)
	if !cmd.Silent {
		c.Printf("%s\n", cmd.String())
	}
	code, err := c.runner.Run(ctx, cmd, c.Out())
	if err != nil {
		return err
	}
	if code != 0 {
		logger.Debug("Command failure ignored.", "task", c.def.Name, "exit_code", code)
	}
	return nil
}

// Shell splits a command line with shell quoting rules, expanding the
// variables from Env, and runs it with Call. Settings other than the
// program and its arguments (directory, environment, error handling) are
// taken from tmpl.
func (c *Context) Shell(ctx context.Context, line string, tmpl process.Command) error {
	parsed, err := process.ParseLine(line, c.Env())
	if err != nil {
		return err
	}
	tmpl.Name, tmpl.Args = parsed.Name, parsed.Args
	return c.Call(ctx, tmpl)
}

// SubBuild runs a nested build of file with the given targets.
func (c *Context) SubBuild(ctx context.Context, file string, targets []string, ignoreErrors bool) error {
	if c.subBuild == nil {
		return fmt.Errorf("task '%s': sub-builds are not available", c.def.Name)
	}
	ctxlog.FromContext(ctx).Debug("Starting sub-build.", "task", c.def.Name, "file", file, "targets", targets)
	c.Printf("sub-build %s %s\n", file, strings.Join(targets, " "))
	return c.subBuild.Run(ctx, file, targets, ignoreErrors, c.Out())
}

type lockedWriter Context

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func clone(refs []artifact.Ref) []artifact.Ref {
	out := make([]artifact.Ref, len(refs))
	copy(out, refs)
	return out
}

func join(refs []artifact.Ref) string {
	return strings.Join(artifact.Paths(refs), " ")
}
