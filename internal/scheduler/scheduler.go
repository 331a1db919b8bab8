package scheduler

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vk/pakego/internal/artifact"
	"github.com/vk/pakego/internal/ctxlog"
	"github.com/vk/pakego/internal/dag"
	"github.com/vk/pakego/internal/process"
	"github.com/vk/pakego/internal/staleness"
	"github.com/vk/pakego/internal/task"
)

// Options configures a Scheduler.
type Options struct {
	Parallel bool
	// MaxConcurrency bounds the worker pool in parallel mode. Zero or less
	// means runtime.GOMAXPROCS(0).
	MaxConcurrency int
	// DryRun evaluates staleness and reports what would run without
	// executing any task body.
	DryRun bool
	// Dir is the default working directory for commands run by tasks.
	Dir      string
	Runner   process.Runner
	SubBuild *process.SubBuild
	// Output receives each task's buffered output. Nil discards it.
	Output   io.Writer
	Observer Observer
}

// Scheduler executes the tasks of a built graph.
type Scheduler struct {
	graph *dag.Graph
	opts  Options
	outMu sync.Mutex
}

// New creates a scheduler for g.
func New(g *dag.Graph, opts Options) *Scheduler {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = runtime.GOMAXPROCS(0)
	}
	if opts.Output == nil {
		opts.Output = io.Discard
	}
	if opts.Observer == nil {
		opts.Observer = Observers(nil)
	}
	return &Scheduler{graph: g, opts: opts}
}

// Run builds targets and everything they depend on. The returned error is
// reserved for problems that prevent a build from starting (an unbuilt
// graph, an unknown target); task failures are reported in the result.
func (s *Scheduler) Run(ctx context.Context, targets []string) (*BuildResult, error) {
	order, err := s.graph.Closure(targets)
	if err != nil {
		return nil, err
	}

	b := newBuild(order, s.opts)
	ctx, logger := ctxlog.With(ctx, "build_id", b.result.ID)
	logger.Debug("Scheduler starting run.", "tasks", order, "parallel", s.opts.Parallel, "dry_run", s.opts.DryRun)
	s.opts.Observer.BuildStarted(b.result.ID, order)

	if s.opts.Parallel && s.opts.MaxConcurrency > 1 {
		s.runParallel(ctx, b)
	} else {
		s.runSequential(ctx, b)
	}

	res := b.finish()
	logger.Debug("Scheduler finished run.", "status", res.Status, "executed", res.Executed())
	s.opts.Observer.BuildFinished(res)
	return res, nil
}

// prepare evaluates the staleness of name. When the task does not need to
// run, the final result is returned with run set to false.
func (s *Scheduler) prepare(ctx context.Context, b *build, name string) (res TaskResult, decision staleness.Decision, run bool) {
	def, _ := s.graph.Task(name)
	res = TaskResult{Name: name}

	deps, _ := s.graph.Dependencies(name)
	upstream := false
	for _, d := range deps {
		if b.outcome(d).executed() {
			upstream = true
			break
		}
	}

	decision, err := staleness.Evaluate(def, upstream)
	if err != nil {
		res.Outcome = Failed
		res.Err = &TaskExecutionError{Task: name, Err: err}
		return res, decision, false
	}
	res.Reason = decision.Reason

	logger := ctxlog.FromContext(ctx)
	switch {
	case !decision.Stale:
		logger.Debug("Task is up to date.", "task", name)
		res.Outcome = Skipped
		return res, decision, false
	case s.opts.DryRun:
		logger.Debug("Task would run.", "task", name, "reason", decision.Reason)
		res.Outcome = Visited
		return res, decision, false
	}
	return res, decision, true
}

// execute runs the task body. It is safe to call from worker goroutines.
func (s *Scheduler) execute(ctx context.Context, name string, decision staleness.Decision) (res TaskResult) {
	def, _ := s.graph.Task(name)
	ctx, logger := ctxlog.With(ctx, "task", name)
	res = TaskResult{Name: name, Reason: decision.Reason}

	tc := task.NewContext(task.ContextOptions{
		Definition:        def,
		OutdatedInputs:    decision.OutdatedInputs,
		OutdatedOutputs:   decision.OutdatedOutputs,
		OutdatedPairs:     decision.OutdatedPairs,
		DependencyOutputs: s.dependencyOutputs(name),
		Dir:               s.opts.Dir,
		Runner:            s.opts.Runner,
		SubBuild:          s.opts.SubBuild,
	})

	logger.Debug("Task started.", "reason", decision.Reason)
	res.Started = time.Now()
	err := invoke(ctx, def.Action, tc)
	res.Finished = time.Now()
	res.Output = tc.Output()
	s.flush(name, res.Output)

	switch {
	case err != nil:
		logger.Debug("Task failed.", "error", err)
		res.Outcome = Failed
		res.Err = &TaskExecutionError{Task: name, Err: err}
	case tc.Terminated():
		logger.Debug("Task requested early termination.")
		res.Outcome = Aborted
	default:
		logger.Debug("Task succeeded.", "duration", res.Duration())
		res.Outcome = Succeeded
	}
	return res
}

// invoke calls action, turning a panic into an error.
func invoke(ctx context.Context, action task.Action, tc *task.Context) (err error) {
	if action == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return action(ctx, tc)
}

func (s *Scheduler) dependencyOutputs(name string) []artifact.Ref {
	deps, _ := s.graph.Dependencies(name)
	var out []artifact.Ref
	for _, d := range deps {
		def, _ := s.graph.Task(d)
		out = append(out, def.Outputs...)
	}
	return out
}

// flush writes a task's buffered output as one block.
func (s *Scheduler) flush(name, output string) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.opts.Output, "===== Executing task: \"%s\"\n", name)
	io.WriteString(s.opts.Output, output)
}

// build is the run-state table of one Run. It is owned by a single
// goroutine: the caller in sequential mode, the coordinator in parallel mode.
type build struct {
	result    *BuildResult
	index     map[string]int
	observer  Observer
	failures  []error
	cancelErr error
}

func newBuild(order []string, opts Options) *build {
	b := &build{
		result: &BuildResult{
			ID:      uuid.NewString(),
			Tasks:   make([]TaskResult, len(order)),
			DryRun:  opts.DryRun,
			Started: time.Now(),
		},
		index:    make(map[string]int, len(order)),
		observer: opts.Observer,
	}
	for i, name := range order {
		b.result.Tasks[i] = TaskResult{Name: name, Outcome: Pending}
		b.index[name] = i
	}
	return b
}

func (b *build) outcome(name string) Outcome {
	i, ok := b.index[name]
	if !ok {
		return Pending
	}
	return b.result.Tasks[i].Outcome
}

func (b *build) record(res TaskResult) {
	b.result.Tasks[b.index[res.Name]] = res
	switch res.Outcome {
	case Failed:
		b.failures = append(b.failures, res.Err)
	case Succeeded, Aborted:
		b.result.Completed = append(b.result.Completed, res.Name)
	}
	if res.Outcome == Aborted && b.result.TerminatedBy == "" {
		b.result.TerminatedBy = res.Name
	}
	b.observer.TaskFinished(b.result.ID, res)
}

func (b *build) cancel(err error) {
	if b.cancelErr == nil {
		b.cancelErr = err
	}
}

func (b *build) finish() *BuildResult {
	r := b.result
	r.Finished = time.Now()
	for _, t := range r.Tasks {
		switch t.Outcome {
		case Failed:
			r.Failed = append(r.Failed, t.Name)
		case Pending:
			r.Unexecuted = append(r.Unexecuted, t.Name)
		}
	}

	switch {
	case len(b.failures) == 1:
		r.Status = StatusFailed
		r.Err = b.failures[0]
	case len(b.failures) > 1:
		r.Status = StatusFailed
		r.Err = &AggregateBuildFailure{Errors: b.failures}
	case b.cancelErr != nil:
		r.Status = StatusFailed
		r.Err = fmt.Errorf("build cancelled: %w", b.cancelErr)
	case r.TerminatedBy != "":
		r.Status = StatusTerminatedEarly
	default:
		r.Status = StatusSucceeded
	}
	return r
}
