package scheduler

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/pakego/internal/artifact"
	"github.com/vk/pakego/internal/dag"
	"github.com/vk/pakego/internal/staleness"
	"github.com/vk/pakego/internal/task"
)

// recorder collects the names of executed tasks in completion order.
type recorder struct {
	mu    sync.Mutex
	names []string
}

func (r *recorder) action(err error) task.Action {
	return func(_ context.Context, tc *task.Context) error {
		r.mu.Lock()
		r.names = append(r.names, tc.Name())
		r.mu.Unlock()
		return err
	}
}

func (r *recorder) ran() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

func newGraph(t *testing.T, defs ...*task.Definition) *dag.Graph {
	t.Helper()
	g := dag.New()
	for _, d := range defs {
		require.NoError(t, g.Register(d))
	}
	require.NoError(t, g.Build(context.Background()))
	return g
}

func run(t *testing.T, g *dag.Graph, opts Options, targets ...string) *BuildResult {
	t.Helper()
	res, err := New(g, opts).Run(context.Background(), targets)
	require.NoError(t, err)
	return res
}

func outcomes(res *BuildResult) map[string]Outcome {
	out := make(map[string]Outcome)
	for _, t := range res.Tasks {
		out[t.Name] = t.Outcome
	}
	return out
}

func modes() map[string]Options {
	return map[string]Options{
		"sequential": {},
		"parallel":   {Parallel: true, MaxConcurrency: 4},
	}
}

func TestRunUsageErrors(t *testing.T) {
	t.Run("graph not built", func(t *testing.T) {
		g := dag.New()
		require.NoError(t, g.Register(&task.Definition{Name: "a"}))
		_, err := New(g, Options{}).Run(context.Background(), nil)
		assert.ErrorIs(t, err, dag.ErrGraphNotBuilt)
	})

	t.Run("unknown target", func(t *testing.T) {
		g := newGraph(t, &task.Definition{Name: "a"})
		_, err := New(g, Options{}).Run(context.Background(), []string{"nope"})
		var unknown *dag.UnknownTaskError
		assert.True(t, errors.As(err, &unknown))
	})
}

func TestRunOrdering(t *testing.T) {
	for mode, opts := range modes() {
		t.Run(mode, func(t *testing.T) {
			rec := &recorder{}
			g := newGraph(t,
				&task.Definition{Name: "link", DependsOn: []string{"compile_a", "compile_b"}, Action: rec.action(nil)},
				&task.Definition{Name: "compile_a", DependsOn: []string{"generate"}, Action: rec.action(nil)},
				&task.Definition{Name: "compile_b", DependsOn: []string{"generate"}, Action: rec.action(nil)},
				&task.Definition{Name: "generate", Action: rec.action(nil)},
			)

			res := run(t, g, opts)
			require.Equal(t, StatusSucceeded, res.Status)
			require.NoError(t, res.Err)

			ran := rec.ran()
			require.Len(t, ran, 4)
			assert.Equal(t, "generate", ran[0])
			assert.Equal(t, "link", ran[3])
			assert.ElementsMatch(t, []string{"compile_a", "compile_b"}, ran[1:3])
			assert.ElementsMatch(t, ran, res.Completed)
			assert.Equal(t, "link", res.Completed[3])
			assert.Equal(t, 4, res.Executed())
			assert.NotEmpty(t, res.ID)
		})
	}
}

func TestRunTargetsClosure(t *testing.T) {
	rec := &recorder{}
	g := newGraph(t,
		&task.Definition{Name: "a", Action: rec.action(nil)},
		&task.Definition{Name: "b", DependsOn: []string{"a"}, Action: rec.action(nil)},
		&task.Definition{Name: "unrelated", Action: rec.action(nil)},
	)
	res := run(t, g, Options{}, "b")
	assert.Equal(t, []string{"a", "b"}, rec.ran())
	assert.Len(t, res.Tasks, 2)
	_, ok := res.Task("unrelated")
	assert.False(t, ok)
}

func TestSequentialFailureHalts(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("boom")
	g := newGraph(t,
		&task.Definition{Name: "first", Action: rec.action(nil)},
		&task.Definition{Name: "broken", Action: rec.action(boom)},
		&task.Definition{Name: "after", DependsOn: []string{"broken"}, Action: rec.action(nil)},
		&task.Definition{Name: "independent", Action: rec.action(nil)},
	)

	res := run(t, g, Options{})
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, []string{"first", "broken"}, rec.ran())
	assert.Equal(t, []string{"first"}, res.Completed)
	assert.Equal(t, []string{"broken"}, res.Failed)
	assert.Equal(t, []string{"after", "independent"}, res.Unexecuted)

	var execErr *TaskExecutionError
	require.True(t, errors.As(res.Err, &execErr))
	assert.Equal(t, "broken", execErr.Task)
	assert.ErrorIs(t, res.Err, boom)
	assert.ErrorIs(t, res.Err, ErrTaskFailed)

	got := outcomes(res)
	assert.Equal(t, Succeeded, got["first"])
	assert.Equal(t, Failed, got["broken"])
	assert.Equal(t, Pending, got["after"])
}

// barrier releases its waiters once n of them arrived, or fails the test.
type barrier struct {
	mu      sync.Mutex
	arrived int
	n       int
	ch      chan struct{}
}

func newBarrier(n int) *barrier {
	return &barrier{n: n, ch: make(chan struct{})}
}

func (b *barrier) wait() error {
	b.mu.Lock()
	b.arrived++
	if b.arrived == b.n {
		close(b.ch)
	}
	b.mu.Unlock()
	select {
	case <-b.ch:
		return nil
	case <-time.After(5 * time.Second):
		return errors.New("barrier timed out: tasks did not run concurrently")
	}
}

func TestParallelRunsIndependentTasksConcurrently(t *testing.T) {
	bar := newBarrier(3)
	act := func(context.Context, *task.Context) error { return bar.wait() }
	g := newGraph(t,
		&task.Definition{Name: "a", Action: act},
		&task.Definition{Name: "b", Action: act},
		&task.Definition{Name: "c", Action: act},
	)
	res := run(t, g, Options{Parallel: true, MaxConcurrency: 3})
	assert.Equal(t, StatusSucceeded, res.Status, "err: %v", res.Err)
}

func TestParallelRespectsConcurrencyBound(t *testing.T) {
	var current, peak atomic.Int32
	act := func(context.Context, *task.Context) error {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		current.Add(-1)
		return nil
	}
	var defs []*task.Definition
	for _, name := range []string{"t1", "t2", "t3", "t4", "t5", "t6"} {
		defs = append(defs, &task.Definition{Name: name, Action: act})
	}
	g := newGraph(t, defs...)

	res := run(t, g, Options{Parallel: true, MaxConcurrency: 2})
	assert.Equal(t, StatusSucceeded, res.Status)
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Len(t, res.Completed, 6)
}

func TestParallelDependencyHappensBefore(t *testing.T) {
	var mu sync.Mutex
	finished := make(map[string]bool)
	violations := 0
	deps := map[string][]string{
		"a": nil, "b": {"a"}, "c": {"a"}, "d": {"b", "c"}, "e": {"d"},
	}
	act := func(_ context.Context, tc *task.Context) error {
		mu.Lock()
		for _, d := range deps[tc.Name()] {
			if !finished[d] {
				violations++
			}
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		finished[tc.Name()] = true
		mu.Unlock()
		return nil
	}
	var defs []*task.Definition
	for _, name := range []string{"e", "d", "c", "b", "a"} {
		defs = append(defs, &task.Definition{Name: name, DependsOn: deps[name], Action: act})
	}
	res := run(t, newGraph(t, defs...), Options{Parallel: true, MaxConcurrency: 4})
	assert.Equal(t, StatusSucceeded, res.Status)
	assert.Zero(t, violations)
	assert.Equal(t, "e", res.Completed[len(res.Completed)-1])
}

func TestParallelFailureLetsInFlightFinish(t *testing.T) {
	bar := newBarrier(2)
	boom := errors.New("boom")
	var slowDone atomic.Bool

	g := newGraph(t,
		&task.Definition{Name: "fails", Action: func(context.Context, *task.Context) error {
			if err := bar.wait(); err != nil {
				return err
			}
			return boom
		}},
		&task.Definition{Name: "slow", Action: func(context.Context, *task.Context) error {
			if err := bar.wait(); err != nil {
				return err
			}
			time.Sleep(100 * time.Millisecond)
			slowDone.Store(true)
			return nil
		}},
		&task.Definition{Name: "dependent", DependsOn: []string{"fails"}},
		&task.Definition{Name: "after_slow", DependsOn: []string{"slow"}},
	)

	res := run(t, g, Options{Parallel: true, MaxConcurrency: 2})
	assert.Equal(t, StatusFailed, res.Status)
	assert.True(t, slowDone.Load())

	got := outcomes(res)
	assert.Equal(t, Failed, got["fails"])
	assert.Equal(t, Succeeded, got["slow"])
	assert.Equal(t, Pending, got["dependent"])
	assert.Equal(t, Pending, got["after_slow"], "no new work is dispatched after a failure")
	assert.ElementsMatch(t, []string{"dependent", "after_slow"}, res.Unexecuted)

	var execErr *TaskExecutionError
	require.True(t, errors.As(res.Err, &execErr))
	assert.Equal(t, "fails", execErr.Task)
}

func TestParallelAggregatesFailures(t *testing.T) {
	bar := newBarrier(2)
	act := func(_ context.Context, tc *task.Context) error {
		if err := bar.wait(); err != nil {
			return err
		}
		return errors.New(tc.Name() + " broke")
	}
	g := newGraph(t,
		&task.Definition{Name: "x", Action: act},
		&task.Definition{Name: "y", Action: act},
	)

	res := run(t, g, Options{Parallel: true, MaxConcurrency: 2})
	assert.Equal(t, StatusFailed, res.Status)
	assert.ElementsMatch(t, []string{"x", "y"}, res.Failed)

	var agg *AggregateBuildFailure
	require.True(t, errors.As(res.Err, &agg))
	assert.Len(t, agg.Errors, 2)
	assert.ErrorIs(t, res.Err, ErrTaskFailed)
	assert.Contains(t, res.Err.Error(), "2 tasks failed")
}

func TestEarlyTermination(t *testing.T) {
	for mode, opts := range modes() {
		t.Run(mode, func(t *testing.T) {
			rec := &recorder{}
			g := newGraph(t,
				&task.Definition{Name: "stopper", Action: func(_ context.Context, tc *task.Context) error {
					tc.Terminate()
					return nil
				}},
				&task.Definition{Name: "next", DependsOn: []string{"stopper"}, Action: rec.action(nil)},
			)
			res := run(t, g, opts)
			assert.Equal(t, StatusTerminatedEarly, res.Status)
			assert.True(t, res.Succeeded())
			assert.NoError(t, res.Err)
			assert.Equal(t, "stopper", res.TerminatedBy)
			assert.Empty(t, rec.ran())

			got := outcomes(res)
			assert.Equal(t, Aborted, got["stopper"])
			assert.Equal(t, Pending, got["next"])
			assert.Equal(t, []string{"next"}, res.Unexecuted)
		})
	}
}

func TestTaskFailureKinds(t *testing.T) {
	t.Run("panic is a failure", func(t *testing.T) {
		g := newGraph(t, &task.Definition{Name: "p", Action: func(context.Context, *task.Context) error {
			panic("kaboom")
		}})
		res := run(t, g, Options{})
		assert.Equal(t, StatusFailed, res.Status)
		assert.Contains(t, res.Err.Error(), "kaboom")
	})

	t.Run("missing input is a task failure", func(t *testing.T) {
		dir := t.TempDir()
		out := filepath.Join(dir, "out")
		require.NoError(t, os.WriteFile(out, nil, 0o644))
		in, _ := artifact.New(dir, "absent")
		outRef, _ := artifact.New(dir, "out")

		g := newGraph(t, &task.Definition{Name: "m", Inputs: []artifact.Ref{in}, Outputs: []artifact.Ref{outRef}})
		res := run(t, g, Options{})
		assert.Equal(t, StatusFailed, res.Status)
		assert.ErrorIs(t, res.Err, staleness.ErrMissingInput)
		assert.ErrorIs(t, res.Err, ErrTaskFailed)
	})

	t.Run("nil action succeeds", func(t *testing.T) {
		res := run(t, newGraph(t, &task.Definition{Name: "noop"}), Options{})
		assert.Equal(t, StatusSucceeded, res.Status)
	})
}

func TestCancelledContext(t *testing.T) {
	for mode, opts := range modes() {
		t.Run(mode, func(t *testing.T) {
			rec := &recorder{}
			g := newGraph(t, &task.Definition{Name: "a", Action: rec.action(nil)})

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			res, err := New(g, opts).Run(ctx, nil)
			require.NoError(t, err)
			assert.Equal(t, StatusFailed, res.Status)
			assert.ErrorIs(t, res.Err, context.Canceled)
			assert.Empty(t, rec.ran())
			assert.Equal(t, []string{"a"}, res.Unexecuted)
		})
	}
}

// chainFixture is the two-task build "a turns in.txt into mid.txt, b turns
// mid.txt into out.txt", with actions that write their outputs.
type chainFixture struct {
	dir string
	g   *dag.Graph
	rec *recorder
}

var epoch = time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)

func newChain(t *testing.T) *chainFixture {
	t.Helper()
	f := &chainFixture{dir: t.TempDir(), rec: &recorder{}}
	ref := func(p string) []artifact.Ref {
		r, err := artifact.New(f.dir, p)
		require.NoError(t, err)
		return []artifact.Ref{r}
	}
	produce := func(_ context.Context, tc *task.Context) error {
		if err := f.rec.action(nil)(context.Background(), tc); err != nil {
			return err
		}
		for _, o := range tc.Outputs() {
			if err := os.WriteFile(o.Abs, []byte(tc.Name()), 0o644); err != nil {
				return err
			}
		}
		return nil
	}
	f.g = newGraph(t,
		&task.Definition{Name: "b", Inputs: ref("mid.txt"), Outputs: ref("out.txt"), Action: produce},
		&task.Definition{Name: "a", Inputs: ref("in.txt"), Outputs: ref("mid.txt"), Action: produce},
	)
	f.write(t, "in.txt", 0)
	return f
}

func (f *chainFixture) write(t *testing.T, name string, offset int) {
	t.Helper()
	p := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(p, []byte(name), 0o644))
	f.stamp(t, name, offset)
}

func (f *chainFixture) stamp(t *testing.T, name string, offset int) {
	t.Helper()
	ts := epoch.Add(time.Duration(offset) * time.Second)
	require.NoError(t, os.Chtimes(filepath.Join(f.dir, name), ts, ts))
}

func TestChainedBuildIsIncremental(t *testing.T) {
	for mode, opts := range modes() {
		t.Run(mode, func(t *testing.T) {
			f := newChain(t)

			res := run(t, f.g, opts)
			require.Equal(t, StatusSucceeded, res.Status, "err: %v", res.Err)
			assert.Equal(t, []string{"a", "b"}, f.rec.ran(), "implicit edge orders a before b")

			// Pin deterministic timestamps: everything up to date.
			f.stamp(t, "mid.txt", 10)
			f.stamp(t, "out.txt", 20)

			res = run(t, f.g, opts)
			assert.Equal(t, 0, res.Executed(), "second run does nothing")
			got := outcomes(res)
			assert.Equal(t, Skipped, got["a"])
			assert.Equal(t, Skipped, got["b"])

			// Touch the source: both tasks rebuild.
			f.stamp(t, "in.txt", 30)
			res = run(t, f.g, opts)
			assert.Equal(t, StatusSucceeded, res.Status)
			assert.Equal(t, []string{"a", "b", "a", "b"}, f.rec.ran())

			// Touch only the intermediate: only b rebuilds.
			f.stamp(t, "in.txt", 0)
			f.stamp(t, "mid.txt", 40)
			f.stamp(t, "out.txt", 35)
			res = run(t, f.g, opts)
			got = outcomes(res)
			assert.Equal(t, Skipped, got["a"])
			assert.Equal(t, Succeeded, got["b"])
		})
	}
}

func TestDryRun(t *testing.T) {
	f := newChain(t)
	res := run(t, f.g, Options{DryRun: true})
	assert.True(t, res.DryRun)
	assert.Empty(t, f.rec.ran())
	got := outcomes(res)
	assert.Equal(t, Visited, got["a"])
	assert.Equal(t, Visited, got["b"])
	assert.Equal(t, 2, res.Executed())
	assert.Empty(t, res.Completed)
}

func TestParallelDryRunReleasesVisitedTasks(t *testing.T) {
	f := newChain(t)
	res := run(t, f.g, Options{DryRun: true, Parallel: true, MaxConcurrency: 4})
	got := outcomes(res)
	assert.Equal(t, Visited, got["a"])
	assert.Equal(t, Visited, got["b"])
	assert.Empty(t, res.Unexecuted)
}

func TestOutcomeSatisfied(t *testing.T) {
	testCases := []struct {
		outcome   Outcome
		satisfied bool
		executed  bool
	}{
		{Pending, false, false},
		{Skipped, true, false},
		{Succeeded, true, true},
		{Failed, false, false},
		{Aborted, true, true},
		{Visited, true, true},
	}
	for _, tc := range testCases {
		t.Run(tc.outcome.String(), func(t *testing.T) {
			assert.Equal(t, tc.satisfied, tc.outcome.satisfied())
			assert.Equal(t, tc.executed, tc.outcome.executed())
		})
	}
}

func TestDependencyOnlyTask(t *testing.T) {
	f := newChain(t)
	all := &task.Definition{Name: "all", DependsOn: []string{"a", "b"}, Action: f.rec.action(nil)}
	g := dag.New()
	for _, d := range f.g.Tasks() {
		require.NoError(t, g.Register(d))
	}
	require.NoError(t, g.Register(all))
	require.NoError(t, g.Build(context.Background()))

	res := run(t, g, Options{}, "all")
	assert.Equal(t, Succeeded, outcomes(res)["all"], "runs when a dependency executed")

	f.stamp(t, "mid.txt", 10)
	f.stamp(t, "out.txt", 20)
	res = run(t, g, Options{}, "all")
	assert.Equal(t, Skipped, outcomes(res)["all"], "skipped when nothing upstream ran")
	assert.Equal(t, staleness.ReasonUpToDate, res.Tasks[len(res.Tasks)-1].Reason)
}

func TestContextReceivesOutdatedArtifacts(t *testing.T) {
	f := newChain(t)
	run(t, f.g, Options{})
	f.stamp(t, "mid.txt", 10)
	f.stamp(t, "out.txt", 20)
	f.stamp(t, "in.txt", 30)

	var seen []string
	var depOutputs []string
	g := dag.New()
	a, _ := f.g.Task("a")
	b, _ := f.g.Task("b")
	require.NoError(t, g.Register(&task.Definition{Name: "a", Inputs: a.Inputs, Outputs: a.Outputs, Action: a.Action}))
	require.NoError(t, g.Register(&task.Definition{Name: "b", Inputs: b.Inputs, Outputs: b.Outputs,
		Action: func(_ context.Context, tc *task.Context) error {
			seen = artifact.Paths(tc.OutdatedInputs())
			depOutputs = artifact.Paths(tc.DependencyOutputs())
			return nil
		}}))
	require.NoError(t, g.Build(context.Background()))

	run(t, g, Options{})
	assert.Equal(t, []string{"mid.txt"}, seen)
	assert.Equal(t, []string{"mid.txt"}, depOutputs)
}

func TestOutputIsFlushedPerTask(t *testing.T) {
	var out bytes.Buffer
	g := newGraph(t,
		&task.Definition{Name: "hello", Action: func(_ context.Context, tc *task.Context) error {
			tc.Printf("line 1\n")
			tc.Printf("line 2\n")
			return nil
		}},
	)
	res := run(t, g, Options{Output: &out})
	assert.Equal(t, "===== Executing task: \"hello\"\nline 1\nline 2\n", out.String())
	tr, ok := res.Task("hello")
	require.True(t, ok)
	assert.Equal(t, "line 1\nline 2\n", tr.Output)
}

type eventLog struct {
	events []string
}

func (e *eventLog) BuildStarted(_ string, tasks []string) {
	e.events = append(e.events, "build:start")
}
func (e *eventLog) TaskStarted(_, name string) { e.events = append(e.events, "start:"+name) }
func (e *eventLog) TaskFinished(_ string, r TaskResult) {
	e.events = append(e.events, "finish:"+r.Name+":"+r.Outcome.String())
}
func (e *eventLog) BuildFinished(r *BuildResult) {
	e.events = append(e.events, "build:"+r.Status.String())
}

func TestObserver(t *testing.T) {
	f := newChain(t)
	f.write(t, "mid.txt", 10)
	f.write(t, "out.txt", 5)

	first, second := &eventLog{}, &eventLog{}
	res := run(t, f.g, Options{Observer: Observers{first, second}})
	require.Equal(t, StatusSucceeded, res.Status)

	want := []string{
		"build:start",
		"finish:a:skipped",
		"start:b",
		"finish:b:succeeded",
		"build:succeeded",
	}
	assert.Equal(t, want, first.events)
	assert.Equal(t, want, second.events)
}

func TestOutcomeStrings(t *testing.T) {
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "visited", Visited.String())
	assert.Equal(t, "terminated early", StatusTerminatedEarly.String())
	assert.Equal(t, time.Duration(0), TaskResult{}.Duration())
}
