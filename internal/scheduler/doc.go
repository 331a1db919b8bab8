// Package scheduler runs the tasks of a built dag.Graph.
//
// # How It Works
//
// Run computes the dependency closure of the requested targets (the graph's
// sink tasks when none are given) and walks it in topological order. For
// every task the staleness evaluator decides whether the task must run;
// up-to-date tasks are skipped, stale tasks get a fresh task.Context and
// their action is invoked.
//
// Two execution modes exist:
//   - Sequential: tasks run one at a time on the calling goroutine. The
//     first failure halts the build.
//   - Parallel: a single coordinator goroutine owns all run state and hands
//     eligible tasks to a bounded pool of workers. A task is eligible once
//     every dependency finished successfully (executed, skipped or aborted).
//     After a failure no new task is dispatched, in-flight tasks are
//     allowed to finish and every failure is reported.
//
// # Early Termination
//
// A task body may call task.Context.Terminate. Its own result still counts
// as a success, but the scheduler dispatches nothing further and the build
// finishes with StatusTerminatedEarly.
//
// # Output
//
// Each task writes into its own buffer. The buffer is flushed to
// Options.Output as a single write when the task finishes so output of
// concurrently running tasks never interleaves.
//
// # Observers
//
// Options.Observer is notified of build and task progress. Observer methods
// are only ever called from the coordinator, never concurrently.
package scheduler
