// Package report renders build results and task listings for humans.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/vk/pakego/internal/scheduler"
)

// NothingToDo is printed when a successful build executed no task.
const NothingToDo = "Nothing to do, all tasks up to date."

// Summary writes the outcome of a build: what ran, what failed and why,
// and which tasks never started.
func Summary(w io.Writer, r *scheduler.BuildResult) {
	if r.DryRun {
		dryRunSummary(w, r)
		return
	}

	switch r.Status {
	case scheduler.StatusSucceeded:
		if r.Executed() == 0 {
			fmt.Fprintln(w, NothingToDo)
			return
		}
		fmt.Fprintln(w, color.GreenString("Build succeeded: %s executed, %d up to date.",
			plural(r.Executed(), "task"), count(r, scheduler.Skipped)))

	case scheduler.StatusTerminatedEarly:
		fmt.Fprintln(w, color.YellowString("Build terminated early by %s.", r.TerminatedBy))
		unexecuted(w, r)

	case scheduler.StatusFailed:
		if len(r.Failed) == 0 {
			fmt.Fprintln(w, color.RedString("Build cancelled: %v", r.Err))
			unexecuted(w, r)
			return
		}
		fmt.Fprintln(w, color.RedString("Build failed: %s failed.", plural(len(r.Failed), "task")))
		for _, name := range r.Failed {
			t, _ := r.Task(name)
			fmt.Fprintf(w, "  %s %s: %v\n", color.RedString("failed"), color.HiWhiteString("%s", name), cause(t.Err))
		}
		unexecuted(w, r)
	}
}

func dryRunSummary(w io.Writer, r *scheduler.BuildResult) {
	visited := 0
	for _, t := range r.Tasks {
		switch t.Outcome {
		case scheduler.Visited:
			visited++
			fmt.Fprintf(w, "Visited task: %s (%s)\n", color.HiWhiteString("%s", t.Name), t.Reason)
		case scheduler.Failed:
			fmt.Fprintf(w, "  %s %s: %v\n", color.RedString("failed"), color.HiWhiteString("%s", t.Name), cause(t.Err))
		}
	}
	if visited == 0 && r.Status == scheduler.StatusSucceeded {
		fmt.Fprintln(w, NothingToDo)
	}
}

func unexecuted(w io.Writer, r *scheduler.BuildResult) {
	if len(r.Unexecuted) == 0 {
		return
	}
	fmt.Fprintf(w, "  %s %s\n", color.YellowString("not executed:"), strings.Join(r.Unexecuted, ", "))
}

// cause strips the task wrapper, which already names the task.
func cause(err error) error {
	if te, ok := err.(*scheduler.TaskExecutionError); ok {
		return te.Err
	}
	return err
}

func count(r *scheduler.BuildResult, o scheduler.Outcome) int {
	n := 0
	for _, t := range r.Tasks {
		if t.Outcome == o {
			n++
		}
	}
	return n
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
