package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mitchellh/go-wordwrap"
	"github.com/vk/pakego/internal/artifact"
	"github.com/vk/pakego/internal/dag"
	"github.com/vk/pakego/internal/staleness"
	"github.com/vk/pakego/internal/task"
)

const docWidth = 72

// State is the at-a-glance freshness of a task outside of any build.
type State string

const (
	StateCurrent State = "current"
	StateStale   State = "stale"
	StateAlways  State = "always"
	StateMissing State = "missing"
)

// StateOf evaluates def as if none of its dependencies ran.
func StateOf(def *task.Definition) State {
	d, err := staleness.Evaluate(def, false)
	switch {
	case err != nil:
		return StateMissing
	case d.Reason == staleness.ReasonNoOutputs:
		return StateAlways
	case d.Stale:
		return StateStale
	}
	return StateCurrent
}

func stateString(s State, width int) string {
	label := fmt.Sprintf("%-*s", width, s)
	switch s {
	case StateCurrent:
		return color.GreenString("%s", label)
	case StateAlways:
		return color.MagentaString("%s", label)
	case StateMissing:
		return color.YellowString("%s", label)
	}
	return color.RedString("%s", label)
}

// ListTasks writes one line per task: its state, its name and the first
// line of its documentation.
func ListTasks(w io.Writer, g *dag.Graph, defaults []string) {
	defs := g.Tasks()
	if len(defaults) > 0 {
		fmt.Fprintf(w, "Default tasks: %s\n\n", strings.Join(defaults, ", "))
	}

	width := 0
	for _, d := range defs {
		width = max(width, len(d.Name))
	}
	for _, d := range defs {
		doc, _, _ := strings.Cut(d.Doc, "\n")
		line := fmt.Sprintf("%s %s", stateString(StateOf(d), 7), color.HiWhiteString("%-*s", width, d.Name))
		if doc != "" {
			line += "  " + doc
		}
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
}

// TaskInfo writes the full description of every task: wrapped
// documentation, artifacts and dependencies.
func TaskInfo(w io.Writer, g *dag.Graph, defaults []string) {
	if len(defaults) > 0 {
		fmt.Fprintf(w, "Default tasks: %s\n\n", strings.Join(defaults, ", "))
	}
	for i, d := range g.Tasks() {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "===== %s [%s]\n", color.HiWhiteString("%s", d.Name), stateString(StateOf(d), 0))
		if d.Doc != "" {
			for _, line := range strings.Split(wordwrap.WrapString(d.Doc, docWidth), "\n") {
				fmt.Fprintf(w, "  %s\n", line)
			}
		}
		field(w, "inputs", artifact.Paths(d.Inputs))
		field(w, "outputs", artifact.Paths(d.Outputs))
		deps, err := g.Dependencies(d.Name)
		if err != nil {
			deps = d.DependsOn
		}
		field(w, "depends on", deps)
	}
}

func field(w io.Writer, label string, values []string) {
	if len(values) == 0 {
		return
	}
	fmt.Fprintf(w, "  %s %s\n", color.CyanString("%s:", label), strings.Join(values, " "))
}
