// Package buildfile loads task definitions from an HCL build file.
//
//	default = ["all"]
//
//	task "compile" {
//	  doc     = "Compile every C source."
//	  inputs  = glob("src/*.c")
//	  outputs = pattern("obj/%.o", glob("src/*.c"))
//	  run     = ["cc -c $outdated_inputs"]
//	}
//
// Paths are relative to the directory holding the build file. Run lines are
// split with shell quoting rules; $task, $inputs, $outputs,
// $outdated_inputs, $outdated_outputs and $dependency_outputs expand to the
// task's artifacts.
package buildfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/pakego/internal/artifact"
	"github.com/vk/pakego/internal/ctxlog"
	"github.com/vk/pakego/internal/process"
	"github.com/vk/pakego/internal/task"
	"github.com/zclconf/go-cty/cty"
)

// DefaultName is the build file looked up when none is given.
const DefaultName = "Pakefile.hcl"

// fileRoot is the top-level schema of a build file.
type fileRoot struct {
	Default []string     `hcl:"default,optional"`
	Tasks   []*taskBlock `hcl:"task,block"`
}

type taskBlock struct {
	Name           string           `hcl:"name,label"`
	Doc            string           `hcl:"doc,optional"`
	Inputs         []string         `hcl:"inputs,optional"`
	Outputs        []string         `hcl:"outputs,optional"`
	DependsOn      []string         `hcl:"depends_on,optional"`
	Run            []string         `hcl:"run,optional"`
	Dir            string           `hcl:"dir,optional"`
	IgnoreErrors   bool             `hcl:"ignore_errors,optional"`
	Silent         bool             `hcl:"silent,optional"`
	TerminateBuild bool             `hcl:"terminate_build,optional"`
	SubBuilds      []*subBuildBlock `hcl:"subbuild,block"`
}

type subBuildBlock struct {
	File         string   `hcl:"file,label"`
	Targets      []string `hcl:"targets,optional"`
	IgnoreErrors bool     `hcl:"ignore_errors,optional"`
}

// Options controls evaluation of a build file.
type Options struct {
	// Defines are exposed to expressions as var.<name>.
	Defines map[string]string
	// Env is exposed as env.<NAME>. Nil means the process environment.
	Env map[string]string
}

// File is a loaded build file.
type File struct {
	Path     string
	Dir      string
	Defaults []string
	Tasks    []*task.Definition
}

// Load parses and evaluates the build file at path.
func Load(ctx context.Context, path string, opts Options) (*File, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build file loader started.", "path", path)

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving build file %s: %w", path, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("build file %s: %w", path, err)
	}
	dir := filepath.Dir(abs)

	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(abs)
	if diags.HasErrors() {
		return nil, &Error{Path: path, Diags: diags}
	}

	var root fileRoot
	diags = gohcl.DecodeBody(hclFile.Body, newEvalContext(dir, opts), &root)
	if diags.HasErrors() {
		return nil, &Error{Path: path, Diags: diags}
	}

	f := &File{Path: abs, Dir: dir, Defaults: root.Default}
	for _, tb := range root.Tasks {
		def, err := tb.definition(dir)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		f.Tasks = append(f.Tasks, def)
	}

	logger.Debug("Build file loading complete.", "tasks", len(f.Tasks), "defaults", f.Defaults)
	return f, nil
}

func (tb *taskBlock) definition(baseDir string) (*task.Definition, error) {
	inputs, err := artifact.NewAll(baseDir, tb.Inputs)
	if err != nil {
		return nil, fmt.Errorf("task '%s' inputs: %w", tb.Name, err)
	}
	outputs, err := artifact.NewAll(baseDir, tb.Outputs)
	if err != nil {
		return nil, fmt.Errorf("task '%s' outputs: %w", tb.Name, err)
	}

	workDir := baseDir
	if tb.Dir != "" {
		workDir = tb.Dir
		if !filepath.IsAbs(workDir) {
			workDir = filepath.Join(baseDir, workDir)
		}
	}

	def := &task.Definition{
		Name:      tb.Name,
		Doc:       strings.TrimSpace(tb.Doc),
		Inputs:    inputs,
		Outputs:   outputs,
		DependsOn: tb.DependsOn,
	}
	if len(tb.Run) > 0 || len(tb.SubBuilds) > 0 || tb.TerminateBuild {
		def.Action = tb.action(baseDir, workDir)
	}
	return def, nil
}

// action turns the block's run lines and sub-builds into a task body.
func (tb *taskBlock) action(baseDir, workDir string) task.Action {
	run := append([]string(nil), tb.Run...)
	subs := append([]*subBuildBlock(nil), tb.SubBuilds...)
	tmpl := process.Command{Dir: workDir, IgnoreErrors: tb.IgnoreErrors, Silent: tb.Silent}
	terminate := tb.TerminateBuild

	return func(ctx context.Context, tc *task.Context) error {
		for _, line := range run {
			if err := tc.Shell(ctx, line, tmpl); err != nil {
				return err
			}
		}
		for _, sb := range subs {
			file := sb.File
			if !filepath.IsAbs(file) {
				file = filepath.Join(baseDir, file)
			}
			if err := tc.SubBuild(ctx, file, sb.Targets, sb.IgnoreErrors); err != nil {
				return err
			}
		}
		if terminate {
			tc.Terminate()
		}
		return nil
	}
}

// Error carries the diagnostics of a build file that failed to parse or
// evaluate.
type Error struct {
	Path  string
	Diags hcl.Diagnostics
}

func (e *Error) Error() string {
	return fmt.Sprintf("build file %s: %s", e.Path, e.Diags.Error())
}

func (e *Error) Unwrap() error { return e.Diags }

func stringObject(m map[string]string) cty.Value {
	if len(m) == 0 {
		return cty.EmptyObjectVal
	}
	vals := make(map[string]cty.Value, len(m))
	for k, v := range m {
		vals[k] = cty.StringVal(v)
	}
	return cty.ObjectVal(vals)
}
