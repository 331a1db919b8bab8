package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/vk/pakego/internal/buildfile"
	"github.com/vk/pakego/internal/ctxlog"
	"github.com/vk/pakego/internal/dag"
	"github.com/vk/pakego/internal/events"
	"github.com/vk/pakego/internal/process"
	"github.com/vk/pakego/internal/report"
	"github.com/vk/pakego/internal/scheduler"
)

const eventsDialTimeout = 5 * time.Second

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	runner     process.Runner
	executable string
}

// Option customizes an App.
type Option func(*App)

// WithRunner replaces the process runner used by run lines and sub-builds.
func WithRunner(r process.Runner) Option {
	return func(a *App) { a.runner = r }
}

// WithExecutable sets the program started for sub-builds. The default is
// the running binary.
func WithExecutable(path string) Option {
	return func(a *App) { a.executable = path }
}

// NewApp is the constructor for the main application. Build output and the
// final summary go to outW; log records go to logW.
func NewApp(outW, logW io.Writer, cfg *Config, opts ...Option) *App {
	a := &App{
		outW:   outW,
		logger: newLogger(cfg.LogLevel, cfg.LogFormat, cfg.Depth, logW),
		config: cfg,
		runner: process.ExecRunner{},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.executable == "" {
		if exe, err := os.Executable(); err == nil {
			a.executable = exe
		} else {
			a.executable = os.Args[0]
		}
	}
	if cfg.NoColor {
		color.NoColor = true
	}
	a.logger.Debug("Logger configured successfully.")
	return a
}

// Run loads the build file, then either lists its tasks or builds the
// requested targets. The result is nil when no build was started.
func (a *App) Run(ctx context.Context) (*scheduler.BuildResult, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	file, err := a.buildFilePath()
	if err != nil {
		return nil, err
	}
	if a.config.Depth > 0 {
		a.logger.Info(fmt.Sprintf("*** enter sub-build[%d]", a.config.Depth), "file", file)
		defer a.logger.Info(fmt.Sprintf("*** exit sub-build[%d]", a.config.Depth))
	}
	if a.config.Dir != "" {
		a.logger.Info("📂 Entering directory", "dir", filepath.Dir(file))
		defer a.logger.Info("📂 Exiting directory", "dir", filepath.Dir(file))
	}

	bf, err := buildfile.Load(ctx, file, buildfile.Options{Defines: a.config.Defines})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildFile, err)
	}

	g := dag.New()
	for _, def := range bf.Tasks {
		if err := g.Register(def); err != nil {
			return nil, err
		}
	}
	if g.Len() == 0 {
		return nil, ErrNoTasksDefined
	}
	if err := g.Build(ctx); err != nil {
		return nil, fmt.Errorf("failed to build dependency graph: %w", err)
	}
	a.logger.Debug("Dependency graph built.", "task_count", g.Len())

	switch {
	case a.config.ShowTasks:
		report.ListTasks(a.outW, g, bf.Defaults)
		return nil, nil
	case a.config.ShowTaskInfo:
		report.TaskInfo(a.outW, g, bf.Defaults)
		return nil, nil
	}

	targets := a.config.Targets
	if len(targets) == 0 {
		targets = bf.Defaults
	}
	if len(targets) == 0 {
		return nil, ErrNoTasksSpecified
	}

	tracker := newStatusTracker()
	observers := scheduler.Observers{tracker}
	if a.config.StatusPort > 0 {
		srv := newStatusServer(a.logger, a.config.StatusPort, tracker)
		if err := srv.start(); err != nil {
			return nil, err
		}
		defer srv.shutdown(ctx)
	}
	if a.config.EventsURL != "" {
		pub, err := events.Dial(ctx, a.config.EventsURL, eventsDialTimeout)
		if err != nil {
			a.logger.Warn("Build events disabled.", "url", a.config.EventsURL, "error", err)
		} else {
			defer pub.Close()
			observers = append(observers, pub)
		}
	}

	sched := scheduler.New(g, scheduler.Options{
		Parallel:       a.config.Jobs > 1,
		MaxConcurrency: a.config.Jobs,
		DryRun:         a.config.DryRun,
		Dir:            bf.Dir,
		Runner:         a.runner,
		SubBuild: &process.SubBuild{
			Executable: a.executable,
			Depth:      a.config.Depth,
			Defines:    a.config.Defines,
			Runner:     a.runner,
		},
		Output:   a.outW,
		Observer: observers,
	})

	a.logger.Info("🚀 Starting build...", "targets", targets, "jobs", a.config.Jobs, "dry_run", a.config.DryRun)
	res, err := sched.Run(ctx, targets)
	if err != nil {
		return nil, err
	}
	report.Summary(a.outW, res)
	a.logger.Info("🏁 Build finished.", "build_id", res.ID, "status", res.Status, "executed", res.Executed())

	if res.Status == scheduler.StatusFailed {
		return res, res.Err
	}
	return res, nil
}

func (a *App) buildFilePath() (string, error) {
	file := a.config.File
	if a.config.Dir != "" && !filepath.IsAbs(file) {
		file = filepath.Join(a.config.Dir, file)
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving build file %s: %w", file, err)
	}
	return abs, nil
}
