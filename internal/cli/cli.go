package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"

	ucli "github.com/urfave/cli/v3"
	"github.com/vk/pakego/internal/app"
	"github.com/vk/pakego/internal/buildfile"
	"github.com/vk/pakego/internal/config"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// Parse processes command-line arguments (without the program name). It
// returns a populated Config, a boolean indicating if the program should
// exit cleanly (help was shown), or an ExitError.
func Parse(ctx context.Context, args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")

	var parsed *app.Config
	cmd := newCommand(output, func(c *app.Config) { parsed = c })
	if err := cmd.Run(ctx, append([]string{cmd.Name}, args...)); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return nil, false, exitErr
		}
		return nil, false, &ExitError{Code: ExitBadArguments, Message: err.Error(), Err: err}
	}
	if parsed == nil {
		slog.Debug("No build requested, exiting.")
		return nil, true, nil
	}

	slog.Debug("CLI parser finished successfully.", "config", parsed)
	return parsed, false, nil
}

func newCommand(output io.Writer, onConfig func(*app.Config)) *ucli.Command {
	return &ucli.Command{
		Name:      "pakego",
		Usage:     "Run the tasks of a build file, rebuilding only what is out of date",
		ArgsUsage: "[TASK...]",
		Writer:    output,
		ErrWriter: output,

		HideHelpCommand:           true,
		DisableSliceFlagSeparator: true,
		Flags: []ucli.Flag{
			&ucli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Path to the build file",
				Value:   buildfile.DefaultName,
			},
			&ucli.IntFlag{
				Name:    "jobs",
				Aliases: []string{"j"},
				Usage:   "Maximum number of tasks to run at once",
			},
			&ucli.StringFlag{
				Name:    "directory",
				Aliases: []string{"C"},
				Usage:   "Change to this directory before reading the build file",
			},
			&ucli.StringSliceFlag{
				Name:    "define",
				Aliases: []string{"D"},
				Usage:   "Define a build file variable as name=value (repeatable)",
			},
			&ucli.BoolFlag{
				Name:    "dry-run",
				Aliases: []string{"n"},
				Usage:   "Print the tasks that would run without running them",
			},
			&ucli.BoolFlag{
				Name:    "show-tasks",
				Aliases: []string{"t"},
				Usage:   "List the tasks of the build file",
			},
			&ucli.BoolFlag{
				Name:  "show-task-info",
				Usage: "Describe every task of the build file",
			},
			&ucli.StringFlag{
				Name:  "log-level",
				Usage: "Logging level: debug, info, warn or error",
			},
			&ucli.StringFlag{
				Name:  "log-format",
				Usage: "Log output format: text or json",
			},
			&ucli.StringFlag{
				Name:  "config",
				Usage: "Path to the settings file",
				Value: config.DefaultPath,
			},
			&ucli.StringFlag{
				Name:  "events-url",
				Usage: "Publish build events to this socket.io endpoint",
			},
			&ucli.IntFlag{
				Name:  "status-port",
				Usage: "Port for the HTTP status server. 0 is disabled.",
			},
			&ucli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output",
			},
			&ucli.IntFlag{
				Name:   "depth",
				Usage:  "Sub-build nesting level",
				Hidden: true,
			},
		},
		OnUsageError: func(_ context.Context, _ *ucli.Command, err error, _ bool) error {
			return &ExitError{Code: ExitBadArguments, Message: err.Error(), Err: err}
		},
		ExitErrHandler: func(context.Context, *ucli.Command, error) {},
		Action: func(_ context.Context, cmd *ucli.Command) error {
			cfg, err := configFromCommand(cmd)
			if err != nil {
				return err
			}
			onConfig(cfg)
			return nil
		},
	}
}

// configFromCommand layers the flags over the settings file.
func configFromCommand(cmd *ucli.Command) (*app.Config, error) {
	dir := cmd.String("directory")

	settingsPath := cmd.String("config")
	if dir != "" && !filepath.IsAbs(settingsPath) {
		settingsPath = filepath.Join(dir, settingsPath)
	}
	load := config.LoadOptional
	if cmd.IsSet("config") {
		load = config.Load
	}
	settings, err := load(settingsPath)
	if err != nil {
		return nil, &ExitError{Code: ExitBadArguments, Message: err.Error(), Err: err}
	}
	slog.Debug("Settings loaded.", "path", settingsPath)

	defines, err := parseDefines(settings.Defines, cmd.StringSlice("define"))
	if err != nil {
		return nil, err
	}

	cfg := app.Config{
		File:         settings.File,
		Dir:          dir,
		Targets:      cmd.Args().Slice(),
		Jobs:         settings.Jobs,
		DryRun:       cmd.Bool("dry-run"),
		Defines:      defines,
		ShowTasks:    cmd.Bool("show-tasks"),
		ShowTaskInfo: cmd.Bool("show-task-info"),
		LogLevel:     settings.LogLevel,
		LogFormat:    settings.LogFormat,
		NoColor:      cmd.Bool("no-color"),
		EventsURL:    settings.EventsURL,
		StatusPort:   settings.StatusPort,
		Depth:        cmd.Int("depth"),
	}
	if cmd.IsSet("file") {
		cfg.File = cmd.String("file")
	}
	if cmd.IsSet("jobs") {
		cfg.Jobs = cmd.Int("jobs")
	} else if cfg.DryRun || cfg.ShowTasks || cfg.ShowTaskInfo {
		// the jobs setting only applies to real builds
		cfg.Jobs = 1
	}
	if cmd.IsSet("log-level") {
		cfg.LogLevel = cmd.String("log-level")
	}
	if cmd.IsSet("log-format") {
		cfg.LogFormat = cmd.String("log-format")
	}
	if cmd.IsSet("events-url") {
		cfg.EventsURL = cmd.String("events-url")
	}
	if cmd.IsSet("status-port") {
		cfg.StatusPort = cmd.Int("status-port")
	}

	validated, err := app.NewConfig(cfg)
	if err != nil {
		return nil, &ExitError{Code: ExitBadArguments, Message: err.Error(), Err: err}
	}
	return validated, nil
}
