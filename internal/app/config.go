package app

import (
	"errors"
	"fmt"
)

// ErrBadArguments is matched by every configuration validation failure.
var ErrBadArguments = errors.New("bad arguments")

// ConfigError describes an invalid or contradictory configuration.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }

func (e *ConfigError) Is(target error) bool { return target == ErrBadArguments }

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	File    string // build file, relative to Dir
	Dir     string // directory to run from; empty is the current directory
	Targets []string
	Jobs    int
	DryRun  bool
	Defines map[string]string

	ShowTasks    bool
	ShowTaskInfo bool

	LogFormat  string
	LogLevel   string
	NoColor    bool
	EventsURL  string
	StatusPort int

	// Depth is the sub-build nesting level; zero for a top-level build.
	Depth int
}

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.File == "" {
		return nil, &ConfigError{Message: "build file is a required configuration field and cannot be empty"}
	}
	if cfg.Jobs < 0 {
		return nil, &ConfigError{Message: fmt.Sprintf("jobs may not be less than 1, got %d", cfg.Jobs)}
	}
	if cfg.Jobs == 0 {
		cfg.Jobs = 1
	}
	if cfg.Depth < 0 {
		return nil, &ConfigError{Message: "depth may not be negative"}
	}
	if cfg.StatusPort < 0 || cfg.StatusPort > 65535 {
		return nil, &ConfigError{Message: fmt.Sprintf("invalid status port %d", cfg.StatusPort)}
	}

	switch cfg.LogLevel {
	case "":
		cfg.LogLevel = "warn"
	case "debug", "info", "warn", "error":
	default:
		return nil, &ConfigError{Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	switch cfg.LogFormat {
	case "":
		cfg.LogFormat = "text"
	case "text", "json":
	default:
		return nil, &ConfigError{Message: "invalid log-format: must be 'text' or 'json'"}
	}

	listing := cfg.ShowTasks || cfg.ShowTaskInfo
	switch {
	case cfg.ShowTasks && cfg.ShowTaskInfo:
		return nil, &ConfigError{Message: "-t/--show-tasks and --show-task-info cannot be used together"}
	case cfg.DryRun && cfg.Jobs > 1:
		return nil, &ConfigError{Message: "-n/--dry-run and -j/--jobs cannot be used together"}
	case cfg.DryRun && listing:
		return nil, &ConfigError{Message: "-n/--dry-run cannot be used with the task listing options"}
	case listing && cfg.Jobs > 1:
		return nil, &ConfigError{Message: "-j/--jobs cannot be used with the task listing options"}
	case listing && len(cfg.Targets) > 0:
		return nil, &ConfigError{Message: "tasks may not be specified when listing tasks"}
	}

	if cfg.Defines == nil {
		cfg.Defines = map[string]string{}
	}
	return &cfg, nil
}
