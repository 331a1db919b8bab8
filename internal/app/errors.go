package app

import "errors"

var (
	// ErrBuildFile wraps every failure to read, parse or evaluate the build
	// file.
	ErrBuildFile = errors.New("build file error")
	// ErrNoTasksDefined is returned when the build file declares no task.
	ErrNoTasksDefined = errors.New("no tasks defined")
	// ErrNoTasksSpecified is returned when neither the command line nor the
	// build file's default list names a task to run.
	ErrNoTasksSpecified = errors.New("no tasks specified")
)
