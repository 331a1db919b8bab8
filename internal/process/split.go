package process

import (
	"fmt"
	"os"

	"mvdan.cc/sh/v3/shell"
)

// Split breaks a command line into fields using POSIX shell rules: quoting,
// brace and tilde expansion, globbing and $name expansion. Variables are
// looked up in env first and then in the process environment.
func Split(line string, env map[string]string) ([]string, error) {
	fields, err := shell.Fields(line, func(name string) string {
		if v, ok := env[name]; ok {
			return v
		}
		return os.Getenv(name)
	})
	if err != nil {
		return nil, fmt.Errorf("parsing command line %q: %w", line, err)
	}
	return fields, nil
}

// ParseLine splits line and turns it into a Command.
func ParseLine(line string, env map[string]string) (Command, error) {
	fields, err := Split(line, env)
	if err != nil {
		return Command{}, err
	}
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("command line %q is empty", line)
	}
	return Command{Name: fields[0], Args: fields[1:]}, nil
}
