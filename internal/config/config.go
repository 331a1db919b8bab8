// Package config reads the optional pakego settings file. Settings provide
// defaults for command-line flags; explicit flags always win.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the settings file looked up in the working directory.
const DefaultPath = ".pakego.yaml"

// Settings mirrors the settings file.
//
//	file: Pakefile.hcl
//	jobs: 4
//	log_level: info
//	log_format: text
//	events_url: http://localhost:3000/builds
//	status_port: 8080
//	defines:
//	  mode: release
type Settings struct {
	File       string            `yaml:"file"`
	Jobs       int               `yaml:"jobs"`
	LogLevel   string            `yaml:"log_level"`
	LogFormat  string            `yaml:"log_format"`
	EventsURL  string            `yaml:"events_url"`
	StatusPort int               `yaml:"status_port"`
	Defines    map[string]string `yaml:"defines"`
}

// Load reads the settings file at path and applies defaults.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	return Parse(data)
}

// LoadOptional is Load, except that a missing file yields the defaults.
func LoadOptional(path string) (*Settings, error) {
	s, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		s = &Settings{}
		applyDefaults(s)
		return s, nil
	}
	return s, err
}

// Parse decodes settings from YAML. Unknown keys are rejected.
func Parse(data []byte) (*Settings, error) {
	var s Settings
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	if err := validate(&s); err != nil {
		return nil, err
	}
	applyDefaults(&s)
	return &s, nil
}

func validate(s *Settings) error {
	if s.Jobs < 0 {
		return fmt.Errorf("settings: jobs must not be negative, got %d", s.Jobs)
	}
	if s.StatusPort < 0 || s.StatusPort > 65535 {
		return fmt.Errorf("settings: status_port out of range: %d", s.StatusPort)
	}
	return nil
}

// applyDefaults fills in zero-value fields with sensible defaults.
func applyDefaults(s *Settings) {
	if s.File == "" {
		s.File = "Pakefile.hcl"
	}
	if s.Jobs == 0 {
		s.Jobs = 1
	}
	if s.LogLevel == "" {
		s.LogLevel = "warn"
	}
	if s.LogFormat == "" {
		s.LogFormat = "text"
	}
	if s.Defines == nil {
		s.Defines = map[string]string{}
	}
}
