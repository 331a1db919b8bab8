// Package fileglob expands file patterns into artifact paths and derives
// output paths from input paths.
package fileglob

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Glob expands pattern relative to baseDir. The pattern syntax is
// doublestar's, so "**" matches any number of directories. Matches are
// returned sorted, in the same form as the pattern (relative patterns yield
// relative paths). A pattern matching nothing yields an empty slice.
func Glob(baseDir, pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(filepath.ToSlash(pattern)) {
		return nil, fmt.Errorf("invalid glob pattern %q", pattern)
	}

	var (
		matches []string
		err     error
	)
	if filepath.IsAbs(pattern) {
		matches, err = doublestar.FilepathGlob(pattern)
	} else {
		if baseDir == "" {
			baseDir = "."
		}
		matches, err = doublestar.Glob(os.DirFS(baseDir), filepath.ToSlash(path.Clean(filepath.ToSlash(pattern))))
		for i, m := range matches {
			matches[i] = filepath.FromSlash(m)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("expanding glob %q: %w", pattern, err)
	}
	slices.Sort(matches)
	return matches, nil
}

// Pattern derives one output path per input by substituting the template
// placeholders: "%" is the input's file name without extension, "{dir}" its
// directory and "{ext}" its extension including the dot.
//
//	Pattern("obj/%.o", []string{"src/main.c"}) => ["obj/main.o"]
func Pattern(template string, inputs []string) []string {
	out := make([]string, 0, len(inputs))
	for _, in := range inputs {
		dir := filepath.Dir(in)
		base := filepath.Base(in)
		ext := filepath.Ext(base)
		name := strings.TrimSuffix(base, ext)

		r := strings.NewReplacer("{dir}", dir, "%", name, "{ext}", ext)
		out = append(out, r.Replace(template))
	}
	return out
}
