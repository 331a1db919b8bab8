// Package artifact identifies the files and directories a task reads or
// writes and answers the only question the build engine asks about them:
// does the path exist, and when was it last modified.
package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Ref is a reference to a filesystem path. Path keeps the string the user
// declared; Abs is the cleaned absolute form used for identity, so two tasks
// naming the same file through different relative spellings still match.
type Ref struct {
	Path string
	Abs  string
}

// New resolves path against baseDir. An empty baseDir means the process
// working directory.
func New(baseDir, path string) (Ref, error) {
	if path == "" {
		return Ref{}, errors.New("artifact path cannot be empty")
	}
	abs := path
	if !filepath.IsAbs(abs) {
		if baseDir == "" {
			wd, err := os.Getwd()
			if err != nil {
				return Ref{}, fmt.Errorf("resolving %q: %w", path, err)
			}
			baseDir = wd
		}
		abs = filepath.Join(baseDir, abs)
	}
	return Ref{Path: path, Abs: filepath.Clean(abs)}, nil
}

// NewAll resolves every path against baseDir, preserving order.
func NewAll(baseDir string, paths []string) ([]Ref, error) {
	refs := make([]Ref, 0, len(paths))
	for _, p := range paths {
		ref, err := New(baseDir, p)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (r Ref) String() string {
	return r.Path
}

// Info is a point-in-time view of an artifact on disk.
type Info struct {
	Ref     Ref
	Exists  bool
	IsDir   bool
	ModTime time.Time
}

// Stat reads the artifact's metadata. A missing path is reported through
// Info.Exists with a zero ModTime, not as an error. Directories report their
// own modification time; their contents are not inspected.
func (r Ref) Stat() (Info, error) {
	fi, err := os.Stat(r.Abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Info{Ref: r}, nil
		}
		return Info{Ref: r}, fmt.Errorf("stat %s: %w", r.Path, err)
	}
	return Info{
		Ref:     r,
		Exists:  true,
		IsDir:   fi.IsDir(),
		ModTime: fi.ModTime(),
	}, nil
}

// Paths returns the declared paths of refs.
func Paths(refs []Ref) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.Path
	}
	return out
}
