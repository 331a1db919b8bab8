package fileglob

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, base string, rel ...string) {
	t.Helper()
	for _, r := range rel {
		p := filepath.Join(base, filepath.FromSlash(r))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, nil, 0o644))
	}
}

func TestGlob(t *testing.T) {
	base := t.TempDir()
	touch(t, base, "src/b.c", "src/a.c", "src/a.h", "src/nested/deep/c.c")

	t.Run("single level", func(t *testing.T) {
		got, err := Glob(base, "src/*.c")
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join("src", "a.c"), filepath.Join("src", "b.c")}, got)
	})

	t.Run("double star", func(t *testing.T) {
		got, err := Glob(base, "src/**/*.c")
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join("src", "a.c"),
			filepath.Join("src", "b.c"),
			filepath.Join("src", "nested", "deep", "c.c"),
		}, got)
	})

	t.Run("absolute pattern", func(t *testing.T) {
		got, err := Glob("", filepath.Join(base, "src", "*.h"))
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(base, "src", "a.h")}, got)
	})

	t.Run("no matches", func(t *testing.T) {
		got, err := Glob(base, "src/*.go")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("invalid pattern", func(t *testing.T) {
		_, err := Glob(base, "src/[.c")
		assert.Error(t, err)
	})
}

func TestPattern(t *testing.T) {
	inputs := []string{"src/main.c", "src/util/str.c"}

	assert.Equal(t, []string{"obj/main.o", "obj/str.o"}, Pattern("obj/%.o", inputs))
	assert.Equal(t, []string{"src/main.o", "src/util/str.o"}, Pattern("{dir}/%.o", inputs))
	assert.Equal(t, []string{"out/main.c.bak", "out/str.c.bak"}, Pattern("out/%{ext}.bak", inputs))
	assert.Empty(t, Pattern("obj/%.o", nil))
}
