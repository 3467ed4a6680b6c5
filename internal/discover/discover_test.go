package discover

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestExtensions(t *testing.T) {
	exts := NewExtensions([]string{".mp4", "mkv", " ", ""})
	assert.Equal(t, []string{".mkv", ".mp4"}, exts.List())

	cases := map[string]bool{
		"clip.mp4":         true,
		"dir/clip.mkv":     true,
		"clip.MP4":         false,
		"clip.mp4.txt":     false,
		"clip":             false,
		".mp4":             false,
		".hidden.mp4":      true,
		"archive.tar.mp4":  true,
		"clip.mp4/":        true,
		"/abs/path/a.mp4x": false,
	}
	for name, want := range cases {
		assert.Equal(t, want, exts.Match(name), name)
	}
}

func TestWalk(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	exts := NewExtensions(DefaultExtensions)

	want := []string{
		createTestFile(t, root, "a.mp4", []byte("X")),
		createTestFile(t, root, "sub/b.mkv", []byte("X")),
		createTestFile(t, root, "sub/deeper/still/c.avi", []byte("Y")),
	}
	createTestFile(t, root, "notes.txt", []byte("X"))
	createTestFile(t, root, "sub/clip.MP4", []byte("X"))
	createTestFile(t, root, "lost+found/recovered.mp4", []byte("X"))

	t.Run("recursive_with_filter", func(t *testing.T) {
		files, err := Walk(ctx, root, exts)
		require.NoError(t, err)
		sort.Strings(files)
		sort.Strings(want)
		assert.Equal(t, want, files)
	})

	t.Run("relative_root_yields_absolute_paths", func(t *testing.T) {
		wd, err := os.Getwd()
		require.NoError(t, err)
		require.NoError(t, os.Chdir(root))
		t.Cleanup(func() { os.Chdir(wd) })

		files, err := Walk(ctx, ".", exts)
		require.NoError(t, err)
		for _, f := range files {
			assert.True(t, filepath.IsAbs(f), f)
		}
		assert.Len(t, files, len(want))
	})

	t.Run("no_matches", func(t *testing.T) {
		files, err := Walk(ctx, root, NewExtensions([]string{".wmv"}))
		require.NoError(t, err)
		assert.Empty(t, files)
	})

	t.Run("missing_root", func(t *testing.T) {
		_, err := Walk(ctx, filepath.Join(root, "nope"), exts)
		assert.Error(t, err)
	})

	t.Run("root_is_file", func(t *testing.T) {
		_, err := Walk(ctx, want[0], exts)
		assert.Error(t, err)
	})

	t.Run("symlinked_directory_not_followed", func(t *testing.T) {
		loopRoot := t.TempDir()
		createTestFile(t, loopRoot, "x.mp4", []byte("X"))
		require.NoError(t, os.Symlink(loopRoot, filepath.Join(loopRoot, "loop")))

		files, err := Walk(ctx, loopRoot, exts)
		require.NoError(t, err)
		assert.Len(t, files, 1)
	})

	t.Run("cancelled", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := Walk(cancelled, root, exts)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
