package dupes

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hashdb/internal/storage"
	"hashdb/internal/storage/sqlite"
)

func createTestFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func openTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func insert(t *testing.T, store *sqlite.Store, path, hash string) {
	t.Helper()
	require.NoError(t, store.Insert(context.Background(), storage.Entry{Path: path, Hash: hash, ModTime: time.Now()}))
}

func TestNew(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestFind(t *testing.T) {
	ctx := context.Background()

	t.Run("empty_index", func(t *testing.T) {
		r, err := New(openTestStore(t))
		require.NoError(t, err)

		report, err := r.Find(ctx)
		require.NoError(t, err)
		assert.Empty(t, report.Groups)
		assert.Zero(t, report.DuplicateFiles)
		assert.Zero(t, report.ReclaimableBytes)
	})

	t.Run("three_identical_one_different", func(t *testing.T) {
		dir := t.TempDir()
		store := openTestStore(t)
		content := []byte("identical bytes")
		a := createTestFile(t, dir, "a.mp4", content)
		b := createTestFile(t, dir, "b.mp4", content)
		c := createTestFile(t, dir, "c.mp4", content)
		d := createTestFile(t, dir, "d.mp4", []byte("other"))
		insert(t, store, a, "same")
		insert(t, store, b, "same")
		insert(t, store, c, "same")
		insert(t, store, d, "different")

		r, err := New(store)
		require.NoError(t, err)
		report, err := r.Find(ctx)
		require.NoError(t, err)

		require.Len(t, report.Groups, 1)
		group := report.Groups[0]
		assert.Equal(t, "same", group.Hash)
		assert.Equal(t, []string{a, b, c}, group.Paths)
		assert.Equal(t, a, group.Keeper)
		assert.Equal(t, int64(len(content)), group.FileSize)
		assert.Equal(t, 2, report.DuplicateFiles)
		assert.Equal(t, int64(2*len(content)), report.ReclaimableBytes)
	})

	t.Run("keeper_is_first_existing_path", func(t *testing.T) {
		dir := t.TempDir()
		store := openTestStore(t)
		insert(t, store, filepath.Join(dir, "a.mp4"), "h")
		b := createTestFile(t, dir, "b.mp4", []byte("12345"))
		insert(t, store, b, "h")

		r, err := New(store)
		require.NoError(t, err)
		report, err := r.Find(ctx)
		require.NoError(t, err)

		require.Len(t, report.Groups, 1)
		assert.Equal(t, b, report.Groups[0].Keeper)
		assert.Equal(t, 1, report.DuplicateFiles)
		assert.Equal(t, int64(5), report.ReclaimableBytes)
	})

	t.Run("all_paths_stale", func(t *testing.T) {
		dir := t.TempDir()
		store := openTestStore(t)
		insert(t, store, filepath.Join(dir, "x.mp4"), "h")
		insert(t, store, filepath.Join(dir, "y.mp4"), "h")

		r, err := New(store)
		require.NoError(t, err)
		report, err := r.Find(ctx)
		require.NoError(t, err)

		require.Len(t, report.Groups, 1)
		assert.Empty(t, report.Groups[0].Keeper)
		assert.Equal(t, 1, report.DuplicateFiles)
		assert.Zero(t, report.ReclaimableBytes)
	})
}

type brokenIndex struct {
	hashes  []string
	listErr error
	pathErr map[string]error
	paths   map[string][]string
}

func (b *brokenIndex) DistinctHashes(context.Context) ([]string, error) {
	return b.hashes, b.listErr
}

func (b *brokenIndex) PathsForHash(_ context.Context, hash string) ([]string, error) {
	return b.paths[hash], b.pathErr[hash]
}

func TestFindErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("listing_hashes_fails", func(t *testing.T) {
		r, err := New(&brokenIndex{listErr: errors.New("disk I/O error")})
		require.NoError(t, err)
		_, err = r.Find(ctx)
		assert.Error(t, err)
	})

	t.Run("one_hash_fails", func(t *testing.T) {
		r, err := New(&brokenIndex{
			hashes:  []string{"bad", "good"},
			pathErr: map[string]error{"bad": errors.New("malformed")},
			paths:   map[string][]string{"good": {"/missing/1", "/missing/2"}},
		})
		require.NoError(t, err)
		report, err := r.Find(ctx)
		require.NoError(t, err)
		require.Len(t, report.Groups, 1)
		assert.Equal(t, "good", report.Groups[0].Hash)
	})
}
