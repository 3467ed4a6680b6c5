package indexer

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hashdb/internal/discover"
)

func TestPrune(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store := openTestStore(t)
	idx, rec := newTestIndexer(t, store)

	keep := createTestFile(t, root, "keep.mp4", []byte("K"))
	gone := createTestFile(t, root, "gone.mp4", []byte("G"))

	_, err := idx.Update(ctx, root, discover.NewExtensions([]string{".mp4"}))
	require.NoError(t, err)

	t.Run("nothing_missing", func(t *testing.T) {
		n, err := idx.Prune(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		assert.Empty(t, rec.removed)
	})

	t.Run("removes_deleted_file", func(t *testing.T) {
		require.NoError(t, os.Remove(gone))

		n, err := idx.Prune(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, []string{gone}, rec.removed)

		paths, err := store.Paths(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{keep}, paths)
	})

	t.Run("second_prune_removes_nothing", func(t *testing.T) {
		n, err := idx.Prune(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("empty_index", func(t *testing.T) {
		empty, _ := newTestIndexer(t, openTestStore(t))
		n, err := empty.Prune(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})
}
