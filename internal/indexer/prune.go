package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/mordilloSan/go-logger/logger"
)

// Prune deletes the entries whose file is confirmed absent from disk and
// returns how many were removed. Paths that cannot be checked for any other
// reason are kept.
func (idx *Indexer) Prune(ctx context.Context) (int, error) {
	paths, err := idx.store.Paths(ctx)
	if err != nil {
		return 0, fmt.Errorf("list indexed paths: %w", err)
	}

	removed := 0
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		if _, err := os.Stat(path); err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			logger.Warnf("keeping %s: %v", path, err)
			continue
		}

		if err := idx.store.Delete(ctx, path); err != nil {
			logger.Warnf("failed to remove %s: %v", path, err)
			continue
		}
		removed++
		if idx.observer != nil {
			idx.observer.EntryRemoved(path)
		}
	}

	return removed, nil
}
