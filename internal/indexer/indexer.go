package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mordilloSan/go-logger/logger"

	"hashdb/internal/discover"
	"hashdb/internal/storage"
)

// ErrNotRegular is reported for matching paths that are not regular files.
var ErrNotRegular = errors.New("not a regular file")

// EntryStore describes the persistence operations required by the indexer.
type EntryStore interface {
	Lookup(ctx context.Context, path string) (storage.Entry, bool, error)
	Insert(ctx context.Context, entry storage.Entry) error
	Update(ctx context.Context, entry storage.Entry) error
	Delete(ctx context.Context, path string) error
	Paths(ctx context.Context) ([]string, error)
}

// Hasher computes the content digest of a file.
type Hasher interface {
	SumFile(ctx context.Context, path string) (string, error)
}

// FileEvent is emitted for every file whose digest was (re)computed.
type FileEvent struct {
	Path string
	Size int64
	At   time.Time
	// Created is false when an existing entry was refreshed.
	Created bool
}

// Observer receives progress notifications. Implementations decide how, or
// whether, to present them.
type Observer interface {
	FileHashed(event FileEvent)
	EntryRemoved(path string)
}

// Result summarizes one indexing pass.
type Result struct {
	Root        string
	FilesSeen   int
	FilesHashed int
	FilesFailed int
	BytesHashed int64
	Elapsed     time.Duration
}

// Throughput returns bytes hashed per second, or 0 when nothing was timed.
func (r Result) Throughput() float64 {
	if r.BytesHashed == 0 || r.Elapsed <= 0 {
		return 0
	}
	return float64(r.BytesHashed) / r.Elapsed.Seconds()
}

// Indexer keeps the persistent index in step with the files under a root.
type Indexer struct {
	store    EntryStore
	hasher   Hasher
	observer Observer
	now      func() time.Time
}

// New constructs an Indexer. A nil observer discards progress events.
func New(store EntryStore, hasher Hasher, observer Observer) (*Indexer, error) {
	if store == nil {
		return nil, errors.New("indexer requires a store")
	}
	if hasher == nil {
		return nil, errors.New("indexer requires a hasher")
	}
	return &Indexer{
		store:    store,
		hasher:   hasher,
		observer: observer,
		now:      time.Now,
	}, nil
}

// Update hashes every file under root matching exts that is new to the index
// or whose modification time advanced past the stored one. Each entry is
// committed before the next file is considered. Failures on a single file
// are logged and counted; only a walk failure or cancellation aborts the run.
func (idx *Indexer) Update(ctx context.Context, root string, exts discover.Extensions) (Result, error) {
	start := idx.now()
	result := Result{Root: root}

	files, err := discover.Walk(ctx, root, exts)
	if err != nil {
		return result, fmt.Errorf("discover files: %w", err)
	}
	logger.Debugf("discovered %d candidate files under %s (%s)", len(files), root, strings.Join(exts.List(), ","))

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			result.Elapsed = idx.now().Sub(start)
			return result, err
		}
		result.FilesSeen++

		size, hashed, err := idx.updateFile(ctx, path)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				result.Elapsed = idx.now().Sub(start)
				return result, ctxErr
			}
			result.FilesFailed++
			logger.Warnf("skipping %s: %v", path, err)
			continue
		}
		if hashed {
			result.FilesHashed++
			result.BytesHashed += size
		}
	}

	result.Elapsed = idx.now().Sub(start)
	return result, nil
}

func (idx *Indexer) updateFile(ctx context.Context, path string) (int64, bool, error) {
	existing, found, err := idx.store.Lookup(ctx, path)
	if err != nil {
		return 0, false, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, false, fmt.Errorf("stat: %w", err)
	}
	// Opening a FIFO or device would block or never reach EOF.
	if !info.Mode().IsRegular() {
		return 0, false, fmt.Errorf("%w: %s", ErrNotRegular, info.Mode().Type())
	}
	if found && !existing.Stale(info.ModTime()) {
		return 0, false, nil
	}

	sum, err := idx.hasher.SumFile(ctx, path)
	if err != nil {
		return 0, false, err
	}

	entry := storage.Entry{
		Path:    path,
		Hash:    sum,
		ModTime: info.ModTime(),
	}
	if found {
		err = idx.store.Update(ctx, entry)
	} else {
		err = idx.store.Insert(ctx, entry)
	}
	if err != nil {
		return 0, false, err
	}

	if idx.observer != nil {
		idx.observer.FileHashed(FileEvent{
			Path:    path,
			Size:    info.Size(),
			At:      idx.now(),
			Created: !found,
		})
	}
	return info.Size(), true, nil
}
