package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/mordilloSan/go-logger/logger"

	"hashdb/internal/config"
	"hashdb/internal/discover"
	"hashdb/internal/dupes"
	"hashdb/internal/hasher"
	"hashdb/internal/indexer"
	"hashdb/internal/report"
	"hashdb/internal/storage"
	"hashdb/internal/storage/sqlite"
)

// App ties together configuration, the index store, the indexer, and the
// duplicate resolver for a single run.
type App struct {
	cfg      config.Config
	store    *sqlite.Store
	indexer  *indexer.Indexer
	resolver *dupes.Resolver
	console  *report.Console
}

// New opens the index and constructs an App writing its report to out.
func New(ctx context.Context, cfg config.Config, out io.Writer) (*App, error) {
	algo, err := hasher.LookupAlgorithm(cfg.Algorithm)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	if err := store.CheckAlgorithm(ctx, algo.Name); err != nil {
		store.Close()
		return nil, fmt.Errorf("open index %s: %w", cfg.DatabasePath, err)
	}

	console := report.NewConsole(out, cfg.Format, cfg.Quiet)

	idx, err := indexer.New(store, hasher.New(algo, cfg.BufferSize), console)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create indexer: %w", err)
	}

	resolver, err := dupes.New(store)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create resolver: %w", err)
	}

	return &App{
		cfg:      cfg,
		store:    store,
		indexer:  idx,
		resolver: resolver,
		console:  console,
	}, nil
}

// Close releases the index.
func (a *App) Close() error {
	return a.store.Close()
}

// Run executes the configured steps: optional prune, the indexing pass, and
// the duplicate report.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.CleanUp {
		removed, err := a.indexer.Prune(ctx)
		if err != nil {
			return fmt.Errorf("prune index: %w", err)
		}
		remaining, err := a.store.Count(ctx)
		if err != nil {
			logger.Warnf("counting index entries: %v", err)
		}
		logger.InfoKV("index pruned", "removed", removed, "remaining", remaining)
		if err := a.console.Pruned(removed); err != nil {
			return err
		}
	}

	if !a.cfg.SkipHash {
		if err := a.index(ctx); err != nil {
			return err
		}
	}

	if !a.cfg.SkipMatch {
		rep, err := a.resolver.Find(ctx)
		if err != nil {
			return fmt.Errorf("find duplicates: %w", err)
		}
		logger.InfoKV("duplicates resolved", "groups", len(rep.Groups), "duplicates", rep.DuplicateFiles)
		if err := a.console.Duplicates(rep); err != nil {
			return err
		}
	}

	return nil
}

func (a *App) index(ctx context.Context) error {
	root := a.cfg.Directory

	previous, err := a.store.ScanState(ctx, root)
	if err != nil {
		logger.Warnf("reading scan state of %s: %v", root, err)
	} else if !previous.LastRun.IsZero() {
		logger.Infof("%s last indexed %s (%d files, %d bytes hashed)",
			root, previous.LastRun.Format(time.RFC3339), previous.FilesHashed, previous.BytesHashed)
	}

	logger.Infof("indexing %s", root)
	result, err := a.indexer.Update(ctx, root, discover.NewExtensions(a.cfg.Extensions))
	if err != nil {
		return fmt.Errorf("index %s: %w", root, err)
	}
	logger.InfoKV("index updated", "root", root, "seen", result.FilesSeen,
		"hashed", result.FilesHashed, "failed", result.FilesFailed, "bytes", result.BytesHashed)

	state := storage.ScanState{
		RootPath:    root,
		LastRun:     time.Now(),
		FilesHashed: int64(result.FilesHashed),
		BytesHashed: result.BytesHashed,
	}
	if err := a.store.UpdateScanState(ctx, state); err != nil {
		logger.Warnf("saving scan state of %s: %v", root, err)
	}

	return a.console.Indexed(result)
}
