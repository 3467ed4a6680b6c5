package dupes

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mordilloSan/go-logger/logger"
)

// HashIndex is the read side of the index the resolver groups.
type HashIndex interface {
	DistinctHashes(ctx context.Context) ([]string, error)
	PathsForHash(ctx context.Context, hash string) ([]string, error)
}

// Group is a set of indexed paths sharing one content hash.
type Group struct {
	Hash  string   `json:"hash"`
	Paths []string `json:"paths"`
	// Keeper is the first path of the group still present on disk; empty
	// when every path is stale.
	Keeper string `json:"keeper,omitempty"`
	// FileSize is the keeper's size.
	FileSize    int64 `json:"fileSize"`
	Reclaimable int64 `json:"reclaimable"`
}

// Duplicates is the number of copies beyond the keeper.
func (g Group) Duplicates() int {
	return len(g.Paths) - 1
}

// Report aggregates every duplicate group in the index.
type Report struct {
	Groups           []Group `json:"groups"`
	DuplicateFiles   int     `json:"duplicateFiles"`
	ReclaimableBytes int64   `json:"reclaimableBytes"`
}

// Resolver derives duplicate groups from the index.
type Resolver struct {
	index HashIndex
	stat  func(string) (os.FileInfo, error)
}

// New constructs a Resolver over index.
func New(index HashIndex) (*Resolver, error) {
	if index == nil {
		return nil, errors.New("resolver requires an index")
	}
	return &Resolver{index: index, stat: os.Stat}, nil
}

// Find groups the index by hash and accounts the bytes reclaimable by
// keeping a single copy of each group.
func (r *Resolver) Find(ctx context.Context) (Report, error) {
	report := Report{Groups: []Group{}}

	hashes, err := r.index.DistinctHashes(ctx)
	if err != nil {
		return report, fmt.Errorf("list hashes: %w", err)
	}

	for _, hash := range hashes {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		paths, err := r.index.PathsForHash(ctx, hash)
		if err != nil {
			logger.Warnf("skipping hash %s: %v", hash, err)
			continue
		}
		if len(paths) < 2 {
			continue
		}

		group := r.resolveGroup(hash, paths)
		report.Groups = append(report.Groups, group)
		report.DuplicateFiles += group.Duplicates()
		report.ReclaimableBytes += group.Reclaimable
	}

	return report, nil
}

func (r *Resolver) resolveGroup(hash string, paths []string) Group {
	group := Group{Hash: hash, Paths: paths}
	for _, path := range paths {
		info, err := r.stat(path)
		if err != nil {
			continue
		}
		group.Keeper = path
		group.FileSize = info.Size()
		group.Reclaimable = info.Size() * int64(group.Duplicates())
		break
	}
	if group.Keeper == "" {
		logger.Debugf("no path of hash %s exists on disk", hash)
	}
	return group
}
