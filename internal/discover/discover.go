package discover

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mordilloSan/go-logger/logger"
)

// DefaultExtensions are the media suffixes indexed when none are configured.
var DefaultExtensions = []string{".flv", ".mov", ".mp4", ".wmv", ".avi", ".mkv"}

// skipDirs are directory names never descended into.
var skipDirs = map[string]struct{}{
	"lost+found": {},
}

// Extensions is a case-sensitive set of file suffixes, each including the
// leading dot.
type Extensions map[string]struct{}

// NewExtensions builds a set from list, dropping blanks and adding a missing
// leading dot.
func NewExtensions(list []string) Extensions {
	exts := make(Extensions, len(list))
	for _, ext := range list {
		ext = strings.TrimSpace(ext)
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[ext] = struct{}{}
	}
	return exts
}

// Match reports whether the extension of name is in the set. Leading dots
// of hidden files are not an extension.
func (e Extensions) Match(name string) bool {
	ext := filepath.Ext(strings.TrimLeft(filepath.Base(name), "."))
	if ext == "" {
		return false
	}
	_, ok := e[ext]
	return ok
}

// List returns the extensions in sorted order.
func (e Extensions) List() []string {
	list := make([]string, 0, len(e))
	for ext := range e {
		list = append(list, ext)
	}
	sort.Strings(list)
	return list
}

// Walk returns the absolute path of every file under root whose extension is
// in exts. Directories are visited from an explicit work-list; symbolic
// links to directories are reported as files if they match but never
// followed. Unreadable subdirectories are logged and skipped.
func Walk(ctx context.Context, root string, exts Extensions) ([]string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %q: %w", root, err)
	}
	abs = filepath.Clean(abs)

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", abs)
	}

	var files []string
	pending := []string{abs}
	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dir := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		entries, err := os.ReadDir(dir)
		if err != nil {
			if dir == abs {
				return nil, fmt.Errorf("read root: %w", err)
			}
			logger.Warnf("skipping unreadable directory %s: %v", dir, err)
			continue
		}

		// Push subdirectories in reverse so they pop in name order.
		for i := len(entries) - 1; i >= 0; i-- {
			entry := entries[i]
			if !entry.IsDir() {
				continue
			}
			if _, skip := skipDirs[entry.Name()]; skip {
				logger.Debugf("skipping directory %s", filepath.Join(dir, entry.Name()))
				continue
			}
			pending = append(pending, filepath.Join(dir, entry.Name()))
		}

		for _, entry := range entries {
			if entry.IsDir() || !exts.Match(entry.Name()) {
				continue
			}
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}

	return files, nil
}
