package storage

import "time"

// Entry is the persisted unit of the index: the digest of a file as of the
// modification time it was last hashed at.
type Entry struct {
	Path    string
	Hash    string
	ModTime time.Time
}

// Stale reports whether a file observed with modTime must be re-hashed.
func (e Entry) Stale(modTime time.Time) bool {
	return modTime.UnixNano() > e.ModTime.UnixNano()
}

// ScanState captures bookkeeping for the last indexing run of a root path.
type ScanState struct {
	RootPath    string
	LastRun     time.Time
	FilesHashed int64
	BytesHashed int64
}
