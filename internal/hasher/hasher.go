package hasher

import (
	"context"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/zeebo/blake3"
)

const (
	// DefaultAlgorithm matches the digests of indexes built by earlier releases.
	DefaultAlgorithm = "sha1"

	// DefaultBufferSize bounds how much of a file is held in memory at once.
	DefaultBufferSize = 1 << 20
)

// Algorithm names a digest and how to construct it.
type Algorithm struct {
	Name string
	New  func() hash.Hash
}

var algorithms = map[string]Algorithm{
	"sha1": {
		Name: "sha1",
		New:  sha1.New,
	},
	"sha256": {
		Name: "sha256",
		New:  sha256.New,
	},
	"blake3": {
		Name: "blake3",
		New:  func() hash.Hash { return blake3.New() },
	},
}

// LookupAlgorithm returns the algorithm registered under name.
func LookupAlgorithm(name string) (Algorithm, error) {
	algo, ok := algorithms[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Algorithm{}, fmt.Errorf("unsupported hash algorithm %q (supported: %s)", name, strings.Join(Algorithms(), ", "))
	}
	return algo, nil
}

// Algorithms lists the supported algorithm names.
func Algorithms() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseBufferSize accepts human readable sizes such as "1 MiB" or "512k".
func ParseBufferSize(s string) (int, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("parse buffer size %q: %w", s, err)
	}
	if n == 0 || n > 1<<30 {
		return 0, fmt.Errorf("buffer size %q out of range", s)
	}
	return int(n), nil
}

// Hasher streams file contents through a digest in bounded chunks.
type Hasher struct {
	algo       Algorithm
	bufferSize int
}

// New returns a Hasher for algo. A non-positive bufferSize selects
// DefaultBufferSize.
func New(algo Algorithm, bufferSize int) *Hasher {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hasher{algo: algo, bufferSize: bufferSize}
}

// Sum reads r to EOF and returns the hex encoded digest of its bytes.
// The context is checked between chunks.
func (h *Hasher) Sum(ctx context.Context, r io.Reader) (string, error) {
	digest := h.algo.New()
	buffer := make([]byte, h.bufferSize)

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		n, err := r.Read(buffer)
		if n > 0 {
			digest.Write(buffer[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
	}

	return hex.EncodeToString(digest.Sum(nil)), nil
}

// SumFile hashes the file at path.
func (h *Hasher) SumFile(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	sum, err := h.Sum(ctx, file)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return sum, nil
}
