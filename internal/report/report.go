package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"hashdb/internal/dupes"
	"hashdb/internal/indexer"
)

// Format selects how results are rendered.
type Format string

const (
	// FormatHuman writes one line per event, suitable for a terminal.
	FormatHuman Format = "human"
	// FormatJSON writes the duplicate report as a single JSON document.
	FormatJSON Format = "json"
)

// ParseFormat validates a format name and falls back to FormatHuman when empty.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case "", FormatHuman:
		return FormatHuman, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q", name)
	}
}

// Console renders indexer events and run summaries to a writer. It
// implements indexer.Observer.
type Console struct {
	out    io.Writer
	format Format
	quiet  bool
	err    error
}

// NewConsole returns a Console writing to out. Quiet suppresses per-file
// lines but not summaries.
func NewConsole(out io.Writer, format Format, quiet bool) *Console {
	return &Console{out: out, format: format, quiet: quiet}
}

// Err returns the first write error encountered, if any.
func (c *Console) Err() error {
	return c.err
}

func (c *Console) printf(format string, args ...any) {
	if c.err != nil {
		return
	}
	if _, err := fmt.Fprintf(c.out, format, args...); err != nil {
		c.err = fmt.Errorf("write report: %w", err)
	}
}

func (c *Console) perFile() bool {
	return !c.quiet && c.format == FormatHuman
}

// FileHashed prints the time and path of a newly (re)hashed file.
func (c *Console) FileHashed(event indexer.FileEvent) {
	if !c.perFile() {
		return
	}
	c.printf("[%s]: %s\n", event.At.Format(time.ANSIC), event.Path)
}

// EntryRemoved prints a pruned path.
func (c *Console) EntryRemoved(path string) {
	if !c.perFile() {
		return
	}
	c.printf("%s not found. Removing.\n", path)
}

// Indexed prints the throughput of an indexing pass. Nothing is printed
// when no bytes were hashed.
func (c *Console) Indexed(result indexer.Result) error {
	if c.format != FormatHuman || result.BytesHashed == 0 {
		return c.err
	}
	c.printf("Hashed %d bytes (%s) in %.1f seconds. %.0f bytes/second.\n",
		result.BytesHashed, humanize.IBytes(uint64(result.BytesHashed)),
		result.Elapsed.Seconds(), result.Throughput())
	if result.FilesFailed > 0 {
		c.printf("%d files could not be indexed.\n", result.FilesFailed)
	}
	return c.err
}

// Pruned prints how many stale entries were removed.
func (c *Console) Pruned(removed int) error {
	if c.format != FormatHuman {
		return c.err
	}
	c.printf("%d entries removed.\n", removed)
	return c.err
}

// Duplicates renders every duplicate group and the totals.
func (c *Console) Duplicates(report dupes.Report) error {
	if c.err != nil {
		return c.err
	}
	if c.format == FormatJSON {
		encoder := json.NewEncoder(c.out)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(report); err != nil {
			c.err = fmt.Errorf("write report: %w", err)
		}
		return c.err
	}

	for _, group := range report.Groups {
		c.printf("Matching files: \"%s\"\n", strings.Join(group.Paths, "\", \""))
	}
	c.printf("%d duplicate files for %d bytes (%s).\n",
		report.DuplicateFiles, report.ReclaimableBytes, humanize.IBytes(uint64(report.ReclaimableBytes)))
	return c.err
}
