package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-ini/ini"
	"github.com/spf13/pflag"

	"hashdb/internal/discover"
	"hashdb/internal/hasher"
	"hashdb/internal/report"
)

const (
	defaultDatabase = "~/.hashdb.db"
	defaultConfig   = "~/.hashdb.ini"
	defaultBuffer   = "1 MiB"
)

// ErrMissingDirectory is returned when indexing is requested without a base
// directory.
var ErrMissingDirectory = errors.New("a base directory is required (--directory)")

// Config captures runtime configuration for one hashdb run.
type Config struct {
	// Directory is the absolute base directory to index.
	Directory string

	// DatabasePath is the SQLite index file.
	DatabasePath string

	// ConfigPath is the INI file defaults were read from.
	ConfigPath string

	Extensions []string
	Algorithm  string
	BufferSize int
	Format     report.Format

	// Quiet suppresses per-file progress lines but not summaries.
	Quiet bool
	// SkipHash skips the indexing pass.
	SkipHash bool
	// SkipMatch skips the duplicate report.
	SkipMatch bool
	// CleanUp prunes stale entries before indexing.
	CleanUp bool
	// Verbose enables debug logging.
	Verbose bool
}

type flagValues struct {
	directory  string
	database   string
	configPath string
	extensions string
	algorithm  string
	buffer     string
	format     string
}

// FromArgs parses configuration from command line arguments (without the
// program name), layered over the INI config file and built-in defaults.
// pflag.ErrHelp is returned when help was requested.
func FromArgs(name string, args []string, output io.Writer) (Config, error) {
	var cfg Config
	var raw flagValues

	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() {
		fmt.Fprintf(output, "Usage: %s -d DIRECTORY [flags]\n\n", name)
		fmt.Fprintf(output, "Maintains a persistent database of file hashes to find duplicate files.\n\n")
		flagSet.PrintDefaults()
	}

	flagSet.StringVarP(&raw.directory, "directory", "d", "", "base directory from which all children are scanned")
	flagSet.BoolVarP(&cfg.Quiet, "quiet", "q", false, "do not print a line per hashed file")
	flagSet.BoolVar(&cfg.SkipHash, "skip-hash", false, "skip the indexing pass")
	flagSet.BoolVar(&cfg.SkipMatch, "skip-match", false, "skip the duplicate report")
	flagSet.BoolVarP(&cfg.CleanUp, "clean-up", "c", false, "remove entries for missing files before indexing")
	flagSet.StringVarP(&raw.extensions, "extensions", "e", strings.Join(discover.DefaultExtensions, ","), "comma separated list of extensions to index")
	flagSet.StringVar(&raw.database, "database", defaultDatabase, "path of the hash database")
	flagSet.StringVar(&raw.configPath, "config", defaultConfig, "path of the optional INI config file")
	flagSet.StringVar(&raw.algorithm, "algorithm", hasher.DefaultAlgorithm, "hash algorithm: "+strings.Join(hasher.Algorithms(), ", "))
	flagSet.StringVar(&raw.buffer, "buffer-size", defaultBuffer, "read buffer size used while hashing")
	flagSet.StringVar(&raw.format, "format", string(report.FormatHuman), "output format: human or json")
	flagSet.BoolVarP(&cfg.Verbose, "verbose", "v", false, "enable debug logging")

	if err := flagSet.Parse(args); err != nil {
		return Config{}, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return Config{}, fmt.Errorf("unexpected argument: %s", rest[0])
	}

	configPath, err := expandHome(raw.configPath)
	if err != nil {
		return Config{}, err
	}
	file, err := loadFile(configPath, flagSet.Changed("config"))
	if err != nil {
		return Config{}, err
	}
	cfg.ConfigPath = configPath

	pick := func(flagName, section, key string, value string) string {
		if flagSet.Changed(flagName) {
			return value
		}
		if s := file.Section(section); s.HasKey(key) {
			return s.Key(key).String()
		}
		return value
	}

	cfg.Extensions = splitList(pick("extensions", "scan", "extensions", raw.extensions))
	if len(cfg.Extensions) == 0 {
		return Config{}, errors.New("at least one extension is required")
	}

	cfg.DatabasePath, err = expandHome(pick("database", "database", "path", raw.database))
	if err != nil {
		return Config{}, err
	}

	algo, err := hasher.LookupAlgorithm(pick("algorithm", "hash", "algorithm", raw.algorithm))
	if err != nil {
		return Config{}, err
	}
	cfg.Algorithm = algo.Name

	cfg.BufferSize, err = hasher.ParseBufferSize(pick("buffer-size", "hash", "buffer", raw.buffer))
	if err != nil {
		return Config{}, err
	}

	cfg.Format, err = report.ParseFormat(pick("format", "output", "format", raw.format))
	if err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(raw.directory) == "" {
		if !cfg.SkipHash {
			return Config{}, ErrMissingDirectory
		}
	} else {
		abs, err := filepath.Abs(raw.directory)
		if err != nil {
			return Config{}, fmt.Errorf("resolve directory %q: %w", raw.directory, err)
		}
		cfg.Directory = filepath.Clean(abs)
	}

	return cfg, nil
}

// loadFile reads the INI config. A missing file yields an empty config
// unless the path was given explicitly.
func loadFile(path string, explicit bool) (*ini.File, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !explicit {
		return ini.Empty(), nil
	}
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config file %s: %w", path, err)
	}
	return file, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	list := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			list = append(list, trimmed)
		}
	}
	return list
}

func expandHome(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
