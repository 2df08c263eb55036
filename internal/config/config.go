// Package config holds run configuration for fedcheck.
//
// Configuration is a single flat struct populated from CLI flags and an
// optional YAML file, passed through the application by dependency
// injection rather than global state.
package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values. The network-facing defaults mirror what
// federation operators tolerate: modest concurrency, a per-host politeness
// cap, and a descriptive User-Agent.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "fedcheck"

	// DefaultConcurrency is the probe worker pool size. Ten keeps a run
	// over a few thousand URLs in the minutes range without looking like
	// an attack to any single operator.
	DefaultConcurrency = 10

	// DefaultTimeout is the hard per-request deadline. Privacy pages are
	// plain web pages; 10 seconds is generous.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxAge is the cache freshness window. Policy URLs change
	// rarely, so results younger than a week are reused without probing.
	DefaultMaxAge = 7 * 24 * time.Hour

	// DefaultHostRPS caps requests per second against any single host.
	// Shared CMS hosts serve hundreds of entities; exceeding a few
	// requests per second trips their bot protection.
	DefaultHostRPS = 4.0

	// DefaultAssumedLatency is the per-probe duration assumed by dry-run
	// estimates.
	DefaultAssumedLatency = 500 * time.Millisecond

	// DefaultUserAgent identifies fedcheck in HTTP requests so operators
	// can attribute scanner traffic.
	DefaultUserAgent = "fedcheck/1.0 (+https://github.com/fedtools/fedcheck)"

	// CacheFileName is the cache file name under the XDG cache directory.
	CacheFileName = "urlcache.json"
)

// Config holds all options for a fedcheck invocation.
type Config struct {
	// TargetsFile is the CSV/JSON file of (url, entity_id, federation)
	// rows produced by the metadata analysis layer.
	TargetsFile string

	// Concurrency bounds the number of probes in flight.
	Concurrency int

	// Timeout is the hard per-request probe deadline.
	Timeout time.Duration

	// MaxAge is the cache freshness window: entries younger than this are
	// reused without a network probe.
	MaxAge time.Duration

	// HostRPS caps the per-host request rate. Zero disables the limiter.
	HostRPS float64

	// UserAgent is sent with every probe request.
	UserAgent string

	// CacheFile is the path of the URL validation cache.
	// Defaults to the XDG cache directory.
	CacheFile string

	// Checkpoint, when positive, saves the cache every N merged probes so
	// interrupted runs keep most of their progress.
	Checkpoint int

	// DryRun computes a validation plan instead of probing.
	DryRun bool

	// AssumedLatency is the per-probe duration assumed for dry-run time
	// estimates.
	AssumedLatency time.Duration

	// UniqueURLs switches summary counting from per-owning-entity to
	// once-per-unique-URL for URLs shared by multiple entities.
	UniqueURLs bool

	// JSONOutput and MarkdownOutput select the export format.
	// Mutually exclusive; the default is a plain text summary.
	JSONOutput     bool
	MarkdownOutput bool

	// OutputFile, when set, receives the export instead of stdout.
	OutputFile string

	// HistoryDir is the directory of the run-history database.
	// Defaults to the XDG data directory.
	HistoryDir string

	// SaveHistory records a summary row per completed run.
	SaveHistory bool

	// ConfigFilePath is an explicit config file path. When empty, the
	// loader searches for .fedcheck in the current and home directories.
	ConfigFilePath string
}

// NewConfig creates a Config with defaults for every non-zero field.
//
// Design decision: A constructor rather than zero values, because most
// defaults are non-zero and the constructor doubles as documentation of
// what they are.
func NewConfig() *Config {
	return &Config{
		Concurrency:    DefaultConcurrency,
		Timeout:        DefaultTimeout,
		MaxAge:         DefaultMaxAge,
		HostRPS:        DefaultHostRPS,
		UserAgent:      DefaultUserAgent,
		AssumedLatency: DefaultAssumedLatency,
		CacheFile:      XDGCacheFile(),
		HistoryDir:     XDGDataDir(),
		SaveHistory:    true,
	}
}

// XDGCacheFile returns the default cache file path.
// On Linux: ~/.cache/fedcheck/urlcache.json
func XDGCacheFile() string {
	return filepath.Join(xdg.CacheHome, AppName, CacheFileName)
}

// XDGDataDir returns the data directory for the run-history database.
// On Linux: ~/.local/share/fedcheck
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
// Called once after flag parsing, before any work begins.
func (c *Config) Validate() error {
	if c.TargetsFile == "" {
		return ErrNoTargetsFile
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxAge <= 0 {
		return ErrInvalidMaxAge
	}
	if c.HostRPS < 0 {
		return ErrInvalidHostRPS
	}
	if c.Checkpoint < 0 {
		return ErrInvalidCheckpoint
	}
	if c.AssumedLatency <= 0 {
		return ErrInvalidAssumedLatency
	}
	if c.JSONOutput && c.MarkdownOutput {
		return ErrConflictingOutputFormats
	}
	return nil
}
