package config

import "errors"

// Configuration validation errors, returned by Config.Validate.
//
// Design decision: Package-level sentinel errors rather than fresh
// instances in Validate, so callers can use errors.Is while the messages
// stay human-readable.
var (
	// ErrNoTargetsFile is returned when no target list file is given.
	ErrNoTargetsFile = errors.New("no targets file specified: provide a CSV or JSON target list")

	// ErrInvalidConcurrency is returned when the worker pool size is not
	// positive. Zero workers would mean no validation at all.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidTimeout is returned when the probe timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxAge is returned when the cache freshness window is not
	// positive. Use a tiny value to force re-probing, not zero.
	ErrInvalidMaxAge = errors.New("invalid max age: must be positive")

	// ErrInvalidHostRPS is returned for a negative per-host rate.
	// Zero disables the limiter.
	ErrInvalidHostRPS = errors.New("invalid host rate: must be non-negative")

	// ErrInvalidCheckpoint is returned for a negative checkpoint interval.
	// Zero disables incremental saves.
	ErrInvalidCheckpoint = errors.New("invalid checkpoint interval: must be non-negative")

	// ErrInvalidAssumedLatency is returned when the dry-run latency
	// assumption is not positive.
	ErrInvalidAssumedLatency = errors.New("invalid assumed latency: must be positive")

	// ErrConflictingOutputFormats is returned when both --json and
	// --markdown are requested.
	ErrConflictingOutputFormats = errors.New("conflicting output formats: --json and --markdown cannot be used together")
)
