// Package history provides SQLite-based storage for validation run history.
//
// Each completed validation run is recorded with its aggregate counts so
// operators can watch link rot trends across a federation over time. The
// URL cache answers "is this URL fresh"; history answers "how has the
// federation been doing".
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/fedtools/fedcheck/internal/model"
)

// DBFileName is the history database file name inside the data directory.
const DBFileName = "fedcheck.db"

// DB provides SQLite-based storage for validation run history.
//
// Design decision: One database file per user (under the XDG data dir)
// rather than per target list. Trend queries across runs are the whole
// point, and a single file keeps backup trivial.
type DB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures DB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a history database in the specified directory.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is
// returned.
func Open(dataDir string, opts Options) (*DB, error) {
	dbPath := filepath.Join(dataDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("history database not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dataDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	// modernc.org/sqlite connection string: mode=rw prevents creating new
	// files, mode=rwc allows creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &DB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Close closes the database connection.
func (hdb *DB) Close() error {
	return hdb.db.Close()
}

// Path returns the path of the database file.
func (hdb *DB) Path() string {
	return hdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (hdb *DB) createTables() error {
	schema := `
	-- Runs store one row per completed validation run
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		duration_ms INTEGER NOT NULL,
		targets_file TEXT,
		total INTEGER NOT NULL,
		accessible INTEGER NOT NULL,
		broken INTEGER NOT NULL,
		from_cache INTEGER NOT NULL,
		probed INTEGER NOT NULL,
		by_federation TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// Run represents one stored validation run.
type Run struct {
	// ID is the unique identifier of the run in the database.
	ID int64

	// StartedAt is when the run began.
	StartedAt time.Time

	// Duration is the wall-clock time the run took.
	Duration time.Duration

	// TargetsFile is the target list the run was started with.
	TargetsFile string

	// Total is the number of validated targets.
	Total int

	// Accessible is the number of targets whose URL responded successfully.
	Accessible int

	// Broken is the number of targets whose URL failed validation.
	Broken int

	// FromCache is the number of targets answered from the cache.
	FromCache int

	// Probed is the number of targets that required a live probe.
	Probed int

	// ByFederation breaks the counts down per federation.
	ByFederation map[string]model.GroupCount
}

// SaveRun records a completed validation run.
func (hdb *DB) SaveRun(ctx context.Context, run *Run) (int64, error) {
	byFed, err := json.Marshal(run.ByFederation)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize federation counts: %w", err)
	}

	query := `
	INSERT INTO runs (started_at, duration_ms, targets_file, total, accessible, broken, from_cache, probed, by_federation)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := hdb.db.ExecContext(ctx, query,
		run.StartedAt.UTC().Format("2006-01-02 15:04:05"),
		run.Duration.Milliseconds(),
		run.TargetsFile,
		run.Total,
		run.Accessible,
		run.Broken,
		run.FromCache,
		run.Probed,
		string(byFed),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	return result.LastInsertId()
}

// ListRuns returns the most recent runs, newest first. A non-positive
// limit returns all runs.
func (hdb *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `
	SELECT id, started_at, duration_ms, targets_file, total, accessible, broken, from_cache, probed, by_federation
	FROM runs
	ORDER BY started_at DESC, id DESC
	`
	args := make([]interface{}, 0)

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var results []Run
	for rows.Next() {
		var run Run
		var startedAt string
		var durationMS int64
		var byFed sql.NullString

		err := rows.Scan(
			&run.ID,
			&startedAt,
			&durationMS,
			&run.TargetsFile,
			&run.Total,
			&run.Accessible,
			&run.Broken,
			&run.FromCache,
			&run.Probed,
			&byFed,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		run.StartedAt = parseTimestamp(startedAt)
		run.Duration = time.Duration(durationMS) * time.Millisecond

		if byFed.Valid && byFed.String != "" {
			if err := json.Unmarshal([]byte(byFed.String), &run.ByFederation); err != nil {
				run.ByFederation = make(map[string]model.GroupCount)
			}
		}

		results = append(results, run)
	}

	return results, rows.Err()
}

// LatestRun returns the most recent run, or nil when the history is empty.
func (hdb *DB) LatestRun(ctx context.Context) (*Run, error) {
	runs, err := hdb.ListRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// PruneBefore deletes runs older than the cutoff and returns how many rows
// were removed.
func (hdb *DB) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM runs WHERE started_at < ?`

	result, err := hdb.db.ExecContext(ctx, query, cutoff.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}

	return result.RowsAffected()
}

// RunFromSummary builds a Run record from a fold result.
func RunFromSummary(sum model.Summary, startedAt time.Time, duration time.Duration, targetsFile string) *Run {
	return &Run{
		StartedAt:    startedAt,
		Duration:     duration,
		TargetsFile:  targetsFile,
		Total:        sum.Total,
		Accessible:   sum.Accessible,
		Broken:       sum.Broken,
		FromCache:    sum.FromCache,
		Probed:       sum.Total - sum.FromCache,
		ByFederation: sum.ByFederation,
	}
}

// ErrNoHistory is returned by helpers that require at least one stored run.
var ErrNoHistory = errors.New("no validation runs recorded yet")

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple
// formats. SQLite may return timestamps in different formats depending on
// configuration. If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
