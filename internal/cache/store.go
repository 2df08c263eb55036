// Package cache provides the durable URL validation cache.
//
// The cache is a flat JSON map from URL to its last-known validation result.
// Staleness is a query-time decision (Entry.FreshAt), never a deletion: a
// stale entry still tells the reporting layer that a URL was broken last
// month even when a fresh probe is warranted. The only eviction is a hard
// byte ceiling, applied oldest-first at save time, to bound growth from
// federations that churn entity IDs.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fedtools/fedcheck/internal/model"
)

// ErrPersist is returned by Save when the cache cannot be written to disk.
// Callers treat it as a degraded-mode warning: in-memory results are intact,
// only persistence failed.
var ErrPersist = errors.New("cache persist failed")

// DefaultMaxBytes is the hard ceiling on the serialized cache size.
// 32MB holds several hundred thousand entries, far beyond the size of
// known federations.
const DefaultMaxBytes = 32 * 1024 * 1024

// Entry is the last-known validation result for one URL.
// Keyed by the exact URL string (trimmed, otherwise unnormalized).
//
// Invariant: Accessible implies StatusCode is present and in [200, 400).
type Entry struct {
	// URL is the cache key. Stored as the map key on disk, not repeated
	// inside the serialized entry.
	URL string `json:"-"`

	// CheckedAt is when the URL was last probed.
	CheckedAt time.Time `json:"checked_at"`

	// StatusCode is the final HTTP status, or 0 when no response arrived.
	StatusCode int `json:"status_code,omitempty"`

	// Accessible records whether the URL was reachable.
	Accessible bool `json:"accessible"`

	// ErrorKind classifies the failure, empty on success. Unknown kinds
	// written by newer versions are preserved as-is.
	ErrorKind model.ErrorKind `json:"error_kind,omitempty"`
}

// FreshAt reports whether the entry is fresh relative to now: its age is
// strictly less than maxAge. This is the single freshness test shared by
// the scheduler and the dry-run estimator, so preview and actual behavior
// cannot diverge.
func (e Entry) FreshAt(now time.Time, maxAge time.Duration) bool {
	return now.Sub(e.CheckedAt) < maxAge
}

// Fresh is FreshAt against the current wall clock.
func (e Entry) Fresh(maxAge time.Duration) bool {
	return e.FreshAt(time.Now(), maxAge)
}

// Stats is a read-only snapshot of the store, used by the dry-run preview
// and by `fedcheck cache stats`.
type Stats struct {
	// EntryCount is the number of cached URLs.
	EntryCount int `json:"entry_count"`

	// Oldest and Newest are the CheckedAt bounds across all entries.
	// Zero for an empty store.
	Oldest time.Time `json:"oldest,omitzero"`
	Newest time.Time `json:"newest,omitzero"`

	// ApproxSizeBytes is the serialized size of the store.
	ApproxSizeBytes int64 `json:"approx_size_bytes"`
}

// Store holds the in-memory cache map and owns its (de)serialization.
//
// Design decision: The store is an explicit object passed into the
// scheduler, never package-level state. Lifecycle is load once, mutate in
// memory during the run, persist at the end. The engine exclusively owns
// the store for the duration of a run; the internal mutex only serializes
// the scheduler's concurrent merge step.
type Store struct {
	mu       sync.RWMutex
	entries  map[string]Entry
	path     string
	maxBytes int64
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for load/save warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithMaxBytes overrides the serialized-size ceiling that triggers
// oldest-first eviction at save time. Values <= 0 keep the default.
func WithMaxBytes(n int64) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// Load reads the cache file at path. It fails softly: a missing, unreadable
// or corrupt file yields an empty store and a logged warning, never an
// error. Losing cache data must never block an analysis run.
//
// Unknown fields in stored entries are ignored and missing fields default,
// so caches written by older or newer versions load cleanly.
func Load(path string, opts ...Option) *Store {
	s := &Store{
		entries:  make(map[string]Entry),
		path:     path,
		maxBytes: DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	data, err := os.ReadFile(path) //nolint:gosec // cache path is user-controlled by design
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("cache file unreadable, starting with empty cache",
				"path", path,
				"error", err,
			)
		}
		return s
	}

	var raw map[string]Entry
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Warn("cache file corrupt, starting with empty cache",
			"path", path,
			"error", err,
		)
		return s
	}

	for url, e := range raw {
		e.URL = url
		s.entries[url] = e
	}

	return s
}

// Path returns the file path the store was loaded from and will save to.
func (s *Store) Path() string {
	return s.path
}

// Get looks up the entry for a URL.
func (s *Store) Get(url string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[url]
	return e, ok
}

// Put stores an entry, overwriting any previous one for the same URL.
// Last write wins on concurrent updates.
func (s *Store) Put(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[e.URL] = e
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// Clear removes all entries. The file on disk is untouched until Save.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]Entry)
}

// Stats returns a read-only snapshot of the store.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{EntryCount: len(s.entries)}
	for _, e := range s.entries {
		if st.Oldest.IsZero() || e.CheckedAt.Before(st.Oldest) {
			st.Oldest = e.CheckedAt
		}
		if e.CheckedAt.After(st.Newest) {
			st.Newest = e.CheckedAt
		}
	}

	if data, err := json.Marshal(s.serializable()); err == nil {
		st.ApproxSizeBytes = int64(len(data))
	}

	return st
}

// Save serializes the full map to the store's path. It writes to a
// temporary file in the same directory and atomically renames it into
// place, so a crash mid-write never corrupts the existing cache file.
//
// Failures are wrapped in ErrPersist so callers can degrade gracefully
// with errors.Is.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(s.serializable(), "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", ErrPersist, err)
	}

	// Evict oldest entries if the serialized form crossed the ceiling.
	if int64(len(data)) > s.maxBytes {
		s.evictOldest(int64(len(data)))
		data, err = json.MarshalIndent(s.serializable(), "", "  ")
		if err != nil {
			return fmt.Errorf("%w: marshal after eviction: %v", ErrPersist, err)
		}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("%w: create cache directory: %v", ErrPersist, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrPersist, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()       //nolint:errcheck // best effort cleanup
		_ = os.Remove(tmpName) //nolint:errcheck // best effort cleanup
		return fmt.Errorf("%w: write temp file: %v", ErrPersist, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName) //nolint:errcheck // best effort cleanup
		return fmt.Errorf("%w: close temp file: %v", ErrPersist, err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName) //nolint:errcheck // best effort cleanup
		return fmt.Errorf("%w: rename into place: %v", ErrPersist, err)
	}

	return nil
}

// serializable returns the on-disk shape: a flat map from URL to entry.
// Callers must hold the lock.
func (s *Store) serializable() map[string]Entry {
	return s.entries
}

// evictOldest drops the oldest entries until the estimated serialized size
// is under the ceiling. Callers must hold the lock.
func (s *Store) evictOldest(currentSize int64) {
	if len(s.entries) == 0 {
		return
	}

	perEntry := currentSize / int64(len(s.entries))
	if perEntry == 0 {
		perEntry = 1
	}
	excess := int((currentSize - s.maxBytes) / perEntry)
	if excess <= 0 {
		excess = 1
	}
	if excess >= len(s.entries) {
		excess = len(s.entries) - 1
	}

	byAge := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		byAge = append(byAge, e)
	}
	sort.Slice(byAge, func(i, j int) bool {
		return byAge[i].CheckedAt.Before(byAge[j].CheckedAt)
	})

	for _, e := range byAge[:excess] {
		delete(s.entries, e.URL)
	}

	s.logger.Warn("cache size ceiling exceeded, evicted oldest entries",
		"evicted", excess,
		"remaining", len(s.entries),
		"maxBytes", s.maxBytes,
	)
}
