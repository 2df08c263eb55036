package cache

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/fedtools/fedcheck/internal/model"
)

// TestLoad tests the soft-failure load contract.
func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("missing file yields empty store", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "urlcache.json")
		s := Load(path)
		if s.Len() != 0 {
			t.Errorf("Len() = %d, want 0", s.Len())
		}
		if s.Path() != path {
			t.Errorf("Path() = %q, want %q", s.Path(), path)
		}
	})

	t.Run("corrupt file yields empty store", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "urlcache.json")
		if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
			t.Fatal(err)
		}

		s := Load(path)
		if s.Len() != 0 {
			t.Errorf("Len() = %d, want 0 after corrupt load", s.Len())
		}
	})

	t.Run("unknown and missing fields load cleanly", func(t *testing.T) {
		t.Parallel()

		// Entry written by a hypothetical future version: an extra field
		// and no status code.
		raw := `{
			"https://example.org/privacy": {
				"checked_at": "2026-08-01T12:00:00Z",
				"accessible": false,
				"error_kind": "bot_blocked",
				"retry_after": 30
			}
		}`
		path := filepath.Join(t.TempDir(), "urlcache.json")
		if err := os.WriteFile(path, []byte(raw), 0600); err != nil {
			t.Fatal(err)
		}

		s := Load(path)
		e, ok := s.Get("https://example.org/privacy")
		if !ok {
			t.Fatal("entry not loaded")
		}
		if e.URL != "https://example.org/privacy" {
			t.Errorf("URL = %q, want populated from map key", e.URL)
		}
		if e.StatusCode != 0 {
			t.Errorf("StatusCode = %d, want 0 for missing field", e.StatusCode)
		}
		if e.ErrorKind != model.ErrorKind("bot_blocked") {
			t.Errorf("ErrorKind = %q, want preserved unknown kind", e.ErrorKind)
		}
	})
}

// TestRoundTrip tests that save(load(path)) reproduces a functionally
// identical map.
func TestRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "urlcache.json")
	s := Load(path)

	checked := time.Date(2026, 8, 20, 10, 30, 0, 0, time.UTC)
	entries := []Entry{
		{URL: "https://a.example.org/privacy", CheckedAt: checked, StatusCode: 200, Accessible: true},
		{URL: "https://b.example.org/privacy", CheckedAt: checked.Add(-time.Hour), StatusCode: 404, Accessible: false, ErrorKind: model.ErrorKindHTTP},
		{URL: "https://c.example.org/privacy", CheckedAt: checked.Add(-48 * time.Hour), Accessible: false, ErrorKind: model.ErrorKindTimeout},
	}
	for _, e := range entries {
		s.Put(e)
	}

	if err := s.Save(); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	reloaded := Load(path)
	if reloaded.Len() != len(entries) {
		t.Fatalf("reloaded Len() = %d, want %d", reloaded.Len(), len(entries))
	}
	for _, want := range entries {
		got, ok := reloaded.Get(want.URL)
		if !ok {
			t.Errorf("entry %q missing after reload", want.URL)
			continue
		}
		if !got.CheckedAt.Equal(want.CheckedAt) {
			t.Errorf("%q CheckedAt = %v, want %v", want.URL, got.CheckedAt, want.CheckedAt)
		}
		if got.StatusCode != want.StatusCode || got.Accessible != want.Accessible || got.ErrorKind != want.ErrorKind {
			t.Errorf("%q = %+v, want %+v", want.URL, got, want)
		}
	}
}

// TestSaveLeavesNoTempFiles tests that the atomic rename cleans up after
// itself and writes valid JSON.
func TestSaveLeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "urlcache.json")
	s := Load(path)
	s.Put(Entry{URL: "https://example.org/p", CheckedAt: time.Now().UTC(), StatusCode: 200, Accessible: true})

	if err := s.Save(); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range files {
		if strings.Contains(f.Name(), ".tmp-") {
			t.Errorf("temp file %q left behind", f.Name())
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("saved file is not a valid JSON map: %v", err)
	}
	if _, ok := raw["https://example.org/p"]; !ok {
		t.Error("saved map is not keyed by URL")
	}
}

// TestSavePersistError tests that unwritable destinations surface ErrPersist.
func TestSavePersistError(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not enforced the same way on Windows")
	}
	if os.Geteuid() == 0 {
		t.Skip("running as root, permission bits are not enforced")
	}

	dir := t.TempDir()
	if err := os.Chmod(dir, 0500); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = os.Chmod(dir, 0700)
	})

	s := Load(filepath.Join(dir, "urlcache.json"))
	s.Put(Entry{URL: "https://example.org/p", CheckedAt: time.Now()})

	err := s.Save()
	if err == nil {
		t.Fatal("Save() into read-only directory succeeded, want error")
	}
	if !errors.Is(err, ErrPersist) {
		t.Errorf("Save() error = %v, want ErrPersist", err)
	}
}

// TestFreshAt tests the query-time freshness boundary.
func TestFreshAt(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	maxAge := 7 * 24 * time.Hour

	tests := []struct {
		name      string
		checkedAt time.Time
		want      bool
	}{
		{name: "checked just now", checkedAt: now, want: true},
		{name: "one day old", checkedAt: now.Add(-24 * time.Hour), want: true},
		{name: "exactly max age", checkedAt: now.Add(-maxAge), want: false},
		{name: "older than max age", checkedAt: now.Add(-maxAge - time.Minute), want: false},
		{name: "zero time is always stale", checkedAt: time.Time{}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := Entry{CheckedAt: tt.checkedAt}
			if got := e.FreshAt(now, maxAge); got != tt.want {
				t.Errorf("FreshAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestPutLastWriteWins tests the overwrite semantics.
func TestPutLastWriteWins(t *testing.T) {
	t.Parallel()

	s := Load(filepath.Join(t.TempDir(), "urlcache.json"))
	url := "https://example.org/privacy"

	s.Put(Entry{URL: url, StatusCode: 404, Accessible: false, ErrorKind: model.ErrorKindHTTP})
	s.Put(Entry{URL: url, StatusCode: 200, Accessible: true})

	e, ok := s.Get(url)
	if !ok {
		t.Fatal("entry missing")
	}
	if !e.Accessible || e.StatusCode != 200 || e.ErrorKind != model.ErrorKindNone {
		t.Errorf("entry = %+v, want last write", e)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

// TestStats tests the read-only introspection snapshot.
func TestStats(t *testing.T) {
	t.Parallel()

	s := Load(filepath.Join(t.TempDir(), "urlcache.json"))

	empty := s.Stats()
	if empty.EntryCount != 0 || !empty.Oldest.IsZero() || !empty.Newest.IsZero() {
		t.Errorf("empty Stats() = %+v, want zero values", empty)
	}

	oldest := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	newest := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	s.Put(Entry{URL: "https://a.example.org", CheckedAt: newest, StatusCode: 200, Accessible: true})
	s.Put(Entry{URL: "https://b.example.org", CheckedAt: oldest, StatusCode: 500, ErrorKind: model.ErrorKindHTTP})

	st := s.Stats()
	if st.EntryCount != 2 {
		t.Errorf("EntryCount = %d, want 2", st.EntryCount)
	}
	if !st.Oldest.Equal(oldest) {
		t.Errorf("Oldest = %v, want %v", st.Oldest, oldest)
	}
	if !st.Newest.Equal(newest) {
		t.Errorf("Newest = %v, want %v", st.Newest, newest)
	}
	if st.ApproxSizeBytes <= 0 {
		t.Errorf("ApproxSizeBytes = %d, want > 0", st.ApproxSizeBytes)
	}
}

// TestEviction tests that the byte ceiling drops oldest entries at save time.
func TestEviction(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "urlcache.json")
	// A ceiling small enough that 50 entries cannot fit.
	s := Load(path, WithMaxBytes(2048))

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := range 50 {
		s.Put(Entry{
			URL:        "https://entity-" + strings.Repeat("x", 20) + string(rune('a'+i%26)) + "/privacy" + string(rune('0'+i%10)),
			CheckedAt:  base.Add(time.Duration(i) * time.Hour),
			StatusCode: 200,
			Accessible: true,
		})
	}
	before := s.Len()

	if err := s.Save(); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	if s.Len() >= before {
		t.Errorf("Len() = %d after save, want eviction below %d", s.Len(), before)
	}

	// The newest entry must survive oldest-first eviction.
	survived := false
	newestSuffix := base.Add(49 * time.Hour)
	stats := s.Stats()
	if stats.Newest.Equal(newestSuffix) {
		survived = true
	}
	if !survived {
		t.Errorf("newest entry evicted: Stats().Newest = %v, want %v", stats.Newest, newestSuffix)
	}
}

// TestClear tests in-memory reset.
func TestClear(t *testing.T) {
	t.Parallel()

	s := Load(filepath.Join(t.TempDir(), "urlcache.json"))
	s.Put(Entry{URL: "https://example.org", CheckedAt: time.Now()})
	s.Clear()
	if s.Len() != 0 {
		t.Errorf("Len() = %d after Clear, want 0", s.Len())
	}
}
