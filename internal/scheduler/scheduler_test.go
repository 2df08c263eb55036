package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/fedtools/fedcheck/internal/cache"
	"github.com/fedtools/fedcheck/internal/model"
)

// fakeProber records invocations and simulates probe results without any
// network access.
type fakeProber struct {
	mu          sync.Mutex
	calls       map[string]int
	inFlight    int
	maxInFlight int

	// delay makes probes overlap so concurrency can be observed.
	delay time.Duration

	// result, when set, overrides the default 200 OK outcome per target.
	result func(t model.ValidationTarget) model.ValidationOutcome
}

func newFakeProber() *fakeProber {
	return &fakeProber{calls: make(map[string]int)}
}

func (f *fakeProber) Probe(_ context.Context, t model.ValidationTarget) model.ValidationOutcome {
	f.mu.Lock()
	f.calls[t.URL]++
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if f.result != nil {
		return f.result(t)
	}
	return model.ValidationOutcome{
		Target:     t,
		CheckedAt:  time.Now().UTC(),
		StatusCode: 200,
		Accessible: true,
	}
}

func (f *fakeProber) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func newTestStore(t *testing.T) *cache.Store {
	t.Helper()
	return cache.Load(filepath.Join(t.TempDir(), "urlcache.json"))
}

// TestRunDeduplicates tests that targets sharing a URL trigger exactly one
// probe while every target still receives an outcome.
func TestRunDeduplicates(t *testing.T) {
	t.Parallel()

	targets := []model.ValidationTarget{
		model.NewValidationTarget("https://a.example.org/privacy", "entity-1", "fed-x"),
		model.NewValidationTarget("https://a.example.org/privacy", "entity-2", "fed-x"),
		model.NewValidationTarget("https://a.example.org/privacy ", "entity-3", "fed-y"), // trims to same URL
		model.NewValidationTarget("https://b.example.org/privacy", "entity-4", "fed-y"),
	}

	fp := newFakeProber()
	s := New(fp, newTestStore(t), WithHostRPS(0))

	outcomes, err := s.Run(context.Background(), targets)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if len(outcomes) != len(targets) {
		t.Errorf("outcomes = %d, want one per target (%d)", len(outcomes), len(targets))
	}
	if fp.totalCalls() != 2 {
		t.Errorf("probe calls = %d, want 2 unique URLs", fp.totalCalls())
	}
	for url, n := range fp.calls {
		if n != 1 {
			t.Errorf("URL %q probed %d times, want exactly once", url, n)
		}
	}
}

// TestRunFreshCacheSkipsNetwork tests the freshness invariant: a fully
// fresh cache produces zero probe invocations.
func TestRunFreshCacheSkipsNetwork(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	checked := time.Now().UTC().Add(-time.Hour)
	store.Put(cache.Entry{URL: "https://a.example.org/p", CheckedAt: checked, StatusCode: 200, Accessible: true})
	store.Put(cache.Entry{URL: "https://b.example.org/p", CheckedAt: checked, StatusCode: 404, ErrorKind: model.ErrorKindHTTP})

	targets := []model.ValidationTarget{
		model.NewValidationTarget("https://a.example.org/p", "e1", "fed"),
		model.NewValidationTarget("https://b.example.org/p", "e2", "fed"),
	}

	fp := newFakeProber()
	s := New(fp, store, WithHostRPS(0), WithMaxAge(7*24*time.Hour))

	outcomes, err := s.Run(context.Background(), targets)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if fp.totalCalls() != 0 {
		t.Errorf("probe calls = %d, want 0 for fully fresh cache", fp.totalCalls())
	}
	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(outcomes))
	}
	for _, o := range outcomes {
		if !o.FromCache {
			t.Errorf("outcome for %q not marked FromCache", o.Target.URL)
		}
		if !o.CheckedAt.Equal(checked) {
			t.Errorf("outcome CheckedAt = %v, want original probe time %v", o.CheckedAt, checked)
		}
	}
}

// TestRunStaleEntryReprobed tests the partition boundary: stale entries go
// back through the prober and the cache is refreshed.
func TestRunStaleEntryReprobed(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	stale := time.Now().UTC().Add(-8 * 24 * time.Hour)
	store.Put(cache.Entry{URL: "https://a.example.org/p", CheckedAt: stale, StatusCode: 500, ErrorKind: model.ErrorKindHTTP})

	fp := newFakeProber()
	s := New(fp, store, WithHostRPS(0))

	outcomes, err := s.Run(context.Background(), []model.ValidationTarget{
		model.NewValidationTarget("https://a.example.org/p", "e1", "fed"),
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if fp.totalCalls() != 1 {
		t.Errorf("probe calls = %d, want 1 for stale entry", fp.totalCalls())
	}
	if outcomes[0].FromCache {
		t.Error("stale entry answered from cache")
	}

	entry, ok := store.Get("https://a.example.org/p")
	if !ok {
		t.Fatal("cache entry missing after run")
	}
	if !entry.Accessible || entry.StatusCode != 200 {
		t.Errorf("cache entry = %+v, want refreshed 200", entry)
	}
}

// TestRunConcurrencyBound tests the non-negotiable invariant: at no point
// are more than `concurrency` probes in flight.
func TestRunConcurrencyBound(t *testing.T) {
	t.Parallel()

	const concurrency = 5
	const urls = 40

	targets := make([]model.ValidationTarget, 0, urls)
	for i := range urls {
		targets = append(targets, model.NewValidationTarget(
			"https://host-"+string(rune('a'+i%26))+string(rune('a'+i/26))+".example.org/privacy",
			"entity", "fed",
		))
	}

	fp := newFakeProber()
	fp.delay = 10 * time.Millisecond
	s := New(fp, newTestStore(t), WithHostRPS(0), WithConcurrency(concurrency))

	if _, err := s.Run(context.Background(), targets); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if fp.maxInFlight > concurrency {
		t.Errorf("max in-flight probes = %d, exceeds limit %d", fp.maxInFlight, concurrency)
	}
	if fp.totalCalls() != urls {
		t.Errorf("probe calls = %d, want %d", fp.totalCalls(), urls)
	}
}

// TestRunTimeoutOutcomeDoesNotAbortBatch tests that an individual probe
// failure is a recorded outcome, not a run failure.
func TestRunTimeoutOutcomeDoesNotAbortBatch(t *testing.T) {
	t.Parallel()

	fp := newFakeProber()
	fp.result = func(tgt model.ValidationTarget) model.ValidationOutcome {
		out := model.ValidationOutcome{Target: tgt, CheckedAt: time.Now().UTC()}
		if tgt.URL == "https://slow.example.org/p" {
			out.ErrorKind = model.ErrorKindTimeout
			return out
		}
		out.StatusCode = 200
		out.Accessible = true
		return out
	}

	targets := []model.ValidationTarget{
		model.NewValidationTarget("https://ok1.example.org/p", "e1", "fed"),
		model.NewValidationTarget("https://slow.example.org/p", "e2", "fed"),
		model.NewValidationTarget("https://ok2.example.org/p", "e3", "fed"),
	}

	s := New(fp, newTestStore(t), WithHostRPS(0))
	outcomes, err := s.Run(context.Background(), targets)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if len(outcomes) != 3 {
		t.Fatalf("outcomes = %d, want 3 (timeout must not drop other targets)", len(outcomes))
	}

	var sawTimeout bool
	for _, o := range outcomes {
		if o.Target.URL == "https://slow.example.org/p" {
			sawTimeout = true
			if o.Accessible || o.ErrorKind != model.ErrorKindTimeout {
				t.Errorf("timeout outcome = %+v, want inaccessible with timeout kind", o)
			}
		}
	}
	if !sawTimeout {
		t.Error("no outcome recorded for the timed-out target")
	}
}

// TestRunCancellation tests cooperative cancellation: no new probes after
// cancel, and already-merged outcomes are kept and persisted.
func TestRunCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	fp := newFakeProber()
	fp.result = func(tgt model.ValidationTarget) model.ValidationOutcome {
		// Cancel the run from inside the first probe; with concurrency 1
		// every later worker observes the cancellation before dispatch.
		cancel()
		return model.ValidationOutcome{Target: tgt, CheckedAt: time.Now().UTC(), StatusCode: 200, Accessible: true}
	}

	targets := make([]model.ValidationTarget, 0, 5)
	for i := range 5 {
		targets = append(targets, model.NewValidationTarget(
			"https://host-"+string(rune('a'+i))+".example.org/p", "e", "fed",
		))
	}

	store := newTestStore(t)
	s := New(fp, store, WithHostRPS(0), WithConcurrency(1))

	outcomes, err := s.Run(ctx, targets)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}

	if fp.totalCalls() != 1 {
		t.Errorf("probe calls = %d, want 1 (no dispatch after cancel)", fp.totalCalls())
	}
	if len(outcomes) != 1 {
		t.Errorf("outcomes = %d, want the one merged before cancellation", len(outcomes))
	}

	// Partial progress must be persisted despite cancellation.
	reloaded := cache.Load(store.Path())
	if reloaded.Len() != 1 {
		t.Errorf("persisted entries = %d, want 1", reloaded.Len())
	}
}

// TestRunPersistFailureKeepsOutcomes tests degraded mode: when the cache
// cannot be saved, the caller still receives every outcome.
func TestRunPersistFailureKeepsOutcomes(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not enforced the same way on Windows")
	}
	if os.Geteuid() == 0 {
		t.Skip("running as root, permission bits are not enforced")
	}

	dir := t.TempDir()
	store := cache.Load(filepath.Join(dir, "urlcache.json"))
	if err := os.Chmod(dir, 0500); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = os.Chmod(dir, 0700)
	})

	fp := newFakeProber()
	s := New(fp, store, WithHostRPS(0))

	outcomes, err := s.Run(context.Background(), []model.ValidationTarget{
		model.NewValidationTarget("https://a.example.org/p", "e1", "fed"),
		model.NewValidationTarget("https://b.example.org/p", "e2", "fed"),
	})

	if !errors.Is(err, cache.ErrPersist) {
		t.Errorf("Run() error = %v, want cache.ErrPersist", err)
	}
	if len(outcomes) != 2 {
		t.Errorf("outcomes = %d, want 2 despite persist failure", len(outcomes))
	}
}

// TestRunCheckpointSaves tests incremental persistence during long runs.
func TestRunCheckpointSaves(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	fp := newFakeProber()
	s := New(fp, store, WithHostRPS(0), WithConcurrency(1), WithCheckpoint(2))

	targets := make([]model.ValidationTarget, 0, 4)
	for i := range 4 {
		targets = append(targets, model.NewValidationTarget(
			"https://host-"+string(rune('a'+i))+".example.org/p", "e", "fed",
		))
	}

	if _, err := s.Run(context.Background(), targets); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	reloaded := cache.Load(store.Path())
	if reloaded.Len() != 4 {
		t.Errorf("persisted entries = %d, want 4", reloaded.Len())
	}
}
