// Package scheduler orchestrates a validation run: it partitions targets
// into cache hits and probe work, runs the probes under a bounded worker
// pool, and merges the results back into the cache.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/fedtools/fedcheck/internal/cache"
	"github.com/fedtools/fedcheck/internal/model"
)

// Default scheduling parameters.
const (
	// DefaultConcurrency bounds the number of probes in flight. Unbounded
	// concurrency is treated as a denial-of-service risk against the
	// third-party servers being validated, so this limit is the one
	// non-negotiable invariant of the engine.
	DefaultConcurrency = 10

	// DefaultMaxAge is the freshness window for cached results. Privacy
	// statements change rarely; a week keeps repeat analyses cheap while
	// still catching link rot within days.
	DefaultMaxAge = 7 * 24 * time.Hour

	// DefaultHostRPS is the per-host politeness limit. Many entities host
	// their privacy pages on a handful of shared CMS hosts; hammering one
	// host trips bot protection and skews results.
	DefaultHostRPS = 4.0
)

// Prober checks a single target. Implemented by probe.Prober; tests
// substitute fakes to count invocations and observe concurrency.
type Prober interface {
	Probe(ctx context.Context, target model.ValidationTarget) model.ValidationOutcome
}

// Scheduler runs validation batches against a cache store.
//
// Design decision: The scheduler owns the only mutation path into the
// cache during a run. Freshness reads happen before the pool starts, on a
// private plan; merges of completed probes are serialized by a single
// mutex so no two merges interleave non-atomically. Probes themselves run
// in parallel and never touch the store.
type Scheduler struct {
	prober      Prober
	store       *cache.Store
	logger      *slog.Logger
	concurrency int
	maxAge      time.Duration
	hostRPS     float64
	checkpoint  int

	// limiters holds one token bucket per host, created lazily.
	lmu      sync.Mutex
	limiters map[string]*rate.Limiter
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger for run-level progress output.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithConcurrency sets the maximum number of probes in flight.
// Values <= 0 keep the default.
func WithConcurrency(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithMaxAge sets the cache freshness window.
func WithMaxAge(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.maxAge = d
		}
	}
}

// WithHostRPS sets the per-host request rate. Zero disables politeness
// limiting (useful in tests).
func WithHostRPS(rps float64) Option {
	return func(s *Scheduler) {
		if rps >= 0 {
			s.hostRPS = rps
		}
	}
}

// WithCheckpoint enables incremental cache saves every n merges, so a very
// long run interrupted halfway keeps most of its progress. Zero (the
// default) saves only at the end of the run.
func WithCheckpoint(n int) Option {
	return func(s *Scheduler) {
		if n >= 0 {
			s.checkpoint = n
		}
	}
}

// New creates a Scheduler probing through prober and persisting into store.
func New(prober Prober, store *cache.Store, opts ...Option) *Scheduler {
	s := &Scheduler{
		prober:      prober,
		store:       store,
		concurrency: DefaultConcurrency,
		maxAge:      DefaultMaxAge,
		hostRPS:     DefaultHostRPS,
		limiters:    make(map[string]*rate.Limiter),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// Run validates a batch of targets and returns one outcome per target.
//
// Targets sharing a URL trigger at most one probe; the probe result is
// fanned out to every owner. Targets whose URL has a fresh cache entry are
// answered from the cache without network access.
//
// Cancellation is cooperative: no new probes are dispatched once ctx is
// done, in-flight probes finish or time out naturally, and everything
// merged so far is still persisted and returned.
//
// The returned error is nil for a normal run. It carries ctx.Err() after
// cancellation and wraps cache.ErrPersist when the final save failed; in
// both cases the outcome slice is complete for the work actually done.
func (s *Scheduler) Run(ctx context.Context, targets []model.ValidationTarget) ([]model.ValidationOutcome, error) {
	start := time.Now()

	// Dedupe by URL, preserving first-seen order for stable scheduling.
	order := make([]string, 0, len(targets))
	owners := make(map[string][]model.ValidationTarget, len(targets))
	for _, t := range targets {
		t = t.Normalize()
		if _, seen := owners[t.URL]; !seen {
			order = append(order, t.URL)
		}
		owners[t.URL] = append(owners[t.URL], t)
	}

	// Partition against the cache before the pool starts. This read phase
	// is single-threaded, so the plan is a consistent snapshot.
	now := time.Now()
	var toProbe []string
	outcomes := make([]model.ValidationOutcome, 0, len(targets))
	for _, u := range order {
		entry, ok := s.store.Get(u)
		if ok && entry.FreshAt(now, s.maxAge) {
			for _, owner := range owners[u] {
				outcomes = append(outcomes, outcomeFromEntry(owner, entry))
			}
			continue
		}
		toProbe = append(toProbe, u)
	}

	s.logger.Info("starting validation run",
		"targets", len(targets),
		"unique_urls", len(order),
		"cached", len(order)-len(toProbe),
		"to_probe", len(toProbe),
		"concurrency", s.concurrency,
	)

	// The merge step is the only shared-state write path: one mutex
	// serializes cache puts and outcome appends from completing probes.
	var mu sync.Mutex
	merges := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, u := range toProbe {
		g.Go(func() error {
			// No new work after cancellation; outcomes already merged stay.
			select {
			case <-gctx.Done():
				return nil
			default:
			}

			if err := s.waitHost(gctx, u); err != nil {
				return nil
			}

			// Probe once on behalf of the first owner; fan out below.
			out := s.prober.Probe(gctx, owners[u][0])

			s.logger.Debug("probed",
				"url", u,
				"status", out.StatusCode,
				"accessible", out.Accessible,
				"error_kind", string(out.ErrorKind),
				"owners", len(owners[u]),
			)

			mu.Lock()
			defer mu.Unlock()

			s.store.Put(entryFromOutcome(u, out))
			for _, owner := range owners[u] {
				o := out
				o.Target = owner
				outcomes = append(outcomes, o)
			}

			merges++
			if s.checkpoint > 0 && merges%s.checkpoint == 0 {
				if err := s.store.Save(); err != nil {
					s.logger.Warn("checkpoint save failed", "error", err)
				}
			}

			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // workers never return errors; failures are outcomes

	persistErr := s.store.Save()
	if persistErr != nil {
		s.logger.Warn("cache persist failed, results for this run are not cached",
			"path", s.store.Path(),
			"error", persistErr,
		)
	}

	s.logger.Info("validation run complete",
		"outcomes", len(outcomes),
		"probed", merges,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	return outcomes, errors.Join(ctx.Err(), persistErr)
}

// waitHost blocks until the per-host politeness limiter admits a request
// to the URL's host. Disabled when hostRPS is zero.
func (s *Scheduler) waitHost(ctx context.Context, rawURL string) error {
	if s.hostRPS <= 0 {
		return nil
	}

	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Hostname()
	}

	s.lmu.Lock()
	limiter, ok := s.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(s.hostRPS), 1)
		s.limiters[host] = limiter
	}
	s.lmu.Unlock()

	return limiter.Wait(ctx)
}

// outcomeFromEntry synthesizes an outcome for a cache hit.
func outcomeFromEntry(t model.ValidationTarget, e cache.Entry) model.ValidationOutcome {
	return model.ValidationOutcome{
		Target:     t,
		CheckedAt:  e.CheckedAt,
		StatusCode: e.StatusCode,
		Accessible: e.Accessible,
		ErrorKind:  e.ErrorKind,
		FromCache:  true,
	}
}

// entryFromOutcome projects a live probe result onto its cache entry.
func entryFromOutcome(u string, out model.ValidationOutcome) cache.Entry {
	return cache.Entry{
		URL:        u,
		CheckedAt:  out.CheckedAt,
		StatusCode: out.StatusCode,
		Accessible: out.Accessible,
		ErrorKind:  out.ErrorKind,
	}
}
