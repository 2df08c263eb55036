// Package estimate computes dry-run validation plans from cache state.
//
// A plan answers "what would a run do right now" without any network
// access: how many URLs would be probed, how long the probe phase should
// take, and how the work breaks down per federation.
package estimate

import (
	"math"
	"time"

	"github.com/fedtools/fedcheck/internal/cache"
	"github.com/fedtools/fedcheck/internal/model"
)

// Estimation defaults.
const (
	// DefaultAssumedLatency is the per-probe duration assumed when
	// estimating wall-clock time. Half a second is the observed median for
	// clearnet policy pages including DNS and TLS setup.
	DefaultAssumedLatency = 500 * time.Millisecond

	// overheadFactor pads the estimate for stragglers: the last pool
	// iteration rarely finishes all workers at once.
	overheadFactor = 1.1
)

// Options tune a preview. The zero value uses defaults.
type Options struct {
	// Concurrency is the worker pool size the estimate assumes.
	// Values <= 0 fall back to 10, matching the scheduler default.
	Concurrency int

	// AssumedLatency is the per-probe duration to assume.
	// Values <= 0 fall back to DefaultAssumedLatency.
	AssumedLatency time.Duration
}

// Preview computes a validation plan for targets against the cache store.
// It is a pure function over cache state: zero network calls, and two
// previews over an unchanged cache yield identical plans.
//
// Freshness uses cache.Entry.FreshAt, the same test the scheduler applies,
// so a preview never diverges from what a real run would probe.
func Preview(targets []model.ValidationTarget, store *cache.Store, maxAge time.Duration, opts Options) model.Plan {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	latency := opts.AssumedLatency
	if latency <= 0 {
		latency = DefaultAssumedLatency
	}

	now := time.Now()
	plan := model.Plan{PerGroup: make(map[string]model.GroupPlan)}

	// Unique URLs drive the top-level counts; a URL shared across
	// federations is counted once globally and once per owning group.
	seen := make(map[string]bool)
	fresh := make(map[string]bool)
	seenByGroup := make(map[string]map[string]bool)

	for _, t := range targets {
		t = t.Normalize()

		if !seen[t.URL] {
			seen[t.URL] = true
			plan.Total++

			entry, ok := store.Get(t.URL)
			if ok && entry.FreshAt(now, maxAge) {
				fresh[t.URL] = true
				plan.Cached++
			} else {
				plan.ToProbe++
			}
		}

		group := seenByGroup[t.Federation]
		if group == nil {
			group = make(map[string]bool)
			seenByGroup[t.Federation] = group
		}
		if group[t.URL] {
			continue
		}
		group[t.URL] = true

		gp := plan.PerGroup[t.Federation]
		gp.Total++
		if fresh[t.URL] {
			gp.Cached++
		} else {
			gp.ToProbe++
		}
		plan.PerGroup[t.Federation] = gp
	}

	if plan.Total > 0 {
		plan.CacheHitRate = float64(plan.Cached) / float64(plan.Total) * 100
	}
	if plan.ToProbe > 0 {
		rounds := math.Ceil(float64(plan.ToProbe) / float64(concurrency))
		plan.EstimatedSeconds = rounds * latency.Seconds() * overheadFactor
	}

	return plan
}
