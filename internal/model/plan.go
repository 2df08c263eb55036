package model

// GroupPlan is the per-federation slice of a Plan.
type GroupPlan struct {
	// Total is the number of unique URLs declared by the group.
	Total int `json:"total"`

	// Cached is how many of those are fresh in the cache.
	Cached int `json:"cached"`

	// ToProbe is how many would require a network probe.
	ToProbe int `json:"to_probe"`
}

// Plan is a dry-run estimate of what a validation run would do, computed
// from cache state alone. It is never persisted.
//
// A URL shared by entities in different federations appears once in the
// top-level counts and once in each owning federation's GroupPlan. Which
// counting the reporting layer prefers is its own decision (see the
// aggregate package for the equivalent choice on live results).
type Plan struct {
	// Total is the number of unique URLs across all targets.
	Total int `json:"total"`

	// Cached is how many unique URLs have a fresh cache entry.
	Cached int `json:"cached"`

	// ToProbe is how many unique URLs would be probed.
	ToProbe int `json:"to_probe"`

	// CacheHitRate is Cached/Total as a percentage. Zero when Total is 0.
	CacheHitRate float64 `json:"cache_hit_rate"`

	// EstimatedSeconds is the predicted wall-clock duration of the probe
	// phase, including a straggler overhead factor.
	EstimatedSeconds float64 `json:"estimated_seconds"`

	// PerGroup breaks the plan down by federation.
	PerGroup map[string]GroupPlan `json:"per_group,omitempty"`
}
