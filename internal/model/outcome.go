package model

import "time"

// ErrorKind classifies the expected failure modes of a URL probe.
//
// Design decision: Failures are data, not Go errors. A broken privacy URL is
// a normal, common finding for federation metadata, so probes return a tagged
// variant instead of an error. Only store-level I/O problems travel through
// the error channel (see the cache package).
type ErrorKind string

// Probe failure classifications.
const (
	// ErrorKindNone means the probe succeeded. Serialized as an absent field.
	ErrorKindNone ErrorKind = ""

	// ErrorKindNetwork covers DNS resolution and connection failures.
	ErrorKindNetwork ErrorKind = "network"

	// ErrorKindTimeout means the per-request deadline elapsed.
	ErrorKindTimeout ErrorKind = "timeout"

	// ErrorKindHTTP means the server answered with a 4xx or 5xx status.
	// The status code is recorded alongside the kind.
	ErrorKindHTTP ErrorKind = "http"

	// ErrorKindInvalidTarget means the URL was malformed (bad scheme,
	// unparseable). No request is attempted for such targets.
	ErrorKindInvalidTarget ErrorKind = "invalid_target"
)

// Valid reports whether the kind is one of the known classifications.
// Unknown kinds can appear when loading a cache written by a newer version;
// loaders keep them as-is rather than failing.
func (k ErrorKind) Valid() bool {
	switch k {
	case ErrorKindNone, ErrorKindNetwork, ErrorKindTimeout, ErrorKindHTTP, ErrorKindInvalidTarget:
		return true
	}
	return false
}

// StatusAccessible reports whether an HTTP status code counts as accessible.
// The accessible range is [200, 400): success plus redirects that were
// followed to a final success.
func StatusAccessible(code int) bool {
	return code >= 200 && code < 400
}

// ValidationOutcome is the result of checking one target. It is a superset
// of a cache entry: the same reachability fields plus per-run information
// (response time, cache provenance) that is never persisted.
//
// The scheduler emits one outcome per input target. Targets sharing a URL
// share a single probe; the probe result is fanned out to every owner.
type ValidationOutcome struct {
	// Target is the input this outcome answers.
	Target ValidationTarget `json:"target"`

	// CheckedAt is when the URL was actually probed. For cache hits this
	// is the original probe time, not the current run.
	CheckedAt time.Time `json:"checked_at"`

	// StatusCode is the final HTTP status after redirects, or 0 when no
	// HTTP response was received (network error, timeout, invalid target).
	StatusCode int `json:"status_code,omitempty"`

	// Accessible is true when the final status is in [200, 400).
	// Invariant: Accessible implies StatusCode is present and in range.
	Accessible bool `json:"accessible"`

	// ErrorKind classifies the failure. Empty on success.
	ErrorKind ErrorKind `json:"error_kind,omitempty"`

	// RedirectedTo is set when the probe was redirected to a different
	// registrable domain. The target still counts as accessible; the field
	// exists so reporting can surface policy pages that moved off-site.
	RedirectedTo string `json:"redirected_to,omitempty"`

	// ResponseTimeMS is the wall-clock duration of the probe in
	// milliseconds. Zero for cache hits.
	ResponseTimeMS int64 `json:"response_time_ms,omitempty"`

	// FromCache is true when the outcome was synthesized from a fresh
	// cache entry without any network access.
	FromCache bool `json:"from_cache"`
}
