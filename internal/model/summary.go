package model

// GroupCount holds accessible/broken counts for one federation.
type GroupCount struct {
	Total      int `json:"total"`
	Accessible int `json:"accessible"`
	Broken     int `json:"broken"`
}

// Summary is the aggregate view of a validation run, consumed by the
// reporting layer. It is a pure reduction over outcomes: the same shape is
// produced whether outcomes came from a live run or were reconstructed from
// cache alone.
type Summary struct {
	// Total is the number of counted outcomes.
	Total int `json:"total"`

	// Accessible is how many counted outcomes were reachable.
	Accessible int `json:"accessible"`

	// Broken is how many were not (HTTP error, network error, timeout,
	// or invalid URL).
	Broken int `json:"broken"`

	// FromCache is how many counted outcomes were served from the cache.
	FromCache int `json:"from_cache"`

	// ByFederation breaks the counts down per federation.
	ByFederation map[string]GroupCount `json:"by_federation,omitempty"`
}

// AccessibleRate returns Accessible/Total as a percentage, or 0 for an
// empty summary.
func (s Summary) AccessibleRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Accessible) / float64(s.Total) * 100
}
