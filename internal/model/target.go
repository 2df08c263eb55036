package model

import "strings"

// ValidationTarget is one privacy-statement URL extracted from federation
// metadata, together with the entity that declared it.
//
// Targets are immutable inputs. Many entities may declare the same URL
// (federations commonly share a hosted privacy policy), so deduplication
// happens by URL, never by entity.
type ValidationTarget struct {
	// URL is the privacy-statement URL to validate.
	// It is used verbatim as the cache key after trimming whitespace;
	// no further normalization is applied.
	URL string `json:"url"`

	// EntityID is the SAML entityID of the entity declaring the URL.
	// The validation engine treats it as an opaque label.
	EntityID string `json:"entity_id"`

	// Federation is the administrative grouping the entity belongs to
	// (e.g., a national identity federation). Used only for grouping
	// in plans and summaries.
	Federation string `json:"federation"`
}

// NewValidationTarget creates a target with the URL trimmed of surrounding
// whitespace. Trimming here keeps the cache key contract in one place:
// every target entering the engine has already been trimmed.
func NewValidationTarget(url, entityID, federation string) ValidationTarget {
	return ValidationTarget{
		URL:        strings.TrimSpace(url),
		EntityID:   entityID,
		Federation: federation,
	}
}

// Normalize returns a copy of the target with a trimmed URL.
// Used by loaders that construct targets directly.
func (t ValidationTarget) Normalize() ValidationTarget {
	t.URL = strings.TrimSpace(t.URL)
	return t
}
