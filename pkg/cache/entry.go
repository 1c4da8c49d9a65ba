package cache

import (
	"time"

	"github.com/Sternrassler/casedesk-client/pkg/cases"
)

// Entry represents a cached result set.
type Entry struct {
	// Key is the request fingerprint
	Key string `json:"key"`

	// Records is the aggregated list across all pages
	Records []cases.Record `json:"records"`

	// InsertedAt is when the result was stored
	InsertedAt time.Time `json:"inserted_at"`
}

// IsExpired reports whether the entry is older than ttl at now.
func (e *Entry) IsExpired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.InsertedAt) > ttl
}

// Remaining returns the time left before expiry, or 0.
func (e *Entry) Remaining(now time.Time, ttl time.Duration) time.Duration {
	left := ttl - now.Sub(e.InsertedAt)
	if left < 0 {
		return 0
	}
	return left
}
