// Package idempotency provides the processed-event ledger that rejects
// webhook redeliveries.
package idempotency

import (
	"context"
	"time"
)

// DefaultTTL bounds how long a processed marker lives. It must exceed any
// plausible platform redelivery window.
const DefaultTTL = 72 * time.Hour

// ClaimTTL bounds how long an in-flight claim lives before a stalled
// handler stops blocking redelivery of its event.
const ClaimTTL = time.Minute

// Ledger records terminally handled event ids. Mark is check-and-set: it
// returns true exactly once per key across concurrent callers, which is
// what keeps two redelivered copies of the same event from both passing
// the dedupe gate. The gate claims the key with a short TTL before any
// side effect, promotes the claim with Extend once the event is
// terminally handled, and Releases it when handling fails so a
// redelivery can retry.
type Ledger interface {
	// Mark records eventID and reports whether this call was the first
	// to do so.
	Mark(ctx context.Context, eventID, botID string, ttl time.Duration) (bool, error)

	// Extend refreshes the marker for eventID to ttl, creating it if it
	// is missing.
	Extend(ctx context.Context, eventID, botID string, ttl time.Duration) error

	// Release drops the marker for eventID.
	Release(ctx context.Context, eventID string) error

	// Seen reports whether eventID already has a marker.
	Seen(ctx context.Context, eventID string) (bool, error)
}
