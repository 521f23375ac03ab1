package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Failure categories for manual review entries.
const (
	ReviewUnresolvedUser     = "unresolved_user"
	ReviewBalanceViolation   = "balance_violation"
	ReviewDegradedResolution = "degraded_resolution"
	ReviewMalformedPayload   = "malformed_payload"
)

// ManualReviewEntry is an event the pipeline could not (or should not
// silently) apply. Entries are never deleted, only marked resolved by an
// operator after out-of-band correction.
type ManualReviewEntry struct {
	ID         uuid.UUID       `json:"id"`
	EventID    string          `json:"event_id"`
	Payload    json.RawMessage `json:"payload"`
	Category   string          `json:"category"`
	Resolved   bool            `json:"resolved"`
	ResolvedBy *string         `json:"resolved_by,omitempty"`
	Note       *string         `json:"note,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	ResolvedAt *time.Time      `json:"resolved_at,omitempty"`
}
