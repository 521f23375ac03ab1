package models

import "time"

// Processing outcomes for processed_events. An event id is inserted exactly
// once (outcome pending) and moves to exactly one terminal outcome.
const (
	OutcomePending   = "pending"
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// ProcessedEvent records every distinct provider event id the system has
// seen. The primary key on EventID is the deduplication barrier.
type ProcessedEvent struct {
	EventID     string     `json:"event_id"`
	EventType   string     `json:"event_type"`
	Outcome     string     `json:"outcome"`
	ErrorDetail *string    `json:"error_detail,omitempty"`
	ReceivedAt  time.Time  `json:"received_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}
