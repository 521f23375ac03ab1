package models

import (
	"time"

	"github.com/google/uuid"
)

// Reason values for credit_transactions.
const (
	ReasonPurchase         = "purchase"
	ReasonRefund           = "refund"
	ReasonAdminAdjustment  = "admin_adjustment"
	ReasonManualCorrection = "manual_correction"
)

// Metadata keys set by the pipeline.
const (
	MetaResolutionStrategy = "resolution"
	MetaOperatorID         = "operator_id"
	MetaProviderCustomerID = "provider_customer_id"
)

// CreditTransaction is one append-only ledger row. Rows are never updated
// or deleted; corrections are new rows with negative deltas. For every user,
// users.credit_balance equals the sum of deltas over their rows.
type CreditTransaction struct {
	ID              uuid.UUID         `json:"id"`
	UserID          uuid.UUID         `json:"user_id"`
	Delta           int               `json:"delta"`
	Reason          string            `json:"reason"`
	ExternalEventID *string           `json:"external_event_id,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}
