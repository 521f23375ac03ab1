package models

import (
	"time"

	"github.com/google/uuid"
)

// CustomerIdentity maps the payment provider's customer id to an internal
// user. Built lazily: written the first time an event resolves a customer
// definitively via its metadata, then used as a fallback for later events
// from the same customer that carry no metadata.
type CustomerIdentity struct {
	ProviderCustomerID string    `json:"provider_customer_id"`
	UserID             uuid.UUID `json:"user_id"`
	CreatedAt          time.Time `json:"created_at"`
}
