package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the internal account the ledger credits. Accounts are provisioned
// by the main application before first purchase; this service only ever
// mutates credit_balance, and only through the ledger engine.
type User struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	CreditBalance int       `json:"credit_balance"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
