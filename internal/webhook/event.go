package webhook

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Provider event types this pipeline acts on. Everything else is
// acknowledged and recorded as skipped.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventChargeRefunded    = "charge.refunded"
)

// PaymentStatusPaid is the checkout-session payment status that releases
// credits. Sessions completed without payment (e.g. async methods still
// pending) are skipped; the provider sends a follow-up event once paid.
const PaymentStatusPaid = "paid"

// Event is the normalized, verified form of one provider delivery.
type Event struct {
	ID            string
	Type          string
	CustomerID    string
	PaymentStatus string
	Metadata      map[string]string
	Raw           json.RawMessage
}

// Actionable reports whether the event type affects the ledger.
func (e *Event) Actionable() bool {
	return e.Type == EventCheckoutCompleted || e.Type == EventChargeRefunded
}

// CreditsDelta extracts the signed credit delta from the event: positive
// for a completed purchase, negative for a refund. The quantity comes from
// the "credits" metadata attached at checkout-session creation; without it
// the event cannot be applied.
func (e *Event) CreditsDelta() (int, error) {
	raw, ok := e.Metadata["credits"]
	if !ok {
		return 0, fmt.Errorf("event %s: no credits metadata", e.ID)
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("event %s: bad credits value %q", e.ID, raw)
	}
	if e.Type == EventChargeRefunded {
		return -n, nil
	}
	return n, nil
}
