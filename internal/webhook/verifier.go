package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v74"
	stripewebhook "github.com/stripe/stripe-go/v74/webhook"
)

// ErrAuthentication covers bad or missing signatures and timestamps outside
// the configured tolerance. These requests never reach resolution or ledger
// logic.
var ErrAuthentication = errors.New("webhook signature verification failed")

// Verifier checks event authenticity and normalizes the payload. The secret
// and skew tolerance are injected at construction; nothing here reads
// ambient state.
type Verifier struct {
	secret    string
	tolerance time.Duration
}

func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = stripewebhook.DefaultTolerance
	}
	return &Verifier{secret: secret, tolerance: tolerance}
}

// VerifyAndParse authenticates the raw body against the signature header
// and returns the normalized event. Signature or timestamp failures return
// ErrAuthentication; a verified but undecodable payload is an ordinary
// error (the caller routes it to review rather than asking for redelivery).
func (v *Verifier) VerifyAndParse(payload []byte, sigHeader string) (*Event, error) {
	stripeEvent, err := stripewebhook.ConstructEventWithTolerance(payload, sigHeader, v.secret, v.tolerance)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}

	ev := &Event{
		ID:   stripeEvent.ID,
		Type: string(stripeEvent.Type),
		Raw:  json.RawMessage(payload),
	}

	switch ev.Type {
	case EventCheckoutCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(stripeEvent.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("decode checkout session %s: %w", ev.ID, err)
		}
		ev.Metadata = sess.Metadata
		ev.PaymentStatus = string(sess.PaymentStatus)
		if sess.Customer != nil {
			ev.CustomerID = sess.Customer.ID
		}
	case EventChargeRefunded:
		var ch stripe.Charge
		if err := json.Unmarshal(stripeEvent.Data.Raw, &ch); err != nil {
			return nil, fmt.Errorf("decode charge %s: %w", ev.ID, err)
		}
		ev.Metadata = ch.Metadata
		if ch.Customer != nil {
			ev.CustomerID = ch.Customer.ID
		}
	}
	if ev.Metadata == nil {
		ev.Metadata = map[string]string{}
	}
	return ev, nil
}
