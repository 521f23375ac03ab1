package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/totorinodavid/resume-matcher-upload-system-sub000/internal/ledger"
	"github.com/totorinodavid/resume-matcher-upload-system-sub000/internal/models"
	"github.com/totorinodavid/resume-matcher-upload-system-sub000/internal/resolver"
)

const maxBodyBytes = 1 << 20

// EventRegistry is the processed-event store as the receiver sees it.
type EventRegistry interface {
	RecordIfNew(ctx context.Context, eventID, eventType string) (bool, error)
	GetByID(ctx context.Context, eventID string) (*models.ProcessedEvent, error)
	MarkOutcome(ctx context.Context, eventID, outcome string, errDetail *string) error
}

// UserResolver maps an event to an internal user.
type UserResolver interface {
	Resolve(ctx context.Context, in resolver.Input) (*resolver.Resolution, error)
}

// LedgerEngine applies the credit delta.
type LedgerEngine interface {
	Apply(ctx context.Context, in ledger.ApplyInput) (*ledger.Result, error)
}

// ReviewQueue records events needing operator attention. EnqueueFailure
// also moves the registry row to failed, atomically; EnqueueAudit leaves
// the outcome alone (used for degraded resolutions that still applied).
type ReviewQueue interface {
	EnqueueFailure(ctx context.Context, eventID string, payload json.RawMessage, category, detail string) error
	EnqueueAudit(ctx context.Context, eventID string, payload json.RawMessage, category, detail string) error
}

// Handler is the single webhook endpoint. Response policy: 400 for
// authentication failures, 5xx only for transient store errors where
// redelivery helps, 200 for every terminal outcome so the provider stops
// retrying.
type Handler struct {
	verifier *Verifier
	registry EventRegistry
	resolver UserResolver
	engine   LedgerEngine
	reviews  ReviewQueue
	timeout  time.Duration
	log      *slog.Logger
}

func NewHandler(verifier *Verifier, registry EventRegistry, userResolver UserResolver, engine LedgerEngine, reviews ReviewQueue, timeout time.Duration, log *slog.Logger) *Handler {
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		verifier: verifier,
		registry: registry,
		resolver: userResolver,
		engine:   engine,
		reviews:  reviews,
		timeout:  timeout,
		log:      log,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, `{"error":"body too large or unreadable"}`, http.StatusBadRequest)
		return
	}

	event, err := h.verifier.VerifyAndParse(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, ErrAuthentication) {
			h.log.Warn("webhook authentication failed", "error", err, "remote", r.RemoteAddr)
			http.Error(w, `{"error":"invalid signature"}`, http.StatusBadRequest)
			return
		}
		// Verified but undecodable: terminal, humans get it. Register the
		// id first so redeliveries dedupe inside the review queue.
		h.log.Error("webhook payload undecodable", "error", err)
		id := eventIDFromRaw(body)
		if _, rerr := h.registry.RecordIfNew(ctx, id, "undecodable"); rerr != nil {
			h.transient(w, "record event", id, rerr)
			return
		}
		h.quarantine(ctx, w, id, body, models.ReviewMalformedPayload, err.Error())
		return
	}

	isNew, err := h.registry.RecordIfNew(ctx, event.ID, event.Type)
	if err != nil {
		h.transient(w, "record event", event.ID, err)
		return
	}
	if !isNew {
		prior, err := h.registry.GetByID(ctx, event.ID)
		if err != nil {
			h.transient(w, "load prior event", event.ID, err)
			return
		}
		// A pending row means an earlier delivery died mid-pipeline;
		// fall through and let the engine's re-check keep it idempotent.
		if prior.Outcome != models.OutcomePending {
			h.log.Info("duplicate delivery", "event_id", event.ID, "outcome", prior.Outcome)
			h.respond(w, "duplicate")
			return
		}
	}

	if !event.Actionable() {
		if err := h.registry.MarkOutcome(ctx, event.ID, models.OutcomeSkipped, nil); err != nil {
			h.transient(w, "mark skipped", event.ID, err)
			return
		}
		h.log.Info("unsupported event type acknowledged", "event_id", event.ID, "type", event.Type)
		h.respond(w, "ignored")
		return
	}

	if event.Type == EventCheckoutCompleted && event.PaymentStatus != PaymentStatusPaid {
		if err := h.registry.MarkOutcome(ctx, event.ID, models.OutcomeSkipped, strPtr("payment status "+event.PaymentStatus)); err != nil {
			h.transient(w, "mark skipped", event.ID, err)
			return
		}
		h.log.Info("checkout completed but unpaid, skipping", "event_id", event.ID, "payment_status", event.PaymentStatus)
		h.respond(w, "ignored")
		return
	}

	delta, err := event.CreditsDelta()
	if err != nil {
		h.quarantine(ctx, w, event.ID, event.Raw, models.ReviewMalformedPayload, err.Error())
		return
	}

	res, err := h.resolver.Resolve(ctx, resolver.Input{
		EventID:    event.ID,
		CustomerID: event.CustomerID,
		Metadata:   event.Metadata,
	})
	if err != nil {
		if errors.Is(err, resolver.ErrUnresolved) {
			h.quarantine(ctx, w, event.ID, event.Raw, models.ReviewUnresolvedUser, "no resolution strategy succeeded")
			return
		}
		h.transient(w, "resolve user", event.ID, err)
		return
	}

	reason := models.ReasonPurchase
	if delta < 0 {
		reason = models.ReasonRefund
	}
	meta := map[string]string{
		models.MetaResolutionStrategy: res.Strategy,
	}
	if event.CustomerID != "" {
		meta[models.MetaProviderCustomerID] = event.CustomerID
	}

	eventID := event.ID
	applied, err := h.engine.Apply(ctx, ledger.ApplyInput{
		EventID:  &eventID,
		UserID:   res.UserID,
		Delta:    delta,
		Reason:   reason,
		Metadata: meta,
	})
	switch {
	case err == nil:
	case errors.Is(err, ledger.ErrInsufficientBalance):
		h.quarantine(ctx, w, event.ID, event.Raw, models.ReviewBalanceViolation, err.Error())
		return
	case errors.Is(err, ledger.ErrUnknownUser):
		h.quarantine(ctx, w, event.ID, event.Raw, models.ReviewUnresolvedUser, err.Error())
		return
	default:
		h.transient(w, "apply delta", event.ID, err)
		return
	}

	if res.Degraded {
		// The credit applied, but scan-based resolution is audited every
		// time it is used.
		if err := h.reviews.EnqueueAudit(ctx, event.ID, event.Raw, models.ReviewDegradedResolution,
			"resolved via metadata scan, verify attribution"); err != nil {
			h.log.Error("enqueue degraded-resolution audit", "event_id", event.ID, "error", err)
		}
	}

	if applied.Applied {
		h.respond(w, "applied")
	} else {
		h.respond(w, "already_applied")
	}
}

// quarantine routes a terminal failure to manual review and acknowledges
// the delivery: redelivering the same ambiguity cannot fix it.
func (h *Handler) quarantine(ctx context.Context, w http.ResponseWriter, eventID string, payload json.RawMessage, category, detail string) {
	if err := h.reviews.EnqueueFailure(ctx, eventID, payload, category, detail); err != nil {
		h.transient(w, "enqueue review", eventID, err)
		return
	}
	h.log.Warn("event queued for manual review", "event_id", eventID, "category", category, "detail", detail)
	h.respond(w, "queued_for_review")
}

// transient reports a retryable infrastructure failure. The registry row
// stays pending, so redelivery re-enters the pipeline safely.
func (h *Handler) transient(w http.ResponseWriter, op, eventID string, err error) {
	h.log.Error("transient failure, requesting redelivery", "op", op, "event_id", eventID, "error", err)
	http.Error(w, `{"error":"temporary failure, retry"}`, http.StatusInternalServerError)
}

func (h *Handler) respond(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// eventIDFromRaw best-effort extracts the id from a verified but otherwise
// undecodable payload so the review entry still keys to the event.
func eventIDFromRaw(body []byte) string {
	var probe struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(body, &probe)
	if probe.ID == "" {
		return "evt_unknown"
	}
	return probe.ID
}

func strPtr(s string) *string { return &s }
