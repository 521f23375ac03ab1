// Package ledger owns all balance mutation. Every credit, refund, or
// adjustment goes through Engine.Apply; no other component writes
// users.credit_balance or credit_transactions.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/totorinodavid/resume-matcher-upload-system-sub000/internal/models"
)

// ErrInsufficientBalance is returned when a negative delta would take the
// user's balance below zero. The transaction is rolled back in full.
var ErrInsufficientBalance = errors.New("insufficient balance for refund")

// ErrUnknownUser is returned when the target user does not exist.
var ErrUnknownUser = errors.New("unknown user")

// ErrEventNotRegistered is returned when Apply is called with an event id
// the registry has never seen. The receiver records every event before
// invoking the engine.
var ErrEventNotRegistered = errors.New("event not registered")

// ErrZeroDelta rejects no-op mutations so the ledger never carries them.
var ErrZeroDelta = errors.New("delta must be non-zero")

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// UserStore is the minimal user repository interface for the engine.
type UserStore interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.User, error)
	ApplyDelta(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int) (newBalance int, err error)
}

// CreditStore appends ledger rows.
type CreditStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, c *models.CreditTransaction) error
}

// EventRegistry re-checks and finalizes the processed-event row inside the
// engine's transaction.
type EventRegistry interface {
	OutcomeForUpdate(ctx context.Context, tx pgx.Tx, eventID string) (string, error)
	MarkOutcomeTx(ctx context.Context, tx pgx.Tx, eventID, outcome string, errDetail *string) error
}

// Engine applies credit deltas idempotently and atomically.
type Engine struct {
	db      TxBeginner
	users   UserStore
	credits CreditStore
	events  EventRegistry
	log     *slog.Logger
}

func NewEngine(db TxBeginner, users UserStore, credits CreditStore, events EventRegistry, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{db: db, users: users, credits: credits, events: events, log: log}
}

// ApplyInput describes one balance mutation. EventID is nil for manual
// adjustments, which are not deduplicated (each adjustment is its own event).
type ApplyInput struct {
	EventID  *string
	UserID   uuid.UUID
	Delta    int
	Reason   string
	Metadata map[string]string
}

// Result reports whether this call applied the delta or found it already
// applied by an earlier delivery.
type Result struct {
	Applied     bool
	NewBalance  int
	Transaction *models.CreditTransaction
}

// Apply executes the mutation in a single database transaction:
// lock the registry row and re-check its outcome, lock the user row, insert
// the ledger row, conditionally update the balance, mark the event
// succeeded, commit. Any failure rolls the whole thing back, so a partial
// application cannot exist. Safe to retry on transient commit failure.
func (e *Engine) Apply(ctx context.Context, in ApplyInput) (*Result, error) {
	if in.Delta == 0 {
		return nil, ErrZeroDelta
	}
	tx, err := e.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin apply tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if in.EventID != nil {
		outcome, err := e.events.OutcomeForUpdate(ctx, tx, *in.EventID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotRegistered
		}
		if err != nil {
			return nil, fmt.Errorf("recheck event %s: %w", *in.EventID, err)
		}
		if outcome == models.OutcomeSucceeded {
			e.log.Info("event already applied", "event_id", *in.EventID)
			return &Result{Applied: false}, nil
		}
	}

	if _, err := e.users.GetByIDForUpdate(ctx, tx, in.UserID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownUser, in.UserID)
		}
		return nil, fmt.Errorf("lock user %s: %w", in.UserID, err)
	}

	txn := &models.CreditTransaction{
		ID:              uuid.New(),
		UserID:          in.UserID,
		Delta:           in.Delta,
		Reason:          in.Reason,
		ExternalEventID: in.EventID,
		Metadata:        in.Metadata,
	}
	if err := e.credits.CreateTx(ctx, tx, txn); err != nil {
		return nil, fmt.Errorf("insert ledger row: %w", err)
	}

	newBalance, err := e.users.ApplyDelta(ctx, tx, in.UserID, in.Delta)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInsufficientBalance
		}
		return nil, fmt.Errorf("update balance: %w", err)
	}

	if in.EventID != nil {
		if err := e.events.MarkOutcomeTx(ctx, tx, *in.EventID, models.OutcomeSucceeded, nil); err != nil {
			return nil, fmt.Errorf("mark event succeeded: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit apply: %w", err)
	}
	e.log.Info("credit delta applied",
		"user_id", in.UserID, "delta", in.Delta, "reason", in.Reason, "balance", newBalance)
	return &Result{Applied: true, NewBalance: newBalance, Transaction: txn}, nil
}

// Adjust is the operator entry point. It reuses Apply's atomicity but skips
// event-id deduplication: each manual adjustment is its own event.
func (e *Engine) Adjust(ctx context.Context, userID uuid.UUID, delta int, reason, operatorID string) (*models.CreditTransaction, error) {
	if reason == "" {
		reason = models.ReasonAdminAdjustment
	}
	res, err := e.Apply(ctx, ApplyInput{
		UserID: userID,
		Delta:  delta,
		Reason: reason,
		Metadata: map[string]string{
			models.MetaOperatorID: operatorID,
		},
	})
	if err != nil {
		return nil, err
	}
	return res.Transaction, nil
}
