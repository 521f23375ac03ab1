// Package review is the manual-review queue: durable entries for events the
// pipeline could not safely apply, plus operator alerts delivered through
// the job queue. It performs no automatic retries — redelivery belongs to
// the payment provider, follow-up to humans.
package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/totorinodavid/resume-matcher-upload-system-sub000/internal/models"
)

// Store is the minimal review repository interface for the service.
type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	CreateTx(ctx context.Context, tx pgx.Tx, e *models.ManualReviewEntry) error
}

// EventRegistry finalizes the processed-event outcome in the same
// transaction that records the review entry.
type EventRegistry interface {
	OutcomeForUpdate(ctx context.Context, tx pgx.Tx, eventID string) (string, error)
	MarkOutcomeTx(ctx context.Context, tx pgx.Tx, eventID, outcome string, errDetail *string) error
}

// InsertAlertTxFunc enqueues an operator alert job within the given
// transaction. Provided by main as a closure over river.Client.InsertTx.
type InsertAlertTxFunc func(ctx context.Context, tx pgx.Tx, args AlertArgs) error

type Service struct {
	store       Store
	events      EventRegistry
	insertAlert InsertAlertTxFunc
	log         *slog.Logger
}

func NewService(store Store, events EventRegistry, insertAlert InsertAlertTxFunc, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, events: events, insertAlert: insertAlert, log: log}
}

// EnqueueFailure records a terminal failure: one transaction inserts the
// review entry, enqueues the operator alert, and marks the registry row
// failed. If the event already reached a terminal outcome (a concurrent
// delivery got there first), nothing is written.
func (s *Service) EnqueueFailure(ctx context.Context, eventID string, payload json.RawMessage, category, detail string) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin review tx: %w", err)
	}
	defer tx.Rollback(ctx)

	registered := true
	outcome, err := s.events.OutcomeForUpdate(ctx, tx, eventID)
	if errors.Is(err, pgx.ErrNoRows) {
		registered = false
	} else if err != nil {
		return fmt.Errorf("lock event %s: %w", eventID, err)
	} else if outcome != models.OutcomePending {
		s.log.Info("event already terminal, skipping review entry",
			"event_id", eventID, "outcome", outcome)
		return nil
	}

	entry, err := s.insertEntry(ctx, tx, eventID, payload, category, detail)
	if err != nil {
		return err
	}
	if registered {
		if err := s.events.MarkOutcomeTx(ctx, tx, eventID, models.OutcomeFailed, &detail); err != nil {
			return fmt.Errorf("mark event failed: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit review entry: %w", err)
	}
	s.log.Warn("manual review entry created",
		"entry_id", entry.ID, "event_id", eventID, "category", category)
	return nil
}

// EnqueueAudit records an entry for an event that applied but deserves
// human verification (degraded resolution). The registry outcome is left
// alone — the credit stands unless an operator reverses it.
func (s *Service) EnqueueAudit(ctx context.Context, eventID string, payload json.RawMessage, category, detail string) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin audit tx: %w", err)
	}
	defer tx.Rollback(ctx)

	entry, err := s.insertEntry(ctx, tx, eventID, payload, category, detail)
	if err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit audit entry: %w", err)
	}
	s.log.Warn("audit review entry created",
		"entry_id", entry.ID, "event_id", eventID, "category", category)
	return nil
}

func (s *Service) insertEntry(ctx context.Context, tx pgx.Tx, eventID string, payload json.RawMessage, category, detail string) (*models.ManualReviewEntry, error) {
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	entry := &models.ManualReviewEntry{
		ID:       uuid.New(),
		EventID:  eventID,
		Payload:  payload,
		Category: category,
		Note:     &detail,
	}
	if err := s.store.CreateTx(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("insert review entry: %w", err)
	}
	if s.insertAlert != nil {
		if err := s.insertAlert(ctx, tx, AlertArgs{
			EntryID:  entry.ID,
			EventID:  eventID,
			Category: category,
			Detail:   detail,
		}); err != nil {
			return nil, fmt.Errorf("enqueue review alert: %w", err)
		}
	}
	return entry, nil
}
