package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/totorinodavid/resume-matcher-upload-system-sub000/internal/models"
)

type EventRepo struct {
	pool *pgxpool.Pool
}

func NewEventRepo(pool *pgxpool.Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

// RecordIfNew registers an event id, returning false if it was already
// present. This is a single insert racing on the primary key — never a
// read-then-write — so two concurrent deliveries of the same id cannot
// both observe "new".
func (r *EventRepo) RecordIfNew(ctx context.Context, eventID, eventType string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO processed_events (event_id, event_type)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING
	`, eventID, eventType)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// OutcomeForUpdate locks the registry row inside the caller's transaction
// and returns its current outcome. This closes the race between the
// receiver-level dedupe check and the ledger apply: only the transaction
// holding this lock may move the event to a terminal outcome.
func (r *EventRepo) OutcomeForUpdate(ctx context.Context, tx pgx.Tx, eventID string) (string, error) {
	var outcome string
	err := tx.QueryRow(ctx, `
		SELECT outcome FROM processed_events WHERE event_id = $1 FOR UPDATE
	`, eventID).Scan(&outcome)
	return outcome, err
}

// MarkOutcomeTx sets the terminal outcome inside the given transaction.
func (r *EventRepo) MarkOutcomeTx(ctx context.Context, tx pgx.Tx, eventID, outcome string, errDetail *string) error {
	_, err := tx.Exec(ctx, `
		UPDATE processed_events
		SET outcome = $2, error_detail = $3, processed_at = now()
		WHERE event_id = $1
	`, eventID, outcome, errDetail)
	return err
}

// MarkOutcome sets the terminal outcome outside any business transaction
// (used for skipped types and for failures whose apply rolled back).
func (r *EventRepo) MarkOutcome(ctx context.Context, eventID, outcome string, errDetail *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE processed_events
		SET outcome = $2, error_detail = $3, processed_at = now()
		WHERE event_id = $1
	`, eventID, outcome, errDetail)
	return err
}

func (r *EventRepo) GetByID(ctx context.Context, eventID string) (*models.ProcessedEvent, error) {
	var e models.ProcessedEvent
	err := r.pool.QueryRow(ctx, `
		SELECT event_id, event_type, outcome, error_detail, received_at, processed_at
		FROM processed_events WHERE event_id = $1
	`, eventID).Scan(&e.EventID, &e.EventType, &e.Outcome, &e.ErrorDetail, &e.ReceivedAt, &e.ProcessedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
