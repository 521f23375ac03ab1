package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/totorinodavid/resume-matcher-upload-system-sub000/internal/models"
)

type ReviewRepo struct {
	pool *pgxpool.Pool
}

func NewReviewRepo(pool *pgxpool.Pool) *ReviewRepo {
	return &ReviewRepo{pool: pool}
}

// Begin starts a transaction so the service can insert the entry and its
// alert job atomically.
func (r *ReviewRepo) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *ReviewRepo) CreateTx(ctx context.Context, tx pgx.Tx, e *models.ManualReviewEntry) error {
	return tx.QueryRow(ctx, `
		INSERT INTO manual_review_entries (id, event_id, payload, category, note)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, e.ID, e.EventID, e.Payload, e.Category, e.Note).Scan(&e.CreatedAt)
}

func (r *ReviewRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ManualReviewEntry, error) {
	var e models.ManualReviewEntry
	err := r.pool.QueryRow(ctx, `
		SELECT id, event_id, payload, category, resolved, resolved_by, note, created_at, resolved_at
		FROM manual_review_entries WHERE id = $1
	`, id).Scan(&e.ID, &e.EventID, &e.Payload, &e.Category, &e.Resolved, &e.ResolvedBy, &e.Note, &e.CreatedAt, &e.ResolvedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListUnresolved returns open entries, oldest first, so operators work the
// backlog in arrival order.
func (r *ReviewRepo) ListUnresolved(ctx context.Context, limit int) ([]*models.ManualReviewEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_id, payload, category, resolved, resolved_by, note, created_at, resolved_at
		FROM manual_review_entries WHERE NOT resolved
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.ManualReviewEntry
	for rows.Next() {
		var e models.ManualReviewEntry
		if err := rows.Scan(&e.ID, &e.EventID, &e.Payload, &e.Category, &e.Resolved, &e.ResolvedBy, &e.Note, &e.CreatedAt, &e.ResolvedAt); err != nil {
			return nil, err
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}

// Resolve marks an entry handled. Entries are never deleted; returns
// pgx.ErrNoRows if the entry does not exist or was already resolved.
func (r *ReviewRepo) Resolve(ctx context.Context, id uuid.UUID, operatorID string, note *string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE manual_review_entries
		SET resolved = true, resolved_by = $2, note = COALESCE($3, note), resolved_at = now()
		WHERE id = $1 AND NOT resolved
	`, id, operatorID, note)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
