package repository

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/totorinodavid/resume-matcher-upload-system-sub000/internal/models"
)

type CreditRepo struct {
	pool *pgxpool.Pool
}

func NewCreditRepo(pool *pgxpool.Pool) *CreditRepo {
	return &CreditRepo{pool: pool}
}

// CreateTx inserts a ledger row inside the given transaction. The ledger is
// append-only: there is no update or delete path.
func (r *CreditRepo) CreateTx(ctx context.Context, tx pgx.Tx, c *models.CreditTransaction) error {
	return tx.QueryRow(ctx, `
		INSERT INTO credit_transactions (id, user_id, delta, reason, external_event_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, c.ID, c.UserID, c.Delta, c.Reason, c.ExternalEventID, c.Metadata).Scan(&c.CreatedAt)
}

func (r *CreditRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.CreditTransaction, error) {
	var c models.CreditTransaction
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, delta, reason, external_event_id, metadata, created_at
		FROM credit_transactions WHERE id = $1
	`, id).Scan(&c.ID, &c.UserID, &c.Delta, &c.Reason, &c.ExternalEventID, &c.Metadata, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Cursor is a keyset pagination position: the (created_at, id) pair of the
// last row the caller has seen.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// Encode returns the opaque token handed to API clients.
func (c Cursor) Encode() string {
	raw := fmt.Sprintf("%d:%s", c.CreatedAt.UnixNano(), c.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by Encode.
func DecodeCursor(token string) (*Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("bad cursor: %w", err)
	}
	parts := strings.SplitN(string(raw), ":", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("bad cursor format")
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad cursor timestamp: %w", err)
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return nil, fmt.Errorf("bad cursor id: %w", err)
	}
	return &Cursor{CreatedAt: time.Unix(0, nanos), ID: id}, nil
}

// ListByUserPage returns up to limit transactions for the user, newest
// first, starting strictly after the cursor position (pass nil for the
// first page). The second return value is the cursor for the next page, or
// nil when this page was the last.
func (r *CreditRepo) ListByUserPage(ctx context.Context, userID uuid.UUID, cursor *Cursor, limit int) ([]*models.CreditTransaction, *Cursor, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var rows pgx.Rows
	var err error
	if cursor == nil {
		rows, err = r.pool.Query(ctx, `
			SELECT id, user_id, delta, reason, external_event_id, metadata, created_at
			FROM credit_transactions WHERE user_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		`, userID, limit)
	} else {
		rows, err = r.pool.Query(ctx, `
			SELECT id, user_id, delta, reason, external_event_id, metadata, created_at
			FROM credit_transactions
			WHERE user_id = $1 AND (created_at, id) < ($2, $3)
			ORDER BY created_at DESC, id DESC
			LIMIT $4
		`, userID, cursor.CreatedAt, cursor.ID, limit)
	}
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var list []*models.CreditTransaction
	for rows.Next() {
		var c models.CreditTransaction
		if err := rows.Scan(&c.ID, &c.UserID, &c.Delta, &c.Reason, &c.ExternalEventID, &c.Metadata, &c.CreatedAt); err != nil {
			return nil, nil, err
		}
		list = append(list, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	var next *Cursor
	if len(list) == limit {
		last := list[len(list)-1]
		next = &Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return list, next, nil
}

// SumDeltaByUser recomputes a user's balance from the ledger. Used by the
// audit job to verify balance == sum(delta).
func (r *CreditRepo) SumDeltaByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var sum int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(delta), 0) FROM credit_transactions WHERE user_id = $1
	`, userID).Scan(&sum)
	return sum, err
}

// BalanceDrift returns every user whose stored balance disagrees with the
// sum of their ledger deltas. An empty result is the healthy state.
func (r *CreditRepo) BalanceDrift(ctx context.Context) (map[uuid.UUID]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.id, u.credit_balance - COALESCE(SUM(t.delta), 0)
		FROM users u
		LEFT JOIN credit_transactions t ON t.user_id = u.id
		GROUP BY u.id, u.credit_balance
		HAVING u.credit_balance <> COALESCE(SUM(t.delta), 0)
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	drift := make(map[uuid.UUID]int)
	for rows.Next() {
		var id uuid.UUID
		var diff int
		if err := rows.Scan(&id, &diff); err != nil {
			return nil, err
		}
		drift[id] = diff
	}
	return drift, rows.Err()
}
