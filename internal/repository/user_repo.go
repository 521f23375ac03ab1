package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/totorinodavid/resume-matcher-upload-system-sub000/internal/models"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, credit_balance)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`, u.ID, u.Email, u.CreditBalance).Scan(&u.CreatedAt, &u.UpdatedAt)
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, credit_balance, created_at, updated_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Email, &u.CreditBalance, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Exists reports whether a user with the given id exists. Used by the
// resolver to validate candidate ids before trusting them.
func (r *UserRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// GetByIDForUpdate locks the user row for update. Call within a transaction;
// this is the per-user serialization point for balance mutation.
func (r *UserRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := tx.QueryRow(ctx, `
		SELECT id, email, credit_balance, created_at, updated_at
		FROM users WHERE id = $1 FOR UPDATE
	`, id).Scan(&u.ID, &u.Email, &u.CreditBalance, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ApplyDelta atomically adds delta (which may be negative) to the user's
// balance, refusing any change that would take it below zero. Returns
// pgx.ErrNoRows when the balance would go negative. Call after
// GetByIDForUpdate in the same transaction.
func (r *UserRepo) ApplyDelta(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int) (newBalance int, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE users SET credit_balance = credit_balance + $1, updated_at = now()
		WHERE id = $2 AND credit_balance + $1 >= 0
		RETURNING credit_balance
	`, delta, id).Scan(&newBalance)
	return newBalance, err
}
