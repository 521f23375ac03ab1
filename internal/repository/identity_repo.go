package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/totorinodavid/resume-matcher-upload-system-sub000/internal/models"
)

type IdentityRepo struct {
	pool *pgxpool.Pool
}

func NewIdentityRepo(pool *pgxpool.Pool) *IdentityRepo {
	return &IdentityRepo{pool: pool}
}

// Lookup returns the mapped user id for a provider customer id, or
// pgx.ErrNoRows if the customer has never been mapped.
func (r *IdentityRepo) Lookup(ctx context.Context, providerCustomerID string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := r.pool.QueryRow(ctx, `
		SELECT user_id FROM customer_identities WHERE provider_customer_id = $1
	`, providerCustomerID).Scan(&userID)
	return userID, err
}

// RecordIfNew maps a provider customer id to a user, keeping the first
// mapping if one already exists. The unique key makes concurrent first
// resolutions converge on one winner.
func (r *IdentityRepo) RecordIfNew(ctx context.Context, providerCustomerID string, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO customer_identities (provider_customer_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (provider_customer_id) DO NOTHING
	`, providerCustomerID, userID)
	return err
}

func (r *IdentityRepo) GetByCustomerID(ctx context.Context, providerCustomerID string) (*models.CustomerIdentity, error) {
	var ci models.CustomerIdentity
	err := r.pool.QueryRow(ctx, `
		SELECT provider_customer_id, user_id, created_at
		FROM customer_identities WHERE provider_customer_id = $1
	`, providerCustomerID).Scan(&ci.ProviderCustomerID, &ci.UserID, &ci.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &ci, nil
}
