// Package resolver decides which internal user an incoming payment event
// belongs to, trying strategies in a fixed priority order.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Strategy names, recorded in transaction metadata.
const (
	StrategyMetadata     = "metadata"
	StrategyIdentityMap  = "identity_map"
	StrategyMetadataScan = "metadata_scan"
)

// MetadataUserIDKey is the checkout-session metadata key the purchase flow
// attaches at session creation time. It is the most trustworthy signal.
const MetadataUserIDKey = "user_id"

// ErrUnresolved means no strategy produced a user; the event goes to
// manual review.
var ErrUnresolved = errors.New("could not resolve user for event")

// UserLookup validates candidate user ids.
type UserLookup interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// IdentityStore is the customer-id → user-id map, written lazily by the
// resolver itself.
type IdentityStore interface {
	Lookup(ctx context.Context, providerCustomerID string) (uuid.UUID, error)
	RecordIfNew(ctx context.Context, providerCustomerID string, userID uuid.UUID) error
}

// Input is the identity-relevant slice of an incoming event.
type Input struct {
	EventID    string
	CustomerID string
	Metadata   map[string]string
}

// Resolution names the user and the strategy that found them. Degraded is
// set only for the metadata-scan fallback, which trades a real risk of
// misattribution for recall and must be audited downstream.
type Resolution struct {
	UserID   uuid.UUID
	Strategy string
	Degraded bool
}

type Resolver struct {
	users      UserLookup
	identities IdentityStore
	log        *slog.Logger
}

func New(users UserLookup, identities IdentityStore, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{users: users, identities: identities, log: log}
}

// Resolve applies the strategies in priority order and returns the first
// success. On a metadata resolution it also records the customer-id
// mapping so later events from the same customer resolve without metadata.
func (r *Resolver) Resolve(ctx context.Context, in Input) (*Resolution, error) {
	// Strategy 1: explicit user id in event metadata.
	if raw, ok := in.Metadata[MetadataUserIDKey]; ok {
		id, err := r.knownUser(ctx, raw)
		if err != nil {
			return nil, err
		}
		if id != uuid.Nil {
			if in.CustomerID != "" {
				if err := r.identities.RecordIfNew(ctx, in.CustomerID, id); err != nil {
					return nil, fmt.Errorf("record customer identity: %w", err)
				}
			}
			return &Resolution{UserID: id, Strategy: StrategyMetadata}, nil
		}
		r.log.Warn("metadata user_id is not a known user",
			"event_id", in.EventID, "value", raw)
	}

	// Strategy 2: previously established customer-id mapping.
	if in.CustomerID != "" {
		id, err := r.identities.Lookup(ctx, in.CustomerID)
		if err == nil {
			return &Resolution{UserID: id, Strategy: StrategyIdentityMap}, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("lookup customer identity: %w", err)
		}
	}

	// Strategy 3 (degraded): any other metadata value shaped like a known
	// user id. Keys are scanned in sorted order so the outcome is stable.
	keys := make([]string, 0, len(in.Metadata))
	for k := range in.Metadata {
		if k != MetadataUserIDKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		id, err := r.knownUser(ctx, in.Metadata[k])
		if err != nil {
			return nil, err
		}
		if id != uuid.Nil {
			r.log.Warn("resolved user by scanning metadata; flagging for audit",
				"event_id", in.EventID, "metadata_key", k, "user_id", id,
				"customer_id", in.CustomerID)
			return &Resolution{UserID: id, Strategy: StrategyMetadataScan, Degraded: true}, nil
		}
	}

	r.log.Warn("user resolution failed",
		"event_id", in.EventID, "customer_id", in.CustomerID,
		"metadata_keys", metadataKeys(in.Metadata))
	return nil, ErrUnresolved
}

// knownUser returns the parsed id when raw is a UUID belonging to an
// existing user, uuid.Nil when it is not, and an error only for store
// failures.
func (r *Resolver) knownUser(ctx context.Context, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, nil
	}
	exists, err := r.users.Exists(ctx, id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("check user %s: %w", id, err)
	}
	if !exists {
		return uuid.Nil, nil
	}
	return id, nil
}

func metadataKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
