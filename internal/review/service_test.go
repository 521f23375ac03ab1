package review

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/totorinodavid/resume-matcher-upload-system-sub000/internal/models"
)

type noopTx struct{}

func (noopTx) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }
func (noopTx) Commit(context.Context) error          { return nil }
func (noopTx) Rollback(context.Context) error        { return nil }
func (noopTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (noopTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (noopTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (noopTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (noopTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (noopTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (noopTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (noopTx) Conn() *pgx.Conn { return nil }

type mockStore struct {
	mu      sync.Mutex
	entries []*models.ManualReviewEntry
}

func (m *mockStore) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }

func (m *mockStore) CreateTx(_ context.Context, _ pgx.Tx, e *models.ManualReviewEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

type mockEvents struct {
	mu       sync.Mutex
	outcomes map[string]string
}

func (m *mockEvents) OutcomeForUpdate(_ context.Context, _ pgx.Tx, eventID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.outcomes[eventID]
	if !ok {
		return "", pgx.ErrNoRows
	}
	return o, nil
}

func (m *mockEvents) MarkOutcomeTx(_ context.Context, _ pgx.Tx, eventID, outcome string, _ *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[eventID] = outcome
	return nil
}

func newService(store *mockStore, events *mockEvents, alerts *[]AlertArgs) *Service {
	insert := func(_ context.Context, _ pgx.Tx, args AlertArgs) error {
		*alerts = append(*alerts, args)
		return nil
	}
	return NewService(store, events, insert, nil)
}

func TestEnqueueFailure(t *testing.T) {
	store := &mockStore{}
	events := &mockEvents{outcomes: map[string]string{"evt_1": models.OutcomePending}}
	var alerts []AlertArgs
	svc := newService(store, events, &alerts)

	err := svc.EnqueueFailure(context.Background(), "evt_1", json.RawMessage(`{"id":"evt_1"}`), models.ReviewUnresolvedUser, "no strategy succeeded")
	if err != nil {
		t.Fatalf("EnqueueFailure: %v", err)
	}
	if len(store.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(store.entries))
	}
	e := store.entries[0]
	if e.EventID != "evt_1" || e.Category != models.ReviewUnresolvedUser {
		t.Fatalf("entry = %+v", e)
	}
	if events.outcomes["evt_1"] != models.OutcomeFailed {
		t.Fatalf("outcome = %q, want failed", events.outcomes["evt_1"])
	}
	if len(alerts) != 1 || alerts[0].EventID != "evt_1" {
		t.Fatalf("alerts = %+v, want one for evt_1", alerts)
	}
}

func TestEnqueueFailureSkipsTerminalEvents(t *testing.T) {
	store := &mockStore{}
	events := &mockEvents{outcomes: map[string]string{"evt_1": models.OutcomeSucceeded}}
	var alerts []AlertArgs
	svc := newService(store, events, &alerts)

	err := svc.EnqueueFailure(context.Background(), "evt_1", nil, models.ReviewUnresolvedUser, "late duplicate")
	if err != nil {
		t.Fatalf("EnqueueFailure: %v", err)
	}
	if len(store.entries) != 0 || len(alerts) != 0 {
		t.Fatalf("terminal event produced entry/alert: %d/%d", len(store.entries), len(alerts))
	}
	if events.outcomes["evt_1"] != models.OutcomeSucceeded {
		t.Fatal("terminal outcome must not change")
	}
}

func TestEnqueueFailureUnregisteredEvent(t *testing.T) {
	store := &mockStore{}
	events := &mockEvents{outcomes: map[string]string{}}
	var alerts []AlertArgs
	svc := newService(store, events, &alerts)

	err := svc.EnqueueFailure(context.Background(), "evt_mystery", json.RawMessage(`{}`), models.ReviewMalformedPayload, "undecodable")
	if err != nil {
		t.Fatalf("EnqueueFailure: %v", err)
	}
	if len(store.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(store.entries))
	}
	if _, ok := events.outcomes["evt_mystery"]; ok {
		t.Fatal("unregistered event must not get an outcome row")
	}
}

func TestEnqueueAuditLeavesOutcomeAlone(t *testing.T) {
	store := &mockStore{}
	events := &mockEvents{outcomes: map[string]string{"evt_1": models.OutcomeSucceeded}}
	var alerts []AlertArgs
	svc := newService(store, events, &alerts)

	err := svc.EnqueueAudit(context.Background(), "evt_1", json.RawMessage(`{}`), models.ReviewDegradedResolution, "verify attribution")
	if err != nil {
		t.Fatalf("EnqueueAudit: %v", err)
	}
	if len(store.entries) != 1 || store.entries[0].Category != models.ReviewDegradedResolution {
		t.Fatalf("entries = %+v, want one degraded_resolution", store.entries)
	}
	if events.outcomes["evt_1"] != models.OutcomeSucceeded {
		t.Fatal("audit entry must not touch the event outcome")
	}
	if len(alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(alerts))
	}
}
