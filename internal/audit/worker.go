// Package audit runs the periodic ledger invariant check: for every user,
// credit_balance must equal the sum of their transaction deltas.
package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
)

type LedgerAuditArgs struct{}

func (LedgerAuditArgs) Kind() string { return "ledger_audit" }

// DriftChecker reports users whose stored balance disagrees with their
// ledger sum, keyed by user id with the signed difference.
type DriftChecker interface {
	BalanceDrift(ctx context.Context) (map[uuid.UUID]int, error)
}

type Worker struct {
	river.WorkerDefaults[LedgerAuditArgs]
	credits DriftChecker
	log     *slog.Logger
}

func NewWorker(credits DriftChecker, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{credits: credits, log: log}
}

// Work never mutates anything: the engine is the sole writer. Drift here
// means a bug or out-of-band write and is shouted, not repaired.
func (w *Worker) Work(ctx context.Context, job *river.Job[LedgerAuditArgs]) error {
	drift, err := w.credits.BalanceDrift(ctx)
	if err != nil {
		return fmt.Errorf("compute balance drift: %w", err)
	}
	if len(drift) == 0 {
		w.log.Info("ledger audit clean")
		return nil
	}
	for userID, diff := range drift {
		w.log.Error("ledger invariant violated: balance != sum(delta)",
			"user_id", userID, "difference", diff)
	}
	return fmt.Errorf("ledger audit found %d users with balance drift", len(drift))
}
