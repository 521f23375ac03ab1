package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"

	"github.com/totorinodavid/resume-matcher-upload-system-sub000/internal/audit"
	"github.com/totorinodavid/resume-matcher-upload-system-sub000/internal/config"
	"github.com/totorinodavid/resume-matcher-upload-system-sub000/internal/ledger"
	"github.com/totorinodavid/resume-matcher-upload-system-sub000/internal/repository"
	"github.com/totorinodavid/resume-matcher-upload-system-sub000/internal/resolver"
	"github.com/totorinodavid/resume-matcher-upload-system-sub000/internal/review"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	_ = godotenv.Load()
	cfg := config.Load()

	if cfg.WebhookSecret == "" {
		slog.Error("STRIPE_WEBHOOK_SECRET is required")
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL. Ensure Postgres is running and DATABASE_URL is correct", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL")

	// River migrations
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed. If the error is 'connection refused', start PostgreSQL first", "error", err)
		os.Exit(1)
	}
	slog.Info("River migrations applied")

	// Repositories
	userRepo := repository.NewUserRepo(pool)
	creditRepo := repository.NewCreditRepo(pool)
	eventRepo := repository.NewEventRepo(pool)
	identityRepo := repository.NewIdentityRepo(pool)
	reviewRepo := repository.NewReviewRepo(pool)

	// Ledger engine: the only writer of balances and ledger rows.
	engine := ledger.NewEngine(pool, userRepo, creditRepo, eventRepo, logger)

	// Review queue: alert insert func is set after the River client exists
	// (breaks init cycle)
	var insertMu sync.Mutex
	var insertFn review.InsertAlertTxFunc
	insertAlert := func(ctx context.Context, tx pgx.Tx, args review.AlertArgs) error {
		insertMu.Lock()
		fn := insertFn
		insertMu.Unlock()
		if fn == nil {
			panic("river insert not wired")
		}
		return fn(ctx, tx, args)
	}
	reviewSvc := review.NewService(reviewRepo, eventRepo, insertAlert, logger)

	workers := river.NewWorkers()
	river.AddWorker(workers, review.NewAlertWorker(cfg.AlertWebhookURL, logger))
	river.AddWorker(workers, audit.NewWorker(creditRepo, logger))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers: workers,
		PeriodicJobs: []*river.PeriodicJob{
			river.NewPeriodicJob(
				river.PeriodicInterval(cfg.AuditInterval),
				func() (river.JobArgs, *river.InsertOpts) {
					return audit.LedgerAuditArgs{}, nil
				},
				&river.PeriodicJobOpts{RunOnStart: true},
			),
		},
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	insertMu.Lock()
	insertFn = func(ctx context.Context, tx pgx.Tx, args review.AlertArgs) error {
		_, err := riverClient.InsertTx(ctx, tx, args, nil)
		return err
	}
	insertMu.Unlock()

	userResolver := resolver.New(userRepo, identityRepo, logger)

	mux := http.NewServeMux()
	RegisterRoutes(mux, cfg, engine, userResolver, reviewSvc, userRepo, creditRepo, eventRepo, reviewRepo, logger)

	// Start River client (delivers review alerts, runs the ledger audit)
	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	serverAddr := "0.0.0.0:" + cfg.Port
	slog.Info("Starting HTTP server", "addr", serverAddr)
	if err := http.ListenAndServe(serverAddr, mux); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
