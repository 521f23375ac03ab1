package main

import (
	"log/slog"
	"net/http"

	"github.com/rs/cors"

	"github.com/totorinodavid/resume-matcher-upload-system-sub000/internal/config"
	"github.com/totorinodavid/resume-matcher-upload-system-sub000/internal/handlers"
	"github.com/totorinodavid/resume-matcher-upload-system-sub000/internal/ledger"
	"github.com/totorinodavid/resume-matcher-upload-system-sub000/internal/middleware"
	"github.com/totorinodavid/resume-matcher-upload-system-sub000/internal/repository"
	"github.com/totorinodavid/resume-matcher-upload-system-sub000/internal/resolver"
	"github.com/totorinodavid/resume-matcher-upload-system-sub000/internal/review"
	"github.com/totorinodavid/resume-matcher-upload-system-sub000/internal/router"
	"github.com/totorinodavid/resume-matcher-upload-system-sub000/internal/webhook"
)

// RegisterRoutes mounts the webhook endpoint and the read/admin API.
// The webhook sits outside the CORS wrapper: it is called by the payment
// provider, not a browser.
func RegisterRoutes(
	mux *http.ServeMux,
	cfg *config.Config,
	engine *ledger.Engine,
	userResolver *resolver.Resolver,
	reviewSvc *review.Service,
	userRepo *repository.UserRepo,
	creditRepo *repository.CreditRepo,
	eventRepo *repository.EventRepo,
	reviewRepo *repository.ReviewRepo,
	logger *slog.Logger,
) {
	verifier := webhook.NewVerifier(cfg.WebhookSecret, cfg.WebhookTolerance)
	webhookHandler := webhook.NewHandler(verifier, eventRepo, userResolver, engine, reviewSvc, cfg.WebhookTimeout, logger)
	mux.Handle("POST /webhooks/stripe", webhookHandler)

	balanceHandler := &handlers.BalanceHandler{Users: userRepo, Credits: creditRepo, Logger: logger}
	adminHandler := &handlers.AdminHandler{Engine: engine, Reviews: reviewRepo, Logger: logger}
	operatorAuth := middleware.OperatorAuth(cfg.OperatorKeyHash)

	api := router.New(balanceHandler, adminHandler, operatorAuth)
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Operator-ID"},
		AllowCredentials: true,
	}).Handler(api)
	mux.Handle("/api/", corsHandler)
}
