package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/totorinodavid/resume-matcher-upload-system-sub000/internal/ledger"
	"github.com/totorinodavid/resume-matcher-upload-system-sub000/internal/middleware"
	"github.com/totorinodavid/resume-matcher-upload-system-sub000/internal/models"
)

// Adjuster is the ledger engine surface the admin API uses. Manual
// adjustments bypass event-id deduplication; atomicity still holds.
type Adjuster interface {
	Adjust(ctx context.Context, userID uuid.UUID, delta int, reason, operatorID string) (*models.CreditTransaction, error)
}

// ReviewStore lists and resolves manual review entries.
type ReviewStore interface {
	ListUnresolved(ctx context.Context, limit int) ([]*models.ManualReviewEntry, error)
	Resolve(ctx context.Context, id uuid.UUID, operatorID string, note *string) error
}

// AdminHandler serves the support-staff surface. All routes sit behind the
// operator auth middleware.
type AdminHandler struct {
	Engine  Adjuster
	Reviews ReviewStore
	Logger  *slog.Logger
}

type adjustRequest struct {
	UserID string `json:"user_id"`
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

// Adjust handles POST /api/v1/admin/adjustments.
func (h *AdminHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	operatorID := middleware.OperatorFromCtx(r.Context())
	if operatorID == "" {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		http.Error(w, `{"error":"invalid user id"}`, http.StatusBadRequest)
		return
	}
	txn, err := h.Engine.Adjust(r.Context(), userID, req.Delta, req.Reason, operatorID)
	switch {
	case err == nil:
	case errors.Is(err, ledger.ErrZeroDelta):
		http.Error(w, `{"error":"delta must be non-zero"}`, http.StatusBadRequest)
		return
	case errors.Is(err, ledger.ErrInsufficientBalance):
		http.Error(w, `{"error":"adjustment would make balance negative"}`, http.StatusConflict)
		return
	case errors.Is(err, ledger.ErrUnknownUser):
		http.Error(w, `{"error":"user not found"}`, http.StatusNotFound)
		return
	default:
		h.Logger.Error("manual adjustment", "user_id", userID, "operator", operatorID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	h.Logger.Info("manual adjustment applied",
		"user_id", userID, "delta", req.Delta, "operator", operatorID, "transaction_id", txn.ID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(txn)
}

// ListReview handles GET /api/v1/admin/review.
func (h *AdminHandler) ListReview(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.Reviews.ListUnresolved(r.Context(), limit)
	if err != nil {
		h.Logger.Error("list review entries", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*models.ManualReviewEntry{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"entries": entries})
}

type resolveRequest struct {
	Note *string `json:"note,omitempty"`
}

// ResolveReview handles POST /api/v1/admin/review/{id}/resolve. Entries are
// only ever flagged resolved, never deleted.
func (h *AdminHandler) ResolveReview(w http.ResponseWriter, r *http.Request) {
	operatorID := middleware.OperatorFromCtx(r.Context())
	if operatorID == "" {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	entryID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid entry id"}`, http.StatusBadRequest)
		return
	}
	var req resolveRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if err := h.Reviews.Resolve(r.Context(), entryID, operatorID, req.Note); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, `{"error":"entry not found or already resolved"}`, http.StatusNotFound)
			return
		}
		h.Logger.Error("resolve review entry", "entry_id", entryID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	h.Logger.Info("review entry resolved", "entry_id", entryID, "operator", operatorID)
	w.WriteHeader(http.StatusNoContent)
}
