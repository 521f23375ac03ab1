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

	"github.com/totorinodavid/resume-matcher-upload-system-sub000/internal/models"
	"github.com/totorinodavid/resume-matcher-upload-system-sub000/internal/repository"
)

// UserReader is the subset of the user repository the read API needs.
type UserReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// CreditLister pages a user's transactions newest first.
type CreditLister interface {
	ListByUserPage(ctx context.Context, userID uuid.UUID, cursor *repository.Cursor, limit int) ([]*models.CreditTransaction, *repository.Cursor, error)
}

/// BalanceHandler serves the balance-display collaborator: current balance
// and the transaction history behind it.
type BalanceHandler struct {
	Users   UserReader
	Credits CreditLister
	Logger  *slog.Logger
}

// GetBalance handles GET /api/v1/users/{id}/balance.
func (h *BalanceHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid user id"}`, http.StatusBadRequest)
		return
	}
	u, err := h.Users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, `{"error":"user not found"}`, http.StatusNotFound)
			return
		}
		h.Logger.Error("get balance", "user_id", userID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"user_id": u.ID,
		"balance": u.CreditBalance,
	})
}

type listTransactionsResponse struct {
	Transactions []*models.CreditTransaction `json:"transactions"`
	NextCursor   *string                     `json:"next_cursor,omitempty"`
}

// ListTransactions handles GET /api/v1/users/{id}/transactions?cursor=&limit=.
// Newest first, restartable via the returned cursor.
func (h *BalanceHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid user id"}`, http.StatusBadRequest)
		return
	}
	var cursor *repository.Cursor
	if token := r.URL.Query().Get("cursor"); token != "" {
		cursor, err = repository.DecodeCursor(token)
		if err != nil {
			http.Error(w, `{"error":"invalid cursor"}`, http.StatusBadRequest)
			return
		}
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	list, next, err := h.Credits.ListByUserPage(r.Context(), userID, cursor, limit)
	if err != nil {
		h.Logger.Error("list transactions", "user_id", userID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	resp := listTransactionsResponse{Transactions: list}
	if list == nil {
		resp.Transactions = []*models.CreditTransaction{}
	}
	if next != nil {
		token := next.Encode()
		resp.NextCursor = &token
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
