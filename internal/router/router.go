package router

import (
	"net/http"

	"github.com/totorinodavid/resume-matcher-upload-system-sub000/internal/handlers"
)

// New returns the read/admin API under /api/v1. The webhook endpoint is
// mounted separately in main, outside the CORS wrapper.
func New(balance *handlers.BalanceHandler, admin *handlers.AdminHandler, operatorAuth func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/users/{id}/balance", balance.GetBalance)
	mux.HandleFunc("GET /api/v1/users/{id}/transactions", balance.ListTransactions)

	mux.Handle("POST /api/v1/admin/adjustments", operatorAuth(http.HandlerFunc(admin.Adjust)))
	mux.Handle("GET /api/v1/admin/review", operatorAuth(http.HandlerFunc(admin.ListReview)))
	mux.Handle("POST /api/v1/admin/review/{id}/resolve", operatorAuth(http.HandlerFunc(admin.ResolveReview)))

	return mux
}
