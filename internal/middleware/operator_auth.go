package middleware

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

type contextKey string

const ctxOperatorKey contextKey = "operator"

// OperatorAuth authenticates admin requests: the Bearer token is compared
// against the configured bcrypt hash, and X-Operator-ID names the acting
// operator for the audit trail. Only the hash is ever configured; the raw
// key lives with the operators.
func OperatorAuth(keyHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if keyHash == "" {
				http.Error(w, `{"error":"admin api disabled"}`, http.StatusForbidden)
				return
			}
			raw := extractBearer(r)
			if raw == "" {
				http.Error(w, `{"error":"missing or malformed Authorization header"}`, http.StatusUnauthorized)
				return
			}
			if err := bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(raw)); err != nil {
				http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
				return
			}
			operator := strings.TrimSpace(r.Header.Get("X-Operator-ID"))
			if operator == "" {
				http.Error(w, `{"error":"X-Operator-ID header required"}`, http.StatusBadRequest)
				return
			}
			ctx := context.WithValue(r.Context(), ctxOperatorKey, operator)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OperatorFromCtx returns the authenticated operator id, or "".
func OperatorFromCtx(ctx context.Context) string {
	op, _ := ctx.Value(ctxOperatorKey).(string)
	return op
}

// WithOperator returns a context carrying the given operator id.
func WithOperator(ctx context.Context, operator string) context.Context {
	return context.WithValue(ctx, ctxOperatorKey, operator)
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
