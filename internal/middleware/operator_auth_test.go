package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func testHash(t *testing.T, key string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hash)
}

func protected(keyHash string) (http.Handler, *string) {
	var seenOperator string
	h := OperatorAuth(keyHash)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenOperator = OperatorFromCtx(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	return h, &seenOperator
}

func TestOperatorAuthAccepts(t *testing.T) {
	h, operator := protected(testHash(t, "ops-key-1"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/adjustments", nil)
	req.Header.Set("Authorization", "Bearer ops-key-1")
	req.Header.Set("X-Operator-ID", "op_mia")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if *operator != "op_mia" {
		t.Fatalf("operator = %q, want op_mia", *operator)
	}
}

func TestOperatorAuthRejectsWrongKey(t *testing.T) {
	h, _ := protected(testHash(t, "ops-key-1"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/adjustments", nil)
	req.Header.Set("Authorization", "Bearer wrong-key")
	req.Header.Set("X-Operator-ID", "op_mia")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestOperatorAuthRejectsMissingHeader(t *testing.T) {
	h, _ := protected(testHash(t, "ops-key-1"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/adjustments", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestOperatorAuthRequiresOperatorID(t *testing.T) {
	h, _ := protected(testHash(t, "ops-key-1"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/adjustments", nil)
	req.Header.Set("Authorization", "Bearer ops-key-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 without X-Operator-ID", rec.Code)
	}
}

func TestOperatorAuthDisabledWithoutHash(t *testing.T) {
	h, _ := protected("")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/adjustments", nil)
	req.Header.Set("Authorization", "Bearer anything")
	req.Header.Set("X-Operator-ID", "op_mia")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 when admin api disabled", rec.Code)
	}
}
