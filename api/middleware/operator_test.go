package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pledgeforge/backerstore-backend/pkg/config"
)

func signOperatorToken(t *testing.T, secret, issuer, role string) string {
	t.Helper()
	claims := operatorClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestOperatorAuth_AllowsOperator(t *testing.T) {
	cfg := config.OperatorConfig{JWTSecret: "secret", JWTIssuer: "backerstore"}
	handler := OperatorAuth(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/capture-runs", nil)
	req.Header.Set("Authorization", "Bearer "+signOperatorToken(t, "secret", "backerstore", "operator"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestOperatorAuth_RejectsMissingToken(t *testing.T) {
	cfg := config.OperatorConfig{JWTSecret: "secret", JWTIssuer: "backerstore"}
	handler := OperatorAuth(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/capture-runs", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestOperatorAuth_RejectsWrongRole(t *testing.T) {
	cfg := config.OperatorConfig{JWTSecret: "secret", JWTIssuer: "backerstore"}
	handler := OperatorAuth(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/capture-runs", nil)
	req.Header.Set("Authorization", "Bearer "+signOperatorToken(t, "secret", "backerstore", "support"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestOperatorAuth_RejectsBadSignature(t *testing.T) {
	cfg := config.OperatorConfig{JWTSecret: "secret", JWTIssuer: "backerstore"}
	handler := OperatorAuth(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/capture-runs", nil)
	req.Header.Set("Authorization", "Bearer "+signOperatorToken(t, "other-secret", "backerstore", "operator"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
