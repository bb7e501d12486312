package stripe

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/pledgeforge/backerstore-backend/pkg/errors"
)

func TestEnsureIdempotencyKey(t *testing.T) {
	c := &Client{}
	// Provided key should be used verbatim.
	if got := c.ensureIdempotencyKey("pref", "custom-key"); got != "custom-key" {
		t.Fatalf("expected provided key, got %q", got)
	}
	// Empty key should be generated and include prefix.
	if got := c.ensureIdempotencyKey("intent.create", ""); !strings.HasPrefix(got, "intent.create-") {
		t.Fatalf("generated idempotency key %q missing prefix", got)
	}
}

func TestCustomerIdempotencyKeyIsDeterministic(t *testing.T) {
	first := CustomerIdempotencyKey("backer-42")
	second := CustomerIdempotencyKey(" backer-42 ")
	if first != second {
		t.Fatalf("expected stable key, got %q and %q", first, second)
	}
	if first != "customer.create-backer-42" {
		t.Fatalf("unexpected key %q", first)
	}
}

func TestRedact(t *testing.T) {
	c := &Client{}
	if out := c.redact("payment_method_token", "abc123"); out != "[REDACTED]" {
		t.Fatalf("expected redacted value, got %v", out)
	}
	// Non-sensitive keys should be preserved.
	if v := c.redact("status", "ok"); v != "ok" {
		t.Fatalf("unexpected redaction for safe key")
	}
}

func TestDomainCodeForStatus(t *testing.T) {
	tests := []struct {
		status int
		code   pkgerrors.Code
	}{
		{http.StatusUnauthorized, pkgerrors.CodeUnauthorized},
		{http.StatusForbidden, pkgerrors.CodeForbidden},
		{http.StatusNotFound, pkgerrors.CodeNotFound},
		{http.StatusConflict, pkgerrors.CodeConflict},
		{http.StatusTooManyRequests, pkgerrors.CodeRateLimit},
		{http.StatusBadRequest, pkgerrors.CodeValidation},
		{http.StatusUnprocessableEntity, pkgerrors.CodeStateConflict},
		{http.StatusInternalServerError, pkgerrors.CodeDependency},
	}
	for _, tt := range tests {
		if got := domainCodeForStatus(tt.status); got != tt.code {
			t.Fatalf("status %d expected %s got %s", tt.status, tt.code, got)
		}
	}
}

func TestMapStripeError(t *testing.T) {
	c := &Client{}
	table := []struct {
		name     string
		err      error
		wantCode pkgerrors.Code
	}{
		{
			name:     "card declined",
			err:      &stripe.Error{Code: stripe.ErrorCodeCardDeclined, DeclineCode: stripe.DeclineCodeInsufficientFunds, HTTPStatusCode: http.StatusPaymentRequired},
			wantCode: pkgerrors.CodeDeclined,
		},
		{
			name:     "expired card",
			err:      &stripe.Error{Code: stripe.ErrorCodeExpiredCard, HTTPStatusCode: http.StatusPaymentRequired},
			wantCode: pkgerrors.CodeDeclined,
		},
		{
			name:     "idempotency key in use",
			err:      &stripe.Error{Code: stripe.ErrorCodeIdempotencyKeyInUse, HTTPStatusCode: http.StatusConflict},
			wantCode: pkgerrors.CodeIdempotency,
		},
		{
			name:     "authentication error",
			err:      &stripe.Error{HTTPStatusCode: http.StatusUnauthorized},
			wantCode: pkgerrors.CodeUnauthorized,
		},
		{
			name:     "gateway outage",
			err:      &stripe.Error{HTTPStatusCode: http.StatusInternalServerError},
			wantCode: pkgerrors.CodeDependency,
		},
		{
			name:     "timeout",
			err:      context.DeadlineExceeded,
			wantCode: pkgerrors.CodeDependency,
		},
	}
	for _, tt := range table {
		mapped := c.mapStripeError(tt.err, "operation")
		if mapped == nil {
			t.Fatalf("%s: expected error", tt.name)
		}
		typed := pkgerrors.As(mapped)
		if typed == nil {
			t.Fatalf("%s: result is not pkgerror", tt.name)
		}
		if typed.Code() != tt.wantCode {
			t.Fatalf("%s: expected code %s, got %s", tt.name, tt.wantCode, typed.Code())
		}
	}
}

func TestDeclineDetailsExposed(t *testing.T) {
	c := &Client{}
	mapped := c.mapStripeError(&stripe.Error{
		Code:           stripe.ErrorCodeCardDeclined,
		DeclineCode:    stripe.DeclineCodeDoNotHonor,
		HTTPStatusCode: http.StatusPaymentRequired,
	}, "create payment intent")
	typed := pkgerrors.As(mapped)
	if typed == nil {
		t.Fatalf("expected typed error")
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected decline details map, got %T", typed.Details())
	}
	if details["decline_code"] != string(stripe.DeclineCodeDoNotHonor) {
		t.Fatalf("unexpected decline code %v", details["decline_code"])
	}
}

func TestIntentCreateParams(t *testing.T) {
	params := IntentCreateParams{
		AmountCents:       4300,
		CustomerID:        "cus_123",
		PaymentMethodID:   "pm_456",
		ManualCapture:     true,
		Confirm:           true,
		SavePaymentMethod: true,
		OrderID:           "ord_789",
		Classification:    "dropped",
	}
	req := params.toStripeParams("intent.create-key")
	if req.Amount == nil || *req.Amount != 4300 {
		t.Fatalf("expected amount 4300, got %v", req.Amount)
	}
	if req.Currency == nil || *req.Currency != string(stripe.CurrencyUSD) {
		t.Fatalf("expected default usd currency")
	}
	if req.CaptureMethod == nil || *req.CaptureMethod != string(stripe.PaymentIntentCaptureMethodManual) {
		t.Fatalf("expected manual capture method")
	}
	if req.Confirm == nil || !*req.Confirm {
		t.Fatalf("expected confirm to be set")
	}
	if req.SetupFutureUsage == nil || *req.SetupFutureUsage != string(stripe.PaymentIntentSetupFutureUsageOffSession) {
		t.Fatalf("expected off_session future usage")
	}
	if req.Metadata["order_id"] != "ord_789" {
		t.Fatalf("expected order metadata, got %v", req.Metadata)
	}
	if req.IdempotencyKey == nil || *req.IdempotencyKey != "intent.create-key" {
		t.Fatalf("expected idempotency key to be set")
	}
}

func TestIntentCreateParamsAutomaticCapture(t *testing.T) {
	req := IntentCreateParams{AmountCents: 2500, CustomerID: "cus_1"}.toStripeParams("k")
	if req.CaptureMethod == nil || *req.CaptureMethod != string(stripe.PaymentIntentCaptureMethodAutomatic) {
		t.Fatalf("expected automatic capture method")
	}
	if req.Confirm != nil {
		t.Fatalf("confirm should be unset unless requested")
	}
	if req.SetupFutureUsage != nil {
		t.Fatalf("future usage should be unset unless requested")
	}
}

func TestNormalizeEnv(t *testing.T) {
	if env, err := normalizeEnv(" Test "); err != nil || env != testEnv {
		t.Fatalf("expected test env, got %q err %v", env, err)
	}
	if env, err := normalizeEnv(""); err != nil || env != testEnv {
		t.Fatalf("expected default test env, got %q err %v", env, err)
	}
	if _, err := normalizeEnv("staging"); err == nil {
		t.Fatalf("expected error for unknown env")
	}
}

func TestValidateAPIKey(t *testing.T) {
	if err := validateAPIKey(testEnv, "sk_test_abc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := validateAPIKey(liveEnv, "sk_test_abc"); err == nil {
		t.Fatalf("expected mismatch error for test key in live env")
	}
	if err := validateAPIKey(liveEnv, "rk_live_abc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
