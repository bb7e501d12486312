package stripe

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
)

// NewIdempotencyKey returns a unique key for Stripe operations.
func NewIdempotencyKey(prefix string) string {
	key := strings.TrimSpace(prefix)
	if key == "" {
		key = "bst"
	}
	return fmt.Sprintf("%s-%s", key, uuid.NewString())
}

// CustomerIdempotencyKey derives a stable customer-create key from the backer
// identity, so gateway retries converge on a single customer record.
func CustomerIdempotencyKey(identityID string) string {
	return fmt.Sprintf("customer.create-%s", strings.TrimSpace(identityID))
}

// CustomerCreateParams defines the payload to create a gateway customer.
type CustomerCreateParams struct {
	Email      string
	Name       string
	IdentityID string
	AccountID  string
}

func (p CustomerCreateParams) toStripeParams() *stripe.CustomerParams {
	req := &stripe.CustomerParams{}
	req.SetIdempotencyKey(CustomerIdempotencyKey(p.IdentityID))
	if trimmed := strings.TrimSpace(p.Email); trimmed != "" {
		req.Email = stripe.String(trimmed)
	}
	if trimmed := strings.TrimSpace(p.Name); trimmed != "" {
		req.Name = stripe.String(trimmed)
	}
	if trimmed := strings.TrimSpace(p.IdentityID); trimmed != "" {
		req.AddMetadata("identity_id", trimmed)
	}
	if trimmed := strings.TrimSpace(p.AccountID); trimmed != "" {
		req.AddMetadata("account_id", trimmed)
	}
	return req
}

// IntentCreateParams contains the fields required to open a payment intent.
// ManualCapture authorizes without settling so a later capture (or cancel)
// decides the charge; SavePaymentMethod vaults the card for deferred billing.
type IntentCreateParams struct {
	AmountCents       int64
	Currency          string
	CustomerID        string
	PaymentMethodID   string
	ManualCapture     bool
	Confirm           bool
	OffSession        bool
	SavePaymentMethod bool
	OrderID           string
	Classification    string
	IdempotencyKey    string
}

func (p IntentCreateParams) toStripeParams(idempotencyKey string) *stripe.PaymentIntentParams {
	currency := strings.TrimSpace(strings.ToLower(p.Currency))
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	req := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(p.AmountCents),
		Currency: stripe.String(currency),
	}
	req.SetIdempotencyKey(idempotencyKey)
	if trimmed := strings.TrimSpace(p.CustomerID); trimmed != "" {
		req.Customer = stripe.String(trimmed)
	}
	if trimmed := strings.TrimSpace(p.PaymentMethodID); trimmed != "" {
		req.PaymentMethod = stripe.String(trimmed)
	}
	if p.ManualCapture {
		req.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	} else {
		req.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodAutomatic))
	}
	if p.Confirm {
		req.Confirm = stripe.Bool(true)
	}
	if p.OffSession {
		req.OffSession = stripe.Bool(true)
	}
	if p.SavePaymentMethod {
		req.SetupFutureUsage = stripe.String(string(stripe.PaymentIntentSetupFutureUsageOffSession))
	}
	if trimmed := strings.TrimSpace(p.OrderID); trimmed != "" {
		req.AddMetadata("order_id", trimmed)
	}
	if trimmed := strings.TrimSpace(p.Classification); trimmed != "" {
		req.AddMetadata("classification", trimmed)
	}
	return req
}
