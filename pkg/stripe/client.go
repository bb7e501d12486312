package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/customer"
	"github.com/stripe/stripe-go/v84/paymentintent"
	"github.com/stripe/stripe-go/v84/paymentmethod"

	"github.com/pledgeforge/backerstore-backend/pkg/config"
	pkgerrors "github.com/pledgeforge/backerstore-backend/pkg/errors"
	"github.com/pledgeforge/backerstore-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"

	defaultTimeout = 30 * time.Second
)

var (
	errAPIKeyRequired        = errors.New("stripe api key is required")
	errWebhookSecretRequired = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv      = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
	errLoggerRequired        = errors.New("stripe logger is required")
)

// Client exposes Stripe primitives with centralized auth, logging, timeouts, idempotency, and error mapping.
type Client struct {
	environment   string
	webhookSecret string
	timeout       time.Duration
	logger        *logger.Logger
}

// NewClient initializes the Stripe wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	webhookSecret := strings.TrimSpace(cfg.Secret)
	if webhookSecret == "" {
		return nil, errWebhookSecretRequired
	}

	stripe.Key = apiKey

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		environment:   env,
		webhookSecret: webhookSecret,
		timeout:       timeout,
		logger:        logg,
	}

	logg.Info(ctx, "stripe client initialized")
	return c, nil
}

// Environment reports the normalized Stripe environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret returns the Stripe webhook signing secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// Timeout returns the per-call gateway deadline.
func (c *Client) Timeout() time.Duration {
	if c == nil || c.timeout <= 0 {
		return defaultTimeout
	}
	return c.timeout
}

// Customer operations
//
// Customer creation is keyed by backer identity so retries after a failed
// checkout reuse the gateway customer instead of minting a duplicate.
func (c *Client) CreateCustomer(ctx context.Context, params CustomerCreateParams) (*stripe.Customer, error) {
	req := params.toStripeParams()
	c.log(ctx, "request", "create_customer", map[string]any{"identity_id": params.IdentityID})

	ctx, cancel := c.callContext(ctx)
	defer cancel()
	req.Context = ctx

	cust, err := customer.New(req)
	if err != nil {
		c.log(ctx, "error", "create_customer", map[string]any{"error": err.Error()})
		return nil, c.mapStripeError(err, "create customer")
	}

	c.log(ctx, "response", "create_customer", map[string]any{"customer_id": cust.ID})
	return cust, nil
}

// PaymentIntent operations
func (c *Client) CreatePaymentIntent(ctx context.Context, params IntentCreateParams) (*stripe.PaymentIntent, error) {
	req := params.toStripeParams(c.ensureIdempotencyKey("intent.create", params.IdempotencyKey))
	c.log(ctx, "request", "create_payment_intent", map[string]any{
		"customer_id":    params.CustomerID,
		"amount":         params.AmountCents,
		"capture_method": captureMethodString(params.ManualCapture),
	})

	ctx, cancel := c.callContext(ctx)
	defer cancel()
	req.Context = ctx

	intent, err := paymentintent.New(req)
	if err != nil {
		c.log(ctx, "error", "create_payment_intent", map[string]any{"error": err.Error()})
		return nil, c.mapStripeError(err, "create payment intent")
	}

	c.log(ctx, "response", "create_payment_intent", map[string]any{
		"payment_intent_id": intent.ID,
		"status":            string(intent.Status),
	})
	return intent, nil
}

func (c *Client) CapturePaymentIntent(ctx context.Context, intentID string, idempotencyKey string) (*stripe.PaymentIntent, error) {
	req := &stripe.PaymentIntentCaptureParams{}
	req.SetIdempotencyKey(c.ensureIdempotencyKey("intent.capture", idempotencyKey))
	c.log(ctx, "request", "capture_payment_intent", map[string]any{"payment_intent_id": intentID})

	ctx, cancel := c.callContext(ctx)
	defer cancel()
	req.Context = ctx

	intent, err := paymentintent.Capture(intentID, req)
	if err != nil {
		c.log(ctx, "error", "capture_payment_intent", map[string]any{"error": err.Error()})
		return nil, c.mapStripeError(err, "capture payment intent")
	}

	c.log(ctx, "response", "capture_payment_intent", map[string]any{
		"payment_intent_id": intent.ID,
		"status":            string(intent.Status),
	})
	return intent, nil
}

func (c *Client) CancelPaymentIntent(ctx context.Context, intentID string) (*stripe.PaymentIntent, error) {
	req := &stripe.PaymentIntentCancelParams{}
	c.log(ctx, "request", "cancel_payment_intent", map[string]any{"payment_intent_id": intentID})

	ctx, cancel := c.callContext(ctx)
	defer cancel()
	req.Context = ctx

	intent, err := paymentintent.Cancel(intentID, req)
	if err != nil {
		c.log(ctx, "error", "cancel_payment_intent", map[string]any{"error": err.Error()})
		return nil, c.mapStripeError(err, "cancel payment intent")
	}

	c.log(ctx, "response", "cancel_payment_intent", map[string]any{
		"payment_intent_id": intent.ID,
		"status":            string(intent.Status),
	})
	return intent, nil
}

func (c *Client) GetPaymentIntent(ctx context.Context, intentID string) (*stripe.PaymentIntent, error) {
	req := &stripe.PaymentIntentParams{}
	c.log(ctx, "request", "get_payment_intent", map[string]any{"payment_intent_id": intentID})

	ctx, cancel := c.callContext(ctx)
	defer cancel()
	req.Context = ctx

	intent, err := paymentintent.Get(intentID, req)
	if err != nil {
		c.log(ctx, "error", "get_payment_intent", map[string]any{"error": err.Error()})
		return nil, c.mapStripeError(err, "get payment intent")
	}

	c.log(ctx, "response", "get_payment_intent", map[string]any{
		"payment_intent_id": intent.ID,
		"status":            string(intent.Status),
	})
	return intent, nil
}

// PaymentMethod operations
func (c *Client) ListCardPaymentMethods(ctx context.Context, customerID string) ([]*stripe.PaymentMethod, error) {
	req := &stripe.PaymentMethodListParams{
		Customer: stripe.String(customerID),
		Type:     stripe.String(string(stripe.PaymentMethodTypeCard)),
	}
	c.log(ctx, "request", "list_payment_methods", map[string]any{"customer_id": customerID})

	ctx, cancel := c.callContext(ctx)
	defer cancel()
	req.Context = ctx

	iter := paymentmethod.List(req)
	var methods []*stripe.PaymentMethod
	for iter.Next() {
		methods = append(methods, iter.PaymentMethod())
	}
	if err := iter.Err(); err != nil {
		c.log(ctx, "error", "list_payment_methods", map[string]any{"error": err.Error()})
		return nil, c.mapStripeError(err, "list payment methods")
	}

	c.log(ctx, "response", "list_payment_methods", map[string]any{"count": len(methods)})
	return methods, nil
}

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.Timeout())
}

func (c *Client) ensureIdempotencyKey(prefix, provided string) string {
	if strings.TrimSpace(provided) != "" {
		return provided
	}
	return NewIdempotencyKey(prefix)
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("stripe %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("stripe %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"card", "token", "cvv", "cvc", "secret", "email", "phone"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

// mapStripeError translates SDK failures into the service error taxonomy.
// Timeouts map to CodeDependency because the charge outcome is unknown and
// must be settled by reconciliation, never assumed failed.
func (c *Client) mapStripeError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("stripe %s timed out", op))
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if isDecline(stripeErr) {
			return pkgerrors.Wrap(pkgerrors.CodeDeclined, err, fmt.Sprintf("stripe %s declined", op)).
				WithDetails(map[string]any{
					"code":         string(stripeErr.Code),
					"decline_code": string(stripeErr.DeclineCode),
				})
		}
		code := domainCodeForStatus(stripeErr.HTTPStatusCode)
		if stripeErr.Code == stripe.ErrorCodeIdempotencyKeyInUse {
			code = pkgerrors.CodeIdempotency
		}
		return pkgerrors.Wrap(code, err, fmt.Sprintf("stripe %s failed", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("stripe %s failed", op))
}

func isDecline(stripeErr *stripe.Error) bool {
	if stripeErr == nil {
		return false
	}
	if stripeErr.DeclineCode != "" {
		return true
	}
	switch stripeErr.Code {
	case stripe.ErrorCodeCardDeclined,
		stripe.ErrorCodeExpiredCard,
		stripe.ErrorCodeIncorrectCVC,
		stripe.ErrorCodeProcessingError:
		return true
	}
	return false
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case http.StatusBadRequest:
		return pkgerrors.CodeValidation
	case http.StatusUnprocessableEntity:
		return pkgerrors.CodeStateConflict
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	}
	return "", errInvalidStripeEnv
}

func validateAPIKey(env, key string) error {
	var prefixes []string
	switch env {
	case testEnv:
		prefixes = []string{"sk_test", "rk_test"}
	case liveEnv:
		prefixes = []string{"sk_live", "rk_live"}
	default:
		return errInvalidStripeEnv
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(key, prefix) {
			return nil
		}
	}
	return fmt.Errorf("stripe api key does not match the %q environment", env)
}

func captureMethodString(manual bool) string {
	if manual {
		return string(stripe.PaymentIntentCaptureMethodManual)
	}
	return string(stripe.PaymentIntentCaptureMethodAutomatic)
}
