package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	stripesdk "github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/pledgeforge/backerstore-backend/internal/accounts"
	"github.com/pledgeforge/backerstore-backend/internal/carts"
	"github.com/pledgeforge/backerstore-backend/internal/orders"
	"github.com/pledgeforge/backerstore-backend/internal/strategies"
	"github.com/pledgeforge/backerstore-backend/pkg/db"
	"github.com/pledgeforge/backerstore-backend/pkg/db/models"
	"github.com/pledgeforge/backerstore-backend/pkg/enums"
	pkgerrors "github.com/pledgeforge/backerstore-backend/pkg/errors"
	"github.com/pledgeforge/backerstore-backend/pkg/logger"
	gateway "github.com/pledgeforge/backerstore-backend/pkg/stripe"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type classifier interface {
	Classify(ctx context.Context, account *models.BackerAccount) enums.Classification
}

type strategyResolver interface {
	Resolve(ctx context.Context, classification enums.Classification) strategies.Resolved
}

type cartValidator interface {
	Validate(ctx context.Context, lines []carts.Line, pricing enums.PricingType) (*carts.Quote, error)
}

type paymentGateway interface {
	CreateCustomer(ctx context.Context, params gateway.CustomerCreateParams) (*stripesdk.Customer, error)
	CreatePaymentIntent(ctx context.Context, params gateway.IntentCreateParams) (*stripesdk.PaymentIntent, error)
}

type notifier interface {
	Notify(ctx context.Context, kind enums.NotificationKind, order *models.Order, reason string)
}

// Input is one checkout submission. ClientTotalCents is advisory only: the
// server-side quote decides the charged amount, and a mismatch is logged.
type Input struct {
	IdentityID       string
	Email            string
	Name             string
	Lines            []carts.Line
	ShippingCents    int64
	PaymentMethodID  string
	ClientTotalCents *int64
}

// Result is the completed checkout.
type Result struct {
	Order      *models.Order      `json:"order"`
	Strategies strategies.Resolved `json:"strategies"`
	Quote      *carts.Quote       `json:"quote"`
}

// Service executes checkout orchestration end to end: classify, resolve,
// validate, authorize, persist.
type Service interface {
	Execute(ctx context.Context, input Input) (*Result, error)
}

type service struct {
	tx         txRunner
	accounts   accounts.Repository
	orders     orders.Repository
	classifier classifier
	resolver   strategyResolver
	validator  cartValidator
	gateway    paymentGateway
	notifier   notifier
	logger     *logger.Logger
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	accountRepo accounts.Repository,
	orderRepo orders.Repository,
	profileClassifier classifier,
	resolver strategyResolver,
	validator cartValidator,
	paymentClient paymentGateway,
	notifySvc notifier,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if accountRepo == nil {
		return nil, fmt.Errorf("account repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if profileClassifier == nil {
		return nil, fmt.Errorf("classifier required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("strategy resolver required")
	}
	if validator == nil {
		return nil, fmt.Errorf("cart validator required")
	}
	if paymentClient == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if notifySvc == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:         tx,
		accounts:   accountRepo,
		orders:     orderRepo,
		classifier: profileClassifier,
		resolver:   resolver,
		validator:  validator,
		gateway:    paymentClient,
		notifier:   notifySvc,
		logger:     logg,
	}, nil
}

func (s *service) Execute(ctx context.Context, input Input) (*Result, error) {
	if input.IdentityID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "identity id required")
	}
	if input.Email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}
	if input.PaymentMethodID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method required")
	}
	if input.ShippingCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping cost cannot be negative")
	}

	account, err := s.resolveAccount(ctx, input)
	if err != nil {
		return nil, err
	}
	ctx = s.logger.WithAccountID(ctx, account.ID.String())

	classification := s.classifier.Classify(ctx, account)
	resolved := s.resolver.Resolve(ctx, classification)

	quote, err := s.validator.Validate(ctx, input.Lines, resolved.Pricing.Type)
	if err != nil {
		return nil, err
	}

	totalCents := quote.SubtotalCents + input.ShippingCents
	if input.ClientTotalCents != nil && *input.ClientTotalCents != totalCents {
		mismatchCtx := s.logger.WithFields(ctx, map[string]any{
			"client_total_cents": *input.ClientTotalCents,
			"server_total_cents": totalCents,
		})
		s.logger.Warn(mismatchCtx, "client-submitted total disagrees with server quote, charging server amount")
	}

	customerID, err := s.ensureGatewayCustomer(ctx, account, input)
	if err != nil {
		return nil, err
	}

	order, err := s.createOrder(ctx, account, resolved, quote, input.ShippingCents, totalCents, customerID)
	if err != nil {
		return nil, err
	}
	ctx = s.logger.WithOrderID(ctx, order.ID.String())

	intent, err := s.gateway.CreatePaymentIntent(ctx, gateway.IntentCreateParams{
		AmountCents:       totalCents,
		CustomerID:        customerID,
		PaymentMethodID:   input.PaymentMethodID,
		ManualCapture:     resolved.Payment.Method == enums.PaymentModeDeferred,
		Confirm:           true,
		SavePaymentMethod: resolved.Payment.Method == enums.PaymentModeDeferred,
		OrderID:           order.ID.String(),
		Classification:    classification.String(),
		IdempotencyKey:    fmt.Sprintf("intent.create-%s", order.ID),
	})
	if err != nil {
		return nil, s.handleAuthorizationFailure(ctx, order, err)
	}

	if err := s.finalize(ctx, account, order, intent, resolved.Payment.Method); err != nil {
		return nil, err
	}

	final, err := s.orders.FindByID(ctx, order.ID)
	if err != nil {
		// The authorization stands; surface the stored order as-is.
		final = order
	}

	return &Result{Order: final, Strategies: resolved, Quote: quote}, nil
}

// resolveAccount finds the account for the identity, falling back to an
// earlier guest record by email, and creates one on first contact. A create
// that loses a concurrent race re-reads the winner's row.
func (s *service) resolveAccount(ctx context.Context, input Input) (*models.BackerAccount, error) {
	account, err := s.accounts.FindByIdentity(ctx, input.IdentityID)
	if err == nil {
		return account, nil
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		return nil, err
	}

	if account, err := s.accounts.FindByEmail(ctx, input.Email); err == nil {
		return account, nil
	}

	created, err := s.accounts.Create(ctx, &models.BackerAccount{
		IdentityID: input.IdentityID,
		Email:      input.Email,
		Status:     enums.AccountStatusCollected,
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return s.accounts.FindByIdentity(ctx, input.IdentityID)
		}
		return nil, err
	}
	return created, nil
}

// ensureGatewayCustomer reuses the customer reference on file or creates one.
// The create is idempotent at the gateway, keyed by identity, so concurrent
// duplicate submissions converge on a single customer.
func (s *service) ensureGatewayCustomer(ctx context.Context, account *models.BackerAccount, input Input) (string, error) {
	if account.GatewayCustomerID != nil && *account.GatewayCustomerID != "" {
		return *account.GatewayCustomerID, nil
	}

	customer, err := s.gateway.CreateCustomer(ctx, gateway.CustomerCreateParams{
		Email:      input.Email,
		Name:       input.Name,
		IdentityID: account.IdentityID,
		AccountID:  account.ID.String(),
	})
	if err != nil {
		return "", err
	}

	if err := s.accounts.Update(ctx, account.ID, map[string]any{
		"gateway_customer_id": customer.ID,
	}); err != nil {
		// The gateway customer exists either way; the idempotent create will
		// return the same one next time.
		errCtx := s.logger.WithField(ctx, "gateway_customer_id", customer.ID)
		s.logger.Warn(errCtx, "failed to store gateway customer reference")
	}
	return customer.ID, nil
}

func (s *service) createOrder(
	ctx context.Context,
	account *models.BackerAccount,
	resolved strategies.Resolved,
	quote *carts.Quote,
	shippingCents, totalCents int64,
	customerID string,
) (*models.Order, error) {
	order := &models.Order{
		ID:                uuid.New(),
		AccountID:         account.ID,
		Classification:    resolved.Classification,
		PricingType:       resolved.Pricing.Type,
		PaymentMode:       resolved.Payment.Method,
		SubtotalCents:     quote.SubtotalCents,
		ShippingCents:     shippingCents,
		TotalCents:        totalCents,
		Status:            enums.PaymentStatusPending,
		GatewayCustomerID: &customerID,
	}
	for _, line := range quote.Lines {
		order.Lines = append(order.Lines, models.OrderLine{
			ID:             uuid.New(),
			OrderID:        order.ID,
			ItemID:         line.ItemID,
			Kind:           line.Kind,
			Name:           line.Name,
			Quantity:       int(line.Quantity),
			UnitPriceCents: line.UnitPriceCents,
			TotalCents:     line.TotalCents,
		})
	}

	created, err := s.orders.Create(ctx, order)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to create order")
	}
	return created, nil
}

// handleAuthorizationFailure settles the order after a failed gateway call.
// Declines move the order to failed and notify the backer; anything else
// (outage, timeout) leaves the order pending for reconciliation.
func (s *service) handleAuthorizationFailure(ctx context.Context, order *models.Order, gatewayErr error) error {
	typed := pkgerrors.As(gatewayErr)
	if typed == nil || typed.Code() != pkgerrors.CodeDeclined {
		s.logger.Warn(ctx, "gateway authorization outcome unknown, order left pending for reconciliation")
		return gatewayErr
	}

	failureCode := declineCode(typed)
	err := s.orders.Transition(ctx, order.ID, enums.PaymentStatusPending, enums.PaymentStatusFailed, map[string]any{
		"failure_code":    failureCode,
		"failure_message": typed.Message(),
	})
	if err != nil {
		errCtx := s.logger.WithField(ctx, "transition_error", err.Error())
		s.logger.Error(errCtx, "failed to record declined checkout", err)
	} else {
		order.Status = enums.PaymentStatusFailed
		s.notifier.Notify(ctx, enums.NotificationKindPaymentFailed, order, failureCode)
	}
	return gatewayErr
}

// finalize persists the gateway references and advances the payment status.
// Any persistence failure after the successful gateway call is a critical
// orphaned-transaction condition: the authorization stands gateway-side and
// stays recoverable through the logged intent id.
func (s *service) finalize(ctx context.Context, account *models.BackerAccount, order *models.Order, intent *stripesdk.PaymentIntent, mode enums.PaymentMode) error {
	fields := map[string]any{
		"gateway_payment_intent_id": intent.ID,
	}
	if intent.PaymentMethod != nil {
		fields["gateway_payment_method_id"] = intent.PaymentMethod.ID
	}

	var next enums.PaymentStatus
	var kind enums.NotificationKind
	switch intent.Status {
	case stripesdk.PaymentIntentStatusSucceeded:
		next = enums.PaymentStatusSucceeded
		kind = enums.NotificationKindPaymentSucceeded
		now := time.Now().UTC()
		fields["paid"] = true
		fields["captured_at"] = now
	case stripesdk.PaymentIntentStatusRequiresCapture:
		next = enums.PaymentStatusCardSaved
		kind = enums.NotificationKindCardSaved
	default:
		unknownCtx := s.logger.WithFields(ctx, map[string]any{
			"payment_intent_id": intent.ID,
			"intent_status":     string(intent.Status),
		})
		s.logger.Warn(unknownCtx, "unexpected intent status after authorization, awaiting reconciliation")
		if err := s.orders.Update(ctx, order.ID, fields); err != nil {
			s.logOrphanedTransaction(ctx, order, intent, err)
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to persist gateway references")
		}
		return pkgerrors.New(pkgerrors.CodeDependency, "payment outcome unknown, awaiting gateway confirmation")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.orders.WithTx(tx).Transition(ctx, order.ID, enums.PaymentStatusPending, next, fields); err != nil {
			return err
		}
		if next == enums.PaymentStatusSucceeded {
			return s.accounts.WithTx(tx).Update(ctx, account.ID, map[string]any{
				"amount_paid_cents": account.AmountPaidCents + order.TotalCents,
			})
		}
		return nil
	})
	if err != nil {
		s.logOrphanedTransaction(ctx, order, intent, err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to persist payment result")
	}

	order.Status = next
	s.notifier.Notify(ctx, kind, order, "")
	return nil
}

func (s *service) logOrphanedTransaction(ctx context.Context, order *models.Order, intent *stripesdk.PaymentIntent, err error) {
	ctx = s.logger.WithFields(ctx, map[string]any{
		"order_id":          order.ID.String(),
		"payment_intent_id": intent.ID,
		"amount_cents":      order.TotalCents,
	})
	s.logger.Error(ctx, "ORPHANED TRANSACTION: gateway authorization exists but persistence failed; recover via the payment intent id", err)
}

func declineCode(typed *pkgerrors.Error) string {
	details, ok := typed.Details().(map[string]any)
	if !ok {
		return ""
	}
	if code, ok := details["decline_code"].(string); ok && code != "" {
		return code
	}
	if code, ok := details["code"].(string); ok {
		return code
	}
	return ""
}
