package checkout

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	stripesdk "github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/pledgeforge/backerstore-backend/internal/accounts"
	"github.com/pledgeforge/backerstore-backend/internal/carts"
	"github.com/pledgeforge/backerstore-backend/internal/orders"
	"github.com/pledgeforge/backerstore-backend/internal/strategies"
	"github.com/pledgeforge/backerstore-backend/pkg/db/models"
	"github.com/pledgeforge/backerstore-backend/pkg/enums"
	pkgerrors "github.com/pledgeforge/backerstore-backend/pkg/errors"
	"github.com/pledgeforge/backerstore-backend/pkg/logger"
	gateway "github.com/pledgeforge/backerstore-backend/pkg/stripe"
)

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubAccountRepo struct {
	byIdentity map[string]*models.BackerAccount
	byEmail    map[string]*models.BackerAccount
	created    []*models.BackerAccount
	updates    []map[string]any
	updateErr  error
}

func (s *stubAccountRepo) WithTx(tx *gorm.DB) accounts.Repository { return s }

func (s *stubAccountRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.BackerAccount, error) {
	for _, a := range s.byIdentity {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
}

func (s *stubAccountRepo) FindByIdentity(ctx context.Context, identityID string) (*models.BackerAccount, error) {
	if a, ok := s.byIdentity[identityID]; ok {
		return a, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
}

func (s *stubAccountRepo) FindByEmail(ctx context.Context, email string) (*models.BackerAccount, error) {
	if a, ok := s.byEmail[email]; ok {
		return a, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
}

func (s *stubAccountRepo) Create(ctx context.Context, account *models.BackerAccount) (*models.BackerAccount, error) {
	account.ID = uuid.New()
	if s.byIdentity == nil {
		s.byIdentity = map[string]*models.BackerAccount{}
	}
	s.byIdentity[account.IdentityID] = account
	s.created = append(s.created, account)
	return account, nil
}

func (s *stubAccountRepo) Update(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updates = append(s.updates, fields)
	for _, a := range s.byIdentity {
		if a.ID == id {
			if v, ok := fields["gateway_customer_id"].(string); ok {
				a.GatewayCustomerID = &v
			}
		}
	}
	return nil
}

type stubOrderRepo struct {
	orders        map[uuid.UUID]*models.Order
	transitions   []enums.PaymentStatus
	transitionErr error
	createErr     error
}

func newStubOrderRepo() *stubOrderRepo {
	return &stubOrderRepo{orders: map[uuid.UUID]*models.Order{}}
}

func (s *stubOrderRepo) WithTx(tx *gorm.DB) orders.Repository { return s }

func (s *stubOrderRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.orders[order.ID] = order
	return order, nil
}

func (s *stubOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if o, ok := s.orders[id]; ok {
		return o, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (s *stubOrderRepo) FindByPaymentIntentID(ctx context.Context, intentID string) (*models.Order, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (s *stubOrderRepo) ListByStatus(ctx context.Context, status enums.PaymentStatus) ([]models.Order, error) {
	return nil, nil
}

func (s *stubOrderRepo) Update(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return applyOrderFields(s.orders[id], fields)
}

func (s *stubOrderRepo) Transition(ctx context.Context, id uuid.UUID, from, to enums.PaymentStatus, fields map[string]any) error {
	if s.transitionErr != nil {
		return s.transitionErr
	}
	order, ok := s.orders[id]
	if !ok || order.Status != from || !from.CanTransitionTo(to) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "illegal transition")
	}
	order.Status = to
	s.transitions = append(s.transitions, to)
	return applyOrderFields(order, fields)
}

func applyOrderFields(order *models.Order, fields map[string]any) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if v, ok := fields["gateway_payment_intent_id"].(string); ok {
		order.GatewayPaymentIntentID = &v
	}
	if v, ok := fields["gateway_payment_method_id"].(string); ok {
		order.GatewayPaymentMethodID = &v
	}
	if v, ok := fields["paid"].(bool); ok {
		order.Paid = v
	}
	if v, ok := fields["failure_code"].(string); ok {
		order.FailureCode = &v
	}
	return nil
}

type stubClassifier struct {
	classification enums.Classification
}

func (s *stubClassifier) Classify(ctx context.Context, account *models.BackerAccount) enums.Classification {
	return s.classification
}

type stubResolver struct {
	resolved strategies.Resolved
}

func (s *stubResolver) Resolve(ctx context.Context, classification enums.Classification) strategies.Resolved {
	return s.resolved
}

type stubValidator struct {
	quote *carts.Quote
	err   error
	calls int
}

func (s *stubValidator) Validate(ctx context.Context, lines []carts.Line, pricing enums.PricingType) (*carts.Quote, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.quote, nil
}

type stubGateway struct {
	customerCalls int
	customerIDs   []string
	intentParams  []gateway.IntentCreateParams
	intentStatus  stripesdk.PaymentIntentStatus
	intentErr     error
	customerErr   error
}

func (s *stubGateway) CreateCustomer(ctx context.Context, params gateway.CustomerCreateParams) (*stripesdk.Customer, error) {
	s.customerCalls++
	if s.customerErr != nil {
		return nil, s.customerErr
	}
	// The gateway-side idempotency key makes duplicate creates converge.
	id := "cus_" + params.IdentityID
	s.customerIDs = append(s.customerIDs, id)
	return &stripesdk.Customer{ID: id}, nil
}

func (s *stubGateway) CreatePaymentIntent(ctx context.Context, params gateway.IntentCreateParams) (*stripesdk.PaymentIntent, error) {
	s.intentParams = append(s.intentParams, params)
	if s.intentErr != nil {
		return nil, s.intentErr
	}
	return &stripesdk.PaymentIntent{
		ID:            "pi_" + params.OrderID,
		Status:        s.intentStatus,
		Amount:        params.AmountCents,
		PaymentMethod: &stripesdk.PaymentMethod{ID: params.PaymentMethodID},
	}, nil
}

type recordedNotification struct {
	kind   enums.NotificationKind
	reason string
}

type stubNotifier struct {
	sent []recordedNotification
}

func (s *stubNotifier) Notify(ctx context.Context, kind enums.NotificationKind, order *models.Order, reason string) {
	s.sent = append(s.sent, recordedNotification{kind: kind, reason: reason})
}

type fixture struct {
	svc      Service
	accounts *stubAccountRepo
	orders   *stubOrderRepo
	gateway  *stubGateway
	notifier *stubNotifier
	validator *stubValidator
}

func newFixture(t *testing.T, classification enums.Classification, resolved strategies.Resolved, quote *carts.Quote, intentStatus stripesdk.PaymentIntentStatus) *fixture {
	t.Helper()
	f := &fixture{
		accounts:  &stubAccountRepo{byIdentity: map[string]*models.BackerAccount{}, byEmail: map[string]*models.BackerAccount{}},
		orders:    newStubOrderRepo(),
		gateway:   &stubGateway{intentStatus: intentStatus},
		notifier:  &stubNotifier{},
		validator: &stubValidator{quote: quote},
	}
	svc, err := NewService(
		stubTx{},
		f.accounts,
		f.orders,
		&stubClassifier{classification: classification},
		&stubResolver{resolved: resolved},
		f.validator,
		f.gateway,
		f.notifier,
		logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	f.svc = svc
	return f
}

func guestResolved() strategies.Resolved {
	return strategies.Resolved{
		Classification: enums.ClassificationGuest,
		Pricing:        strategies.PricingStrategy{Type: enums.PricingTypeRetail, Reason: "default pricing for guest accounts"},
		Payment:        strategies.PaymentStrategy{Method: enums.PaymentModeImmediate, Reason: "default payment collection for guest accounts"},
	}
}

func collectedResolved() strategies.Resolved {
	return strategies.Resolved{
		Classification: enums.ClassificationCollected,
		Pricing:        strategies.PricingStrategy{Type: enums.PricingTypeBacker, Reason: "default pricing for collected accounts"},
		Payment:        strategies.PaymentStrategy{Method: enums.PaymentModeDeferred, Reason: "default payment collection for collected accounts"},
	}
}

func singleLineQuote(name string, cents int64) *carts.Quote {
	return &carts.Quote{
		Lines:         []carts.PricedLine{{Kind: enums.LineKindItem, Name: name, Quantity: 1, UnitPriceCents: cents, TotalCents: cents}},
		SubtotalCents: cents,
	}
}

func baseInput() Input {
	return Input{
		IdentityID:      "kc-1",
		Email:           "backer@example.com",
		Lines:           []carts.Line{{Kind: enums.LineKindItem, Quantity: 1}},
		PaymentMethodID: "pm_1",
	}
}

func TestExecuteGuestImmediateCheckout(t *testing.T) {
	f := newFixture(t, enums.ClassificationGuest, guestResolved(), singleLineQuote("Core Pledge", 2500), stripesdk.PaymentIntentStatusSucceeded)

	result, err := f.svc.Execute(context.Background(), baseInput())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if result.Order.Status != enums.PaymentStatusSucceeded {
		t.Fatalf("expected succeeded, got %s", result.Order.Status)
	}
	if !result.Order.Paid {
		t.Fatalf("expected paid=true")
	}
	if result.Order.TotalCents != 2500 {
		t.Fatalf("expected total 2500, got %d", result.Order.TotalCents)
	}
	if result.Order.GatewayPaymentIntentID == nil {
		t.Fatalf("expected intent id persisted")
	}
	// Immediate mode charges now: automatic capture, no card vaulting.
	params := f.gateway.intentParams[0]
	if params.ManualCapture || params.SavePaymentMethod {
		t.Fatalf("immediate checkout must use automatic capture without vaulting")
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0].kind != enums.NotificationKindPaymentSucceeded {
		t.Fatalf("expected one payment_succeeded notification, got %+v", f.notifier.sent)
	}
	// First contact creates the account.
	if len(f.accounts.created) != 1 {
		t.Fatalf("expected guest account created on first contact")
	}
}

func TestExecuteDeferredCheckoutSavesCard(t *testing.T) {
	f := newFixture(t, enums.ClassificationCollected, collectedResolved(), singleLineQuote("Addon", 2500), stripesdk.PaymentIntentStatusRequiresCapture)
	number := int64(88)
	account := &models.BackerAccount{ID: uuid.New(), IdentityID: "kc-1", Email: "backer@example.com", BackerNumber: &number, Status: enums.AccountStatusCollected}
	f.accounts.byIdentity["kc-1"] = account

	result, err := f.svc.Execute(context.Background(), baseInput())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if result.Order.Status != enums.PaymentStatusCardSaved {
		t.Fatalf("expected card_saved, got %s", result.Order.Status)
	}
	if result.Order.Paid {
		t.Fatalf("deferred checkout must not be marked paid")
	}
	params := f.gateway.intentParams[0]
	if !params.ManualCapture || !params.SavePaymentMethod {
		t.Fatalf("deferred checkout must authorize with manual capture and vault the card")
	}
	if result.Order.GatewayPaymentMethodID == nil || *result.Order.GatewayPaymentMethodID != "pm_1" {
		t.Fatalf("expected payment method persisted for later capture")
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0].kind != enums.NotificationKindCardSaved {
		t.Fatalf("expected card_saved notification, got %+v", f.notifier.sent)
	}
}

func TestExecuteDroppedCarryoverCheckout(t *testing.T) {
	quote := &carts.Quote{
		Lines: []carts.PricedLine{
			{Kind: enums.LineKindCarryover, Name: "Original Pledge", Quantity: 1, UnitPriceCents: 1800, TotalCents: 1800},
			{Kind: enums.LineKindItem, Name: "Addon", Quantity: 1, UnitPriceCents: 2500, TotalCents: 2500},
		},
		SubtotalCents: 4300,
	}
	resolved := strategies.Resolved{
		Classification: enums.ClassificationDropped,
		Pricing:        strategies.PricingStrategy{Type: enums.PricingTypeBacker, Reason: "default pricing for dropped accounts"},
		Payment:        strategies.PaymentStrategy{Method: enums.PaymentModeImmediate, Reason: "default payment collection for dropped accounts"},
	}
	f := newFixture(t, enums.ClassificationDropped, resolved, quote, stripesdk.PaymentIntentStatusSucceeded)

	result, err := f.svc.Execute(context.Background(), baseInput())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Order.TotalCents != 4300 {
		t.Fatalf("expected total 4300, got %d", result.Order.TotalCents)
	}
	if result.Order.Status != enums.PaymentStatusSucceeded {
		t.Fatalf("expected succeeded, got %s", result.Order.Status)
	}
	if f.gateway.intentParams[0].AmountCents != 4300 {
		t.Fatalf("authorized amount must equal server subtotal, got %d", f.gateway.intentParams[0].AmountCents)
	}
}

func TestExecuteChargesServerAmountNotClientFigure(t *testing.T) {
	f := newFixture(t, enums.ClassificationGuest, guestResolved(), singleLineQuote("Core Pledge", 2500), stripesdk.PaymentIntentStatusSucceeded)

	input := baseInput()
	clientTotal := int64(1)
	input.ClientTotalCents = &clientTotal
	input.ShippingCents = 500

	result, err := f.svc.Execute(context.Background(), input)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if f.gateway.intentParams[0].AmountCents != 3000 {
		t.Fatalf("expected server amount 3000 authorized, got %d", f.gateway.intentParams[0].AmountCents)
	}
	if result.Order.TotalCents != 3000 {
		t.Fatalf("expected order total 3000, got %d", result.Order.TotalCents)
	}
}

func TestExecuteReusesGatewayCustomerOnFile(t *testing.T) {
	f := newFixture(t, enums.ClassificationCollected, collectedResolved(), singleLineQuote("Addon", 2500), stripesdk.PaymentIntentStatusRequiresCapture)
	existing := "cus_existing"
	f.accounts.byIdentity["kc-1"] = &models.BackerAccount{ID: uuid.New(), IdentityID: "kc-1", Email: "backer@example.com", GatewayCustomerID: &existing}

	_, err := f.svc.Execute(context.Background(), baseInput())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if f.gateway.customerCalls != 0 {
		t.Fatalf("expected no customer create when one is on file")
	}
	if f.gateway.intentParams[0].CustomerID != "cus_existing" {
		t.Fatalf("expected existing customer reused, got %q", f.gateway.intentParams[0].CustomerID)
	}
}

func TestExecuteDeclineMarksOrderFailed(t *testing.T) {
	f := newFixture(t, enums.ClassificationGuest, guestResolved(), singleLineQuote("Core Pledge", 2500), stripesdk.PaymentIntentStatusSucceeded)
	f.gateway.intentErr = pkgerrors.New(pkgerrors.CodeDeclined, "stripe create payment intent declined").
		WithDetails(map[string]any{"decline_code": "insufficient_funds"})

	_, err := f.svc.Execute(context.Background(), baseInput())
	if err == nil {
		t.Fatalf("expected decline surfaced to caller")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDeclined {
		t.Fatalf("expected decline code, got %v", err)
	}

	var order *models.Order
	for _, o := range f.orders.orders {
		order = o
	}
	if order == nil || order.Status != enums.PaymentStatusFailed {
		t.Fatalf("expected order marked failed")
	}
	if order.FailureCode == nil || *order.FailureCode != "insufficient_funds" {
		t.Fatalf("expected decline code recorded, got %v", order.FailureCode)
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0].kind != enums.NotificationKindPaymentFailed {
		t.Fatalf("expected payment_failed notification")
	}
}

func TestExecuteGatewayOutageLeavesOrderPending(t *testing.T) {
	f := newFixture(t, enums.ClassificationGuest, guestResolved(), singleLineQuote("Core Pledge", 2500), stripesdk.PaymentIntentStatusSucceeded)
	f.gateway.intentErr = pkgerrors.New(pkgerrors.CodeDependency, "stripe create payment intent timed out")

	_, err := f.svc.Execute(context.Background(), baseInput())
	if err == nil {
		t.Fatalf("expected error surfaced")
	}

	for _, order := range f.orders.orders {
		if order.Status != enums.PaymentStatusPending {
			t.Fatalf("timeout must leave the order pending, got %s", order.Status)
		}
	}
	if len(f.notifier.sent) != 0 {
		t.Fatalf("no notification on unknown outcome")
	}
}

func TestExecutePersistenceFailureAfterGatewaySuccess(t *testing.T) {
	f := newFixture(t, enums.ClassificationGuest, guestResolved(), singleLineQuote("Core Pledge", 2500), stripesdk.PaymentIntentStatusSucceeded)
	f.orders.transitionErr = errors.New("connection reset")

	_, err := f.svc.Execute(context.Background(), baseInput())
	if err == nil {
		t.Fatalf("expected persistence failure surfaced")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency code, got %v", err)
	}
	// The gateway call happened and is never rolled back.
	if len(f.gateway.intentParams) != 1 {
		t.Fatalf("expected the authorization to stand")
	}
}

func TestExecuteValidationFailureStopsBeforeGateway(t *testing.T) {
	f := newFixture(t, enums.ClassificationGuest, guestResolved(), nil, stripesdk.PaymentIntentStatusSucceeded)
	f.validator.err = pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")

	_, err := f.svc.Execute(context.Background(), baseInput())
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if f.gateway.customerCalls != 0 || len(f.gateway.intentParams) != 0 {
		t.Fatalf("gateway must not be touched on validation failure")
	}
	if len(f.orders.orders) != 0 {
		t.Fatalf("no order may be created on validation failure")
	}
}

func TestExecuteInputValidation(t *testing.T) {
	f := newFixture(t, enums.ClassificationGuest, guestResolved(), singleLineQuote("Core Pledge", 2500), stripesdk.PaymentIntentStatusSucceeded)

	tests := []struct {
		name   string
		mutate func(*Input)
	}{
		{"missing identity", func(i *Input) { i.IdentityID = "" }},
		{"missing email", func(i *Input) { i.Email = "" }},
		{"missing payment method", func(i *Input) { i.PaymentMethodID = "" }},
		{"negative shipping", func(i *Input) { i.ShippingCents = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := baseInput()
			tt.mutate(&input)
			_, err := f.svc.Execute(context.Background(), input)
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestExecuteRecordsOrderLinesFromQuote(t *testing.T) {
	quote := &carts.Quote{
		Lines: []carts.PricedLine{
			{Kind: enums.LineKindItem, Name: "Addon", Quantity: 2, UnitPriceCents: 2500, TotalCents: 5000},
		},
		SubtotalCents: 5000,
	}
	f := newFixture(t, enums.ClassificationGuest, guestResolved(), quote, stripesdk.PaymentIntentStatusSucceeded)

	result, err := f.svc.Execute(context.Background(), baseInput())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.Order.Lines) != 1 {
		t.Fatalf("expected one snapshotted line")
	}
	line := result.Order.Lines[0]
	if line.Quantity != 2 || line.UnitPriceCents != 2500 || line.TotalCents != 5000 {
		t.Fatalf("line snapshot mismatch: %+v", line)
	}
}
