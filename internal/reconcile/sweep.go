package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	stripesdk "github.com/stripe/stripe-go/v84"
	"go.uber.org/multierr"

	"github.com/pledgeforge/backerstore-backend/internal/orders"
	"github.com/pledgeforge/backerstore-backend/pkg/db/models"
	"github.com/pledgeforge/backerstore-backend/pkg/enums"
	pkgerrors "github.com/pledgeforge/backerstore-backend/pkg/errors"
	"github.com/pledgeforge/backerstore-backend/pkg/logger"
	"github.com/pledgeforge/backerstore-backend/pkg/metrics"
	gateway "github.com/pledgeforge/backerstore-backend/pkg/stripe"
)

type captureGateway interface {
	CapturePaymentIntent(ctx context.Context, intentID string, idempotencyKey string) (*stripesdk.PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, intentID string) (*stripesdk.PaymentIntent, error)
	CancelPaymentIntent(ctx context.Context, intentID string) (*stripesdk.PaymentIntent, error)
	ListCardPaymentMethods(ctx context.Context, customerID string) ([]*stripesdk.PaymentMethod, error)
}

// SweepFailure records one isolated per-order capture failure.
type SweepFailure struct {
	OrderID     uuid.UUID `json:"order_id"`
	AmountCents int64     `json:"amount_cents"`
	Reason      string    `json:"reason"`
}

// SweepSummary is the consolidated result of one bulk-capture run. Failed
// counts definite declines; Unresolved counts orders whose capture outcome
// could not be settled this run and which stay card_saved.
type SweepSummary struct {
	Attempted          int            `json:"attempted"`
	Succeeded          int            `json:"succeeded"`
	Failed             int            `json:"failed"`
	Unresolved         int            `json:"unresolved"`
	TotalCapturedCents int64          `json:"total_captured_cents"`
	Failures           []SweepFailure `json:"failures,omitempty"`
	UnresolvedOrders   []SweepFailure `json:"unresolved_orders,omitempty"`
}

// TotalCapturedDollars formats the captured amount for operator display.
func (s SweepSummary) TotalCapturedDollars() string {
	return decimal.NewFromInt(s.TotalCapturedCents).Div(decimal.NewFromInt(100)).StringFixed(2)
}

// Sweeper runs the operator bulk capture: every card_saved order with a
// usable saved payment method, captured sequentially with one gateway call
// in flight, per-order failures isolated. The sweep always completes and
// always returns a summary.
type Sweeper struct {
	orders   orders.Repository
	gateway  captureGateway
	notifier notifier
	metrics  *metrics.CaptureMetrics
	logger   *logger.Logger
}

// NewSweeper builds the bulk-capture sweeper. Metrics are optional.
func NewSweeper(orderRepo orders.Repository, captureClient captureGateway, notifySvc notifier, captureMetrics *metrics.CaptureMetrics, logg *logger.Logger) (*Sweeper, error) {
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if captureClient == nil {
		return nil, fmt.Errorf("capture gateway required")
	}
	if notifySvc == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Sweeper{
		orders:   orderRepo,
		gateway:  captureClient,
		notifier: notifySvc,
		metrics:  captureMetrics,
		logger:   logg,
	}, nil
}

// Run executes one parameterless sweep. The returned error aggregates
// non-fatal persistence problems; it is non-nil only when a result could not
// be recorded, never because a card declined.
func (s *Sweeper) Run(ctx context.Context) (*SweepSummary, error) {
	candidates, err := s.orders.ListByStatus(ctx, enums.PaymentStatusCardSaved)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to list capturable orders")
	}

	summary := &SweepSummary{}
	var persistErrs error

	for i := range candidates {
		order := candidates[i]
		orderCtx := s.logger.WithOrderID(ctx, order.ID.String())

		if order.GatewayPaymentIntentID == nil || *order.GatewayPaymentIntentID == "" {
			s.logger.Warn(orderCtx, "card_saved order has no payment intent reference, skipping")
			continue
		}

		summary.Attempted++
		if err := s.captureOne(orderCtx, &order, summary); err != nil {
			persistErrs = multierr.Append(persistErrs, err)
		}
	}

	s.logSummary(ctx, summary)
	return summary, persistErrs
}

func (s *Sweeper) captureOne(ctx context.Context, order *models.Order, summary *SweepSummary) error {
	if !s.cardUsable(ctx, order) {
		// Nothing will capture this intent anymore; release the
		// authorization so it does not dangle gateway-side.
		if _, cancelErr := s.gateway.CancelPaymentIntent(ctx, *order.GatewayPaymentIntentID); cancelErr != nil {
			s.logger.Warn(ctx, "failed to cancel intent for unusable saved card")
		}
		return s.settleFailure(ctx, order, summary, "saved card is no longer on file", "card_missing")
	}

	intent, err := s.gateway.CapturePaymentIntent(ctx, *order.GatewayPaymentIntentID, gateway.NewIdempotencyKey("intent.capture"))
	if err != nil {
		// Only a decline settles the order. Timeouts and outages leave the
		// outcome unknown; those orders must not move to charge_failed.
		if typed := pkgerrors.As(err); typed.Code() == pkgerrors.CodeDeclined {
			reason, failureCode := declineDetails(typed)
			return s.settleFailure(ctx, order, summary, reason, failureCode)
		}
		return s.recordUnresolved(ctx, order, summary, err)
	}

	return s.markCharged(ctx, order, summary, intent.ID)
}

// cardUsable verifies the saved payment method still exists on the gateway
// customer. Orders missing either reference skip the check; the capture call
// itself is the authority then. A failed lookup never blocks the capture.
func (s *Sweeper) cardUsable(ctx context.Context, order *models.Order) bool {
	if order.GatewayCustomerID == nil || *order.GatewayCustomerID == "" ||
		order.GatewayPaymentMethodID == nil || *order.GatewayPaymentMethodID == "" {
		return true
	}

	methods, err := s.gateway.ListCardPaymentMethods(ctx, *order.GatewayCustomerID)
	if err != nil {
		s.logger.Warn(ctx, "could not verify saved card, attempting capture anyway")
		return true
	}
	for _, method := range methods {
		if method != nil && method.ID == *order.GatewayPaymentMethodID {
			return true
		}
	}
	return false
}

func (s *Sweeper) markCharged(ctx context.Context, order *models.Order, summary *SweepSummary, intentID string) error {
	now := time.Now().UTC()
	transitionErr := s.orders.Transition(ctx, order.ID, enums.PaymentStatusCardSaved, enums.PaymentStatusCharged, map[string]any{
		"paid":        true,
		"captured_at": now,
	})
	if transitionErr != nil {
		// The capture stands gateway-side; surface the persistence gap but
		// keep the sweep going.
		errCtx := s.logger.WithField(ctx, "payment_intent_id", intentID)
		s.logger.Error(errCtx, "ORPHANED TRANSACTION: capture succeeded but persistence failed", transitionErr)
		summary.Succeeded++
		summary.TotalCapturedCents += order.TotalCents
		return transitionErr
	}

	summary.Succeeded++
	summary.TotalCapturedCents += order.TotalCents
	s.countOutcome("succeeded", order.TotalCents)

	order.Status = enums.PaymentStatusCharged
	s.notifier.Notify(ctx, enums.NotificationKindCaptureSucceeded, order, "")
	return nil
}

// settleFailure records a definite capture failure: decline or unusable card.
func (s *Sweeper) settleFailure(ctx context.Context, order *models.Order, summary *SweepSummary, reason, failureCode string) error {
	summary.Failed++
	summary.Failures = append(summary.Failures, SweepFailure{
		OrderID:     order.ID,
		AmountCents: order.TotalCents,
		Reason:      reason,
	})
	s.countOutcome("failed", 0)

	fields := map[string]any{"failure_message": reason}
	if failureCode != "" {
		fields["failure_code"] = failureCode
	}
	transitionErr := s.orders.Transition(ctx, order.ID, enums.PaymentStatusCardSaved, enums.PaymentStatusChargeFailed, fields)
	if transitionErr != nil {
		errCtx := s.logger.WithField(ctx, "capture_error", reason)
		s.logger.Error(errCtx, "failed to record capture failure", transitionErr)
		return transitionErr
	}

	order.Status = enums.PaymentStatusChargeFailed
	s.notifier.Notify(ctx, enums.NotificationKindCaptureFailed, order, failureCode)
	return nil
}

// recordUnresolved handles capture errors that carry no verdict. One intent
// lookup tries to settle the ambiguity; when it cannot, the order stays
// card_saved so the webhook or the next sweep reconciles it.
func (s *Sweeper) recordUnresolved(ctx context.Context, order *models.Order, summary *SweepSummary, captureErr error) error {
	intent, lookupErr := s.gateway.GetPaymentIntent(ctx, *order.GatewayPaymentIntentID)
	if lookupErr == nil && intent != nil && intent.Status == stripesdk.PaymentIntentStatusSucceeded {
		s.logger.Info(ctx, "capture call failed but the intent is captured, recording success")
		return s.markCharged(ctx, order, summary, intent.ID)
	}

	reason := "capture outcome unknown"
	if typed := pkgerrors.As(captureErr); typed != nil && typed.Message() != "" {
		reason = typed.Message()
	}

	summary.Unresolved++
	summary.UnresolvedOrders = append(summary.UnresolvedOrders, SweepFailure{
		OrderID:     order.ID,
		AmountCents: order.TotalCents,
		Reason:      reason,
	})
	s.countOutcome("unresolved", 0)

	errCtx := s.logger.WithField(ctx, "capture_error", reason)
	s.logger.Warn(errCtx, "capture outcome unknown, order stays card_saved for reconciliation")
	return nil
}

func declineDetails(typed *pkgerrors.Error) (reason, failureCode string) {
	reason = typed.Message()
	if details, ok := typed.Details().(map[string]any); ok {
		if code, ok := details["decline_code"].(string); ok && code != "" {
			failureCode = code
		}
	}
	return reason, failureCode
}

func (s *Sweeper) countOutcome(outcome string, capturedCents int64) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncOutcome(outcome)
	if capturedCents > 0 {
		s.metrics.AddCapturedCents(capturedCents)
	}
}

func (s *Sweeper) logSummary(ctx context.Context, summary *SweepSummary) {
	ctx = s.logger.WithFields(ctx, map[string]any{
		"attempted":       summary.Attempted,
		"succeeded":       summary.Succeeded,
		"failed":          summary.Failed,
		"unresolved":      summary.Unresolved,
		"captured_total":  summary.TotalCapturedDollars(),
		"failure_details": len(summary.Failures),
	})
	s.logger.Info(ctx, "bulk capture sweep completed")
}
