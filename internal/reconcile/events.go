package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/pledgeforge/backerstore-backend/internal/orders"
	"github.com/pledgeforge/backerstore-backend/pkg/db/models"
	"github.com/pledgeforge/backerstore-backend/pkg/enums"
	pkgerrors "github.com/pledgeforge/backerstore-backend/pkg/errors"
	"github.com/pledgeforge/backerstore-backend/pkg/logger"
)

type notifier interface {
	Notify(ctx context.Context, kind enums.NotificationKind, order *models.Order, reason string)
}

// EventService applies verified gateway events to the payment state machine.
// Events arrive at-least-once and possibly out of order; application is
// idempotent, and a move the state machine forbids is logged as a
// reconciliation conflict and acknowledged without mutation.
type EventService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type eventService struct {
	orders   orders.Repository
	notifier notifier
	logger   *logger.Logger
}

// NewEventService builds the event-driven reconciliation service.
func NewEventService(orderRepo orders.Repository, notifySvc notifier, logg *logger.Logger) (EventService, error) {
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if notifySvc == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &eventService{orders: orderRepo, notifier: notifySvc, logger: logg}, nil
}

func (s *eventService) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	intentID, failureReason, err := correlate(event)
	if err != nil {
		return err
	}
	if intentID == "" {
		// Unhandled event type; acknowledge without action.
		return nil
	}

	ctx = s.logger.WithFields(ctx, map[string]any{
		"event_id":          event.ID,
		"event_type":        string(event.Type),
		"payment_intent_id": intentID,
	})

	order, err := s.orders.FindByPaymentIntentID(ctx, intentID)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			s.logger.Warn(ctx, "event references an unknown payment intent")
		}
		return err
	}
	ctx = s.logger.WithOrderID(ctx, order.ID.String())

	implied := impliedStatus(event.Type, order)
	if implied == "" {
		return nil
	}

	// Idempotency: a redelivered or late event whose implied status is
	// already stored is a no-op, with no second notification.
	if order.Status == implied {
		s.logger.Info(ctx, "event already applied, skipping")
		return nil
	}

	if !order.Status.CanTransitionTo(implied) {
		conflictCtx := s.logger.WithFields(ctx, map[string]any{
			"stored_status":  order.Status.String(),
			"implied_status": implied.String(),
		})
		s.logger.Warn(conflictCtx, "reconciliation conflict: event implies a disallowed transition, leaving order untouched")
		return nil
	}

	fields := transitionFields(implied, failureReason)
	if err := s.orders.Transition(ctx, order.ID, order.Status, implied, fields); err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeStateConflict {
			// Another driver applied a move first; the redelivery will
			// reconcile against the new stored status.
			s.logger.Warn(ctx, "transition lost against a concurrent move, acknowledging event")
			return nil
		}
		return err
	}

	order.Status = implied
	s.notify(ctx, order, implied, failureReason)
	return nil
}

// correlate extracts the payment-intent id the event refers to. An empty id
// with a nil error means the event type is not ours to handle.
func correlate(event *stripe.Event) (string, string, error) {
	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded,
		stripe.EventTypePaymentIntentAmountCapturableUpdated,
		stripe.EventTypePaymentIntentPaymentFailed:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return "", "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent event")
		}
		reason := ""
		if intent.LastPaymentError != nil {
			reason = string(intent.LastPaymentError.DeclineCode)
			if reason == "" {
				reason = string(intent.LastPaymentError.Code)
			}
		}
		return intent.ID, reason, nil
	case stripe.EventTypeChargeRefunded:
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return "", "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode charge event")
		}
		if charge.PaymentIntent == nil {
			return "", "", nil
		}
		return charge.PaymentIntent.ID, "", nil
	case stripe.EventTypeChargeDisputeCreated:
		var dispute stripe.Dispute
		if err := json.Unmarshal(event.Data.Raw, &dispute); err != nil {
			return "", "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode dispute event")
		}
		if dispute.PaymentIntent == nil {
			return "", "", nil
		}
		return dispute.PaymentIntent.ID, "", nil
	default:
		return "", "", nil
	}
}

// impliedStatus maps an event type onto the state machine relative to the
// order's payment mode and current position.
func impliedStatus(eventType stripe.EventType, order *models.Order) enums.PaymentStatus {
	switch eventType {
	case stripe.EventTypePaymentIntentSucceeded:
		if order.PaymentMode == enums.PaymentModeDeferred &&
			(order.Status == enums.PaymentStatusCardSaved || order.Status == enums.PaymentStatusCharged) {
			return enums.PaymentStatusCharged
		}
		return enums.PaymentStatusSucceeded
	case stripe.EventTypePaymentIntentAmountCapturableUpdated:
		return enums.PaymentStatusCardSaved
	case stripe.EventTypePaymentIntentPaymentFailed:
		if order.Status == enums.PaymentStatusCardSaved || order.Status == enums.PaymentStatusChargeFailed {
			return enums.PaymentStatusChargeFailed
		}
		return enums.PaymentStatusFailed
	case stripe.EventTypeChargeRefunded:
		return enums.PaymentStatusRefunded
	case stripe.EventTypeChargeDisputeCreated:
		return enums.PaymentStatusDisputed
	default:
		return ""
	}
}

func transitionFields(status enums.PaymentStatus, failureReason string) map[string]any {
	fields := map[string]any{}
	switch status {
	case enums.PaymentStatusSucceeded, enums.PaymentStatusCharged:
		fields["paid"] = true
		fields["captured_at"] = time.Now().UTC()
	case enums.PaymentStatusFailed, enums.PaymentStatusChargeFailed:
		if failureReason != "" {
			fields["failure_code"] = failureReason
		}
	}
	return fields
}

func (s *eventService) notify(ctx context.Context, order *models.Order, status enums.PaymentStatus, reason string) {
	switch status {
	case enums.PaymentStatusSucceeded:
		s.notifier.Notify(ctx, enums.NotificationKindPaymentSucceeded, order, "")
	case enums.PaymentStatusCardSaved:
		s.notifier.Notify(ctx, enums.NotificationKindCardSaved, order, "")
	case enums.PaymentStatusCharged:
		s.notifier.Notify(ctx, enums.NotificationKindCaptureSucceeded, order, "")
	case enums.PaymentStatusFailed:
		s.notifier.Notify(ctx, enums.NotificationKindPaymentFailed, order, reason)
	case enums.PaymentStatusChargeFailed:
		s.notifier.Notify(ctx, enums.NotificationKindCaptureFailed, order, reason)
	}
}
