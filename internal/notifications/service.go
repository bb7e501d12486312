package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pledgeforge/backerstore-backend/pkg/db/models"
	"github.com/pledgeforge/backerstore-backend/pkg/enums"
	"github.com/pledgeforge/backerstore-backend/pkg/logger"
)

// Mailer delivers a single email. Implementations live outside this core.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type accountReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.BackerAccount, error)
}

// Service fires backer-facing payment emails. Sends are fire-and-forget: a
// failed lookup, persist, or delivery is logged and never surfaces to the
// payment flow that triggered it.
type Service interface {
	Notify(ctx context.Context, kind enums.NotificationKind, order *models.Order, reason string)
}

type service struct {
	repo     Repository
	accounts accountReader
	mailer   Mailer
	logger   *logger.Logger
}

// NewService wires the notification sender. The mailer is optional; without
// one the service still records the audit row.
func NewService(repo Repository, accounts accountReader, mailer Mailer, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if accounts == nil {
		return nil, fmt.Errorf("account reader required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, accounts: accounts, mailer: mailer, logger: logg}, nil
}

func (s *service) Notify(ctx context.Context, kind enums.NotificationKind, order *models.Order, reason string) {
	if order == nil || !kind.IsValid() {
		return
	}
	ctx = s.logger.WithFields(ctx, map[string]any{
		"notification_kind": kind.String(),
		"order_id":          order.ID.String(),
	})

	account, err := s.accounts.FindByID(ctx, order.AccountID)
	if err != nil {
		s.logger.Warn(ctx, "notification skipped, account lookup failed")
		return
	}

	subject, body := s.compose(kind, order, reason)
	orderID := order.ID
	record := &models.Notification{
		AccountID: account.ID,
		OrderID:   &orderID,
		Kind:      kind,
		Subject:   subject,
		Body:      body,
	}

	if s.mailer != nil {
		if err := s.mailer.Send(ctx, account.Email, subject, body); err != nil {
			s.logger.Warn(ctx, "notification delivery failed")
		} else {
			now := time.Now().UTC()
			record.SentAt = &now
		}
	}

	if _, err := s.repo.Create(ctx, record); err != nil {
		s.logger.Warn(ctx, "notification record persist failed")
	}
}

func (s *service) compose(kind enums.NotificationKind, order *models.Order, reason string) (string, string) {
	amount := dollars(order.TotalCents)
	switch kind {
	case enums.NotificationKindPaymentSucceeded:
		return "Payment received", fmt.Sprintf("We received your payment of $%s.", amount)
	case enums.NotificationKindPaymentFailed:
		return "Payment failed", fmt.Sprintf("Your payment of $%s could not be completed: %s.", amount, orFallback(reason, "the card was declined"))
	case enums.NotificationKindCardSaved:
		return "Card saved for later billing", fmt.Sprintf("Your card is on file and will be charged $%s when fulfillment begins.", amount)
	case enums.NotificationKindCaptureSucceeded:
		return "Order payment collected", fmt.Sprintf("We collected your saved payment of $%s.", amount)
	case enums.NotificationKindCaptureFailed:
		return "We could not collect your payment", fmt.Sprintf("Collecting your saved payment of $%s failed: %s.", amount, orFallback(reason, "the card was declined"))
	}
	return "Order update", fmt.Sprintf("Your order total is $%s.", amount)
}

func dollars(cents int64) string {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).StringFixed(2)
}

func orFallback(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
