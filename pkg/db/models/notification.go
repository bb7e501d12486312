package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pledgeforge/backerstore-backend/pkg/enums"
)

// Notification records a backer-facing email fired by the payment lifecycle.
// Delivery is fire-and-forget; the row exists for audit regardless of whether
// the mail transport succeeded.
type Notification struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AccountID uuid.UUID              `gorm:"column:account_id;type:uuid;not null;index"`
	OrderID   *uuid.UUID             `gorm:"column:order_id;type:uuid;index"`
	Kind      enums.NotificationKind `gorm:"column:kind;type:notification_kind;not null"`
	Subject   string                 `gorm:"column:subject;not null"`
	Body      string                 `gorm:"column:body;not null"`
	SentAt    *time.Time             `gorm:"column:sent_at"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
}
