package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pledgeforge/backerstore-backend/pkg/enums"
)

// Order carries the payment record for one checkout. The gateway reference
// fields are written once by the orchestrator; every later status change goes
// through the reconciliation engine. Rows are never deleted, only superseded
// by a new checkout attempt.
type Order struct {
	ID                     uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AccountID              uuid.UUID            `gorm:"column:account_id;type:uuid;not null;index"`
	Classification         enums.Classification `gorm:"column:classification;type:classification;not null"`
	PricingType            enums.PricingType    `gorm:"column:pricing_type;type:pricing_type;not null"`
	PaymentMode            enums.PaymentMode    `gorm:"column:payment_mode;type:payment_mode;not null"`
	SubtotalCents          int64                `gorm:"column:subtotal_cents;not null"`
	ShippingCents          int64                `gorm:"column:shipping_cents;not null;default:0"`
	TotalCents             int64                `gorm:"column:total_cents;not null"`
	Status                 enums.PaymentStatus  `gorm:"column:status;type:payment_status;not null;default:'pending';index"`
	Paid                   bool                 `gorm:"column:paid;not null;default:false"`
	GatewayCustomerID      *string              `gorm:"column:gateway_customer_id"`
	GatewayPaymentIntentID *string              `gorm:"column:gateway_payment_intent_id;index"`
	GatewayPaymentMethodID *string              `gorm:"column:gateway_payment_method_id"`
	FailureCode            *string              `gorm:"column:failure_code"`
	FailureMessage         *string              `gorm:"column:failure_message"`
	CapturedAt             *time.Time           `gorm:"column:captured_at"`
	Lines                  []OrderLine          `gorm:"foreignKey:OrderID"`
	CreatedAt              time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderLine snapshots one validated cart line at its server-resolved price.
type OrderLine struct {
	ID             uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID      `gorm:"column:order_id;type:uuid;not null;index"`
	ItemID         *uuid.UUID     `gorm:"column:item_id;type:uuid"`
	Kind           enums.LineKind `gorm:"column:kind;type:line_kind;not null;default:'item'"`
	Name           string         `gorm:"column:name;not null"`
	Quantity       int            `gorm:"column:quantity;not null"`
	UnitPriceCents int64          `gorm:"column:unit_price_cents;not null"`
	TotalCents     int64          `gorm:"column:total_cents;not null"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
}
