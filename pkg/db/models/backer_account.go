package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pledgeforge/backerstore-backend/pkg/enums"
)

// BackerAccount is created on first contact (login or guest checkout). The
// classification attributes are mutated only by admin/import processes;
// checkout only ever writes the gateway customer reference.
type BackerAccount struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	IdentityID      string              `gorm:"column:identity_id;not null;uniqueIndex"`
	Email           string              `gorm:"column:email;not null;index"`
	BackerNumber    *int64              `gorm:"column:backer_number"`
	Status          enums.AccountStatus `gorm:"column:status;type:account_status;not null;default:'collected'"`
	PledgeOverTime  bool                `gorm:"column:pledge_over_time;not null;default:false"`
	LatePledge      bool                `gorm:"column:late_pledge;not null;default:false"`
	PledgeItemID    *uuid.UUID          `gorm:"column:pledge_item_id;type:uuid"`
	AmountPaidCents int64               `gorm:"column:amount_paid_cents;not null;default:0"`
	AmountDueCents  int64               `gorm:"column:amount_due_cents;not null;default:0"`
	GatewayCustomerID *string           `gorm:"column:gateway_customer_id;index"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// HasBackerNumber reports whether the account is tied to a platform pledge.
func (a *BackerAccount) HasBackerNumber() bool {
	return a != nil && a.BackerNumber != nil
}
