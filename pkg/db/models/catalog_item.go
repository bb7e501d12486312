package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pledgeforge/backerstore-backend/pkg/enums"
)

// CatalogItem is a read-only collaborator during checkout; immutable while a
// cart is being validated.
type CatalogItem struct {
	ID               uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Type             enums.ItemType `gorm:"column:type;type:item_type;not null"`
	Name             string         `gorm:"column:name;not null"`
	RetailPriceCents int64          `gorm:"column:retail_price_cents;not null"`
	BackerPriceCents *int64         `gorm:"column:backer_price_cents"`
	Active           bool           `gorm:"column:active;not null;default:true"`
	CreatedAt        time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
