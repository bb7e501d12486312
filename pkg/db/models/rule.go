package models

import (
	"time"

	"github.com/google/uuid"
)

// Rule is one externally configurable key under a category. Read-only to the
// checkout core; written by admin tooling.
type Rule struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Category  string    `gorm:"column:category;not null;uniqueIndex:idx_rules_category_key"`
	Key       string    `gorm:"column:key;not null;uniqueIndex:idx_rules_category_key"`
	Value     string    `gorm:"column:value;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
