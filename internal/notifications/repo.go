package notifications

import (
	"context"

	"gorm.io/gorm"

	"github.com/pledgeforge/backerstore-backend/pkg/db/models"
)

// Repository persists notification audit rows.
type Repository interface {
	Create(ctx context.Context, notification *models.Notification) (*models.Notification, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a notifications repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, notification *models.Notification) (*models.Notification, error) {
	if err := r.db.WithContext(ctx).Create(notification).Error; err != nil {
		return nil, err
	}
	return notification, nil
}
