package rules

import (
	"context"

	"gorm.io/gorm"

	"github.com/pledgeforge/backerstore-backend/pkg/db/models"
)

// Repository reads externally managed rule rows. This core never writes them.
type Repository interface {
	Find(ctx context.Context, category, key string) (*models.Rule, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a rule repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Find(ctx context.Context, category, key string) (*models.Rule, error) {
	var rule models.Rule
	err := r.db.WithContext(ctx).
		Where("category = ? AND key = ?", category, key).
		First(&rule).Error
	if err != nil {
		return nil, err
	}
	return &rule, nil
}
