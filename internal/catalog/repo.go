package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pledgeforge/backerstore-backend/pkg/db/models"
	pkgerrors "github.com/pledgeforge/backerstore-backend/pkg/errors"
)

// Repository reads catalog items. The store core never writes the catalog.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.CatalogItem, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog reader bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.CatalogItem, error) {
	var item models.CatalogItem
	err := r.db.WithContext(ctx).
		Where("id = ? AND active = ?", id, true).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("catalog item %s not found", id))
		}
		return nil, err
	}
	return &item, nil
}
