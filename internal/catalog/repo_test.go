package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pledgeforge/backerstore-backend/pkg/db/models"
	"github.com/pledgeforge/backerstore-backend/pkg/enums"
	pkgerrors "github.com/pledgeforge/backerstore-backend/pkg/errors"
)

func setupCatalogTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS catalog_items (
  id TEXT PRIMARY KEY,
  type TEXT NOT NULL,
  name TEXT NOT NULL,
  retail_price_cents INTEGER NOT NULL,
  backer_price_cents INTEGER,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func seedItem(t *testing.T, db *gorm.DB, item *models.CatalogItem) *models.CatalogItem {
	t.Helper()
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	require.NoError(t, db.Create(item).Error)
	return item
}

func TestFindByID(t *testing.T) {
	db := setupCatalogTestDB(t)
	repo := NewRepository(db)
	backerPrice := int64(1800)

	seeded := seedItem(t, db, &models.CatalogItem{
		Type:             enums.ItemTypePledge,
		Name:             "Core Pledge",
		RetailPriceCents: 2500,
		BackerPriceCents: &backerPrice,
		Active:           true,
	})

	found, err := repo.FindByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, found.ID)
	assert.Equal(t, int64(2500), found.RetailPriceCents)
	require.NotNil(t, found.BackerPriceCents)
	assert.Equal(t, int64(1800), *found.BackerPriceCents)
}

func TestFindByIDUnknownItem(t *testing.T) {
	db := setupCatalogTestDB(t)
	repo := NewRepository(db)

	_, err := repo.FindByID(context.Background(), uuid.New())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestFindByIDSkipsInactiveItems(t *testing.T) {
	db := setupCatalogTestDB(t)
	repo := NewRepository(db)

	seeded := seedItem(t, db, &models.CatalogItem{
		Type:             enums.ItemTypeAddon,
		Name:             "Retired Addon",
		RetailPriceCents: 3500,
		Active:           false,
	})

	_, err := repo.FindByID(context.Background(), seeded.ID)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}
