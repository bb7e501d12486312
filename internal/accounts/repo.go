package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pledgeforge/backerstore-backend/pkg/db/models"
	pkgerrors "github.com/pledgeforge/backerstore-backend/pkg/errors"
)

// Repository reads and merge-updates backer accounts. Accounts are never
// deleted; classification attributes belong to the import pipeline and are
// not written here.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.BackerAccount, error)
	FindByIdentity(ctx context.Context, identityID string) (*models.BackerAccount, error)
	FindByEmail(ctx context.Context, email string) (*models.BackerAccount, error)
	Create(ctx context.Context, account *models.BackerAccount) (*models.BackerAccount, error)
	Update(ctx context.Context, id uuid.UUID, fields map[string]any) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an account repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.BackerAccount, error) {
	var account models.BackerAccount
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error
	if err != nil {
		return nil, translateNotFound(err, fmt.Sprintf("account %s not found", id))
	}
	return &account, nil
}

func (r *repository) FindByIdentity(ctx context.Context, identityID string) (*models.BackerAccount, error) {
	var account models.BackerAccount
	err := r.db.WithContext(ctx).Where("identity_id = ?", identityID).First(&account).Error
	if err != nil {
		return nil, translateNotFound(err, fmt.Sprintf("account for identity %s not found", identityID))
	}
	return &account, nil
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*models.BackerAccount, error) {
	var account models.BackerAccount
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&account).Error
	if err != nil {
		return nil, translateNotFound(err, fmt.Sprintf("account for email %s not found", email))
	}
	return &account, nil
}

func (r *repository) Create(ctx context.Context, account *models.BackerAccount) (*models.BackerAccount, error) {
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		return nil, err
	}
	return account, nil
}

// Update applies a partial merge; gorm stamps updated_at on the way through.
func (r *repository) Update(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.BackerAccount{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("account %s not found", id))
	}
	return nil
}

func translateNotFound(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, msg)
	}
	return err
}
