package entitlements

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/streampass/streampass-backend/pkg/db/models"
	"github.com/streampass/streampass-backend/pkg/enums"
)

// Repository manages persistence for entitlements.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entitlement *models.Entitlement) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Entitlement, error)
	GetByPurchaseID(ctx context.Context, purchaseID uuid.UUID) (*models.Entitlement, error)
	GetByTokenDigest(ctx context.Context, digest string) (*models.Entitlement, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.EntitlementStatus) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an entitlement repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entitlement *models.Entitlement) error {
	return r.db.WithContext(ctx).Create(entitlement).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Entitlement, error) {
	var entitlement models.Entitlement
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&entitlement).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entitlement, nil
}

func (r *repository) GetByPurchaseID(ctx context.Context, purchaseID uuid.UUID) (*models.Entitlement, error) {
	var entitlement models.Entitlement
	if err := r.db.WithContext(ctx).Where("purchase_id = ?", purchaseID).First(&entitlement).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entitlement, nil
}

func (r *repository) GetByTokenDigest(ctx context.Context, digest string) (*models.Entitlement, error) {
	var entitlement models.Entitlement
	if err := r.db.WithContext(ctx).Where("token_digest = ?", digest).First(&entitlement).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entitlement, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.EntitlementStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Entitlement{}).
		Where("id = ?", id).
		Update("status", status).Error
}
