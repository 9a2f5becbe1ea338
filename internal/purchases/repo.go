package purchases

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/streampass/streampass-backend/pkg/db/models"
)

// Repository manages persistence for purchases.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, purchase *models.Purchase) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error)
	GetByProviderPaymentID(ctx context.Context, providerPaymentID string) (*models.Purchase, error)
	Update(ctx context.Context, purchase *models.Purchase) error
	ListByViewerAndGame(ctx context.Context, viewerID, gameID uuid.UUID) ([]models.Purchase, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a purchase repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, purchase *models.Purchase) error {
	return r.db.WithContext(ctx).Create(purchase).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	var purchase models.Purchase
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&purchase).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &purchase, nil
}

func (r *repository) GetByProviderPaymentID(ctx context.Context, providerPaymentID string) (*models.Purchase, error) {
	var purchase models.Purchase
	if err := r.db.WithContext(ctx).Where("provider_payment_id = ?", providerPaymentID).First(&purchase).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &purchase, nil
}

func (r *repository) Update(ctx context.Context, purchase *models.Purchase) error {
	return r.db.WithContext(ctx).Save(purchase).Error
}

func (r *repository) ListByViewerAndGame(ctx context.Context, viewerID, gameID uuid.UUID) ([]models.Purchase, error) {
	var rows []models.Purchase
	if err := r.db.WithContext(ctx).
		Where("viewer_id = ? AND game_id = ?", viewerID, gameID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
