package coupons

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/streampass/streampass-backend/pkg/db/models"
	"github.com/streampass/streampass-backend/pkg/enums"
)

// Repository manages persistence for coupon codes and redemptions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, coupon *models.CouponCode) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.CouponCode, error)
	GetByCode(ctx context.Context, code string) (*models.CouponCode, error)
	CountRedemptionsByViewer(ctx context.Context, couponID, viewerID uuid.UUID) (int, error)
	CreateRedemption(ctx context.Context, redemption *models.CouponRedemption) error
	// IncrementUsedCount bumps used_count only while the coupon stays under
	// its global cap. It reports whether a row was updated.
	IncrementUsedCount(ctx context.Context, couponID uuid.UUID) (bool, error)
	UpdateStatus(ctx context.Context, couponID uuid.UUID, status enums.CouponStatus) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a coupon repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, coupon *models.CouponCode) error {
	coupon.Code = NormalizeCode(coupon.Code)
	return r.db.WithContext(ctx).Create(coupon).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.CouponCode, error) {
	var coupon models.CouponCode
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&coupon).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &coupon, nil
}

func (r *repository) GetByCode(ctx context.Context, code string) (*models.CouponCode, error) {
	var coupon models.CouponCode
	if err := r.db.WithContext(ctx).Where("code = ?", NormalizeCode(code)).First(&coupon).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &coupon, nil
}

func (r *repository) CountRedemptionsByViewer(ctx context.Context, couponID, viewerID uuid.UUID) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.CouponRedemption{}).
		Where("coupon_id = ? AND viewer_id = ?", couponID, viewerID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *repository) CreateRedemption(ctx context.Context, redemption *models.CouponRedemption) error {
	return r.db.WithContext(ctx).Create(redemption).Error
}

func (r *repository) IncrementUsedCount(ctx context.Context, couponID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.CouponCode{}).
		Where("id = ? AND (max_uses IS NULL OR used_count < max_uses)", couponID).
		Update("used_count", gorm.Expr("used_count + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) UpdateStatus(ctx context.Context, couponID uuid.UUID, status enums.CouponStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.CouponCode{}).
		Where("id = ?", couponID).
		Update("status", status).Error
}

// NormalizeCode canonicalizes a coupon code for storage and lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
