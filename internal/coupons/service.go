package coupons

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/streampass/streampass-backend/pkg/db/models"
	"github.com/streampass/streampass-backend/pkg/enums"
	pkgerrors "github.com/streampass/streampass-backend/pkg/errors"
)

// Service validates and applies discount codes. Validation runs a fixed
// sequence of checks so a rejected code always reports the first rule it
// broke, and Apply re-runs the same checks inside the purchase transaction
// before it burns a use.
type Service interface {
	Create(ctx context.Context, input CreateCouponInput) (*models.CouponCode, error)
	Validate(ctx context.Context, input ValidateCouponInput) (*Quote, error)
	Apply(ctx context.Context, tx *gorm.DB, input ApplyCouponInput) (*models.CouponRedemption, error)
	Disable(ctx context.Context, couponID uuid.UUID) error
}

// Quote is a successful validation: the coupon and the discount it would
// take off the given amount.
type Quote struct {
	Coupon        *models.CouponCode
	DiscountCents int64
}

// CreateCouponInput captures the fields needed to mint a coupon code.
type CreateCouponInput struct {
	Code             string
	DiscountType     enums.CouponDiscountType
	DiscountValue    int64
	OwnerAccountID   *uuid.UUID
	GameID           *uuid.UUID
	MaxUses          *int
	MaxUsesPerViewer int
	MinPurchaseCents *int64
	ValidFrom        time.Time
	ValidTo          *time.Time
}

// ValidateCouponInput describes the purchase a code is being checked
// against.
type ValidateCouponInput struct {
	Code           string
	ViewerID       uuid.UUID
	GameID         uuid.UUID
	OwnerAccountID uuid.UUID
	AmountCents    int64
	Now            time.Time
}

// ApplyCouponInput commits a validated code to a purchase.
type ApplyCouponInput struct {
	ValidateCouponInput
	PurchaseID uuid.UUID
}

type service struct {
	repo Repository
}

// NewService wires a coupon service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateCouponInput) (*models.CouponCode, error) {
	if NormalizeCode(input.Code) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}
	if !input.DiscountType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported discount type %q", input.DiscountType))
	}
	if input.DiscountValue <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount value must be positive")
	}
	if input.DiscountType == enums.CouponDiscountPercentage && input.DiscountValue > 100 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "percentage discount cannot exceed 100")
	}
	if input.MaxUses != nil && *input.MaxUses <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "max uses must be positive")
	}
	maxUsesPerViewer := input.MaxUsesPerViewer
	if maxUsesPerViewer <= 0 {
		maxUsesPerViewer = 1
	}
	validFrom := input.ValidFrom
	if validFrom.IsZero() {
		validFrom = time.Now().UTC()
	}
	if input.ValidTo != nil && !input.ValidTo.After(validFrom) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "valid to must be after valid from")
	}

	coupon := &models.CouponCode{
		Code:             NormalizeCode(input.Code),
		DiscountType:     input.DiscountType,
		DiscountValue:    input.DiscountValue,
		OwnerAccountID:   input.OwnerAccountID,
		GameID:           input.GameID,
		MaxUses:          input.MaxUses,
		MaxUsesPerViewer: maxUsesPerViewer,
		MinPurchaseCents: input.MinPurchaseCents,
		ValidFrom:        validFrom,
		ValidTo:          input.ValidTo,
		Status:           enums.CouponStatusActive,
	}
	if err := s.repo.Create(ctx, coupon); err != nil {
		return nil, err
	}
	return coupon, nil
}

func (s *service) Validate(ctx context.Context, input ValidateCouponInput) (*Quote, error) {
	return s.validate(ctx, s.repo, input)
}

// Apply burns one use of the code against the purchase. It re-validates
// under the transaction, records the redemption, and bumps used_count with
// a guard that loses to a concurrent redeemer of the last remaining use.
func (s *service) Apply(ctx context.Context, tx *gorm.DB, input ApplyCouponInput) (*models.CouponRedemption, error) {
	if input.PurchaseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase id is required")
	}
	repo := s.repo.WithTx(tx)
	quote, err := s.validate(ctx, repo, input.ValidateCouponInput)
	if err != nil {
		return nil, err
	}

	redemption := &models.CouponRedemption{
		CouponID:      quote.Coupon.ID,
		PurchaseID:    input.PurchaseID,
		ViewerID:      input.ViewerID,
		DiscountCents: quote.DiscountCents,
	}
	if err := repo.CreateRedemption(ctx, redemption); err != nil {
		return nil, err
	}
	bumped, err := repo.IncrementUsedCount(ctx, quote.Coupon.ID)
	if err != nil {
		return nil, err
	}
	if !bumped {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "coupon has reached its use limit")
	}
	return redemption, nil
}

func (s *service) Disable(ctx context.Context, couponID uuid.UUID) error {
	if couponID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon id is required")
	}
	return s.repo.UpdateStatus(ctx, couponID, enums.CouponStatusDisabled)
}

func (s *service) validate(ctx context.Context, repo Repository, input ValidateCouponInput) (*Quote, error) {
	if strings.TrimSpace(input.Code) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}
	if input.ViewerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "viewer id is required")
	}
	if input.AmountCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be non-negative")
	}
	now := input.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	coupon, err := repo.GetByCode(ctx, input.Code)
	if err != nil {
		return nil, err
	}
	if coupon == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon code not found")
	}
	if coupon.Status != enums.CouponStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon is disabled")
	}
	if now.Before(coupon.ValidFrom) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon is not yet valid")
	}
	if coupon.ValidTo != nil && now.After(*coupon.ValidTo) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon has expired")
	}
	if coupon.MaxUses != nil && coupon.UsedCount >= *coupon.MaxUses {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon has reached its use limit")
	}
	viewerUses, err := repo.CountRedemptionsByViewer(ctx, coupon.ID, input.ViewerID)
	if err != nil {
		return nil, err
	}
	if viewerUses >= coupon.MaxUsesPerViewer {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon use limit reached for this viewer")
	}
	if coupon.GameID != nil && *coupon.GameID != input.GameID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon does not apply to this game")
	}
	if coupon.OwnerAccountID != nil && *coupon.OwnerAccountID != input.OwnerAccountID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon does not apply to this seller")
	}
	if coupon.MinPurchaseCents != nil && input.AmountCents < *coupon.MinPurchaseCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase amount is below the coupon minimum")
	}

	return &Quote{Coupon: coupon, DiscountCents: DiscountCents(coupon, input.AmountCents)}, nil
}

// DiscountCents computes the discount the coupon takes off amountCents.
// Percentage discounts round down and both kinds are capped at the amount.
func DiscountCents(coupon *models.CouponCode, amountCents int64) int64 {
	if amountCents <= 0 {
		return 0
	}
	var discount int64
	switch coupon.DiscountType {
	case enums.CouponDiscountPercentage:
		discount = amountCents * coupon.DiscountValue / 100
	case enums.CouponDiscountFixedCents:
		discount = coupon.DiscountValue
	}
	if discount > amountCents {
		discount = amountCents
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}
