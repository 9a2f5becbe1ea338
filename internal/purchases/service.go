package purchases

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

// Service drives the purchase lifecycle. A purchase starts in created and
// moves through exactly one of paid or failed; only paid may later become
// refunded. Re-applying the transition a row is already in is a no-op so
// webhook redelivery cannot corrupt state.
type Service interface {
	Create(ctx context.Context, input CreatePurchaseInput) (*models.Purchase, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Purchase, error)
	GetByProviderPaymentID(ctx context.Context, providerPaymentID string) (*models.Purchase, error)
	MarkPaid(ctx context.Context, tx *gorm.DB, input MarkPaidInput) (*models.Purchase, bool, error)
	MarkFailed(ctx context.Context, tx *gorm.DB, purchaseID uuid.UUID, failedAt time.Time) (*models.Purchase, bool, error)
	MarkRefunded(ctx context.Context, tx *gorm.DB, purchaseID uuid.UUID, refundedAt time.Time) (*models.Purchase, bool, error)
}

type service struct {
	repo Repository
}

// CreatePurchaseInput captures the fields needed to open a purchase.
type CreatePurchaseInput struct {
	GameID                  uuid.UUID
	ViewerID                uuid.UUID
	RecipientOwnerAccountID uuid.UUID
	AmountCents             int64
	Currency                enums.Currency
	PlatformFeeCents        int64
	ProcessorFeeCents       int64
	DiscountCents           int64
	CouponID                *uuid.UUID
	ViewerEmail             string
	ViewerPhone             *string
	ProviderCustomerID      *string
}

// MarkPaidInput carries the settlement facts reported by the gateway.
type MarkPaidInput struct {
	PurchaseID        uuid.UUID
	ProviderPaymentID string
	ProcessorFeeCents *int64
	PaidAt            time.Time
}

// NewService wires a purchase service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("purchase repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreatePurchaseInput) (*models.Purchase, error) {
	if input.GameID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "game id is required")
	}
	if input.ViewerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "viewer id is required")
	}
	if input.RecipientOwnerAccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipient owner account id is required")
	}
	if input.AmountCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be non-negative")
	}
	if input.DiscountCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount must be non-negative")
	}
	if strings.TrimSpace(input.ViewerEmail) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "viewer email is required")
	}
	currency := input.Currency
	if currency == "" {
		currency = enums.CurrencyUSD
	}
	if !currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported currency %q", currency))
	}

	purchase := &models.Purchase{
		GameID:                  input.GameID,
		ViewerID:                input.ViewerID,
		RecipientOwnerAccountID: input.RecipientOwnerAccountID,
		AmountCents:             input.AmountCents,
		Currency:                currency,
		PlatformFeeCents:        input.PlatformFeeCents,
		ProcessorFeeCents:       input.ProcessorFeeCents,
		DiscountCents:           input.DiscountCents,
		CouponID:                input.CouponID,
		Status:                  enums.PurchaseStatusCreated,
		ViewerEmail:             strings.TrimSpace(input.ViewerEmail),
		ViewerPhone:             input.ViewerPhone,
		ProviderCustomerID:      input.ProviderCustomerID,
	}
	if err := s.repo.Create(ctx, purchase); err != nil {
		return nil, err
	}
	return purchase, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase id is required")
	}
	purchase, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if purchase == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
	}
	return purchase, nil
}

func (s *service) GetByProviderPaymentID(ctx context.Context, providerPaymentID string) (*models.Purchase, error) {
	if strings.TrimSpace(providerPaymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider payment id is required")
	}
	return s.repo.GetByProviderPaymentID(ctx, providerPaymentID)
}

// MarkPaid transitions created -> paid. The second return value reports
// whether the row actually changed; a repeated paid delivery returns false.
func (s *service) MarkPaid(ctx context.Context, tx *gorm.DB, input MarkPaidInput) (*models.Purchase, bool, error) {
	purchase, err := s.lockedGet(ctx, tx, input.PurchaseID)
	if err != nil {
		return nil, false, err
	}

	switch purchase.Status {
	case enums.PurchaseStatusPaid:
		return purchase, false, nil
	case enums.PurchaseStatusCreated:
	default:
		return nil, false, transitionError(purchase.Status, enums.PurchaseStatusPaid)
	}

	// created -> paid requires a gateway payment reference, either on
	// this call or recorded earlier by the pending checkout path.
	trimmed := strings.TrimSpace(input.ProviderPaymentID)
	if trimmed == "" && purchase.ProviderPaymentID == nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "provider payment id is required to mark a purchase paid")
	}

	paidAt := input.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}
	purchase.Status = enums.PurchaseStatusPaid
	purchase.PaidAt = &paidAt
	if trimmed != "" {
		purchase.ProviderPaymentID = &trimmed
	}
	if input.ProcessorFeeCents != nil {
		purchase.ProcessorFeeCents = *input.ProcessorFeeCents
	}

	if err := s.repo.WithTx(tx).Update(ctx, purchase); err != nil {
		return nil, false, err
	}
	return purchase, true, nil
}

func (s *service) MarkFailed(ctx context.Context, tx *gorm.DB, purchaseID uuid.UUID, failedAt time.Time) (*models.Purchase, bool, error) {
	purchase, err := s.lockedGet(ctx, tx, purchaseID)
	if err != nil {
		return nil, false, err
	}

	switch purchase.Status {
	case enums.PurchaseStatusFailed:
		return purchase, false, nil
	case enums.PurchaseStatusCreated:
	default:
		return nil, false, transitionError(purchase.Status, enums.PurchaseStatusFailed)
	}

	if failedAt.IsZero() {
		failedAt = time.Now().UTC()
	}
	purchase.Status = enums.PurchaseStatusFailed
	purchase.FailedAt = &failedAt

	if err := s.repo.WithTx(tx).Update(ctx, purchase); err != nil {
		return nil, false, err
	}
	return purchase, true, nil
}

func (s *service) MarkRefunded(ctx context.Context, tx *gorm.DB, purchaseID uuid.UUID, refundedAt time.Time) (*models.Purchase, bool, error) {
	purchase, err := s.lockedGet(ctx, tx, purchaseID)
	if err != nil {
		return nil, false, err
	}

	switch purchase.Status {
	case enums.PurchaseStatusRefunded:
		return purchase, false, nil
	case enums.PurchaseStatusPaid:
	default:
		return nil, false, transitionError(purchase.Status, enums.PurchaseStatusRefunded)
	}

	if refundedAt.IsZero() {
		refundedAt = time.Now().UTC()
	}
	purchase.Status = enums.PurchaseStatusRefunded
	purchase.RefundedAt = &refundedAt

	if err := s.repo.WithTx(tx).Update(ctx, purchase); err != nil {
		return nil, false, err
	}
	return purchase, true, nil
}

func (s *service) lockedGet(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Purchase, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase id is required")
	}
	purchase, err := s.repo.WithTx(tx).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if purchase == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
	}
	return purchase, nil
}

func transitionError(from, to enums.PurchaseStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot transition purchase from %s to %s", from, to))
}
