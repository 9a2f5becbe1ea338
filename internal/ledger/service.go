package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/streampass/streampass-backend/pkg/db/models"
	"github.com/streampass/streampass-backend/pkg/enums"
	pkgerrors "github.com/streampass/streampass-backend/pkg/errors"
)

// Service posts immutable double-entry style rows for money movement.
// Credits to the owner are positive, debits negative. All arithmetic is
// integer cents; proration rounds down so the platform absorbs the
// remainder cent, never the owner.
type Service interface {
	RecordPurchaseEntries(ctx context.Context, tx *gorm.DB, purchase *models.Purchase) (*Posting, error)
	RecordRefundEntries(ctx context.Context, tx *gorm.DB, input RecordRefundEntriesInput) (*Posting, error)
	ListForPurchase(ctx context.Context, purchaseID uuid.UUID) ([]models.LedgerEntry, error)
	OwnerBalance(ctx context.Context, ownerAccountID uuid.UUID) (int64, error)
}

// Posting reports what a record call did. Recorded is false when the
// entries already existed and nothing was written.
type Posting struct {
	Entries          []models.LedgerEntry
	FeeReversalCents int64
	Recorded         bool
}

// RecordRefundEntriesInput identifies the refund to post. RefundID must be
// stable across redeliveries of the same provider refund; the unique
// (reference_id, type) index rejects a second posting under the same id.
type RecordRefundEntriesInput struct {
	Purchase          *models.Purchase
	RefundID          uuid.UUID
	RefundAmountCents int64
}

type service struct {
	repo Repository
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

// RecordPurchaseEntries posts the three settlement rows for a paid
// purchase: the gross charge credit, the platform fee debit, and the
// processor fee debit. Replaying the same purchase is a no-op.
func (s *service) RecordPurchaseEntries(ctx context.Context, tx *gorm.DB, purchase *models.Purchase) (*Posting, error) {
	if purchase == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase is required")
	}
	if purchase.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase id is required")
	}
	if purchase.AmountCents < 0 || purchase.PlatformFeeCents < 0 || purchase.ProcessorFeeCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvariant, "purchase amounts must be non-negative")
	}
	if purchase.PlatformFeeCents+purchase.ProcessorFeeCents > purchase.AmountCents {
		return nil, pkgerrors.New(pkgerrors.CodeInvariant, "fees exceed the charged amount")
	}

	repo := s.repo.WithTx(tx)
	exists, err := repo.ExistsEntry(ctx, purchase.ID, enums.LedgerEntryTypeCharge)
	if err != nil {
		return nil, err
	}
	if exists {
		entries, err := repo.ListByReference(ctx, enums.LedgerReferencePurchase, purchase.ID)
		if err != nil {
			return nil, err
		}
		return &Posting{Entries: entries, Recorded: false}, nil
	}

	entries := []models.LedgerEntry{
		{
			OwnerAccountID: purchase.RecipientOwnerAccountID,
			Type:           enums.LedgerEntryTypeCharge,
			AmountCents:    purchase.AmountCents,
			Currency:       purchase.Currency,
			ReferenceType:  enums.LedgerReferencePurchase,
			ReferenceID:    purchase.ID,
			Description:    fmt.Sprintf("charge for purchase %s", purchase.ID),
		},
		{
			OwnerAccountID: purchase.RecipientOwnerAccountID,
			Type:           enums.LedgerEntryTypePlatformFee,
			AmountCents:    -purchase.PlatformFeeCents,
			Currency:       purchase.Currency,
			ReferenceType:  enums.LedgerReferencePurchase,
			ReferenceID:    purchase.ID,
			Description:    fmt.Sprintf("platform fee for purchase %s", purchase.ID),
		},
		{
			OwnerAccountID: purchase.RecipientOwnerAccountID,
			Type:           enums.LedgerEntryTypeProcessorFee,
			AmountCents:    -purchase.ProcessorFeeCents,
			Currency:       purchase.Currency,
			ReferenceType:  enums.LedgerReferencePurchase,
			ReferenceID:    purchase.ID,
			Description:    fmt.Sprintf("processor fee for purchase %s", purchase.ID),
		},
	}
	if err := repo.CreateAll(ctx, entries); err != nil {
		return nil, err
	}
	return &Posting{Entries: entries, Recorded: true}, nil
}

// RecordRefundEntries posts the refund debit and the pro-rata platform
// fee reversal. The processor fee is never reversed; the gateway keeps it
// regardless of refund outcome.
func (s *service) RecordRefundEntries(ctx context.Context, tx *gorm.DB, input RecordRefundEntriesInput) (*Posting, error) {
	purchase := input.Purchase
	if purchase == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase is required")
	}
	if input.RefundID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund id is required")
	}
	if input.RefundAmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvariant, "refund amount must be positive")
	}
	if purchase.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvariant, "purchase has no refundable amount")
	}
	if input.RefundAmountCents > purchase.AmountCents {
		return nil, pkgerrors.New(pkgerrors.CodeInvariant, "refund amount exceeds the charged amount")
	}

	repo := s.repo.WithTx(tx)
	exists, err := repo.ExistsEntry(ctx, input.RefundID, enums.LedgerEntryTypeRefund)
	if err != nil {
		return nil, err
	}
	if exists {
		entries, err := repo.ListByReference(ctx, enums.LedgerReferenceRefund, input.RefundID)
		if err != nil {
			return nil, err
		}
		return &Posting{Entries: entries, FeeReversalCents: feeReversalFromEntries(entries), Recorded: false}, nil
	}

	reversal := prorateFeeReversal(purchase.PlatformFeeCents, input.RefundAmountCents, purchase.AmountCents)
	entries := []models.LedgerEntry{
		{
			OwnerAccountID: purchase.RecipientOwnerAccountID,
			Type:           enums.LedgerEntryTypeRefund,
			AmountCents:    -input.RefundAmountCents,
			Currency:       purchase.Currency,
			ReferenceType:  enums.LedgerReferenceRefund,
			ReferenceID:    input.RefundID,
			Description:    fmt.Sprintf("refund for purchase %s", purchase.ID),
		},
	}
	if reversal > 0 {
		entries = append(entries, models.LedgerEntry{
			OwnerAccountID: purchase.RecipientOwnerAccountID,
			Type:           enums.LedgerEntryTypePlatformFee,
			AmountCents:    reversal,
			Currency:       purchase.Currency,
			ReferenceType:  enums.LedgerReferenceRefund,
			ReferenceID:    input.RefundID,
			Description:    fmt.Sprintf("platform fee reversal for purchase %s", purchase.ID),
		})
	}
	if err := repo.CreateAll(ctx, entries); err != nil {
		return nil, err
	}
	return &Posting{Entries: entries, FeeReversalCents: reversal, Recorded: true}, nil
}

func (s *service) ListForPurchase(ctx context.Context, purchaseID uuid.UUID) ([]models.LedgerEntry, error) {
	if purchaseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase id is required")
	}
	return s.repo.ListByReference(ctx, enums.LedgerReferencePurchase, purchaseID)
}

func (s *service) OwnerBalance(ctx context.Context, ownerAccountID uuid.UUID) (int64, error) {
	if ownerAccountID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "owner account id is required")
	}
	return s.repo.SumByOwnerAccount(ctx, ownerAccountID)
}

// prorateFeeReversal returns round(platformFee * refund / gross) in
// cents, half rounding away from zero. A full refund reverses the fee
// exactly.
func prorateFeeReversal(platformFeeCents, refundCents, grossCents int64) int64 {
	if platformFeeCents <= 0 {
		return 0
	}
	return decimal.NewFromInt(platformFeeCents).
		Mul(decimal.NewFromInt(refundCents)).
		Div(decimal.NewFromInt(grossCents)).
		Round(0).
		IntPart()
}

func feeReversalFromEntries(entries []models.LedgerEntry) int64 {
	for _, entry := range entries {
		if entry.Type == enums.LedgerEntryTypePlatformFee && entry.AmountCents > 0 {
			return entry.AmountCents
		}
	}
	return 0
}
