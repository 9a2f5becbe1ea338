package settlement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/streampass/streampass-backend/internal/entitlements"
	"github.com/streampass/streampass-backend/internal/ledger"
	"github.com/streampass/streampass-backend/internal/purchases"
	"github.com/streampass/streampass-backend/pkg/db/models"
	"github.com/streampass/streampass-backend/pkg/enums"
	pkgerrors "github.com/streampass/streampass-backend/pkg/errors"
	"github.com/streampass/streampass-backend/pkg/logger"
	"github.com/streampass/streampass-backend/pkg/outbox"
	"github.com/streampass/streampass-backend/pkg/outbox/payloads"
)

// Service applies a payment outcome to a purchase as one transaction:
// the state transition, the ledger posting, the entitlement move, and
// the outbox events commit or roll back together. Both the synchronous
// confirm path and the webhook consumer settle through here, so a
// payment observed twice settles once.
type Service interface {
	SettlePaid(ctx context.Context, input SettlePaidInput) (*SettlePaidResult, error)
	SettleFailed(ctx context.Context, input SettleFailedInput) (*models.Purchase, bool, error)
	SettleRefund(ctx context.Context, input SettleRefundInput) (*SettleRefundResult, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type purchaseStateMachine interface {
	MarkPaid(ctx context.Context, tx *gorm.DB, input purchases.MarkPaidInput) (*models.Purchase, bool, error)
	MarkFailed(ctx context.Context, tx *gorm.DB, purchaseID uuid.UUID, failedAt time.Time) (*models.Purchase, bool, error)
	MarkRefunded(ctx context.Context, tx *gorm.DB, purchaseID uuid.UUID, refundedAt time.Time) (*models.Purchase, bool, error)
}

type ledgerPoster interface {
	RecordPurchaseEntries(ctx context.Context, tx *gorm.DB, purchase *models.Purchase) (*ledger.Posting, error)
	RecordRefundEntries(ctx context.Context, tx *gorm.DB, input ledger.RecordRefundEntriesInput) (*ledger.Posting, error)
}

type entitlementIssuer interface {
	Issue(ctx context.Context, tx *gorm.DB, input entitlements.IssueInput) (*entitlements.IssueResult, error)
	GetByPurchaseID(ctx context.Context, purchaseID uuid.UUID) (*models.Entitlement, error)
	RevokeForPurchase(ctx context.Context, tx *gorm.DB, purchaseID uuid.UUID) (bool, error)
}

type gameLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Game, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams collects the dependencies a settlement service needs.
type ServiceParams struct {
	Purchases    purchaseStateMachine
	Ledger       ledgerPoster
	Entitlements entitlementIssuer
	Games        gameLoader
	Outbox       eventEmitter
	Tx           txRunner
	Logger       *logger.Logger
}

// SettlePaidInput carries the gateway's settlement facts.
type SettlePaidInput struct {
	PurchaseID        uuid.UUID
	ProviderPaymentID string
	ProcessorFeeCents *int64
	PaidAt            time.Time
}

// SettlePaidResult reports the settled purchase and its entitlement.
// RawToken is set only when this call issued the entitlement.
type SettlePaidResult struct {
	Purchase    *models.Purchase
	Entitlement *models.Entitlement
	RawToken    string
	Settled     bool
}

// SettleFailedInput records a declined payment.
type SettleFailedInput struct {
	PurchaseID uuid.UUID
	FailedAt   time.Time
	Reason     string
}

// SettleRefundInput applies a refund reported by the gateway.
type SettleRefundInput struct {
	PurchaseID        uuid.UUID
	RefundAmountCents int64
	ProviderRefundID  string
	RefundedAt        time.Time
}

// SettleRefundResult reports the refunded purchase and what the refund
// reversed.
type SettleRefundResult struct {
	Purchase         *models.Purchase
	FeeReversalCents int64
	Revoked          bool
	Settled          bool
}

type service struct {
	purchases    purchaseStateMachine
	ledger       ledgerPoster
	entitlements entitlementIssuer
	games        gameLoader
	outbox       eventEmitter
	tx           txRunner
	logg         *logger.Logger
}

// NewService wires a settlement service from its dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Purchases == nil {
		return nil, fmt.Errorf("purchase service required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Entitlements == nil {
		return nil, fmt.Errorf("entitlement service required")
	}
	if params.Games == nil {
		return nil, fmt.Errorf("game loader required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		purchases:    params.Purchases,
		ledger:       params.Ledger,
		entitlements: params.Entitlements,
		games:        params.Games,
		outbox:       params.Outbox,
		tx:           params.Tx,
		logg:         params.Logger,
	}, nil
}

// SettlePaid finalizes a completed payment. A redelivered completion
// returns the already settled purchase without posting or issuing again.
func (s *service) SettlePaid(ctx context.Context, input SettlePaidInput) (*SettlePaidResult, error) {
	if input.PurchaseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase id is required")
	}

	var result *SettlePaidResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		purchase, changed, err := s.purchases.MarkPaid(ctx, tx, purchases.MarkPaidInput{
			PurchaseID:        input.PurchaseID,
			ProviderPaymentID: input.ProviderPaymentID,
			ProcessorFeeCents: input.ProcessorFeeCents,
			PaidAt:            input.PaidAt,
		})
		if err != nil {
			return err
		}
		if !changed {
			entitlement, err := s.entitlements.GetByPurchaseID(ctx, purchase.ID)
			if err != nil {
				return err
			}
			result = &SettlePaidResult{Purchase: purchase, Entitlement: entitlement, Settled: false}
			return nil
		}

		if _, err := s.ledger.RecordPurchaseEntries(ctx, tx, purchase); err != nil {
			return err
		}

		game, err := s.games.GetByID(ctx, purchase.GameID)
		if err != nil {
			return err
		}
		issued, err := s.entitlements.Issue(ctx, tx, entitlements.IssueInput{
			Purchase: purchase,
			Game:     game,
			Now:      *purchase.PaidAt,
		})
		if err != nil {
			return err
		}

		if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPurchasePaid,
			AggregateType: enums.AggregatePurchase,
			AggregateID:   purchase.ID,
			Version:       1,
			OccurredAt:    *purchase.PaidAt,
			Data: payloads.PurchasePaidEvent{
				PurchaseID:        purchase.ID,
				GameID:            purchase.GameID,
				ViewerID:          purchase.ViewerID,
				OwnerAccountID:    purchase.RecipientOwnerAccountID,
				AmountCents:       purchase.AmountCents,
				PlatformFeeCents:  purchase.PlatformFeeCents,
				ProcessorFeeCents: purchase.ProcessorFeeCents,
				Currency:          string(purchase.Currency),
				PaidAt:            *purchase.PaidAt,
			},
		}); err != nil {
			return err
		}
		if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventEntitlementIssued,
			AggregateType: enums.AggregateEntitlement,
			AggregateID:   issued.Entitlement.ID,
			Version:       1,
			OccurredAt:    *purchase.PaidAt,
			Data: payloads.EntitlementIssuedEvent{
				EntitlementID: issued.Entitlement.ID,
				PurchaseID:    purchase.ID,
				GameID:        purchase.GameID,
				ViewerID:      purchase.ViewerID,
				ValidFrom:     issued.Entitlement.ValidFrom,
				ValidTo:       issued.Entitlement.ValidTo,
			},
		}); err != nil {
			return err
		}

		result = &SettlePaidResult{
			Purchase:    purchase,
			Entitlement: issued.Entitlement,
			RawToken:    issued.RawToken,
			Settled:     true,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Settled && s.logg != nil {
		logCtx := s.logg.WithPurchaseID(ctx, result.Purchase.ID.String())
		s.logg.Info(logCtx, "purchase settled as paid")
	}
	return result, nil
}

// SettleFailed records a declined payment and queues the failure event.
func (s *service) SettleFailed(ctx context.Context, input SettleFailedInput) (*models.Purchase, bool, error) {
	if input.PurchaseID == uuid.Nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "purchase id is required")
	}

	var (
		purchase *models.Purchase
		changed  bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		purchase, changed, err = s.purchases.MarkFailed(ctx, tx, input.PurchaseID, input.FailedAt)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPurchaseFailed,
			AggregateType: enums.AggregatePurchase,
			AggregateID:   purchase.ID,
			Version:       1,
			OccurredAt:    *purchase.FailedAt,
			Data: payloads.PurchaseFailedEvent{
				PurchaseID: purchase.ID,
				GameID:     purchase.GameID,
				ViewerID:   purchase.ViewerID,
				FailedAt:   *purchase.FailedAt,
				Reason:     input.Reason,
			},
		})
	})
	if err != nil {
		return nil, false, err
	}
	return purchase, changed, nil
}

// SettleRefund moves a paid purchase to refunded, posts the reversal
// entries, and revokes the entitlement.
func (s *service) SettleRefund(ctx context.Context, input SettleRefundInput) (*SettleRefundResult, error) {
	if input.PurchaseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase id is required")
	}

	var result *SettleRefundResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		purchase, changed, err := s.purchases.MarkRefunded(ctx, tx, input.PurchaseID, input.RefundedAt)
		if err != nil {
			return err
		}
		if !changed {
			result = &SettleRefundResult{Purchase: purchase, Settled: false}
			return nil
		}

		refundAmount := input.RefundAmountCents
		if refundAmount <= 0 {
			refundAmount = purchase.AmountCents
		}
		posting, err := s.ledger.RecordRefundEntries(ctx, tx, ledger.RecordRefundEntriesInput{
			Purchase:          purchase,
			RefundID:          RefundLedgerID(purchase.ID, input.ProviderRefundID),
			RefundAmountCents: refundAmount,
		})
		if err != nil {
			return err
		}

		revoked, err := s.entitlements.RevokeForPurchase(ctx, tx, purchase.ID)
		if err != nil {
			return err
		}

		if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPurchaseRefunded,
			AggregateType: enums.AggregatePurchase,
			AggregateID:   purchase.ID,
			Version:       1,
			OccurredAt:    *purchase.RefundedAt,
			Data: payloads.PurchaseRefundedEvent{
				PurchaseID:          purchase.ID,
				GameID:              purchase.GameID,
				ViewerID:            purchase.ViewerID,
				OwnerAccountID:      purchase.RecipientOwnerAccountID,
				RefundAmountCents:   refundAmount,
				FeeReversalCents:    posting.FeeReversalCents,
				RefundedAt:          *purchase.RefundedAt,
				ProviderRefundID:    input.ProviderRefundID,
				EntitlementsRevoked: revoked,
			},
		}); err != nil {
			return err
		}

		result = &SettleRefundResult{
			Purchase:         purchase,
			FeeReversalCents: posting.FeeReversalCents,
			Revoked:          revoked,
			Settled:          true,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Settled && s.logg != nil {
		logCtx := s.logg.WithPurchaseID(ctx, result.Purchase.ID.String())
		s.logg.Info(logCtx, "purchase settled as refunded")
	}
	return result, nil
}

// RefundLedgerID derives a stable ledger reference for one provider
// refund, so a redelivered refund event maps to the same posting.
func RefundLedgerID(purchaseID uuid.UUID, providerRefundID string) uuid.UUID {
	trimmed := strings.TrimSpace(providerRefundID)
	if trimmed == "" {
		return uuid.NewSHA1(uuid.NameSpaceOID, []byte("refund:"+purchaseID.String()))
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("refund:"+trimmed))
}
