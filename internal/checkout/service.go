package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	"gorm.io/gorm"

	"github.com/streampass/streampass-backend/internal/coupons"
	"github.com/streampass/streampass-backend/internal/purchases"
	"github.com/streampass/streampass-backend/internal/settlement"
	"github.com/streampass/streampass-backend/pkg/config"
	"github.com/streampass/streampass-backend/pkg/db/models"
	"github.com/streampass/streampass-backend/pkg/enums"
	pkgerrors "github.com/streampass/streampass-backend/pkg/errors"
	"github.com/streampass/streampass-backend/pkg/logger"
	"github.com/streampass/streampass-backend/pkg/square"
)

// Gateway payment states this service acts on.
const (
	paymentStatusCompleted = "COMPLETED"
	paymentStatusApproved  = "APPROVED"
	paymentStatusPending   = "PENDING"
	paymentStatusFailed    = "FAILED"
	paymentStatusCanceled  = "CANCELED"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gameLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Game, error)
}

type couponEngine interface {
	Validate(ctx context.Context, input coupons.ValidateCouponInput) (*coupons.Quote, error)
	Apply(ctx context.Context, tx *gorm.DB, input coupons.ApplyCouponInput) (*models.CouponRedemption, error)
}

type paymentGateway interface {
	EnsureCustomer(ctx context.Context, params square.CustomerCreateParams) (*sq.Customer, error)
	CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*sq.Payment, error)
}

type settler interface {
	SettlePaid(ctx context.Context, input settlement.SettlePaidInput) (*settlement.SettlePaidResult, error)
	SettleFailed(ctx context.Context, input settlement.SettleFailedInput) (*models.Purchase, bool, error)
}

// Service runs checkout: price the game, apply the coupon, open the
// purchase, and charge the gateway. Settlement of the outcome is shared
// with the webhook consumer, so a purchase paid synchronously and one
// paid via webhook end up identical.
type Service interface {
	Start(ctx context.Context, input StartCheckoutInput) (*CheckoutResult, error)
	Confirm(ctx context.Context, purchaseID uuid.UUID) (*CheckoutResult, error)
}

// StartCheckoutInput captures a viewer's intent to buy access to a game.
type StartCheckoutInput struct {
	GameID      uuid.UUID
	ViewerID    uuid.UUID
	ViewerEmail string
	ViewerPhone *string
	CouponCode  string
	SourceID    string
}

// CheckoutResult is the purchase plus whatever the gateway said so far.
// RawToken is present only when payment completed synchronously.
type CheckoutResult struct {
	Purchase      *models.Purchase
	Entitlement   *models.Entitlement
	RawToken      string
	DiscountCents int64
	PaymentStatus string
}

type service struct {
	cfg          config.CheckoutConfig
	tx           txRunner
	games        gameLoader
	purchaseRepo purchases.Repository
	coupons      couponEngine
	gateway      paymentGateway
	settlement   settler
	logg         *logger.Logger
}

// ServiceParams collects the dependencies a checkout service needs.
type ServiceParams struct {
	Config       config.CheckoutConfig
	Tx           txRunner
	Games        gameLoader
	PurchaseRepo purchases.Repository
	Coupons      couponEngine
	Gateway      paymentGateway
	Settlement   settler
	Logger       *logger.Logger
}

// NewService wires a checkout service from its dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Games == nil {
		return nil, fmt.Errorf("game loader required")
	}
	if params.PurchaseRepo == nil {
		return nil, fmt.Errorf("purchase repository required")
	}
	if params.Coupons == nil {
		return nil, fmt.Errorf("coupon service required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Settlement == nil {
		return nil, fmt.Errorf("settlement service required")
	}
	return &service{
		cfg:          params.Config,
		tx:           params.Tx,
		games:        params.Games,
		purchaseRepo: params.PurchaseRepo,
		coupons:      params.Coupons,
		gateway:      params.Gateway,
		settlement:   params.Settlement,
		logg:         params.Logger,
	}, nil
}

func (s *service) Start(ctx context.Context, input StartCheckoutInput) (*CheckoutResult, error) {
	if input.GameID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "game id is required")
	}
	if input.ViewerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "viewer id is required")
	}
	if strings.TrimSpace(input.ViewerEmail) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "viewer email is required")
	}
	if strings.TrimSpace(input.SourceID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment source is required")
	}

	game, err := s.games.GetByID(ctx, input.GameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "game not found")
	}
	now := time.Now().UTC()
	if game.ScheduledEnd != nil && now.After(*game.ScheduledEnd) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "game has already ended")
	}
	if game.PriceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "game is not purchasable")
	}

	currency, err := s.resolveCurrency(game.Currency)
	if err != nil {
		return nil, err
	}

	var discount int64
	var quote *coupons.Quote
	couponCode := strings.TrimSpace(input.CouponCode)
	if couponCode != "" {
		quote, err = s.coupons.Validate(ctx, coupons.ValidateCouponInput{
			Code:           couponCode,
			ViewerID:       input.ViewerID,
			GameID:         game.ID,
			OwnerAccountID: game.OwnerAccountID,
			AmountCents:    game.PriceCents,
			Now:            now,
		})
		if err != nil {
			return nil, err
		}
		discount = quote.DiscountCents
	}

	split := ComputeFeeSplit(s.cfg, game.PriceCents-discount)

	var purchase *models.Purchase
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		purchase = &models.Purchase{
			GameID:                  game.ID,
			ViewerID:                input.ViewerID,
			RecipientOwnerAccountID: game.OwnerAccountID,
			AmountCents:             split.AmountCents,
			Currency:                currency,
			PlatformFeeCents:        split.PlatformFeeCents,
			ProcessorFeeCents:       split.ProcessorFeeCents,
			DiscountCents:           discount,
			Status:                  enums.PurchaseStatusCreated,
			ViewerEmail:             strings.TrimSpace(input.ViewerEmail),
			ViewerPhone:             input.ViewerPhone,
		}
		if quote != nil {
			purchase.CouponID = &quote.Coupon.ID
		}
		if err := s.purchaseRepo.WithTx(tx).Create(ctx, purchase); err != nil {
			return err
		}
		if quote != nil {
			_, err := s.coupons.Apply(ctx, tx, coupons.ApplyCouponInput{
				ValidateCouponInput: coupons.ValidateCouponInput{
					Code:           couponCode,
					ViewerID:       input.ViewerID,
					GameID:         game.ID,
					OwnerAccountID: game.OwnerAccountID,
					AmountCents:    game.PriceCents,
					Now:            now,
				},
				PurchaseID: purchase.ID,
			})
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	payment, err := s.chargeGateway(ctx, purchase, game, input.SourceID)
	if err != nil {
		if _, _, failErr := s.settlement.SettleFailed(ctx, settlement.SettleFailedInput{
			PurchaseID: purchase.ID,
			FailedAt:   time.Now().UTC(),
			Reason:     err.Error(),
		}); failErr != nil && s.logg != nil {
			s.logg.Error(ctx, "mark purchase failed after gateway error", failErr)
		}
		return nil, err
	}

	return s.resolvePaymentOutcome(ctx, purchase, payment, discount)
}

// Confirm re-checks the gateway for a purchase whose payment outcome has
// not landed yet. It backstops lost webhooks.
func (s *service) Confirm(ctx context.Context, purchaseID uuid.UUID) (*CheckoutResult, error) {
	if purchaseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase id is required")
	}
	purchase, err := s.purchaseRepo.GetByID(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	if purchase == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
	}
	if purchase.Status != enums.PurchaseStatusCreated {
		return &CheckoutResult{
			Purchase:      purchase,
			DiscountCents: purchase.DiscountCents,
			PaymentStatus: strings.ToUpper(string(purchase.Status)),
		}, nil
	}
	if purchase.ProviderPaymentID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "purchase has no payment to confirm")
	}

	payment, err := s.gateway.GetPayment(ctx, *purchase.ProviderPaymentID)
	if err != nil {
		return nil, err
	}
	return s.resolvePaymentOutcome(ctx, purchase, payment, purchase.DiscountCents)
}

func (s *service) chargeGateway(ctx context.Context, purchase *models.Purchase, game *models.Game, sourceID string) (*sq.Payment, error) {
	customer, err := s.gateway.EnsureCustomer(ctx, square.CustomerCreateParams{
		Email:       purchase.ViewerEmail,
		PhoneNumber: stringValue(purchase.ViewerPhone),
		ReferenceID: purchase.ViewerID.String(),
	})
	if err != nil {
		return nil, err
	}
	customerID := ""
	if customer != nil && customer.ID != nil {
		customerID = *customer.ID
		providerCustomerID := customerID
		purchase.ProviderCustomerID = &providerCustomerID
		if err := s.purchaseRepo.Update(ctx, purchase); err != nil {
			return nil, err
		}
	}

	return s.gateway.CreatePayment(ctx, square.PaymentCreateParams{
		AmountCents:    purchase.AmountCents,
		Currency:       string(purchase.Currency),
		CustomerID:     customerID,
		SourceID:       sourceID,
		IdempotencyKey: "purchase-" + purchase.ID.String(),
		ReferenceID:    purchase.ID.String(),
		Note:           game.Title,
	})
}

// resolvePaymentOutcome maps the gateway's payment state onto the
// purchase. Completed payments settle in full here; pending ones record
// the payment id and wait for the webhook or a confirm call.
func (s *service) resolvePaymentOutcome(ctx context.Context, purchase *models.Purchase, payment *sq.Payment, discount int64) (*CheckoutResult, error) {
	status, paymentID := paymentFacts(payment)
	switch status {
	case paymentStatusCompleted:
		var gatewayFee *int64
		if fee, ok := square.ProcessingFeeCents(payment); ok {
			gatewayFee = &fee
		}
		settled, err := s.settlement.SettlePaid(ctx, settlement.SettlePaidInput{
			PurchaseID:        purchase.ID,
			ProviderPaymentID: paymentID,
			ProcessorFeeCents: gatewayFee,
			PaidAt:            time.Now().UTC(),
		})
		if err != nil {
			return nil, err
		}
		return &CheckoutResult{
			Purchase:      settled.Purchase,
			Entitlement:   settled.Entitlement,
			RawToken:      settled.RawToken,
			DiscountCents: discount,
			PaymentStatus: paymentStatusCompleted,
		}, nil

	case paymentStatusFailed, paymentStatusCanceled:
		failed, _, err := s.settlement.SettleFailed(ctx, settlement.SettleFailedInput{
			PurchaseID: purchase.ID,
			FailedAt:   time.Now().UTC(),
			Reason:     "gateway reported " + strings.ToLower(status),
		})
		if err != nil {
			return nil, err
		}
		return &CheckoutResult{
			Purchase:      failed,
			DiscountCents: discount,
			PaymentStatus: status,
		}, nil

	default:
		if paymentID != "" && purchase.ProviderPaymentID == nil {
			providerPaymentID := paymentID
			purchase.ProviderPaymentID = &providerPaymentID
			if err := s.purchaseRepo.Update(ctx, purchase); err != nil {
				return nil, err
			}
		}
		if status == "" {
			status = paymentStatusPending
		}
		return &CheckoutResult{
			Purchase:      purchase,
			DiscountCents: discount,
			PaymentStatus: status,
		}, nil
	}
}

func (s *service) resolveCurrency(gameCurrency enums.Currency) (enums.Currency, error) {
	currency := gameCurrency
	if currency == "" {
		currency = enums.Currency(strings.ToUpper(strings.TrimSpace(s.cfg.DefaultCurrency)))
	}
	if currency == "" {
		currency = enums.CurrencyUSD
	}
	if !currency.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported currency %q", currency))
	}
	return currency, nil
}

func paymentFacts(payment *sq.Payment) (status, paymentID string) {
	if payment == nil {
		return "", ""
	}
	if payment.Status != nil {
		status = strings.ToUpper(strings.TrimSpace(*payment.Status))
	}
	if payment.ID != nil {
		paymentID = *payment.ID
	}
	return status, paymentID
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
