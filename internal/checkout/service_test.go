package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	"gorm.io/gorm"

	"github.com/streampass/streampass-backend/internal/coupons"
	"github.com/streampass/streampass-backend/internal/purchases"
	"github.com/streampass/streampass-backend/internal/settlement"
	"github.com/streampass/streampass-backend/pkg/db/models"
	"github.com/streampass/streampass-backend/pkg/enums"
	pkgerrors "github.com/streampass/streampass-backend/pkg/errors"
	"github.com/streampass/streampass-backend/pkg/square"
)

type fakePurchaseRepo struct {
	byID map[uuid.UUID]*models.Purchase
}

func (f *fakePurchaseRepo) WithTx(tx *gorm.DB) purchases.Repository { return f }

func (f *fakePurchaseRepo) Create(_ context.Context, purchase *models.Purchase) error {
	if purchase.ID == uuid.Nil {
		purchase.ID = uuid.New()
	}
	stored := *purchase
	f.byID[purchase.ID] = &stored
	return nil
}

func (f *fakePurchaseRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Purchase, error) {
	if stored, ok := f.byID[id]; ok {
		clone := *stored
		return &clone, nil
	}
	return nil, nil
}

func (f *fakePurchaseRepo) GetByProviderPaymentID(_ context.Context, providerPaymentID string) (*models.Purchase, error) {
	for _, stored := range f.byID {
		if stored.ProviderPaymentID != nil && *stored.ProviderPaymentID == providerPaymentID {
			clone := *stored
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakePurchaseRepo) Update(_ context.Context, purchase *models.Purchase) error {
	stored := *purchase
	f.byID[purchase.ID] = &stored
	return nil
}

func (f *fakePurchaseRepo) ListByViewerAndGame(_ context.Context, viewerID, gameID uuid.UUID) ([]models.Purchase, error) {
	return nil, nil
}

type stubGames struct {
	game *models.Game
}

func (s *stubGames) GetByID(_ context.Context, _ uuid.UUID) (*models.Game, error) {
	return s.game, nil
}

type stubCoupons struct {
	quote   *coupons.Quote
	err     error
	applied []coupons.ApplyCouponInput
}

func (s *stubCoupons) Validate(_ context.Context, _ coupons.ValidateCouponInput) (*coupons.Quote, error) {
	return s.quote, s.err
}

func (s *stubCoupons) Apply(_ context.Context, _ *gorm.DB, input coupons.ApplyCouponInput) (*models.CouponRedemption, error) {
	s.applied = append(s.applied, input)
	return &models.CouponRedemption{
		CouponID:      s.quote.Coupon.ID,
		PurchaseID:    input.PurchaseID,
		ViewerID:      input.ViewerID,
		DiscountCents: s.quote.DiscountCents,
	}, nil
}

type stubGateway struct {
	payment    *sq.Payment
	paymentErr error
	fetched    *sq.Payment
	charges    []int64
}

func (s *stubGateway) EnsureCustomer(_ context.Context, _ square.CustomerCreateParams) (*sq.Customer, error) {
	id := "cust_1"
	return &sq.Customer{ID: &id}, nil
}

func (s *stubGateway) CreatePayment(_ context.Context, params square.PaymentCreateParams) (*sq.Payment, error) {
	if s.paymentErr != nil {
		return nil, s.paymentErr
	}
	s.charges = append(s.charges, params.AmountCents)
	return s.payment, nil
}

func (s *stubGateway) GetPayment(_ context.Context, _ string) (*sq.Payment, error) {
	return s.fetched, nil
}

type stubSettler struct {
	repo        *fakePurchaseRepo
	paidCalls   []settlement.SettlePaidInput
	failedCalls []settlement.SettleFailedInput
	rawToken    string
}

func (s *stubSettler) SettlePaid(ctx context.Context, input settlement.SettlePaidInput) (*settlement.SettlePaidResult, error) {
	s.paidCalls = append(s.paidCalls, input)
	purchase, _ := s.repo.GetByID(ctx, input.PurchaseID)
	purchase.Status = enums.PurchaseStatusPaid
	return &settlement.SettlePaidResult{
		Purchase:    purchase,
		Entitlement: &models.Entitlement{ID: uuid.New(), PurchaseID: purchase.ID},
		RawToken:    s.rawToken,
		Settled:     true,
	}, nil
}

func (s *stubSettler) SettleFailed(ctx context.Context, input settlement.SettleFailedInput) (*models.Purchase, bool, error) {
	s.failedCalls = append(s.failedCalls, input)
	purchase, _ := s.repo.GetByID(ctx, input.PurchaseID)
	if purchase != nil {
		purchase.Status = enums.PurchaseStatusFailed
	}
	return purchase, true, nil
}

type stubTxRunner struct{}

func (s *stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type harness struct {
	svc     Service
	repo    *fakePurchaseRepo
	coupons *stubCoupons
	gateway *stubGateway
	settler *stubSettler
}

func newHarness(t *testing.T, game *models.Game, couponStub *stubCoupons, gateway *stubGateway) *harness {
	t.Helper()
	repo := &fakePurchaseRepo{byID: map[uuid.UUID]*models.Purchase{}}
	settler := &stubSettler{repo: repo, rawToken: "raw-token"}
	if couponStub == nil {
		couponStub = &stubCoupons{}
	}
	svc, err := NewService(ServiceParams{
		Config:       testCheckoutConfig(),
		Tx:           &stubTxRunner{},
		Games:        &stubGames{game: game},
		PurchaseRepo: repo,
		Coupons:      couponStub,
		Gateway:      gateway,
		Settlement:   settler,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &harness{svc: svc, repo: repo, coupons: couponStub, gateway: gateway, settler: settler}
}

func liveGame(price int64) *models.Game {
	end := time.Now().UTC().Add(2 * time.Hour)
	return &models.Game{
		ID:             uuid.New(),
		OwnerAccountID: uuid.New(),
		Title:          "Friday Night Semifinal",
		PriceCents:     price,
		Currency:       enums.CurrencyUSD,
		ScheduledEnd:   &end,
	}
}

func startInput(gameID uuid.UUID) StartCheckoutInput {
	return StartCheckoutInput{
		GameID:      gameID,
		ViewerID:    uuid.New(),
		ViewerEmail: "viewer@example.com",
		SourceID:    "cnon:card-nonce",
	}
}

func paymentWithStatus(id, status string) *sq.Payment {
	return &sq.Payment{ID: &id, Status: &status}
}

func TestStartSettlesCompletedPayment(t *testing.T) {
	game := liveGame(499)
	gateway := &stubGateway{payment: paymentWithStatus("pay_1", "COMPLETED")}
	h := newHarness(t, game, nil, gateway)

	result, err := h.svc.Start(context.Background(), startInput(game.ID))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if result.PaymentStatus != "COMPLETED" {
		t.Fatalf("payment status = %s", result.PaymentStatus)
	}
	if result.RawToken != "raw-token" {
		t.Fatal("completed checkout should hand back the entitlement token")
	}
	if len(gateway.charges) != 1 || gateway.charges[0] != 499 {
		t.Fatalf("gateway charged %v, want [499]", gateway.charges)
	}
	if len(h.settler.paidCalls) != 1 || h.settler.paidCalls[0].ProviderPaymentID != "pay_1" {
		t.Fatalf("settlement calls = %+v", h.settler.paidCalls)
	}
	if result.Purchase.PlatformFeeCents != 49 || result.Purchase.ProcessorFeeCents != 44 {
		t.Fatalf("fee split = %d/%d, want 49/44", result.Purchase.PlatformFeeCents, result.Purchase.ProcessorFeeCents)
	}
}

func TestStartAppliesCouponBeforeCharging(t *testing.T) {
	game := liveGame(2000)
	coupon := &models.CouponCode{ID: uuid.New(), Code: "SAVE25", DiscountType: enums.CouponDiscountPercentage, DiscountValue: 25}
	couponStub := &stubCoupons{quote: &coupons.Quote{Coupon: coupon, DiscountCents: 500}}
	gateway := &stubGateway{payment: paymentWithStatus("pay_1", "COMPLETED")}
	h := newHarness(t, game, couponStub, gateway)

	input := startInput(game.ID)
	input.CouponCode = "SAVE25"
	result, err := h.svc.Start(context.Background(), input)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if result.DiscountCents != 500 {
		t.Fatalf("discount = %d, want 500", result.DiscountCents)
	}
	if len(gateway.charges) != 1 || gateway.charges[0] != 1500 {
		t.Fatalf("gateway charged %v, want discounted [1500]", gateway.charges)
	}
	if len(couponStub.applied) != 1 {
		t.Fatalf("coupon applied %d times, want 1", len(couponStub.applied))
	}
	if couponStub.applied[0].PurchaseID != result.Purchase.ID {
		t.Fatal("redemption not bound to the purchase")
	}
	if result.Purchase.CouponID == nil || *result.Purchase.CouponID != coupon.ID {
		t.Fatal("purchase not linked to the coupon")
	}
}

func TestStartMarksFailedWhenGatewayErrors(t *testing.T) {
	game := liveGame(1000)
	gateway := &stubGateway{paymentErr: pkgerrors.New(pkgerrors.CodeDependency, "square unavailable")}
	h := newHarness(t, game, nil, gateway)

	_, err := h.svc.Start(context.Background(), startInput(game.ID))
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if len(h.settler.failedCalls) != 1 {
		t.Fatalf("expected 1 failed settlement, got %d", len(h.settler.failedCalls))
	}
}

func TestStartRecordsPendingPayment(t *testing.T) {
	game := liveGame(1000)
	gateway := &stubGateway{payment: paymentWithStatus("pay_9", "PENDING")}
	h := newHarness(t, game, nil, gateway)

	result, err := h.svc.Start(context.Background(), startInput(game.ID))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if result.PaymentStatus != "PENDING" {
		t.Fatalf("payment status = %s, want PENDING", result.PaymentStatus)
	}
	if result.RawToken != "" {
		t.Fatal("pending checkout must not return a token")
	}
	stored, _ := h.repo.GetByID(context.Background(), result.Purchase.ID)
	if stored.ProviderPaymentID == nil || *stored.ProviderPaymentID != "pay_9" {
		t.Fatal("pending payment id not recorded")
	}
	if len(h.settler.paidCalls) != 0 {
		t.Fatal("pending payment must not settle")
	}
}

func TestConfirmSettlesWhenGatewayCompleted(t *testing.T) {
	game := liveGame(1000)
	gateway := &stubGateway{payment: paymentWithStatus("pay_9", "PENDING")}
	h := newHarness(t, game, nil, gateway)

	started, err := h.svc.Start(context.Background(), startInput(game.ID))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	gateway.fetched = paymentWithStatus("pay_9", "COMPLETED")
	confirmed, err := h.svc.Confirm(context.Background(), started.Purchase.ID)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if confirmed.PaymentStatus != "COMPLETED" {
		t.Fatalf("payment status = %s, want COMPLETED", confirmed.PaymentStatus)
	}
	if len(h.settler.paidCalls) != 1 {
		t.Fatalf("expected settlement on confirm, got %d calls", len(h.settler.paidCalls))
	}
}

func TestConfirmWithoutPaymentAttempt(t *testing.T) {
	game := liveGame(1000)
	h := newHarness(t, game, nil, &stubGateway{})

	purchase := &models.Purchase{GameID: game.ID, ViewerID: uuid.New(), Status: enums.PurchaseStatusCreated}
	if err := h.repo.Create(context.Background(), purchase); err != nil {
		t.Fatalf("seed purchase: %v", err)
	}
	_, err := h.svc.Confirm(context.Background(), purchase.ID)
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestStartRejectsEndedGame(t *testing.T) {
	game := liveGame(1000)
	past := time.Now().UTC().Add(-time.Hour)
	game.ScheduledEnd = &past
	h := newHarness(t, game, nil, &stubGateway{})

	_, err := h.svc.Start(context.Background(), startInput(game.ID))
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStartRejectsFreeGame(t *testing.T) {
	game := liveGame(0)
	h := newHarness(t, game, nil, &stubGateway{})

	_, err := h.svc.Start(context.Background(), startInput(game.ID))
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
