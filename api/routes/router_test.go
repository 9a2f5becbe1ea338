package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	checkoutsvc "github.com/streampass/streampass-backend/internal/checkout"
	couponsvc "github.com/streampass/streampass-backend/internal/coupons"
	entitlementsvc "github.com/streampass/streampass-backend/internal/entitlements"
	gamesvc "github.com/streampass/streampass-backend/internal/games"
	ledgersvc "github.com/streampass/streampass-backend/internal/ledger"
	playbacksvc "github.com/streampass/streampass-backend/internal/playback"
	purchasesvc "github.com/streampass/streampass-backend/internal/purchases"
	"github.com/streampass/streampass-backend/pkg/config"
	"github.com/streampass/streampass-backend/pkg/db/models"
	"github.com/streampass/streampass-backend/pkg/enums"
	pkgerrors "github.com/streampass/streampass-backend/pkg/errors"
	"github.com/streampass/streampass-backend/pkg/logger"
	"github.com/streampass/streampass-backend/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubGameService struct {
	game *models.Game
}

func (s stubGameService) Create(ctx context.Context, input gamesvc.CreateGameInput) (*models.Game, error) {
	return &models.Game{ID: uuid.New(), OwnerAccountID: input.OwnerAccountID, Title: input.Title, PriceCents: input.PriceCents, Currency: enums.CurrencyUSD}, nil
}

func (s stubGameService) Get(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	if s.game != nil && s.game.ID == id {
		return s.game, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "game not found")
}

func (s stubGameService) ListByOwner(ctx context.Context, ownerAccountID uuid.UUID, params pagination.Params) (*gamesvc.GamePage, error) {
	return &gamesvc.GamePage{}, nil
}

type stubCheckoutService struct {
	result *checkoutsvc.CheckoutResult
}

func (s stubCheckoutService) Start(ctx context.Context, input checkoutsvc.StartCheckoutInput) (*checkoutsvc.CheckoutResult, error) {
	if s.result == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway unavailable")
	}
	return s.result, nil
}

func (s stubCheckoutService) Confirm(ctx context.Context, purchaseID uuid.UUID) (*checkoutsvc.CheckoutResult, error) {
	if s.result == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
	}
	return s.result, nil
}

type stubPurchaseService struct{}

func (stubPurchaseService) Create(ctx context.Context, input purchasesvc.CreatePurchaseInput) (*models.Purchase, error) {
	panic("unimplemented")
}

func (stubPurchaseService) Get(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
}

func (stubPurchaseService) GetByProviderPaymentID(ctx context.Context, providerPaymentID string) (*models.Purchase, error) {
	panic("unimplemented")
}

func (stubPurchaseService) MarkPaid(ctx context.Context, tx *gorm.DB, input purchasesvc.MarkPaidInput) (*models.Purchase, bool, error) {
	panic("unimplemented")
}

func (stubPurchaseService) MarkFailed(ctx context.Context, tx *gorm.DB, purchaseID uuid.UUID, failedAt time.Time) (*models.Purchase, bool, error) {
	panic("unimplemented")
}

func (stubPurchaseService) MarkRefunded(ctx context.Context, tx *gorm.DB, purchaseID uuid.UUID, refundedAt time.Time) (*models.Purchase, bool, error) {
	panic("unimplemented")
}

type stubCouponService struct{}

func (stubCouponService) Create(ctx context.Context, input couponsvc.CreateCouponInput) (*models.CouponCode, error) {
	panic("unimplemented")
}

func (stubCouponService) Validate(ctx context.Context, input couponsvc.ValidateCouponInput) (*couponsvc.Quote, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon code not found")
}

func (stubCouponService) Apply(ctx context.Context, tx *gorm.DB, input couponsvc.ApplyCouponInput) (*models.CouponRedemption, error) {
	panic("unimplemented")
}

func (stubCouponService) Disable(ctx context.Context, couponID uuid.UUID) error {
	panic("unimplemented")
}

type stubEntitlementService struct{}

func (stubEntitlementService) Issue(ctx context.Context, tx *gorm.DB, input entitlementsvc.IssueInput) (*entitlementsvc.IssueResult, error) {
	panic("unimplemented")
}

func (stubEntitlementService) Validate(ctx context.Context, rawToken string) (*models.Entitlement, error) {
	return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "entitlement token rejected")
}

func (stubEntitlementService) GetByPurchaseID(ctx context.Context, purchaseID uuid.UUID) (*models.Entitlement, error) {
	panic("unimplemented")
}

func (stubEntitlementService) RevokeForPurchase(ctx context.Context, tx *gorm.DB, purchaseID uuid.UUID) (bool, error) {
	panic("unimplemented")
}

type stubPlaybackService struct{}

func (stubPlaybackService) StartSession(ctx context.Context, input playbacksvc.StartSessionInput) (*models.PlaybackSession, error) {
	panic("unimplemented")
}

func (stubPlaybackService) EndSession(ctx context.Context, input playbacksvc.EndSessionInput) (*models.PlaybackSession, bool, error) {
	panic("unimplemented")
}

func (stubPlaybackService) Get(ctx context.Context, id uuid.UUID) (*models.PlaybackSession, error) {
	panic("unimplemented")
}

type stubLedgerService struct{}

func (stubLedgerService) RecordPurchaseEntries(ctx context.Context, tx *gorm.DB, purchase *models.Purchase) (*ledgersvc.Posting, error) {
	panic("unimplemented")
}

func (stubLedgerService) RecordRefundEntries(ctx context.Context, tx *gorm.DB, input ledgersvc.RecordRefundEntriesInput) (*ledgersvc.Posting, error) {
	panic("unimplemented")
}

func (stubLedgerService) ListForPurchase(ctx context.Context, purchaseID uuid.UUID) ([]models.LedgerEntry, error) {
	return nil, nil
}

func (stubLedgerService) OwnerBalance(ctx context.Context, ownerAccountID uuid.UUID) (int64, error) {
	return 0, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
	}
}

func newTestRouter(checkout stubCheckoutService) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(
		testConfig(),
		logg,
		stubPinger{}, // db.Pinger
		nil,          // *redis.Client
		stubPinger{}, // bigquery.Pinger
		stubGameService{},
		checkout,
		stubPurchaseService{},
		stubCouponService{},
		stubEntitlementService{},
		stubPlaybackService{},
		stubLedgerService{},
		nil, // *square.Client
		nil, // *squarewebhook.Service
	)
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(stubCheckoutService{})

	for _, path := range []string{"/health/live", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s returned %d, want 200", path, resp.Code)
		}
	}
}

func TestViewerGroupRejectsMissingIdentity(t *testing.T) {
	router := newTestRouter(stubCheckoutService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without viewer header got %d", resp.Code)
	}
}

func TestViewerGroupAcceptsIdentityHeader(t *testing.T) {
	purchase := &models.Purchase{
		ID:       uuid.New(),
		GameID:   uuid.New(),
		Status:   enums.PurchaseStatusPaid,
		Currency: enums.CurrencyUSD,
	}
	router := newTestRouter(stubCheckoutService{result: &checkoutsvc.CheckoutResult{Purchase: purchase, PaymentStatus: "COMPLETED"}})

	body := `{"game_id":"` + purchase.GameID.String() + `","viewer_email":"fan@example.com","source_id":"cnon:ok"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	req.Header.Set("X-Viewer-Id", uuid.NewString())
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestOwnerGroupRejectsMissingIdentity(t *testing.T) {
	router := newTestRouter(stubCheckoutService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/owner/balance", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without owner header got %d", resp.Code)
	}

	ok := httptest.NewRequest(http.MethodGet, "/api/v1/owner/balance", nil)
	ok.Header.Set("X-Owner-Account-Id", uuid.NewString())
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, ok)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 with owner header got %d", resp.Code)
	}
}

func TestEntitlementValidateRejectsUniformly(t *testing.T) {
	router := newTestRouter(stubCheckoutService{})

	body := `{"token":"` + strings.Repeat("f", 64) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/entitlements/validate", strings.NewReader(body))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown token got %d", resp.Code)
	}
}

func TestPublicPing(t *testing.T) {
	router := newTestRouter(stubCheckoutService{})

	req := httptest.NewRequest(http.MethodGet, "/api/public/ping", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}
