package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/streampass/streampass-backend/api/middleware"
	checkoutsvc "github.com/streampass/streampass-backend/internal/checkout"
	"github.com/streampass/streampass-backend/pkg/db/models"
	"github.com/streampass/streampass-backend/pkg/enums"
	pkgerrors "github.com/streampass/streampass-backend/pkg/errors"
)

type fakeCheckoutService struct {
	start   func(ctx context.Context, input checkoutsvc.StartCheckoutInput) (*checkoutsvc.CheckoutResult, error)
	confirm func(ctx context.Context, purchaseID uuid.UUID) (*checkoutsvc.CheckoutResult, error)
}

func (f *fakeCheckoutService) Start(ctx context.Context, input checkoutsvc.StartCheckoutInput) (*checkoutsvc.CheckoutResult, error) {
	if f.start != nil {
		return f.start(ctx, input)
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not wired")
}

func (f *fakeCheckoutService) Confirm(ctx context.Context, purchaseID uuid.UUID) (*checkoutsvc.CheckoutResult, error) {
	if f.confirm != nil {
		return f.confirm(ctx, purchaseID)
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not wired")
}

func paidResult(gameID uuid.UUID, rawToken string) *checkoutsvc.CheckoutResult {
	purchase := &models.Purchase{
		ID:          uuid.New(),
		GameID:      gameID,
		Status:      enums.PurchaseStatusPaid,
		AmountCents: 499,
		Currency:    enums.CurrencyUSD,
	}
	result := &checkoutsvc.CheckoutResult{
		Purchase:      purchase,
		PaymentStatus: "COMPLETED",
		RawToken:      rawToken,
	}
	if rawToken != "" {
		result.Entitlement = &models.Entitlement{
			ID:         uuid.New(),
			PurchaseID: purchase.ID,
			Status:     enums.EntitlementStatusActive,
		}
	}
	return result
}

func viewerRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	return req.WithContext(middleware.WithViewerID(req.Context(), uuid.NewString()))
}

func TestCheckoutStartReturnsEntitlementToken(t *testing.T) {
	gameID := uuid.New()
	rawToken := strings.Repeat("a", 64)
	var captured checkoutsvc.StartCheckoutInput
	svc := &fakeCheckoutService{
		start: func(ctx context.Context, input checkoutsvc.StartCheckoutInput) (*checkoutsvc.CheckoutResult, error) {
			captured = input
			return paidResult(gameID, rawToken), nil
		},
	}

	body := `{"game_id":"` + gameID.String() + `","viewer_email":"fan@example.com","source_id":"cnon:card-ok"}`
	rec := httptest.NewRecorder()
	CheckoutStart(svc, nil).ServeHTTP(rec, viewerRequest(http.MethodPost, "/api/v1/checkout", body))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	if captured.GameID != gameID || captured.ViewerID == uuid.Nil {
		t.Fatalf("service received %+v", captured)
	}

	var envelope struct {
		Data checkoutResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Entitlement == nil || envelope.Data.Entitlement.Token != rawToken {
		t.Fatalf("expected raw token in response, got %+v", envelope.Data.Entitlement)
	}
}

func TestCheckoutStartRequiresViewerIdentity(t *testing.T) {
	svc := &fakeCheckoutService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	CheckoutStart(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCheckoutStartValidatesBody(t *testing.T) {
	svc := &fakeCheckoutService{}
	body := `{"game_id":"` + uuid.NewString() + `","source_id":"cnon:card-ok"}`
	rec := httptest.NewRecorder()
	CheckoutStart(svc, nil).ServeHTTP(rec, viewerRequest(http.MethodPost, "/api/v1/checkout", body))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing email, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestCheckoutConfirmParsesPurchaseID(t *testing.T) {
	purchaseID := uuid.New()
	svc := &fakeCheckoutService{
		confirm: func(ctx context.Context, id uuid.UUID) (*checkoutsvc.CheckoutResult, error) {
			if id != purchaseID {
				t.Fatalf("confirm called with %s, want %s", id, purchaseID)
			}
			return paidResult(uuid.New(), ""), nil
		},
	}

	rc := chi.NewRouteContext()
	rc.URLParams.Add("purchaseId", purchaseID.String())
	req := viewerRequest(http.MethodPost, "/api/v1/checkout/"+purchaseID.String()+"/confirm", `{}`)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	rec := httptest.NewRecorder()
	CheckoutConfirm(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestCheckoutConfirmRejectsMalformedID(t *testing.T) {
	svc := &fakeCheckoutService{}
	rc := chi.NewRouteContext()
	rc.URLParams.Add("purchaseId", "not-a-uuid")
	req := viewerRequest(http.MethodPost, "/api/v1/checkout/not-a-uuid/confirm", `{}`)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	rec := httptest.NewRecorder()
	CheckoutConfirm(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
