package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/streampass/streampass-backend/api/responses"
	"github.com/streampass/streampass-backend/api/validators"
	checkoutsvc "github.com/streampass/streampass-backend/internal/checkout"
	pkgerrors "github.com/streampass/streampass-backend/pkg/errors"
	"github.com/streampass/streampass-backend/pkg/logger"
)

// CheckoutStart charges the viewer for a game and, when the gateway
// settles synchronously, returns the entitlement token in the same
// response. The raw token appears exactly once; replays go through the
// idempotency middleware instead of re-issuing it.
func CheckoutStart(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		viewerID, err := viewerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Start(r.Context(), checkoutsvc.StartCheckoutInput{
			GameID:      payload.GameID,
			ViewerID:    viewerID,
			ViewerEmail: payload.ViewerEmail,
			ViewerPhone: payload.ViewerPhone,
			CouponCode:  payload.CouponCode,
			SourceID:    payload.SourceID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newCheckoutResponse(result))
	}
}

// CheckoutConfirm re-checks the gateway for a purchase whose payment is
// still pending. It backstops lost webhooks.
func CheckoutConfirm(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		purchaseID, err := parseUUIDParam(r, "purchaseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Confirm(r.Context(), purchaseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCheckoutResponse(result))
	}
}

type checkoutRequest struct {
	GameID      uuid.UUID `json:"game_id" validate:"required"`
	ViewerEmail string    `json:"viewer_email" validate:"required,email"`
	ViewerPhone *string   `json:"viewer_phone,omitempty" validate:"omitempty,max=32"`
	CouponCode  string    `json:"coupon_code,omitempty" validate:"omitempty,max=64"`
	SourceID    string    `json:"source_id" validate:"required"`
}

type checkoutResponse struct {
	PurchaseID    uuid.UUID            `json:"purchase_id"`
	GameID        uuid.UUID            `json:"game_id"`
	Status        string               `json:"status"`
	PaymentStatus string               `json:"payment_status,omitempty"`
	AmountCents   int64                `json:"amount_cents"`
	DiscountCents int64                `json:"discount_cents"`
	Currency      string               `json:"currency"`
	Entitlement   *entitlementResponse `json:"entitlement,omitempty"`
}

type entitlementResponse struct {
	EntitlementID uuid.UUID `json:"entitlement_id"`
	Token         string    `json:"token,omitempty"`
	ValidFrom     time.Time `json:"valid_from"`
	ValidTo       time.Time `json:"valid_to"`
	Status        string    `json:"status"`
}

func newCheckoutResponse(result *checkoutsvc.CheckoutResult) checkoutResponse {
	if result == nil || result.Purchase == nil {
		return checkoutResponse{}
	}
	resp := checkoutResponse{
		PurchaseID:    result.Purchase.ID,
		GameID:        result.Purchase.GameID,
		Status:        string(result.Purchase.Status),
		PaymentStatus: result.PaymentStatus,
		AmountCents:   result.Purchase.AmountCents,
		DiscountCents: result.Purchase.DiscountCents,
		Currency:      string(result.Purchase.Currency),
	}
	if result.Entitlement != nil {
		resp.Entitlement = &entitlementResponse{
			EntitlementID: result.Entitlement.ID,
			Token:         result.RawToken,
			ValidFrom:     result.Entitlement.ValidFrom,
			ValidTo:       result.Entitlement.ValidTo,
			Status:        string(result.Entitlement.Status),
		}
	}
	return resp
}
