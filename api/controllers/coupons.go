package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/streampass/streampass-backend/api/responses"
	"github.com/streampass/streampass-backend/api/validators"
	couponsvc "github.com/streampass/streampass-backend/internal/coupons"
	gamesvc "github.com/streampass/streampass-backend/internal/games"
	"github.com/streampass/streampass-backend/pkg/enums"
	pkgerrors "github.com/streampass/streampass-backend/pkg/errors"
	"github.com/streampass/streampass-backend/pkg/logger"
)

// CouponValidate quotes a coupon against a game's price without
// consuming a use.
func CouponValidate(coupons couponsvc.Service, games gamesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if coupons == nil || games == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}

		viewerID, err := viewerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload validateCouponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		game, err := games.Get(r.Context(), payload.GameID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := coupons.Validate(r.Context(), couponsvc.ValidateCouponInput{
			Code:           payload.Code,
			ViewerID:       viewerID,
			GameID:         game.ID,
			OwnerAccountID: game.OwnerAccountID,
			AmountCents:    game.PriceCents,
			Now:            time.Now().UTC(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, validateCouponResponse{
			Code:             quote.Coupon.Code,
			DiscountCents:    quote.DiscountCents,
			AmountCents:      game.PriceCents,
			FinalAmountCents: game.PriceCents - quote.DiscountCents,
		})
	}
}

// CouponCreate mints a coupon code scoped to the calling owner account.
func CouponCreate(coupons couponsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if coupons == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}

		ownerAccountID, err := ownerAccountIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createCouponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var validFrom time.Time
		if payload.ValidFrom != nil {
			validFrom = *payload.ValidFrom
		}

		coupon, err := coupons.Create(r.Context(), couponsvc.CreateCouponInput{
			Code:             payload.Code,
			DiscountType:     enums.CouponDiscountType(payload.DiscountType),
			DiscountValue:    payload.DiscountValue,
			OwnerAccountID:   &ownerAccountID,
			GameID:           payload.GameID,
			MaxUses:          payload.MaxUses,
			MaxUsesPerViewer: payload.MaxUsesPerViewer,
			MinPurchaseCents: payload.MinPurchaseCents,
			ValidFrom:        validFrom,
			ValidTo:          payload.ValidTo,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"coupon_id":  coupon.ID,
			"code":       coupon.Code,
			"status":     string(coupon.Status),
			"valid_from": coupon.ValidFrom,
			"valid_to":   coupon.ValidTo,
		})
	}
}

type validateCouponRequest struct {
	Code   string    `json:"code" validate:"required,max=64"`
	GameID uuid.UUID `json:"game_id" validate:"required"`
}

type validateCouponResponse struct {
	Code             string `json:"code"`
	DiscountCents    int64  `json:"discount_cents"`
	AmountCents      int64  `json:"amount_cents"`
	FinalAmountCents int64  `json:"final_amount_cents"`
}

type createCouponRequest struct {
	Code             string     `json:"code" validate:"required,max=64"`
	DiscountType     string     `json:"discount_type" validate:"required,oneof=percentage fixed_cents"`
	DiscountValue    int64      `json:"discount_value" validate:"required,min=1"`
	GameID           *uuid.UUID `json:"game_id,omitempty"`
	MaxUses          *int       `json:"max_uses,omitempty" validate:"omitempty,min=1"`
	MaxUsesPerViewer int        `json:"max_uses_per_viewer,omitempty" validate:"omitempty,min=1"`
	MinPurchaseCents *int64     `json:"min_purchase_cents,omitempty" validate:"omitempty,min=0"`
	ValidFrom        *time.Time `json:"valid_from,omitempty"`
	ValidTo          *time.Time `json:"valid_to,omitempty"`
}
