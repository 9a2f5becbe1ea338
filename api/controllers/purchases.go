package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/streampass/streampass-backend/api/responses"
	ledgersvc "github.com/streampass/streampass-backend/internal/ledger"
	purchasesvc "github.com/streampass/streampass-backend/internal/purchases"
	"github.com/streampass/streampass-backend/pkg/db/models"
	pkgerrors "github.com/streampass/streampass-backend/pkg/errors"
	"github.com/streampass/streampass-backend/pkg/logger"
)

// PurchaseDetail returns the viewer's own purchase. Other viewers'
// purchases read as not found, never as forbidden.
func PurchaseDetail(svc purchasesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchase service unavailable"))
			return
		}

		viewerID, err := viewerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		purchaseID, err := parseUUIDParam(r, "purchaseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		purchase, err := svc.Get(r.Context(), purchaseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if purchase.ViewerID != viewerID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found"))
			return
		}

		responses.WriteSuccess(w, newPurchaseResponse(purchase))
	}
}

// PurchaseLedger lists the ledger entries behind one of the owner's
// purchases.
func PurchaseLedger(purchases purchasesvc.Service, ledger ledgersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if purchases == nil || ledger == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		ownerAccountID, err := ownerAccountIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		purchaseID, err := parseUUIDParam(r, "purchaseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		purchase, err := purchases.Get(r.Context(), purchaseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if purchase.RecipientOwnerAccountID != ownerAccountID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found"))
			return
		}

		entries, err := ledger.ListForPurchase(r.Context(), purchaseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]ledgerEntryResponse, 0, len(entries))
		for i := range entries {
			out = append(out, newLedgerEntryResponse(&entries[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// OwnerBalance reports the owner account's net ledger position.
func OwnerBalance(ledger ledgersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ledger == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		ownerAccountID, err := ownerAccountIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := ledger.OwnerBalance(r.Context(), ownerAccountID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"owner_account_id": ownerAccountID,
			"balance_cents":    balance,
		})
	}
}

type purchaseResponse struct {
	PurchaseID    uuid.UUID  `json:"purchase_id"`
	GameID        uuid.UUID  `json:"game_id"`
	Status        string     `json:"status"`
	AmountCents   int64      `json:"amount_cents"`
	DiscountCents int64      `json:"discount_cents"`
	Currency      string     `json:"currency"`
	CouponID      *uuid.UUID `json:"coupon_id,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	FailedAt      *time.Time `json:"failed_at,omitempty"`
	RefundedAt    *time.Time `json:"refunded_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type ledgerEntryResponse struct {
	EntryID       uuid.UUID `json:"entry_id"`
	Type          string    `json:"type"`
	AmountCents   int64     `json:"amount_cents"`
	Currency      string    `json:"currency"`
	ReferenceType string    `json:"reference_type"`
	ReferenceID   uuid.UUID `json:"reference_id"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"created_at"`
}

func newPurchaseResponse(purchase *models.Purchase) purchaseResponse {
	if purchase == nil {
		return purchaseResponse{}
	}
	return purchaseResponse{
		PurchaseID:    purchase.ID,
		GameID:        purchase.GameID,
		Status:        string(purchase.Status),
		AmountCents:   purchase.AmountCents,
		DiscountCents: purchase.DiscountCents,
		Currency:      string(purchase.Currency),
		CouponID:      purchase.CouponID,
		PaidAt:        purchase.PaidAt,
		FailedAt:      purchase.FailedAt,
		RefundedAt:    purchase.RefundedAt,
		CreatedAt:     purchase.CreatedAt,
	}
}

func newLedgerEntryResponse(entry *models.LedgerEntry) ledgerEntryResponse {
	if entry == nil {
		return ledgerEntryResponse{}
	}
	return ledgerEntryResponse{
		EntryID:       entry.ID,
		Type:          string(entry.Type),
		AmountCents:   entry.AmountCents,
		Currency:      string(entry.Currency),
		ReferenceType: string(entry.ReferenceType),
		ReferenceID:   entry.ReferenceID,
		Description:   entry.Description,
		CreatedAt:     entry.CreatedAt,
	}
}
