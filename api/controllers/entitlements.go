package controllers

import (
	"net/http"

	"github.com/streampass/streampass-backend/api/responses"
	"github.com/streampass/streampass-backend/api/validators"
	entitlementsvc "github.com/streampass/streampass-backend/internal/entitlements"
	pkgerrors "github.com/streampass/streampass-backend/pkg/errors"
	"github.com/streampass/streampass-backend/pkg/logger"
)

// EntitlementValidate checks an access token. Every rejection reads the
// same so callers cannot probe which tokens exist.
func EntitlementValidate(svc entitlementsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "entitlement service unavailable"))
			return
		}

		var payload validateEntitlementRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entitlement, err := svc.Validate(r.Context(), payload.Token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, entitlementResponse{
			EntitlementID: entitlement.ID,
			ValidFrom:     entitlement.ValidFrom,
			ValidTo:       entitlement.ValidTo,
			Status:        string(entitlement.Status),
		})
	}
}

type validateEntitlementRequest struct {
	Token string `json:"token" validate:"required,len=64,hexadecimal"`
}
