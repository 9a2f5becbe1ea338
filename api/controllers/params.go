package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/streampass/streampass-backend/api/middleware"
	pkgerrors "github.com/streampass/streampass-backend/pkg/errors"
)

func parseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "url parameter must be a uuid").WithDetails(map[string]any{"field": name})
	}
	return id, nil
}

func viewerIDFromContext(r *http.Request) (uuid.UUID, error) {
	raw := middleware.ViewerIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid viewer identity")
	}
	return id, nil
}

func ownerAccountIDFromContext(r *http.Request) (uuid.UUID, error) {
	raw := middleware.OwnerAccountIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid owner identity")
	}
	return id, nil
}
