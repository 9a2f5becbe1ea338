package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/streampass/streampass-backend/api/responses"
	pkgerrors "github.com/streampass/streampass-backend/pkg/errors"
	"github.com/streampass/streampass-backend/pkg/logger"
)

type contextKey string

const (
	ctxViewerID       contextKey = "viewer_id"
	ctxOwnerAccountID contextKey = "owner_account_id"
)

const (
	viewerIDHeader       = "X-Viewer-Id"
	ownerAccountIDHeader = "X-Owner-Account-Id"
)

func ViewerIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxViewerID).(string); ok {
		return v
	}
	return ""
}

func OwnerAccountIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxOwnerAccountID).(string); ok {
		return v
	}
	return ""
}

// WithViewerID injects the viewer identifier into the context.
func WithViewerID(ctx context.Context, viewerID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxViewerID, viewerID)
}

// WithOwnerAccountID injects the owner account identifier into the context.
func WithOwnerAccountID(ctx context.Context, ownerAccountID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxOwnerAccountID, ownerAccountID)
}

// ViewerContext seeds the request context from the identity header the
// edge proxy injects after authenticating the viewer.
func ViewerContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := parseIdentityHeader(r, viewerIDHeader)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := WithViewerID(r.Context(), id.String())
			if logg != nil {
				ctx = logg.WithViewerID(ctx, id.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OwnerContext seeds the request context from the owner account header
// the edge proxy injects for seller-facing routes.
func OwnerContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := parseIdentityHeader(r, ownerAccountIDHeader)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := WithOwnerAccountID(r.Context(), id.String())
			if logg != nil {
				ctx = logg.WithField(ctx, "owner_account_id", id.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseIdentityHeader(r *http.Request, header string) (uuid.UUID, error) {
	raw := r.Header.Get(header)
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid identity header")
	}
	return id, nil
}
