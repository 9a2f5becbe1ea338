package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/streampass/streampass-backend/api/responses"
	squarewebhook "github.com/streampass/streampass-backend/internal/webhooks/square"
	pkgerrors "github.com/streampass/streampass-backend/pkg/errors"
	"github.com/streampass/streampass-backend/pkg/logger"
)

type SquareWebhookService interface {
	HandleEvent(ctx context.Context, event *squarewebhook.WebhookEvent) error
}

type squareClient interface {
	SigningSecret() string
}

// SquareWebhook receives Square payment and refund notifications. The
// service behind it deduplicates deliveries, so redeliveries ack with
// 200 without reprocessing.
func SquareWebhook(svc SquareWebhookService, client squareClient, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "square client unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get("Square-Signature")
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "square signature missing"))
			return
		}

		if !validateSquareSignature(payload, client.SigningSecret(), sigHeader) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "invalid square signature"))
			return
		}

		var event squarewebhook.WebhookEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode event"))
			return
		}

		if err := svc.HandleEvent(ctx, &event); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}

func validateSquareSignature(payload []byte, secret, header string) bool {
	if header == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}
