package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/streampass/streampass-backend/api/responses"
	"github.com/streampass/streampass-backend/api/validators"
	gamesvc "github.com/streampass/streampass-backend/internal/games"
	"github.com/streampass/streampass-backend/pkg/db/models"
	"github.com/streampass/streampass-backend/pkg/enums"
	pkgerrors "github.com/streampass/streampass-backend/pkg/errors"
	"github.com/streampass/streampass-backend/pkg/logger"
	"github.com/streampass/streampass-backend/pkg/pagination"
)

// GameCreate lists a new game under the calling owner account.
func GameCreate(svc gamesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "game service unavailable"))
			return
		}

		ownerAccountID, err := ownerAccountIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createGameRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		game, err := svc.Create(r.Context(), gamesvc.CreateGameInput{
			OwnerAccountID: ownerAccountID,
			Title:          validators.SanitizeString(payload.Title, 200),
			PriceCents:     payload.PriceCents,
			Currency:       enums.Currency(payload.Currency),
			ScheduledStart: payload.ScheduledStart,
			ScheduledEnd:   payload.ScheduledEnd,
			StreamURL:      payload.StreamURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newGameResponse(game))
	}
}

// GameList returns the calling owner account's games.
func GameList(svc gamesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "game service unavailable"))
			return
		}

		ownerAccountID, err := ownerAccountIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListByOwner(r.Context(), ownerAccountID, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]gameResponse, 0, len(page.Games))
		for i := range page.Games {
			out = append(out, newGameResponse(&page.Games[i]))
		}
		responses.WriteSuccess(w, gameListResponse{Games: out, NextCursor: page.NextCursor})
	}
}

// GameGet returns a single game by id.
func GameGet(svc gamesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "game service unavailable"))
			return
		}

		gameID, err := parseUUIDParam(r, "gameId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		game, err := svc.Get(r.Context(), gameID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newGameResponse(game))
	}
}

type createGameRequest struct {
	Title          string     `json:"title" validate:"required,max=200"`
	PriceCents     int64      `json:"price_cents" validate:"min=0"`
	Currency       string     `json:"currency" validate:"omitempty,len=3"`
	ScheduledStart *time.Time `json:"scheduled_start,omitempty"`
	ScheduledEnd   *time.Time `json:"scheduled_end,omitempty"`
	StreamURL      string     `json:"stream_url" validate:"omitempty,url"`
}

type gameListResponse struct {
	Games      []gameResponse `json:"games"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

type gameResponse struct {
	GameID         uuid.UUID  `json:"game_id"`
	OwnerAccountID uuid.UUID  `json:"owner_account_id"`
	Title          string     `json:"title"`
	PriceCents     int64      `json:"price_cents"`
	Currency       string     `json:"currency"`
	ScheduledStart *time.Time `json:"scheduled_start,omitempty"`
	ScheduledEnd   *time.Time `json:"scheduled_end,omitempty"`
	StreamURL      string     `json:"stream_url,omitempty"`
}

func newGameResponse(game *models.Game) gameResponse {
	if game == nil {
		return gameResponse{}
	}
	return gameResponse{
		GameID:         game.ID,
		OwnerAccountID: game.OwnerAccountID,
		Title:          game.Title,
		PriceCents:     game.PriceCents,
		Currency:       string(game.Currency),
		ScheduledStart: game.ScheduledStart,
		ScheduledEnd:   game.ScheduledEnd,
		StreamURL:      game.StreamURL,
	}
}
