package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/streampass/streampass-backend/api/responses"
	"github.com/streampass/streampass-backend/api/validators"
	playbacksvc "github.com/streampass/streampass-backend/internal/playback"
	"github.com/streampass/streampass-backend/pkg/db/models"
	pkgerrors "github.com/streampass/streampass-backend/pkg/errors"
	"github.com/streampass/streampass-backend/pkg/logger"
)

// PlaybackStart opens a playback session for a valid entitlement token.
func PlaybackStart(svc playbacksvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "playback service unavailable"))
			return
		}

		var payload startPlaybackRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.StartSession(r.Context(), playbacksvc.StartSessionInput{
			RawToken:         payload.Token,
			StartupLatencyMs: payload.StartupLatencyMs,
			Now:              time.Now().UTC(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newPlaybackSessionResponse(session))
	}
}

// PlaybackEnd closes a session with its final telemetry. Ending an
// already ended session replays the stored result.
func PlaybackEnd(svc playbacksvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "playback service unavailable"))
			return
		}

		sessionID, err := parseUUIDParam(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload endPlaybackRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, _, err := svc.EndSession(r.Context(), playbacksvc.EndSessionInput{
			SessionID:        sessionID,
			TotalWatchMs:     payload.TotalWatchMs,
			TotalBufferMs:    payload.TotalBufferMs,
			BufferEvents:     payload.BufferEvents,
			FatalErrors:      payload.FatalErrors,
			StartupLatencyMs: payload.StartupLatencyMs,
			EndedAt:          time.Now().UTC(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newPlaybackSessionResponse(session))
	}
}

type startPlaybackRequest struct {
	Token            string `json:"token" validate:"required,len=64,hexadecimal"`
	StartupLatencyMs *int64 `json:"startup_latency_ms,omitempty" validate:"omitempty,min=0"`
}

type endPlaybackRequest struct {
	TotalWatchMs     int64  `json:"total_watch_ms" validate:"min=0"`
	TotalBufferMs    int64  `json:"total_buffer_ms" validate:"min=0"`
	BufferEvents     int    `json:"buffer_events" validate:"min=0"`
	FatalErrors      int    `json:"fatal_errors" validate:"min=0"`
	StartupLatencyMs *int64 `json:"startup_latency_ms,omitempty" validate:"omitempty,min=0"`
}

type playbackSessionResponse struct {
	SessionID     uuid.UUID  `json:"session_id"`
	EntitlementID uuid.UUID  `json:"entitlement_id"`
	State         string     `json:"state"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	TotalWatchMs  int64      `json:"total_watch_ms"`
	TotalBufferMs int64      `json:"total_buffer_ms"`
	BufferEvents  int        `json:"buffer_events"`
	FatalErrors   int        `json:"fatal_errors"`
}

func newPlaybackSessionResponse(session *models.PlaybackSession) playbackSessionResponse {
	if session == nil {
		return playbackSessionResponse{}
	}
	return playbackSessionResponse{
		SessionID:     session.ID,
		EntitlementID: session.EntitlementID,
		State:         string(session.State),
		StartedAt:     session.StartedAt,
		EndedAt:       session.EndedAt,
		TotalWatchMs:  session.TotalWatchMs,
		TotalBufferMs: session.TotalBufferMs,
		BufferEvents:  session.BufferEvents,
		FatalErrors:   session.FatalErrors,
	}
}
