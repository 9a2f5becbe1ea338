package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/streampass/streampass-backend/internal/analytics/types"
	"github.com/streampass/streampass-backend/pkg/enums"
	"github.com/streampass/streampass-backend/pkg/logger"
	"github.com/streampass/streampass-backend/pkg/outbox/payloads"
)

type factWriter interface {
	InsertPlaybackFact(ctx context.Context, row types.PlaybackFactRow) error
}

// Router maps decoded envelopes to BigQuery rows. Event types without a
// handler are acked and skipped; the purchase lifecycle events on the
// same topics are consumed elsewhere.
type Router struct {
	writer factWriter
	logg   *logger.Logger
}

// NewRouter builds the analytics event router.
func NewRouter(writer factWriter, logg *logger.Logger) (*Router, error) {
	if writer == nil {
		return nil, errors.New("analytics writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Router{writer: writer, logg: logg}, nil
}

// Handle routes one envelope. Unknown event types are not errors.
func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	switch envelope.EventType {
	case enums.EventPlaybackEnded:
		return r.handlePlaybackEnded(ctx, envelope)
	default:
		r.logg.Info(r.logg.WithField(ctx, "event_type", string(envelope.EventType)), "no analytics handler for event type")
		return nil
	}
}

func (r *Router) handlePlaybackEnded(ctx context.Context, envelope types.Envelope) error {
	var payload payloads.PlaybackEndedEvent
	if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
		return fmt.Errorf("decode playback_ended payload: %w", err)
	}

	row := types.PlaybackFactRow{
		EventID:          envelope.EventID,
		OccurredAt:       envelope.OccurredAt,
		SessionID:        payload.SessionID.String(),
		EntitlementID:    payload.EntitlementID.String(),
		StartedAt:        payload.StartedAt,
		EndedAt:          payload.EndedAt,
		TotalWatchMs:     payload.TotalWatchMs,
		TotalBufferMs:    payload.TotalBufferMs,
		BufferEvents:     int64(payload.BufferEvents),
		FatalErrors:      int64(payload.FatalErrors),
		StartupLatencyMs: payload.StartupLatencyMs,
	}
	return r.writer.InsertPlaybackFact(ctx, row)
}
