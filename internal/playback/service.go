package playback

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/streampass/streampass-backend/pkg/db/models"
	"github.com/streampass/streampass-backend/pkg/enums"
	pkgerrors "github.com/streampass/streampass-backend/pkg/errors"
	"github.com/streampass/streampass-backend/pkg/outbox"
	"github.com/streampass/streampass-backend/pkg/outbox/payloads"
)

// Service tracks viewing sessions. A session opens only against a token
// that still validates, and closes exactly once; the close writes the
// telemetry row and queues the analytics event in the same transaction.
type Service interface {
	StartSession(ctx context.Context, input StartSessionInput) (*models.PlaybackSession, error)
	EndSession(ctx context.Context, input EndSessionInput) (*models.PlaybackSession, bool, error)
	Get(ctx context.Context, id uuid.UUID) (*models.PlaybackSession, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// TokenValidator resolves a raw entitlement token to its active
// entitlement. Satisfied by entitlements.Service.
type TokenValidator interface {
	Validate(ctx context.Context, rawToken string) (*models.Entitlement, error)
}

// ServiceParams collects the dependencies a playback service needs.
type ServiceParams struct {
	Repo         Repository
	Entitlements TokenValidator
	Outbox       eventEmitter
	Tx           txRunner
}

// StartSessionInput opens a session for the holder of a raw token.
type StartSessionInput struct {
	RawToken         string
	StartupLatencyMs *int64
	Now              time.Time
}

// EndSessionInput closes a session with its aggregated telemetry.
type EndSessionInput struct {
	SessionID        uuid.UUID
	TotalWatchMs     int64
	TotalBufferMs    int64
	BufferEvents     int
	FatalErrors      int
	StartupLatencyMs *int64
	EndedAt          time.Time
}

type service struct {
	repo         Repository
	entitlements TokenValidator
	outbox       eventEmitter
	tx           txRunner
}

// NewService wires a playback service from its dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("playback repository required")
	}
	if params.Entitlements == nil {
		return nil, fmt.Errorf("entitlement service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:         params.Repo,
		entitlements: params.Entitlements,
		outbox:       params.Outbox,
		tx:           params.Tx,
	}, nil
}

// StartSession re-validates the token before opening. A token that was
// revoked or expired since issue cannot open new sessions.
func (s *service) StartSession(ctx context.Context, input StartSessionInput) (*models.PlaybackSession, error) {
	entitlement, err := s.entitlements.Validate(ctx, input.RawToken)
	if err != nil {
		return nil, err
	}
	if input.StartupLatencyMs != nil && *input.StartupLatencyMs < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "startup latency must be non-negative")
	}
	now := input.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	session := &models.PlaybackSession{
		EntitlementID:    entitlement.ID,
		State:            enums.PlaybackSessionActive,
		StartedAt:        now,
		StartupLatencyMs: input.StartupLatencyMs,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// EndSession closes the session once. The second return value reports
// whether this call performed the close; a repeat returns the stored row
// untouched.
func (s *service) EndSession(ctx context.Context, input EndSessionInput) (*models.PlaybackSession, bool, error) {
	if input.SessionID == uuid.Nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	session, err := s.repo.GetByID(ctx, input.SessionID)
	if err != nil {
		return nil, false, err
	}
	if session == nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeNotFound, "playback session not found")
	}
	if session.State == enums.PlaybackSessionEnded {
		return session, false, nil
	}

	if input.TotalWatchMs < 0 || input.TotalBufferMs < 0 {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "telemetry durations must be non-negative")
	}
	if input.BufferEvents < 0 || input.FatalErrors < 0 {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "telemetry counters must be non-negative")
	}
	if input.TotalBufferMs > input.TotalWatchMs {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "buffered time cannot exceed watched time")
	}

	endedAt := input.EndedAt
	if endedAt.IsZero() {
		endedAt = time.Now().UTC()
	}
	if endedAt.Before(session.StartedAt) {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "session cannot end before it started")
	}

	session.State = enums.PlaybackSessionEnded
	session.EndedAt = &endedAt
	session.TotalWatchMs = input.TotalWatchMs
	session.TotalBufferMs = input.TotalBufferMs
	session.BufferEvents = input.BufferEvents
	session.FatalErrors = input.FatalErrors
	if input.StartupLatencyMs != nil {
		session.StartupLatencyMs = input.StartupLatencyMs
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Update(ctx, session); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPlaybackEnded,
			AggregateType: enums.AggregatePlaybackSession,
			AggregateID:   session.ID,
			Version:       1,
			OccurredAt:    endedAt,
			Data: payloads.PlaybackEndedEvent{
				SessionID:        session.ID,
				EntitlementID:    session.EntitlementID,
				StartedAt:        session.StartedAt,
				EndedAt:          endedAt,
				TotalWatchMs:     session.TotalWatchMs,
				TotalBufferMs:    session.TotalBufferMs,
				BufferEvents:     session.BufferEvents,
				FatalErrors:      session.FatalErrors,
				StartupLatencyMs: session.StartupLatencyMs,
			},
		})
	})
	if err != nil {
		return nil, false, err
	}
	return session, true, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.PlaybackSession, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "playback session not found")
	}
	return session, nil
}
