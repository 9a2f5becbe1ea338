package games

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/streampass/streampass-backend/pkg/db/models"
	"github.com/streampass/streampass-backend/pkg/enums"
	pkgerrors "github.com/streampass/streampass-backend/pkg/errors"
	"github.com/streampass/streampass-backend/pkg/pagination"
)

// Service exposes game catalog operations.
type Service interface {
	Create(ctx context.Context, input CreateGameInput) (*models.Game, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Game, error)
	ListByOwner(ctx context.Context, ownerAccountID uuid.UUID, params pagination.Params) (*GamePage, error)
}

// GamePage is one page of an owner's games. NextCursor is empty on the
// last page.
type GamePage struct {
	Games      []models.Game
	NextCursor string
}

type service struct {
	repo Repository
}

// CreateGameInput captures the fields needed to list a new game.
type CreateGameInput struct {
	OwnerAccountID uuid.UUID
	Title          string
	PriceCents     int64
	Currency       enums.Currency
	ScheduledStart *time.Time
	ScheduledEnd   *time.Time
	StreamURL      string
}

// NewService wires a game service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("game repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateGameInput) (*models.Game, error) {
	if input.OwnerAccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner account id is required")
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if input.PriceCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be non-negative")
	}
	currency := input.Currency
	if currency == "" {
		currency = enums.CurrencyUSD
	}
	if !currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported currency %q", currency))
	}

	if input.ScheduledStart != nil && input.ScheduledEnd != nil && !input.ScheduledEnd.After(*input.ScheduledStart) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scheduled end must be after scheduled start")
	}

	game := &models.Game{
		OwnerAccountID: input.OwnerAccountID,
		Title:          strings.TrimSpace(input.Title),
		PriceCents:     input.PriceCents,
		Currency:       currency,
		ScheduledStart: input.ScheduledStart,
		ScheduledEnd:   input.ScheduledEnd,
		StreamURL:      strings.TrimSpace(input.StreamURL),
	}
	if err := s.repo.Create(ctx, game); err != nil {
		return nil, err
	}
	return game, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "game id is required")
	}
	game, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "game not found")
	}
	return game, nil
}

func (s *service) ListByOwner(ctx context.Context, ownerAccountID uuid.UUID, params pagination.Params) (*GamePage, error) {
	if ownerAccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner account id is required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	games, err := s.repo.ListByOwner(ctx, ownerAccountID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, err
	}

	page := &GamePage{Games: games}
	if len(games) > limit {
		page.Games = games[:limit]
		last := page.Games[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			LastSeenAt: last.CreatedAt,
			LastID:     last.ID,
		})
	}
	return page, nil
}
