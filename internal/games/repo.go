package games

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/streampass/streampass-backend/pkg/db/models"
	"github.com/streampass/streampass-backend/pkg/pagination"
)

// Repository manages persistence for games.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, game *models.Game) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Game, error)
	ListByOwner(ctx context.Context, ownerAccountID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Game, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a game repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, game *models.Game) error {
	return r.db.WithContext(ctx).Create(game).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	var game models.Game
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&game).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &game, nil
}

func (r *repository) ListByOwner(ctx context.Context, ownerAccountID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Game, error) {
	query := r.db.WithContext(ctx).
		Where("owner_account_id = ?", ownerAccountID).
		Order("created_at DESC, id DESC")
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.LastSeenAt, cursor.LastID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var games []models.Game
	if err := query.Find(&games).Error; err != nil {
		return nil, err
	}
	return games, nil
}
