package playback

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/streampass/streampass-backend/pkg/db/models"
)

// Repository manages persistence for playback sessions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, session *models.PlaybackSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.PlaybackSession, error)
	Update(ctx context.Context, session *models.PlaybackSession) error
	ListByEntitlement(ctx context.Context, entitlementID uuid.UUID) ([]models.PlaybackSession, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a playback session repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, session *models.PlaybackSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.PlaybackSession, error) {
	var session models.PlaybackSession
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *repository) Update(ctx context.Context, session *models.PlaybackSession) error {
	return r.db.WithContext(ctx).Save(session).Error
}

func (r *repository) ListByEntitlement(ctx context.Context, entitlementID uuid.UUID) ([]models.PlaybackSession, error) {
	var sessions []models.PlaybackSession
	if err := r.db.WithContext(ctx).
		Where("entitlement_id = ?", entitlementID).
		Order("started_at DESC").
		Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}
