package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/streampass/streampass-backend/pkg/db/models"
	"github.com/streampass/streampass-backend/pkg/enums"
)

// Repository manages persistence for ledger entries. Entries are append
// only; there is no update or delete path.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.LedgerEntry) error
	CreateAll(ctx context.Context, entries []models.LedgerEntry) error
	ListByReference(ctx context.Context, referenceType enums.LedgerReferenceType, referenceID uuid.UUID) ([]models.LedgerEntry, error)
	ExistsEntry(ctx context.Context, referenceID uuid.UUID, entryType enums.LedgerEntryType) (bool, error)
	SumByOwnerAccount(ctx context.Context, ownerAccountID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) CreateAll(ctx context.Context, entries []models.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&entries).Error
}

func (r *repository) ListByReference(ctx context.Context, referenceType enums.LedgerReferenceType, referenceID uuid.UUID) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("reference_type = ? AND reference_id = ?", referenceType, referenceID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ExistsEntry(ctx context.Context, referenceID uuid.UUID, entryType enums.LedgerEntryType) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("reference_id = ? AND type = ?", referenceID, entryType).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) SumByOwnerAccount(ctx context.Context, ownerAccountID uuid.UUID) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("owner_account_id = ?", ownerAccountID).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
