package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/streampass/streampass-backend/pkg/enums"
)

// Game is a streamed event sold through the marketplace paywall.
type Game struct {
	ID             uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerAccountID uuid.UUID      `gorm:"column:owner_account_id;type:uuid;not null;index"`
	Title          string         `gorm:"column:title;not null"`
	PriceCents     int64          `gorm:"column:price_cents;not null"`
	Currency       enums.Currency `gorm:"column:currency;not null;default:'USD'"`
	ScheduledStart *time.Time     `gorm:"column:scheduled_start"`
	ScheduledEnd   *time.Time     `gorm:"column:scheduled_end"`
	StreamURL      string         `gorm:"column:stream_url;not null"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
