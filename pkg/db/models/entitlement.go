package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/streampass/streampass-backend/pkg/enums"
)

// Entitlement is a viewer's proof of access to one purchase's stream. The raw
// token never touches the database; TokenDigest holds its SHA-256 so lookups
// work without storing the secret at rest.
type Entitlement struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PurchaseID  uuid.UUID               `gorm:"column:purchase_id;type:uuid;not null;uniqueIndex:ux_entitlements_purchase_id"`
	TokenDigest string                  `gorm:"column:token_digest;not null;uniqueIndex:ux_entitlements_token_digest"`
	ValidFrom   time.Time               `gorm:"column:valid_from;not null"`
	ValidTo     time.Time               `gorm:"column:valid_to;not null"`
	Status      enums.EntitlementStatus `gorm:"column:status;type:entitlement_status_enum;not null;default:'active'"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
