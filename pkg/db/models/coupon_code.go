package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/streampass/streampass-backend/pkg/enums"
)

// CouponCode is a reusable discount definition. UsedCount is only ever moved
// by the coupon engine's conditional increment on redemption.
type CouponCode struct {
	ID               uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code             string                   `gorm:"column:code;not null;uniqueIndex:ux_coupon_codes_code"`
	DiscountType     enums.CouponDiscountType `gorm:"column:discount_type;type:coupon_discount_type_enum;not null"`
	DiscountValue    int64                    `gorm:"column:discount_value;not null"`
	OwnerAccountID   *uuid.UUID               `gorm:"column:owner_account_id;type:uuid"`
	GameID           *uuid.UUID               `gorm:"column:game_id;type:uuid"`
	MaxUses          *int                     `gorm:"column:max_uses"`
	MaxUsesPerViewer int                      `gorm:"column:max_uses_per_viewer;not null;default:1"`
	MinPurchaseCents *int64                   `gorm:"column:min_purchase_cents"`
	ValidFrom        time.Time                `gorm:"column:valid_from;not null"`
	ValidTo          *time.Time               `gorm:"column:valid_to"`
	Status           enums.CouponStatus       `gorm:"column:status;type:coupon_status_enum;not null;default:'active'"`
	UsedCount        int                      `gorm:"column:used_count;not null;default:0"`
	CreatedAt        time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
