package models

import (
	"time"

	"github.com/google/uuid"
)

// CouponRedemption records one application of a coupon to one purchase.
// PurchaseID is unique: a purchase may be discounted at most once.
type CouponRedemption struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CouponID      uuid.UUID `gorm:"column:coupon_id;type:uuid;not null;index"`
	PurchaseID    uuid.UUID `gorm:"column:purchase_id;type:uuid;not null;uniqueIndex:ux_coupon_redemptions_purchase_id"`
	ViewerID      uuid.UUID `gorm:"column:viewer_id;type:uuid;not null;index"`
	DiscountCents int64     `gorm:"column:discount_cents;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}
