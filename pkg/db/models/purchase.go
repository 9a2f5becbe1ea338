package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/streampass/streampass-backend/pkg/enums"
)

// Purchase is one checkout attempt for one (viewer, game) pair. Rows are never
// deleted; the state machine only transitions status and stamps the matching
// timestamp column.
type Purchase struct {
	ID                      uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GameID                  uuid.UUID            `gorm:"column:game_id;type:uuid;not null;index"`
	ViewerID                uuid.UUID            `gorm:"column:viewer_id;type:uuid;not null;index"`
	RecipientOwnerAccountID uuid.UUID            `gorm:"column:recipient_owner_account_id;type:uuid;not null;index"`
	AmountCents             int64                `gorm:"column:amount_cents;not null"`
	Currency                enums.Currency       `gorm:"column:currency;not null;default:'USD'"`
	PlatformFeeCents        int64                `gorm:"column:platform_fee_cents;not null;default:0"`
	ProcessorFeeCents       int64                `gorm:"column:processor_fee_cents;not null;default:0"`
	DiscountCents           int64                `gorm:"column:discount_cents;not null;default:0"`
	CouponID                *uuid.UUID           `gorm:"column:coupon_id;type:uuid"`
	Status                  enums.PurchaseStatus `gorm:"column:status;type:purchase_status_enum;not null;default:'created'"`
	ProviderPaymentID       *string              `gorm:"column:provider_payment_id;uniqueIndex:ux_purchases_provider_payment_id"`
	ProviderCustomerID      *string              `gorm:"column:provider_customer_id"`
	ViewerEmail             string               `gorm:"column:viewer_email;not null"`
	ViewerPhone             *string              `gorm:"column:viewer_phone"`
	PaidAt                  *time.Time           `gorm:"column:paid_at"`
	FailedAt                *time.Time           `gorm:"column:failed_at"`
	RefundedAt              *time.Time           `gorm:"column:refunded_at"`
	CreatedAt               time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
