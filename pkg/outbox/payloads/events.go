package payloads

import (
	"time"

	"github.com/google/uuid"
)

// PurchasePaidEvent is emitted when a purchase settles and its ledger entries post.
type PurchasePaidEvent struct {
	PurchaseID        uuid.UUID `json:"purchase_id"`
	GameID            uuid.UUID `json:"game_id"`
	ViewerID          uuid.UUID `json:"viewer_id"`
	OwnerAccountID    uuid.UUID `json:"owner_account_id"`
	AmountCents       int64     `json:"amount_cents"`
	PlatformFeeCents  int64     `json:"platform_fee_cents"`
	ProcessorFeeCents int64     `json:"processor_fee_cents"`
	Currency          string    `json:"currency"`
	PaidAt            time.Time `json:"paid_at"`
}

// PurchaseFailedEvent is emitted when the gateway declines a purchase.
type PurchaseFailedEvent struct {
	PurchaseID uuid.UUID `json:"purchase_id"`
	GameID     uuid.UUID `json:"game_id"`
	ViewerID   uuid.UUID `json:"viewer_id"`
	FailedAt   time.Time `json:"failed_at"`
	Reason     string    `json:"reason,omitempty"`
}

// PurchaseRefundedEvent is emitted when a refund lands and reversal entries post.
type PurchaseRefundedEvent struct {
	PurchaseID          uuid.UUID `json:"purchase_id"`
	GameID              uuid.UUID `json:"game_id"`
	ViewerID            uuid.UUID `json:"viewer_id"`
	OwnerAccountID      uuid.UUID `json:"owner_account_id"`
	RefundAmountCents   int64     `json:"refund_amount_cents"`
	FeeReversalCents    int64     `json:"fee_reversal_cents"`
	RefundedAt          time.Time `json:"refunded_at"`
	ProviderRefundID    string    `json:"provider_refund_id,omitempty"`
	EntitlementsRevoked bool      `json:"entitlements_revoked"`
}

// EntitlementIssuedEvent signals that a viewer gained access to a stream.
type EntitlementIssuedEvent struct {
	EntitlementID uuid.UUID `json:"entitlement_id"`
	PurchaseID    uuid.UUID `json:"purchase_id"`
	GameID        uuid.UUID `json:"game_id"`
	ViewerID      uuid.UUID `json:"viewer_id"`
	ValidFrom     time.Time `json:"valid_from"`
	ValidTo       time.Time `json:"valid_to"`
}

// PlaybackEndedEvent carries the closed session's telemetry for analytics.
type PlaybackEndedEvent struct {
	SessionID        uuid.UUID `json:"session_id"`
	EntitlementID    uuid.UUID `json:"entitlement_id"`
	StartedAt        time.Time `json:"started_at"`
	EndedAt          time.Time `json:"ended_at"`
	TotalWatchMs     int64     `json:"total_watch_ms"`
	TotalBufferMs    int64     `json:"total_buffer_ms"`
	BufferEvents     int       `json:"buffer_events"`
	FatalErrors      int       `json:"fatal_errors"`
	StartupLatencyMs *int64    `json:"startup_latency_ms,omitempty"`
}
