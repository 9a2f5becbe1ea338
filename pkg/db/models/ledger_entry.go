package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/streampass/streampass-backend/pkg/enums"
)

// LedgerEntry records an immutable signed money movement attributed to an
// owner account. Positive amounts credit the owner, negative amounts debit.
// The (reference_id, type) pair is unique so duplicate webhook deliveries
// cannot double-post the same movement.
type LedgerEntry struct {
	ID             uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerAccountID uuid.UUID                 `gorm:"column:owner_account_id;type:uuid;not null;index"`
	Type           enums.LedgerEntryType     `gorm:"column:type;type:ledger_entry_type_enum;not null;uniqueIndex:ux_ledger_entries_reference_type"`
	AmountCents    int64                     `gorm:"column:amount_cents;not null"`
	Currency       enums.Currency            `gorm:"column:currency;not null;default:'USD'"`
	ReferenceType  enums.LedgerReferenceType `gorm:"column:reference_type;type:ledger_reference_type_enum;not null"`
	ReferenceID    uuid.UUID                 `gorm:"column:reference_id;type:uuid;not null;uniqueIndex:ux_ledger_entries_reference_type"`
	Description    string                    `gorm:"column:description;not null"`
	CreatedAt      time.Time                 `gorm:"column:created_at;autoCreateTime"`
}
