package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregatePurchase        OutboxAggregateType = "purchase"
	AggregateEntitlement     OutboxAggregateType = "entitlement"
	AggregatePlaybackSession OutboxAggregateType = "playback_session"
	AggregateLedgerEntry     OutboxAggregateType = "ledger_entry"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregatePurchase,
	AggregateEntitlement,
	AggregatePlaybackSession,
	AggregateLedgerEntry,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventPurchasePaid      OutboxEventType = "purchase_paid"
	EventPurchaseFailed    OutboxEventType = "purchase_failed"
	EventPurchaseRefunded  OutboxEventType = "purchase_refunded"
	EventEntitlementIssued OutboxEventType = "entitlement_issued"
	EventPlaybackEnded     OutboxEventType = "playback_ended"
)

var validOutboxEventTypes = []OutboxEventType{
	EventPurchasePaid,
	EventPurchaseFailed,
	EventPurchaseRefunded,
	EventEntitlementIssued,
	EventPlaybackEnded,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
