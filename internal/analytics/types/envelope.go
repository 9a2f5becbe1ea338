package types

import (
	"encoding/json"
	"time"

	"github.com/streampass/streampass-backend/pkg/enums"
)

// Envelope is the canonical analytics Pub/Sub envelope after decoding a
// delivery: the outbox payload plus the routing attributes.
type Envelope struct {
	EventID       string                    `json:"event_id"`
	EventType     enums.OutboxEventType     `json:"event_type"`
	AggregateType enums.OutboxAggregateType `json:"aggregate_type"`
	AggregateID   string                    `json:"aggregate_id"`
	OccurredAt    time.Time                 `json:"occurred_at"`
	Payload       json.RawMessage           `json:"payload"`
}
