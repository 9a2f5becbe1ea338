package squarewebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/streampass/streampass-backend/pkg/redis"
)

// IdempotencyGuard deduplicates webhook deliveries. The mark is keyed by
// event type plus provider event id, so the same id arriving under a
// different event type is not swallowed.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

// NewIdempotencyGuard builds a guard over the given store. TTL bounds how
// long a processed event stays remembered.
func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// CheckAndMark atomically claims the event. It reports true when the
// event was already processed.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, eventType, eventID string) (bool, error) {
	key, err := g.key(eventType, eventID)
	if err != nil {
		return false, err
	}
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Delete releases the claim so a failed handler can be retried by the
// provider's redelivery.
func (g *IdempotencyGuard) Delete(ctx context.Context, eventType, eventID string) error {
	key, err := g.key(eventType, eventID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *IdempotencyGuard) key(eventType, eventID string) (string, error) {
	if eventType == "" {
		return "", errors.New("event type is required")
	}
	if eventID == "" {
		return "", errors.New("event id is required")
	}
	return g.store.IdempotencyKey(g.scope, eventType+":"+eventID), nil
}
