package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/streampass/streampass-backend/pkg/config"
)

func configRedis(url string) config.RedisConfig {
	return config.RedisConfig{URL: url}
}

type fakeStore struct {
	values   map[string]string
	counters map[string]int64
	expires  map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		values:   map[string]string{},
		counters: map[string]int64{},
		expires:  map[string]time.Duration{},
	}
}

func (f *fakeStore) Ping(context.Context) *goredis.StatusCmd {
	return goredis.NewStatusResult("PONG", nil)
}

func (f *fakeStore) Set(_ context.Context, key string, value any, ttl time.Duration) *goredis.StatusCmd {
	f.values[key] = value.(string)
	f.expires[key] = ttl
	return goredis.NewStatusResult("OK", nil)
}

func (f *fakeStore) Get(_ context.Context, key string) *goredis.StringCmd {
	v, ok := f.values[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(v, nil)
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) *goredis.BoolCmd {
	if _, exists := f.values[key]; exists {
		return goredis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	f.expires[key] = ttl
	return goredis.NewBoolResult(true, nil)
}

func (f *fakeStore) Incr(_ context.Context, key string) *goredis.IntCmd {
	f.counters[key]++
	return goredis.NewIntResult(f.counters[key], nil)
}

func (f *fakeStore) Expire(_ context.Context, key string, ttl time.Duration) *goredis.BoolCmd {
	f.expires[key] = ttl
	return goredis.NewBoolResult(true, nil)
}

func (f *fakeStore) Del(_ context.Context, keys ...string) *goredis.IntCmd {
	removed := int64(0)
	for _, key := range keys {
		if _, ok := f.values[key]; ok {
			delete(f.values, key)
			delete(f.expires, key)
			delete(f.counters, key)
			removed++
		}
	}
	return goredis.NewIntResult(removed, nil)
}

func TestKeyNamespacing(t *testing.T) {
	c := &Client{store: newFakeStore()}

	if got := c.IdempotencyKey("webhook", "evt_123"); got != "sp:idempotency:webhook:evt_123" {
		t.Fatalf("unexpected idempotency key %q", got)
	}
	if got := c.RateLimitKey("checkout"); got != "sp:rate_limit:checkout" {
		t.Fatalf("unexpected rate limit key %q", got)
	}
	if got := c.CounterKey("paid"); got != "sp:counter:paid" {
		t.Fatalf("unexpected counter key %q", got)
	}
}

func TestSetNXFirstWriterWins(t *testing.T) {
	store := newFakeStore()
	c := &Client{store: store}
	ctx := context.Background()

	key := c.IdempotencyKey("webhook", "evt_1")
	set, err := c.SetNX(ctx, key, "processed", time.Hour)
	if err != nil || !set {
		t.Fatalf("first SetNX should win: set=%v err=%v", set, err)
	}
	set, err = c.SetNX(ctx, key, "processed-again", time.Hour)
	if err != nil {
		t.Fatalf("second SetNX error: %v", err)
	}
	if set {
		t.Fatal("second SetNX should lose")
	}

	if err := c.Del(ctx, key); err != nil {
		t.Fatalf("del: %v", err)
	}
	set, _ = c.SetNX(ctx, key, "retry", time.Hour)
	if !set {
		t.Fatal("SetNX after Del should win again")
	}
}

func TestIncrWithTTLSetsExpiryOnce(t *testing.T) {
	store := newFakeStore()
	c := &Client{store: store}
	ctx := context.Background()

	key := c.RateLimitKey("checkout")
	count, err := c.IncrWithTTL(ctx, key, time.Minute)
	if err != nil || count != 1 {
		t.Fatalf("first incr: count=%d err=%v", count, err)
	}
	if store.expires[key] != time.Minute {
		t.Fatalf("expected TTL set on first increment, got %v", store.expires[key])
	}

	store.expires[key] = 0
	count, err = c.IncrWithTTL(ctx, key, time.Minute)
	if err != nil || count != 2 {
		t.Fatalf("second incr: count=%d err=%v", count, err)
	}
	if store.expires[key] != 0 {
		t.Fatal("TTL should not be reset on later increments")
	}
}

func TestFixedWindowAllow(t *testing.T) {
	c := &Client{store: newFakeStore()}
	ctx := context.Background()

	allowed, count, err := c.FixedWindowAllow(ctx, "coupon_validate", 1, time.Minute)
	if err != nil || !allowed || count != 1 {
		t.Fatalf("first call: allowed=%v count=%d err=%v", allowed, count, err)
	}
	allowed, count, err = c.FixedWindowAllow(ctx, "coupon_validate", 1, time.Minute)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if allowed || count != 2 {
		t.Fatalf("second call should exceed limit: allowed=%v count=%d", allowed, count)
	}
}

func TestOptionsFromConfigRequiresTarget(t *testing.T) {
	if _, err := optionsFromConfig(configRedis("")); err == nil {
		t.Fatal("expected error when url and address are both empty")
	}
	opts, err := optionsFromConfig(configRedis("redis://localhost:6379/2"))
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if opts.Addr != "localhost:6379" || opts.DB != 2 {
		t.Fatalf("unexpected options %+v", opts)
	}
}
