package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type mockStore struct {
	mu     sync.Mutex
	values map[string]string
	counts map[string]int64
}

func newMockStore() *mockStore {
	return &mockStore{values: map[string]string{}, counts: map[string]int64{}}
}

func (m *mockStore) Ping(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("PONG")
	return cmd
}

func (m *mockStore) Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = toString(value)
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (m *mockStore) Get(ctx context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmd := redis.NewStringCmd(ctx)
	if val, ok := m.values[key]; ok {
		cmd.SetVal(val)
	} else {
		cmd.SetErr(redis.Nil)
	}
	return cmd
}

func (m *mockStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmd := redis.NewBoolCmd(ctx)
	if _, exists := m.values[key]; exists {
		cmd.SetVal(false)
		return cmd
	}
	m.values[key] = toString(value)
	cmd.SetVal(true)
	return cmd
}

func (m *mockStore) Incr(ctx context.Context, key string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(m.counts[key])
	return cmd
}

func (m *mockStore) Expire(ctx context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	cmd.SetVal(true)
	return cmd
}

func (m *mockStore) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for _, key := range keys {
		if _, ok := m.values[key]; ok {
			delete(m.values, key)
			removed++
		}
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(removed)
	return cmd
}

func toString(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return ""
}

func TestSetNXOnlySetsOnce(t *testing.T) {
	client := &Client{store: newMockStore()}
	ctx := context.Background()

	first, err := client.SetNX(ctx, client.IdempotencyKey("webhook", "evt-1"), "1", time.Minute)
	if err != nil {
		t.Fatalf("setnx: %v", err)
	}
	if !first {
		t.Fatal("expected first SetNX to succeed")
	}

	second, err := client.SetNX(ctx, client.IdempotencyKey("webhook", "evt-1"), "1", time.Minute)
	if err != nil {
		t.Fatalf("setnx: %v", err)
	}
	if second {
		t.Fatal("expected second SetNX to fail")
	}
}

func TestFixedWindowAllow(t *testing.T) {
	client := &Client{store: newMockStore()}
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		allowed, count, err := client.FixedWindowAllow(ctx, "checkout", 2, time.Minute)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if count != int64(i) {
			t.Fatalf("expected count %d, got %d", i, count)
		}
		if i <= 2 && !allowed {
			t.Fatalf("expected attempt %d to be allowed", i)
		}
		if i == 3 && allowed {
			t.Fatal("expected third attempt to be blocked")
		}
	}
}

func TestKeyNamespacing(t *testing.T) {
	client := &Client{store: newMockStore()}

	if got := client.CacheKey("rules", "strategy.guest", "pricing_type"); got != "bst:cache:rules:strategy.guest:pricing_type" {
		t.Fatalf("unexpected cache key: %s", got)
	}
	if got := client.LockKey("bulk-capture"); got != "bst:lock:bulk-capture" {
		t.Fatalf("unexpected lock key: %s", got)
	}
	if got := client.IdempotencyKey("stripe", "evt-9"); got != "bst:idempotency:stripe:evt-9" {
		t.Fatalf("unexpected idempotency key: %s", got)
	}
}

func TestCacheRoundTrip(t *testing.T) {
	client := &Client{store: newMockStore()}
	ctx := context.Background()

	key := client.CacheKey("rules", "cart.limits", "max_per_item")
	if err := client.Set(ctx, key, "10", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, err := client.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if value != "10" {
		t.Fatalf("unexpected value: %s", value)
	}
}
