package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pledgeforge/backerstore-backend/pkg/redis"
)

// EventGuard deduplicates webhook deliveries before they reach the event
// service. Stripe delivers at-least-once; the guard marks an event id on
// first sight and reports later deliveries as duplicates. A failed handler
// releases the mark so the redelivery gets another attempt.
type EventGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

// NewEventGuard builds the dedupe guard scoped to one event source.
func NewEventGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*EventGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &EventGuard{store: store, ttl: ttl, scope: scope}, nil
}

// CheckAndMark reports whether the event was already seen, marking it when new.
func (g *EventGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	key := g.store.IdempotencyKey(g.scope, eventID)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("mark event: %w", err)
	}
	return !set, nil
}

// Release removes the mark so a redelivery can retry after a handler failure.
func (g *EventGuard) Release(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	return g.store.Del(ctx, g.store.IdempotencyKey(g.scope, eventID))
}
