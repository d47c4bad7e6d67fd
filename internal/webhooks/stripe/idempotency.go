package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// EventScope namespaces processed Stripe event ids in redis.
const EventScope = "stripe-event"

// eventStore is the slice of the redis idempotency store the guard needs.
type eventStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// IdempotencyGuard remembers processed webhook events so redeliveries are acknowledged
// without being applied twice.
type IdempotencyGuard struct {
	store eventStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store eventStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		scope = EventScope
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// Claim records eventID and reports whether this delivery is the first to do so.
func (g *IdempotencyGuard) Claim(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	claimed, err := g.store.SetNX(ctx, g.store.IdempotencyKey(g.scope, eventID), "processing", g.ttl)
	if err != nil {
		return false, fmt.Errorf("claim stripe event %s: %w", eventID, err)
	}
	return claimed, nil
}

// Release drops the claim so Stripe's next delivery of eventID is processed.
func (g *IdempotencyGuard) Release(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	return g.store.Del(ctx, g.store.IdempotencyKey(g.scope, eventID))
}
