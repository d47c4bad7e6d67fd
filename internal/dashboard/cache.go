package dashboard

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/zipshift-backend/pkg/logger"
	"github.com/angelmondragon/zipshift-backend/pkg/redis"
)

// CachedService serves dashboards from redis for a short TTL. Cache failures fall through
// to the wrapped service.
type CachedService struct {
	next  Service
	store redis.CacheStore
	ttl   time.Duration
	logg  *logger.Logger
}

// NewCachedService wraps next with a read-through cache.
func NewCachedService(next Service, store redis.CacheStore, ttl time.Duration, logg *logger.Logger) *CachedService {
	if logg == nil {
		logg = logger.Nop()
	}
	return &CachedService{next: next, store: store, ttl: ttl, logg: logg}
}

func (c *CachedService) Summarize(ctx context.Context, merchantID uuid.UUID) (*Summary, error) {
	return readThrough(ctx, c, c.store.CacheKey("dashboard", "merchant", merchantID.String()), func() (*Summary, error) {
		return c.next.Summarize(ctx, merchantID)
	})
}

func (c *CachedService) SummarizeRider(ctx context.Context, riderID uuid.UUID) (*RiderSummary, error) {
	return readThrough(ctx, c, c.store.CacheKey("dashboard", "rider", riderID.String()), func() (*RiderSummary, error) {
		return c.next.SummarizeRider(ctx, riderID)
	})
}

func (c *CachedService) SummarizeOperator(ctx context.Context) (*OperatorSummary, error) {
	return readThrough(ctx, c, c.store.CacheKey("dashboard", "operator"), func() (*OperatorSummary, error) {
		return c.next.SummarizeOperator(ctx)
	})
}

func readThrough[T any](ctx context.Context, c *CachedService, key string, load func() (*T, error)) (*T, error) {
	logCtx := c.logg.WithField(ctx, "cache_key", key)

	raw, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		var cached T
		if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil {
			return &cached, nil
		}
		c.logg.Warn(logCtx, "dashboard.cache_decode_failed")
	case !redis.IsNil(err):
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "dashboard.cache_read_failed")
	}

	value, err := load()
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return value, nil
	}
	if err := c.store.Set(ctx, key, encoded, c.ttl); err != nil {
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "dashboard.cache_write_failed")
	}
	return value, nil
}
