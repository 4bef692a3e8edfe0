package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rookgm/kopisort/internal/models"
)

// DefaultOrderTTL bounds staleness of cached order snapshots
const DefaultOrderTTL = 5 * time.Minute

// ErrMiss is returned when key is not cached
var ErrMiss = errors.New("cache miss")

// NewClient creates redis client
func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// OrderCache keeps order snapshots in redis
type OrderCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewOrderCache creates new OrderCache instance
func NewOrderCache(rdb redis.Cmdable, ttl time.Duration) *OrderCache {
	if ttl <= 0 {
		ttl = DefaultOrderTTL
	}
	return &OrderCache{rdb: rdb, ttl: ttl}
}

func orderKey(id string) string {
	return "order:" + id
}

// Get returns cached order or ErrMiss
func (c *OrderCache) Get(ctx context.Context, id string) (*models.Order, error) {
	raw, err := c.rdb.Get(ctx, orderKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, err
	}

	var order models.Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, err
	}

	return &order, nil
}

// Set stores order snapshot
func (c *OrderCache) Set(ctx context.Context, order *models.Order) error {
	raw, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, orderKey(order.ID), raw, c.ttl).Err()
}

// Invalidate drops cached orders
func (c *OrderCache) Invalidate(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, orderKey(id))
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// Nop never caches anything
type Nop struct{}

func (Nop) Get(context.Context, string) (*models.Order, error) { return nil, ErrMiss }

func (Nop) Set(context.Context, *models.Order) error { return nil }

func (Nop) Invalidate(context.Context, ...string) error { return nil }
