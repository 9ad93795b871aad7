package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/booking"
)

var ErrCacheMiss = errors.New("cache miss")

const defaultOrderTTL = 5 * time.Second

// OrderCache keeps settled orders for the status endpoint. Callers only
// store orders that can no longer change.
type OrderCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewOrderCache(client *redis.Client, ttl time.Duration) *OrderCache {
	if ttl <= 0 {
		ttl = defaultOrderTTL
	}
	return &OrderCache{client: client, ttl: ttl}
}

func (c *OrderCache) Get(ctx context.Context, id string) (*booking.Order, error) {
	data, err := c.client.Get(ctx, orderKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var o booking.Order
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order failed: %w", err)
	}
	return &o, nil
}

func (c *OrderCache) Set(ctx context.Context, o *booking.Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal order failed: %w", err)
	}
	if err := c.client.Set(ctx, orderKey(o.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func orderKey(id string) string {
	return fmt.Sprintf("order:%s", id)
}
