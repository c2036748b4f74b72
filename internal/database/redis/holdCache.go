package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ds124wfegd/tithi-booking/internal/database"
	"github.com/ds124wfegd/tithi-booking/internal/entity"
	"github.com/go-redis/redis/v8"
)

type holdCache struct {
	client *redis.Client
}

// NewHoldCache stores holds under hold:{tenant}:{key}; redis expires the
// entry at hold_until on its own.
func NewHoldCache(client *redis.Client) database.HoldCache {
	return &holdCache{client: client}
}

func holdKey(tenantID, key string) string {
	return fmt.Sprintf("hold:%s:%s", tenantID, key)
}

func (c *holdCache) Put(ctx context.Context, hold *entity.BookingHold, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("hold ttl must be positive, got %s", ttl)
	}
	data, err := json.Marshal(hold)
	if err != nil {
		return fmt.Errorf("failed to marshal hold: %w", err)
	}
	if err := c.client.Set(ctx, holdKey(hold.TenantID, hold.HoldKey), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache hold: %w", err)
	}
	return nil
}

func (c *holdCache) Get(ctx context.Context, tenantID, key string) (*entity.BookingHold, error) {
	data, err := c.client.Get(ctx, holdKey(tenantID, key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read hold: %w", err)
	}

	var hold entity.BookingHold
	if err := json.Unmarshal(data, &hold); err != nil {
		return nil, fmt.Errorf("failed to unmarshal hold: %w", err)
	}
	return &hold, nil
}

func (c *holdCache) Delete(ctx context.Context, tenantID, key string) error {
	if err := c.client.Del(ctx, holdKey(tenantID, key)).Err(); err != nil {
		return fmt.Errorf("failed to delete hold: %w", err)
	}
	return nil
}
