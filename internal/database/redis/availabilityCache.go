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

type availabilityCache struct {
	client *redis.Client
}

func NewAvailabilityCache(client *redis.Client) database.AvailabilityCache {
	return &availabilityCache{client: client}
}

func genKey(tenantID, resourceID string) string {
	return fmt.Sprintf("availability:%s:%s:gen", tenantID, resourceID)
}

func dayKey(tenantID, resourceID string, gen int64, day entity.Date) string {
	return fmt.Sprintf("availability:%s:%s:%d:%s", tenantID, resourceID, gen, day)
}

func (c *availabilityCache) Generation(ctx context.Context, tenantID, resourceID string) (int64, error) {
	gen, err := c.client.Get(ctx, genKey(tenantID, resourceID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read availability generation: %w", err)
	}
	return gen, nil
}

func (c *availabilityCache) Get(ctx context.Context, tenantID, resourceID string, gen int64, day entity.Date) ([]entity.Slot, bool, error) {
	data, err := c.client.Get(ctx, dayKey(tenantID, resourceID, gen, day)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached availability: %w", err)
	}

	var slots []entity.Slot
	if err := json.Unmarshal(data, &slots); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached availability: %w", err)
	}
	return slots, true, nil
}

func (c *availabilityCache) Set(ctx context.Context, tenantID, resourceID string, gen int64, day entity.Date, slots []entity.Slot, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("failed to marshal availability: %w", err)
	}
	if err := c.client.Set(ctx, dayKey(tenantID, resourceID, gen, day), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache availability: %w", err)
	}
	return nil
}

// Invalidate bumps the generation; entries of older generations simply age
// out through their TTL.
func (c *availabilityCache) Invalidate(ctx context.Context, tenantID, resourceID string) error {
	if err := c.client.Incr(ctx, genKey(tenantID, resourceID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate availability: %w", err)
	}
	return nil
}
