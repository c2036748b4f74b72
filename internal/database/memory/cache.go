package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ds124wfegd/tithi-booking/internal/database"
	"github.com/ds124wfegd/tithi-booking/internal/entity"
	"github.com/ds124wfegd/tithi-booking/pkg/clock"
)

type holdEntry struct {
	hold      entity.BookingHold
	expiresAt time.Time
}

// HoldCache keeps holds in process memory with clock-driven expiry.
type HoldCache struct {
	mu      sync.Mutex
	clock   clock.Clock
	entries map[string]holdEntry
}

var _ database.HoldCache = (*HoldCache)(nil)

func NewHoldCache(c clock.Clock) *HoldCache {
	return &HoldCache{clock: c, entries: map[string]holdEntry{}}
}

func (c *HoldCache) Put(ctx context.Context, hold *entity.BookingHold, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("hold ttl must be positive, got %s", ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key(hold.TenantID, hold.HoldKey)] = holdEntry{hold: *hold, expiresAt: c.clock.Now().Add(ttl)}
	return nil
}

func (c *HoldCache) Get(ctx context.Context, tenantID, holdKey string) (*entity.BookingHold, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(tenantID, holdKey)
	e, ok := c.entries[k]
	if !ok {
		return nil, nil
	}
	if !c.clock.Now().Before(e.expiresAt) {
		delete(c.entries, k)
		return nil, nil
	}
	h := e.hold
	return &h, nil
}

func (c *HoldCache) Delete(ctx context.Context, tenantID, holdKey string) error {
	c.mu.Lock()
	delete(c.entries, key(tenantID, holdKey))
	c.mu.Unlock()
	return nil
}

type slotEntry struct {
	slots     []entity.Slot
	expiresAt time.Time
}

type slotKey struct {
	tenantID   string
	resourceID string
	gen        int64
	day        string
}

// AvailabilityCache is the in-process availability cache.
type AvailabilityCache struct {
	mu      sync.Mutex
	clock   clock.Clock
	gens    map[string]int64
	entries map[slotKey]slotEntry
}

var _ database.AvailabilityCache = (*AvailabilityCache)(nil)

func NewAvailabilityCache(c clock.Clock) *AvailabilityCache {
	return &AvailabilityCache{clock: c, gens: map[string]int64{}, entries: map[slotKey]slotEntry{}}
}

func (c *AvailabilityCache) Generation(ctx context.Context, tenantID, resourceID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[key(tenantID, resourceID)], nil
}

func (c *AvailabilityCache) Get(ctx context.Context, tenantID, resourceID string, gen int64, day entity.Date) ([]entity.Slot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := slotKey{tenantID, resourceID, gen, day.String()}
	e, ok := c.entries[k]
	if !ok {
		return nil, false, nil
	}
	if !c.clock.Now().Before(e.expiresAt) {
		delete(c.entries, k)
		return nil, false, nil
	}
	out := make([]entity.Slot, len(e.slots))
	copy(out, e.slots)
	return out, true, nil
}

func (c *AvailabilityCache) Set(ctx context.Context, tenantID, resourceID string, gen int64, day entity.Date, slots []entity.Slot, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := make([]entity.Slot, len(slots))
	copy(stored, slots)
	c.entries[slotKey{tenantID, resourceID, gen, day.String()}] = slotEntry{slots: stored, expiresAt: c.clock.Now().Add(ttl)}
	return nil
}

// Invalidate moves the generation forward and drops every entry of the
// resource below it, including ones written late by computations that
// raced an earlier invalidation.
func (c *AvailabilityCache) Invalidate(ctx context.Context, tenantID, resourceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rk := key(tenantID, resourceID)
	next := c.gens[rk] + 1
	c.gens[rk] = next

	for k := range c.entries {
		if k.tenantID == tenantID && k.resourceID == resourceID && k.gen < next {
			delete(c.entries, k)
		}
	}
	return nil
}

// size reports the number of stored day entries.
func (c *AvailabilityCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
