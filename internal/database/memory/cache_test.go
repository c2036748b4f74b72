package memory

import (
	"context"
	"testing"
	"time"

	"github.com/ds124wfegd/tithi-booking/internal/entity"
	"github.com/ds124wfegd/tithi-booking/pkg/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHoldCache(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewManual(base)
	c := NewHoldCache(clk)

	hold := &entity.BookingHold{HoldKey: "k1", TenantID: "t1", ResourceID: "r1"}
	require.NoError(t, c.Put(ctx, hold, time.Minute))
	assert.Error(t, c.Put(ctx, hold, 0))

	got, err := c.Get(ctx, "t1", "k1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "r1", got.ResourceID)

	got, err = c.Get(ctx, "t2", "k1")
	require.NoError(t, err)
	assert.Nil(t, got)

	clk.Advance(time.Minute)
	got, err = c.Get(ctx, "t1", "k1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.Put(ctx, hold, time.Minute))
	require.NoError(t, c.Delete(ctx, "t1", "k1"))
	got, err = c.Get(ctx, "t1", "k1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAvailabilityCache(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewManual(base)
	c := NewAvailabilityCache(clk)
	day := entity.NewDate(2024, time.June, 10)
	slots := []entity.Slot{{Start: base, End: base.Add(time.Hour), Available: true}}

	gen, err := c.Generation(ctx, "t1", "r1")
	require.NoError(t, err)
	assert.Zero(t, gen)

	require.NoError(t, c.Set(ctx, "t1", "r1", gen, day, slots, time.Minute))
	got, ok, err := c.Get(ctx, "t1", "r1", gen, day)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, slots, got)

	// Callers cannot mutate the cached copy.
	got[0].Available = false
	got, _, _ = c.Get(ctx, "t1", "r1", gen, day)
	assert.True(t, got[0].Available)

	require.NoError(t, c.Invalidate(ctx, "t1", "r1"))
	next, err := c.Generation(ctx, "t1", "r1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, next)

	_, ok, err = c.Get(ctx, "t1", "r1", gen, day)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "t1", "r1", next, day, slots, time.Minute))
	clk.Advance(time.Minute)
	_, ok, err = c.Get(ctx, "t1", "r1", next, day)
	require.NoError(t, err)
	assert.False(t, ok)

	// A zero TTL stores nothing.
	require.NoError(t, c.Set(ctx, "t1", "r1", next, day, slots, 0))
	_, ok, _ = c.Get(ctx, "t1", "r1", next, day)
	assert.False(t, ok)
}

func TestAvailabilityCache_InvalidateSweepsStaleGenerations(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewManual(base)
	c := NewAvailabilityCache(clk)
	day := entity.NewDate(2024, time.June, 10)
	slots := []entity.Slot{{Start: base, End: base.Add(time.Hour), Available: true}}

	require.NoError(t, c.Set(ctx, "t1", "r1", 0, day, slots, time.Hour))
	require.NoError(t, c.Invalidate(ctx, "t1", "r1"))

	// A computation that read generation 0 before the invalidation stores late.
	require.NoError(t, c.Set(ctx, "t1", "r1", 0, day, slots, time.Hour))
	require.NoError(t, c.Set(ctx, "t1", "r1", 1, day, slots, time.Hour))
	require.NoError(t, c.Set(ctx, "t1", "r2", 0, day, slots, time.Hour))
	require.Equal(t, 3, c.size())

	require.NoError(t, c.Invalidate(ctx, "t1", "r1"))
	assert.Equal(t, 1, c.size(), "only the other resource's entry survives")

	_, ok, err := c.Get(ctx, "t1", "r2", 0, day)
	require.NoError(t, err)
	assert.True(t, ok)
}
