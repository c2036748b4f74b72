package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ds124wfegd/tithi-booking/internal/database"
	"github.com/ds124wfegd/tithi-booking/internal/database/memory"
	"github.com/ds124wfegd/tithi-booking/internal/entity"
	"github.com/ds124wfegd/tithi-booking/pkg/clock"
	"github.com/ds124wfegd/tithi-booking/pkg/queue"
	"github.com/stretchr/testify/require"
)

const testTenant = "tenant-1"

// at returns hh:mm UTC on Monday 2024-06-10.
func at(h, m int) time.Time {
	return time.Date(2024, 6, 10, h, m, 0, 0, time.UTC)
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	clock *clock.Manual
	store database.Store
	holds database.HoldCache
	cache database.AvailabilityCache
	dlq   *queue.MemoryDLQHandler
	opts  Options

	availability AvailabilityService
	holdSvc      HoldService
	bookings     BookingService
	schedules    ScheduleService
	catalog      CatalogService
	waitlist     WaitlistService
	outbox       OutboxService

	resource *entity.Resource
	service  *entity.Service
	customer *entity.Customer
}

type fixtureOption func(*fixture)

func withStore(wrap func(database.Store) database.Store) fixtureOption {
	return func(f *fixture) { f.store = wrap(f.store) }
}

func withHoldCache(wrap func(database.HoldCache) database.HoldCache) fixtureOption {
	return func(f *fixture) { f.holds = wrap(f.holds) }
}

func withAvailabilityCache(wrap func(database.AvailabilityCache) database.AvailabilityCache) fixtureOption {
	return func(f *fixture) { f.cache = wrap(f.cache) }
}

func withOptions(mut func(*Options)) fixtureOption {
	return func(f *fixture) { mut(&f.opts) }
}

func newFixture(t *testing.T, options ...fixtureOption) *fixture {
	t.Helper()

	clk := clock.NewManual(at(8, 0))
	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		clock: clk,
		store: memory.NewStore(),
		holds: memory.NewHoldCache(clk),
		cache: memory.NewAvailabilityCache(clk),
		dlq:   queue.NewMemoryDLQHandler(),
		opts:  DefaultOptions(),
	}
	for _, o := range options {
		o(f)
	}

	conflicts := NewConflictEngine(f.opts.MinDuration, f.opts.MaxDuration)
	f.availability = NewAvailabilityService(f.store, f.cache, clk, f.opts)
	f.holdSvc = NewHoldService(f.store, f.holds, f.availability, conflicts, clk, f.opts)
	f.bookings = NewBookingService(f.store, f.holds, f.availability, conflicts, nil, clk, f.opts)
	f.schedules = NewScheduleService(f.store, f.availability, clk)
	f.catalog = NewCatalogService(f.store, clk)
	f.waitlist = NewWaitlistService(f.store, clk, f.opts)
	f.outbox = NewOutboxService(f.store, f.dlq, clk, f.opts)

	var err error
	f.resource, err = f.schedules.CreateResource(f.ctx, &CreateResourceRequest{
		TenantID: testTenant,
		Type:     entity.ResourceTypeStaff,
		Name:     "Anna",
		Timezone: "UTC",
	})
	require.NoError(t, err)

	f.service, err = f.catalog.CreateService(f.ctx, &CreateServiceRequest{
		TenantID:    testTenant,
		Name:        "Haircut",
		DurationMin: 60,
		PriceCents:  4500,
	})
	require.NoError(t, err)

	f.customer, err = f.catalog.CreateCustomer(f.ctx, &CreateCustomerRequest{
		TenantID: testTenant,
		Name:     "Boris",
		Email:    "boris@example.com",
	})
	require.NoError(t, err)

	return f
}

func (f *fixture) bookingRequest(start, end time.Time) *CreateBookingRequest {
	return &CreateBookingRequest{
		TenantID:   testTenant,
		CustomerID: f.customer.ID,
		ResourceID: f.resource.ID,
		ServiceID:  f.service.ID,
		StartAt:    start,
		EndAt:      end,
	}
}

func (f *fixture) book(start, end time.Time) *entity.Booking {
	f.t.Helper()
	b, err := f.bookings.CreateBooking(f.ctx, f.bookingRequest(start, end))
	require.NoError(f.t, err)
	return b
}

func (f *fixture) bookConfirmed(start, end time.Time) *entity.Booking {
	f.t.Helper()
	b := f.book(start, end)
	b, err := f.bookings.ConfirmBooking(f.ctx, testTenant, b.ID, false)
	require.NoError(f.t, err)
	return b
}

func (f *fixture) hold(start, end time.Time, ttlSeconds int) *entity.BookingHold {
	f.t.Helper()
	h, err := f.holdSvc.CreateHold(f.ctx, &CreateHoldRequest{
		TenantID:   testTenant,
		ResourceID: f.resource.ID,
		ServiceID:  f.service.ID,
		StartAt:    start,
		EndAt:      end,
		TTLSeconds: ttlSeconds,
	})
	require.NoError(f.t, err)
	return h
}

func (f *fixture) day() []entity.Slot {
	f.t.Helper()
	slots, err := f.availability.ComputeAvailability(f.ctx, testTenant, f.resource.ID, at(0, 0), at(24, 0))
	require.NoError(f.t, err)
	return slots
}

// eventCodes lists the codes of every outbox event of the tenant.
func (f *fixture) eventCodes() map[string]int {
	f.t.Helper()
	events, err := f.store.Outbox().ListByStatus(f.ctx, testTenant, "", 0)
	require.NoError(f.t, err)
	codes := map[string]int{}
	for _, e := range events {
		codes[e.EventCode]++
	}
	return codes
}

func availableAt(slots []entity.Slot, start time.Time) bool {
	for _, s := range slots {
		if s.Start.Equal(start) {
			return s.Available
		}
	}
	return false
}

var errInjected = errors.New("injected storage failure")

// faultyStore hands out transactions whose outbox or hold writes fail.
type faultyStore struct {
	database.Store
	failEnqueue    bool
	failHoldCreate bool
}

func (s *faultyStore) WithTx(ctx context.Context, fn func(tx database.Tx) error) error {
	return s.Store.WithTx(ctx, func(tx database.Tx) error {
		return fn(&faultyTx{Tx: tx, store: s})
	})
}

type faultyTx struct {
	database.Tx
	store *faultyStore
}

func (t *faultyTx) Outbox() database.OutboxRepository {
	if t.store.failEnqueue {
		return failingOutbox{t.Tx.Outbox()}
	}
	return t.Tx.Outbox()
}

func (t *faultyTx) Holds() database.HoldRepository {
	if t.store.failHoldCreate {
		return failingHolds{t.Tx.Holds()}
	}
	return t.Tx.Holds()
}

type failingOutbox struct{ database.OutboxRepository }

func (failingOutbox) Enqueue(context.Context, *entity.OutboxEvent) error { return errInjected }

type failingHolds struct{ database.HoldRepository }

func (failingHolds) Create(context.Context, *entity.BookingHold) error { return errInjected }

// recordingHoldCache remembers which keys were written and removed.
type recordingHoldCache struct {
	database.HoldCache
	puts    []string
	deletes []string
}

func (c *recordingHoldCache) Put(ctx context.Context, hold *entity.BookingHold, ttl time.Duration) error {
	c.puts = append(c.puts, hold.HoldKey)
	return c.HoldCache.Put(ctx, hold, ttl)
}

func (c *recordingHoldCache) Delete(ctx context.Context, tenantID, holdKey string) error {
	c.deletes = append(c.deletes, holdKey)
	return c.HoldCache.Delete(ctx, tenantID, holdKey)
}

// flakyAvailabilityCache fails invalidations while down is set.
type flakyAvailabilityCache struct {
	database.AvailabilityCache
	down bool
}

func (c *flakyAvailabilityCache) Invalidate(ctx context.Context, tenantID, resourceID string) error {
	if c.down {
		return errors.New("redis down")
	}
	return c.AvailabilityCache.Invalidate(ctx, tenantID, resourceID)
}
