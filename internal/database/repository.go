package database

import (
	"context"
	"time"

	"github.com/ds124wfegd/tithi-booking/internal/entity"
)

// Every repository method is tenant scoped: reads and writes filter by the
// tenant id they are given and never cross tenants.

type ResourceRepository interface {
	Create(ctx context.Context, resource *entity.Resource) error
	GetByID(ctx context.Context, tenantID, id string) (*entity.Resource, error)
	List(ctx context.Context, tenantID string) ([]*entity.Resource, error)
}

type ScheduleRepository interface {
	Create(ctx context.Context, schedule *entity.WorkSchedule) error
	Update(ctx context.Context, schedule *entity.WorkSchedule) error
	Delete(ctx context.Context, tenantID, id string) error
	GetByID(ctx context.Context, tenantID, id string) (*entity.WorkSchedule, error)
	ListByResource(ctx context.Context, tenantID, resourceID string) ([]*entity.WorkSchedule, error)
	// ListCovering returns schedules whose validity window intersects [from, to].
	ListCovering(ctx context.Context, tenantID, resourceID string, from, to entity.Date) ([]*entity.WorkSchedule, error)
}

type BookingRepository interface {
	// Create returns entity.ErrDuplicateClientID when the idempotency token
	// is already taken for the tenant.
	Create(ctx context.Context, booking *entity.Booking) error
	GetByID(ctx context.Context, tenantID, id string) (*entity.Booking, error)
	// GetForUpdate locks the row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, tenantID, id string) (*entity.Booking, error)
	GetByClientID(ctx context.Context, tenantID, clientID string) (*entity.Booking, error)
	Update(ctx context.Context, booking *entity.Booking) error
	ListOverlapping(ctx context.Context, tenantID, resourceID string, iv entity.Interval, statuses []entity.BookingStatus) ([]*entity.Booking, error)
	List(ctx context.Context, filter entity.BookingFilter) ([]*entity.Booking, error)
}

type HoldRepository interface {
	Create(ctx context.Context, hold *entity.BookingHold) error
	GetByKey(ctx context.Context, tenantID, holdKey string) (*entity.BookingHold, error)
	// Delete reports whether a row was removed.
	Delete(ctx context.Context, tenantID, holdKey string) (bool, error)
	// ListActiveOverlapping only returns holds with hold_until > now.
	ListActiveOverlapping(ctx context.Context, tenantID, resourceID string, iv entity.Interval, now time.Time) ([]*entity.BookingHold, error)
	DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error)
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, event *entity.OutboxEvent) error
	// ListReady returns dispatchable events across tenants, oldest ready_at first.
	ListReady(ctx context.Context, now time.Time, limit int) ([]*entity.OutboxEvent, error)
	// Claim locks a still dispatchable event for this transaction. It returns
	// nil when the event was already processed or is locked by another
	// dispatcher.
	Claim(ctx context.Context, id string, now time.Time) (*entity.OutboxEvent, error)
	Update(ctx context.Context, event *entity.OutboxEvent) error
	ListByStatus(ctx context.Context, tenantID string, status entity.OutboxStatus, limit int) ([]*entity.OutboxEvent, error)
}

type WaitlistRepository interface {
	Create(ctx context.Context, entry *entity.WaitlistEntry) error
	// ListMatching returns unexpired, not yet notified entries for the
	// resource, highest priority first, oldest first within a priority.
	ListMatching(ctx context.Context, tenantID, resourceID string, iv entity.Interval, now time.Time, limit int) ([]*entity.WaitlistEntry, error)
	MarkNotified(ctx context.Context, tenantID string, ids []string, at time.Time) error
}

type CatalogRepository interface {
	CreateService(ctx context.Context, service *entity.Service) error
	GetService(ctx context.Context, tenantID, id string) (*entity.Service, error)
	CreateCustomer(ctx context.Context, customer *entity.Customer) error
	GetCustomer(ctx context.Context, tenantID, id string) (*entity.Customer, error)
}

// Tx is a unit of work. Repositories obtained from a Tx share its
// transaction.
type Tx interface {
	Resources() ResourceRepository
	Schedules() ScheduleRepository
	Bookings() BookingRepository
	Holds() HoldRepository
	Outbox() OutboxRepository
	Waitlist() WaitlistRepository
	Catalog() CatalogRepository

	// LockResource serializes claims on one (tenant, resource) timeline
	// until the transaction ends.
	LockResource(ctx context.Context, tenantID, resourceID string) error
}

// Store is the durable source of truth. Repositories obtained directly from
// a Store run each call on its own.
type Store interface {
	Tx
	// WithTx commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// HoldCache is the fast, self-expiring mirror of active holds.
type HoldCache interface {
	Put(ctx context.Context, hold *entity.BookingHold, ttl time.Duration) error
	// Get returns nil, nil on a miss.
	Get(ctx context.Context, tenantID, holdKey string) (*entity.BookingHold, error)
	Delete(ctx context.Context, tenantID, holdKey string) error
}

// AvailabilityCache stores computed slots per (tenant, resource, day) under
// a per-resource generation. Invalidate moves the generation forward, so
// entries written by a computation that started before the invalidation
// are never read again.
type AvailabilityCache interface {
	Generation(ctx context.Context, tenantID, resourceID string) (int64, error)
	Get(ctx context.Context, tenantID, resourceID string, gen int64, day entity.Date) ([]entity.Slot, bool, error)
	Set(ctx context.Context, tenantID, resourceID string, gen int64, day entity.Date, slots []entity.Slot, ttl time.Duration) error
	Invalidate(ctx context.Context, tenantID, resourceID string) error
}
