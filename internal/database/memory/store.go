// Package memory is an in-process implementation of the storage contracts.
// Transactions are serialized by a single mutex and applied copy-on-commit,
// which gives the same at-most-one-claim guarantee as the per-resource
// advisory locks of the postgres store.
package memory

import (
	"context"
	"sync"

	"github.com/ds124wfegd/tithi-booking/internal/database"
	"github.com/ds124wfegd/tithi-booking/internal/entity"
)

type state struct {
	resources map[string]*entity.Resource
	schedules map[string]*entity.WorkSchedule
	bookings  map[string]*entity.Booking
	holds     map[string]*entity.BookingHold
	outbox    map[string]*entity.OutboxEvent
	waitlist  map[string]*entity.WaitlistEntry
	services  map[string]*entity.Service
	customers map[string]*entity.Customer
}

func newState() *state {
	return &state{
		resources: map[string]*entity.Resource{},
		schedules: map[string]*entity.WorkSchedule{},
		bookings:  map[string]*entity.Booking{},
		holds:     map[string]*entity.BookingHold{},
		outbox:    map[string]*entity.OutboxEvent{},
		waitlist:  map[string]*entity.WaitlistEntry{},
		services:  map[string]*entity.Service{},
		customers: map[string]*entity.Customer{},
	}
}

func cloneMap[T any](src map[string]*T, cp func(*T) *T) map[string]*T {
	out := make(map[string]*T, len(src))
	for k, v := range src {
		out[k] = cp(v)
	}
	return out
}

func shallow[T any](v *T) *T {
	c := *v
	return &c
}

func copyEvent(e *entity.OutboxEvent) *entity.OutboxEvent {
	c := *e
	c.Payload = e.Payload.Clone()
	return &c
}

func (s *state) clone() *state {
	return &state{
		resources: cloneMap(s.resources, shallow[entity.Resource]),
		schedules: cloneMap(s.schedules, shallow[entity.WorkSchedule]),
		bookings:  cloneMap(s.bookings, shallow[entity.Booking]),
		holds:     cloneMap(s.holds, shallow[entity.BookingHold]),
		outbox:    cloneMap(s.outbox, copyEvent),
		waitlist:  cloneMap(s.waitlist, shallow[entity.WaitlistEntry]),
		services:  cloneMap(s.services, shallow[entity.Service]),
		customers: cloneMap(s.customers, shallow[entity.Customer]),
	}
}

func key(tenantID, id string) string {
	return tenantID + "/" + id
}

// view is either the committed state guarded by the store mutex, or a
// transaction's private working copy.
type view struct {
	store *Store
	st    *state
}

func (v *view) acquire() (*state, func()) {
	if v.store == nil {
		return v.st, func() {}
	}
	v.store.mu.Lock()
	return v.store.state, v.store.mu.Unlock
}

func (v *view) Resources() database.ResourceRepository { return &resourceRepository{v} }
func (v *view) Schedules() database.ScheduleRepository { return &scheduleRepository{v} }
func (v *view) Bookings() database.BookingRepository   { return &bookingRepository{v} }
func (v *view) Holds() database.HoldRepository         { return &holdRepository{v} }
func (v *view) Outbox() database.OutboxRepository      { return &outboxRepository{v} }
func (v *view) Waitlist() database.WaitlistRepository  { return &waitlistRepository{v} }
func (v *view) Catalog() database.CatalogRepository    { return &catalogRepository{v} }

// LockResource is a no-op: a transaction already owns the whole store.
func (v *view) LockResource(ctx context.Context, tenantID, resourceID string) error {
	return ctx.Err()
}

type Store struct {
	view
	mu    sync.Mutex
	state *state
}

var _ database.Store = (*Store)(nil)

func NewStore() *Store {
	s := &Store{state: newState()}
	s.view = view{store: s}
	return s
}

// WithTx runs fn against a private copy of the state and publishes it only
// when fn succeeds. Calling Store repositories from inside fn deadlocks; use
// the Tx handed to fn.
func (s *Store) WithTx(ctx context.Context, fn func(tx database.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&view{st: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *Store) Close() error { return nil }
