package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ds124wfegd/tithi-booking/internal/entity"
)

type resourceRepository struct{ v *view }

func (r *resourceRepository) Create(ctx context.Context, resource *entity.Resource) error {
	st, done := r.v.acquire()
	defer done()

	k := key(resource.TenantID, resource.ID)
	if _, ok := st.resources[k]; ok {
		return fmt.Errorf("resource %s already exists", resource.ID)
	}
	st.resources[k] = shallow(resource)
	return nil
}

func (r *resourceRepository) GetByID(ctx context.Context, tenantID, id string) (*entity.Resource, error) {
	st, done := r.v.acquire()
	defer done()

	res, ok := st.resources[key(tenantID, id)]
	if !ok {
		return nil, entity.ErrResourceNotFound
	}
	return shallow(res), nil
}

func (r *resourceRepository) List(ctx context.Context, tenantID string) ([]*entity.Resource, error) {
	st, done := r.v.acquire()
	defer done()

	var out []*entity.Resource
	for _, res := range st.resources {
		if res.TenantID == tenantID {
			out = append(out, shallow(res))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type scheduleRepository struct{ v *view }

func (r *scheduleRepository) Create(ctx context.Context, schedule *entity.WorkSchedule) error {
	st, done := r.v.acquire()
	defer done()

	st.schedules[key(schedule.TenantID, schedule.ID)] = shallow(schedule)
	return nil
}

func (r *scheduleRepository) Update(ctx context.Context, schedule *entity.WorkSchedule) error {
	st, done := r.v.acquire()
	defer done()

	k := key(schedule.TenantID, schedule.ID)
	if _, ok := st.schedules[k]; !ok {
		return entity.ErrScheduleNotFound
	}
	st.schedules[k] = shallow(schedule)
	return nil
}

func (r *scheduleRepository) Delete(ctx context.Context, tenantID, id string) error {
	st, done := r.v.acquire()
	defer done()

	k := key(tenantID, id)
	if _, ok := st.schedules[k]; !ok {
		return entity.ErrScheduleNotFound
	}
	delete(st.schedules, k)
	return nil
}

func (r *scheduleRepository) GetByID(ctx context.Context, tenantID, id string) (*entity.WorkSchedule, error) {
	st, done := r.v.acquire()
	defer done()

	s, ok := st.schedules[key(tenantID, id)]
	if !ok {
		return nil, entity.ErrScheduleNotFound
	}
	return shallow(s), nil
}

func (r *scheduleRepository) ListByResource(ctx context.Context, tenantID, resourceID string) ([]*entity.WorkSchedule, error) {
	st, done := r.v.acquire()
	defer done()

	var out []*entity.WorkSchedule
	for _, s := range st.schedules {
		if s.TenantID == tenantID && s.ResourceID == resourceID {
			out = append(out, shallow(s))
		}
	}
	sortSchedules(out)
	return out, nil
}

func (r *scheduleRepository) ListCovering(ctx context.Context, tenantID, resourceID string, from, to entity.Date) ([]*entity.WorkSchedule, error) {
	st, done := r.v.acquire()
	defer done()

	var out []*entity.WorkSchedule
	for _, s := range st.schedules {
		if s.TenantID != tenantID || s.ResourceID != resourceID {
			continue
		}
		if s.StartDate.After(to.Time) {
			continue
		}
		if s.EndDate.Valid && s.EndDate.Date.Before(from.Time) {
			continue
		}
		out = append(out, shallow(s))
	}
	sortSchedules(out)
	return out, nil
}

func sortSchedules(s []*entity.WorkSchedule) {
	sort.Slice(s, func(i, j int) bool {
		if !s[i].StartDate.Equal(s[j].StartDate.Time) {
			return s[i].StartDate.Before(s[j].StartDate.Time)
		}
		return s[i].ID < s[j].ID
	})
}

type bookingRepository struct{ v *view }

func (r *bookingRepository) Create(ctx context.Context, booking *entity.Booking) error {
	st, done := r.v.acquire()
	defer done()

	for _, b := range st.bookings {
		if b.TenantID == booking.TenantID && b.ClientGeneratedID == booking.ClientGeneratedID {
			return entity.ErrDuplicateClientID
		}
	}
	st.bookings[key(booking.TenantID, booking.ID)] = shallow(booking)
	return nil
}

func (r *bookingRepository) GetByID(ctx context.Context, tenantID, id string) (*entity.Booking, error) {
	st, done := r.v.acquire()
	defer done()

	b, ok := st.bookings[key(tenantID, id)]
	if !ok {
		return nil, entity.ErrBookingNotFound
	}
	return shallow(b), nil
}

func (r *bookingRepository) GetForUpdate(ctx context.Context, tenantID, id string) (*entity.Booking, error) {
	return r.GetByID(ctx, tenantID, id)
}

func (r *bookingRepository) GetByClientID(ctx context.Context, tenantID, clientID string) (*entity.Booking, error) {
	st, done := r.v.acquire()
	defer done()

	for _, b := range st.bookings {
		if b.TenantID == tenantID && b.ClientGeneratedID == clientID {
			return shallow(b), nil
		}
	}
	return nil, entity.ErrBookingNotFound
}

func (r *bookingRepository) Update(ctx context.Context, booking *entity.Booking) error {
	st, done := r.v.acquire()
	defer done()

	k := key(booking.TenantID, booking.ID)
	if _, ok := st.bookings[k]; !ok {
		return entity.ErrBookingNotFound
	}
	st.bookings[k] = shallow(booking)
	return nil
}

func (r *bookingRepository) ListOverlapping(ctx context.Context, tenantID, resourceID string, iv entity.Interval, statuses []entity.BookingStatus) ([]*entity.Booking, error) {
	st, done := r.v.acquire()
	defer done()

	wanted := make(map[entity.BookingStatus]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}

	var out []*entity.Booking
	for _, b := range st.bookings {
		if b.TenantID != tenantID || b.ResourceID != resourceID || !wanted[b.Status] {
			continue
		}
		if b.Interval().Overlaps(iv) {
			out = append(out, shallow(b))
		}
	}
	sortBookings(out)
	return out, nil
}

func (r *bookingRepository) List(ctx context.Context, filter entity.BookingFilter) ([]*entity.Booking, error) {
	st, done := r.v.acquire()
	defer done()

	var out []*entity.Booking
	for _, b := range st.bookings {
		if b.TenantID != filter.TenantID {
			continue
		}
		if filter.ResourceID != "" && b.ResourceID != filter.ResourceID {
			continue
		}
		if filter.CustomerID != "" && b.CustomerID != filter.CustomerID {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		if filter.From != nil && b.StartAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !b.StartAt.Before(*filter.To) {
			continue
		}
		out = append(out, shallow(b))
	}
	sortBookings(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func sortBookings(b []*entity.Booking) {
	sort.Slice(b, func(i, j int) bool {
		if !b[i].StartAt.Equal(b[j].StartAt) {
			return b[i].StartAt.Before(b[j].StartAt)
		}
		return b[i].ID < b[j].ID
	})
}

type holdRepository struct{ v *view }

func (r *holdRepository) Create(ctx context.Context, hold *entity.BookingHold) error {
	st, done := r.v.acquire()
	defer done()

	k := key(hold.TenantID, hold.HoldKey)
	if _, ok := st.holds[k]; ok {
		return fmt.Errorf("hold %s already exists", hold.HoldKey)
	}
	st.holds[k] = shallow(hold)
	return nil
}

func (r *holdRepository) GetByKey(ctx context.Context, tenantID, holdKey string) (*entity.BookingHold, error) {
	st, done := r.v.acquire()
	defer done()

	h, ok := st.holds[key(tenantID, holdKey)]
	if !ok {
		return nil, entity.ErrHoldNotFound
	}
	return shallow(h), nil
}

func (r *holdRepository) Delete(ctx context.Context, tenantID, holdKey string) (bool, error) {
	st, done := r.v.acquire()
	defer done()

	k := key(tenantID, holdKey)
	if _, ok := st.holds[k]; !ok {
		return false, nil
	}
	delete(st.holds, k)
	return true, nil
}

func (r *holdRepository) ListActiveOverlapping(ctx context.Context, tenantID, resourceID string, iv entity.Interval, now time.Time) ([]*entity.BookingHold, error) {
	st, done := r.v.acquire()
	defer done()

	var out []*entity.BookingHold
	for _, h := range st.holds {
		if h.TenantID != tenantID || h.ResourceID != resourceID || !h.ActiveAt(now) {
			continue
		}
		if h.Interval().Overlaps(iv) {
			out = append(out, shallow(h))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (r *holdRepository) DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error) {
	st, done := r.v.acquire()
	defer done()

	var expired []*entity.BookingHold
	for _, h := range st.holds {
		if !h.ActiveAt(now) {
			expired = append(expired, h)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].HoldUntil.Before(expired[j].HoldUntil) })
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}
	for _, h := range expired {
		delete(st.holds, key(h.TenantID, h.HoldKey))
	}
	return int64(len(expired)), nil
}

type outboxRepository struct{ v *view }

func (r *outboxRepository) Enqueue(ctx context.Context, event *entity.OutboxEvent) error {
	st, done := r.v.acquire()
	defer done()

	st.outbox[event.ID] = copyEvent(event)
	return nil
}

func (r *outboxRepository) ListReady(ctx context.Context, now time.Time, limit int) ([]*entity.OutboxEvent, error) {
	st, done := r.v.acquire()
	defer done()

	var out []*entity.OutboxEvent
	for _, e := range st.outbox {
		if e.Dispatchable(now) {
			out = append(out, copyEvent(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReadyAt.Equal(out[j].ReadyAt) {
			return out[i].ReadyAt.Before(out[j].ReadyAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *outboxRepository) Claim(ctx context.Context, id string, now time.Time) (*entity.OutboxEvent, error) {
	st, done := r.v.acquire()
	defer done()

	e, ok := st.outbox[id]
	if !ok || !e.Dispatchable(now) {
		return nil, nil
	}
	return copyEvent(e), nil
}

func (r *outboxRepository) Update(ctx context.Context, event *entity.OutboxEvent) error {
	st, done := r.v.acquire()
	defer done()

	if _, ok := st.outbox[event.ID]; !ok {
		return fmt.Errorf("outbox event %s not found", event.ID)
	}
	st.outbox[event.ID] = copyEvent(event)
	return nil
}

func (r *outboxRepository) ListByStatus(ctx context.Context, tenantID string, status entity.OutboxStatus, limit int) ([]*entity.OutboxEvent, error) {
	st, done := r.v.acquire()
	defer done()

	var out []*entity.OutboxEvent
	for _, e := range st.outbox {
		if e.TenantID == tenantID && (status == "" || e.Status == status) {
			out = append(out, copyEvent(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type waitlistRepository struct{ v *view }

func (r *waitlistRepository) Create(ctx context.Context, entry *entity.WaitlistEntry) error {
	st, done := r.v.acquire()
	defer done()

	st.waitlist[key(entry.TenantID, entry.ID)] = shallow(entry)
	return nil
}

func (r *waitlistRepository) ListMatching(ctx context.Context, tenantID, resourceID string, iv entity.Interval, now time.Time, limit int) ([]*entity.WaitlistEntry, error) {
	st, done := r.v.acquire()
	defer done()

	var out []*entity.WaitlistEntry
	for _, w := range st.waitlist {
		if w.TenantID == tenantID && w.ResourceID == resourceID && w.Wants(iv, now) {
			out = append(out, shallow(w))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *waitlistRepository) MarkNotified(ctx context.Context, tenantID string, ids []string, at time.Time) error {
	st, done := r.v.acquire()
	defer done()

	for _, id := range ids {
		if w, ok := st.waitlist[key(tenantID, id)]; ok {
			notified := at
			w.NotifiedAt = &notified
		}
	}
	return nil
}

type catalogRepository struct{ v *view }

func (r *catalogRepository) CreateService(ctx context.Context, service *entity.Service) error {
	st, done := r.v.acquire()
	defer done()

	st.services[key(service.TenantID, service.ID)] = shallow(service)
	return nil
}

func (r *catalogRepository) GetService(ctx context.Context, tenantID, id string) (*entity.Service, error) {
	st, done := r.v.acquire()
	defer done()

	s, ok := st.services[key(tenantID, id)]
	if !ok {
		return nil, entity.ErrServiceNotFound
	}
	return shallow(s), nil
}

func (r *catalogRepository) CreateCustomer(ctx context.Context, customer *entity.Customer) error {
	st, done := r.v.acquire()
	defer done()

	st.customers[key(customer.TenantID, customer.ID)] = shallow(customer)
	return nil
}

func (r *catalogRepository) GetCustomer(ctx context.Context, tenantID, id string) (*entity.Customer, error) {
	st, done := r.v.acquire()
	defer done()

	c, ok := st.customers[key(tenantID, id)]
	if !ok {
		return nil, entity.ErrCustomerNotFound
	}
	return shallow(c), nil
}
