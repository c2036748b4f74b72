package service

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ds124wfegd/tithi-booking/internal/database"
	"github.com/ds124wfegd/tithi-booking/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBooking_BlocksSlotInAvailability(t *testing.T) {
	f := newFixture(t)

	f.bookConfirmed(at(10, 0), at(11, 0))

	slots := f.day()
	require.Len(t, slots, 8)
	for _, s := range slots {
		if s.Start.Equal(at(10, 0)) {
			assert.False(t, s.Available, "booked slot must be unavailable")
		} else {
			assert.True(t, s.Available, "slot %s", s.Start)
		}
	}
}

func TestCreateBooking_PendingBookingBlocks(t *testing.T) {
	f := newFixture(t)

	b := f.book(at(10, 0), at(11, 0))
	assert.Equal(t, entity.BookingStatusPending, b.Status)

	_, err := f.bookings.CreateBooking(f.ctx, f.bookingRequest(at(10, 30), at(11, 30)))
	assert.ErrorIs(t, err, entity.ErrSlotUnavailable)
	assert.False(t, availableAt(f.day(), at(10, 0)))
}

func TestCreateBooking_SnapshotsServiceAndDefaults(t *testing.T) {
	f := newFixture(t)

	b := f.book(at(9, 0), at(10, 0))

	assert.Equal(t, f.service.ID, b.ServiceSnapshot.ServiceID)
	assert.Equal(t, "Haircut", b.ServiceSnapshot.Name)
	assert.EqualValues(t, 4500, b.ServiceSnapshot.PriceCents)
	assert.Equal(t, 1, b.AttendeeCount)
	assert.Equal(t, "UTC", b.BookingTZ)
	assert.NotEmpty(t, b.ClientGeneratedID)

	codes := f.eventCodes()
	assert.Equal(t, 1, codes[entity.EventBookingCreated])
	assert.Equal(t, 1, codes[entity.EventAnalyticsBookingCreated])
	assert.Zero(t, codes[entity.EventWebhookBookingChanged])
}

func TestCreateBooking_WebhookEventWhenConfigured(t *testing.T) {
	f := newFixture(t, withOptions(func(o *Options) { o.WebhookEnabled = true }))

	b := f.book(at(9, 0), at(10, 0))
	_, err := f.bookings.ConfirmBooking(f.ctx, testTenant, b.ID, false)
	require.NoError(t, err)

	assert.Equal(t, 2, f.eventCodes()[entity.EventWebhookBookingChanged])
}

func TestCreateBooking_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		mut   func(r *CreateBookingRequest)
		field string
	}{
		{"end before start", func(r *CreateBookingRequest) { r.EndAt = at(9, 0) }, "end_at"},
		{"too short", func(r *CreateBookingRequest) { r.EndAt = r.StartAt.Add(10 * time.Minute) }, "end_at"},
		{"too long", func(r *CreateBookingRequest) { r.StartAt = at(0, 0); r.EndAt = at(9, 0) }, "end_at"},
		{"missing customer", func(r *CreateBookingRequest) { r.CustomerID = "" }, "customer_id"},
		{"bad zone", func(r *CreateBookingRequest) { r.BookingTZ = "Mars/Olympus" }, "booking_tz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.bookingRequest(at(10, 0), at(11, 0))
			tt.mut(req)

			_, err := f.bookings.CreateBooking(f.ctx, req)
			require.ErrorIs(t, err, entity.ErrValidation)
			assert.Contains(t, entity.AsAppError(err).Fields, tt.field)
		})
	}
}

func TestCreateBooking_NotFoundReferences(t *testing.T) {
	f := newFixture(t)

	req := f.bookingRequest(at(10, 0), at(11, 0))
	req.ResourceID = "missing"
	_, err := f.bookings.CreateBooking(f.ctx, req)
	assert.ErrorIs(t, err, entity.ErrResourceNotFound)

	req = f.bookingRequest(at(10, 0), at(11, 0))
	req.CustomerID = "missing"
	_, err = f.bookings.CreateBooking(f.ctx, req)
	assert.ErrorIs(t, err, entity.ErrCustomerNotFound)

	req = f.bookingRequest(at(10, 0), at(11, 0))
	req.TenantID = "other-tenant"
	_, err = f.bookings.CreateBooking(f.ctx, req)
	assert.ErrorIs(t, err, entity.ErrResourceNotFound)
}

func TestCreateBooking_Idempotent(t *testing.T) {
	f := newFixture(t)

	req := f.bookingRequest(at(10, 0), at(11, 0))
	req.ClientGeneratedID = "checkout-42"

	first, err := f.bookings.CreateBooking(f.ctx, req)
	require.NoError(t, err)
	second, err := f.bookings.CreateBooking(f.ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)

	all, err := f.bookings.ListBookings(f.ctx, entity.BookingFilter{TenantID: testTenant})
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, 1, f.eventCodes()[entity.EventBookingCreated])
}

func TestCreateBooking_ConcurrentClaimsOnlyOneWins(t *testing.T) {
	f := newFixture(t)

	const workers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ok   int
		lost int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.bookings.CreateBooking(f.ctx, f.bookingRequest(at(10, 0), at(11, 0)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case entity.KindOf(err) == entity.KindConflict:
				lost++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, lost)
}

func TestCreateBooking_ConcurrentSameTokenReturnsOneBooking(t *testing.T) {
	f := newFixture(t)

	const workers = 6
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := f.bookingRequest(at(13, 0), at(14, 0))
			req.ClientGeneratedID = "same-token"
			b, err := f.bookings.CreateBooking(f.ctx, req)
			if assert.NoError(t, err) {
				ids[i] = b.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids[1:] {
		assert.Equal(t, ids[0], id)
	}
}

func TestCreateBooking_RollsBackWhenOutboxFails(t *testing.T) {
	var faulty *faultyStore
	f := newFixture(t, withStore(func(s database.Store) database.Store {
		faulty = &faultyStore{Store: s, failEnqueue: true}
		return faulty
	}))

	_, err := f.bookings.CreateBooking(f.ctx, f.bookingRequest(at(10, 0), at(11, 0)))
	require.ErrorIs(t, err, errInjected)

	all, err := f.bookings.ListBookings(f.ctx, entity.BookingFilter{TenantID: testTenant})
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.True(t, availableAt(f.day(), at(10, 0)))

	faulty.failEnqueue = false
	f.book(at(10, 0), at(11, 0))
}

func TestCreateBooking_InactiveResource(t *testing.T) {
	f := newFixture(t)

	err := f.store.Resources().Create(f.ctx, &entity.Resource{
		ID:       "inactive",
		TenantID: testTenant,
		Type:     entity.ResourceTypeEquipment,
		Name:     "Chair",
		Timezone: "UTC",
		IsActive: false,
	})
	require.NoError(t, err)

	req := f.bookingRequest(at(10, 0), at(11, 0))
	req.ResourceID = "inactive"
	_, err = f.bookings.CreateBooking(f.ctx, req)
	assert.ErrorIs(t, err, entity.ErrResourceInactive)
}

func TestBookingLifecycle(t *testing.T) {
	f := newFixture(t)
	b := f.book(at(10, 0), at(11, 0))

	_, err := f.bookings.CompleteBooking(f.ctx, testTenant, b.ID)
	require.ErrorIs(t, err, entity.ErrInvalidTransition)

	b, err = f.bookings.ConfirmBooking(f.ctx, testTenant, b.ID, false)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusConfirmed, b.Status)

	b, err = f.bookings.CheckInBooking(f.ctx, testTenant, b.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusCheckedIn, b.Status)

	b, err = f.bookings.CompleteBooking(f.ctx, testTenant, b.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusCompleted, b.Status)

	_, err = f.bookings.CancelBooking(f.ctx, testTenant, b.ID, "too late")
	assert.ErrorIs(t, err, entity.ErrInvalidTransition)

	codes := f.eventCodes()
	assert.Equal(t, 1, codes[entity.EventBookingConfirmed])
	assert.Equal(t, 1, codes[entity.EventNotifyBookingConfirmed])
	assert.Equal(t, 1, codes[entity.EventBookingCheckedIn])
	assert.Equal(t, 1, codes[entity.EventBookingCompleted])
	assert.Equal(t, 1, codes[entity.EventAnalyticsBookingCompleted])

	// Completed bookings free the timeline.
	assert.True(t, availableAt(f.day(), at(10, 0)))
}

func TestConfirmBooking_RequirePayment(t *testing.T) {
	f := newFixture(t)
	b := f.book(at(10, 0), at(11, 0))

	_, err := f.bookings.ConfirmBooking(f.ctx, testTenant, b.ID, true)
	assert.ErrorIs(t, err, entity.ErrPaymentRequired)

	got, err := f.bookings.GetBooking(f.ctx, testTenant, b.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusPending, got.Status)
}

func TestCancelBooking_FreesSlotAndNotifiesWaitlist(t *testing.T) {
	f := newFixture(t)
	b := f.bookConfirmed(at(10, 0), at(11, 0))

	entry, err := f.waitlist.AddToWaitlist(f.ctx, &AddWaitlistRequest{
		TenantID:   testTenant,
		CustomerID: f.customer.ID,
		ResourceID: f.resource.ID,
		ServiceID:  f.service.ID,
		Priority:   5,
	})
	require.NoError(t, err)
	assert.Equal(t, at(8, 0).Add(f.opts.WaitlistTTL), entry.ExpiresAt)

	canceled, err := f.bookings.CancelBooking(f.ctx, testTenant, b.ID, "sick")
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusCanceled, canceled.Status)
	require.NotNil(t, canceled.CancelReason)
	assert.Equal(t, "sick", *canceled.CancelReason)
	require.NotNil(t, canceled.CanceledAt)

	assert.True(t, availableAt(f.day(), at(10, 0)))

	codes := f.eventCodes()
	assert.Equal(t, 1, codes[entity.EventBookingCanceled])
	assert.Equal(t, 1, codes[entity.EventNotifyBookingCanceled])
	assert.Equal(t, 1, codes[entity.EventNotifyWaitlistOpened])

	// A second cancellation elsewhere does not notify the same entry again.
	other := f.bookConfirmed(at(12, 0), at(13, 0))
	_, err = f.bookings.CancelBooking(f.ctx, testTenant, other.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 1, f.eventCodes()[entity.EventNotifyWaitlistOpened])
}

func TestCancelBooking_ReasonTooLong(t *testing.T) {
	f := newFixture(t)
	b := f.book(at(10, 0), at(11, 0))

	_, err := f.bookings.CancelBooking(f.ctx, testTenant, b.ID, strings.Repeat("x", 501))
	assert.ErrorIs(t, err, entity.ErrValidation)
}

func TestMarkNoShow(t *testing.T) {
	f := newFixture(t)
	b := f.bookConfirmed(at(10, 0), at(11, 0))

	b, err := f.bookings.MarkNoShow(f.ctx, testTenant, b.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusNoShow, b.Status)
	assert.True(t, b.NoShowFlag)
	assert.Equal(t, 1, f.eventCodes()[entity.EventBookingNoShow])
}

func TestMoveBooking_NoOpSucceeds(t *testing.T) {
	f := newFixture(t)
	b := f.bookConfirmed(at(10, 0), at(11, 0))

	moved, err := f.bookings.MoveBooking(f.ctx, &RescheduleRequest{
		TenantID:  testTenant,
		BookingID: b.ID,
		StartAt:   at(10, 0),
		EndAt:     at(11, 0),
	})
	require.NoError(t, err)
	assert.True(t, moved.StartAt.Equal(at(10, 0)))
	assert.Nil(t, moved.PreviousStartAt)
	assert.Zero(t, f.eventCodes()[entity.EventBookingRescheduled])
}

func TestMoveBooking_RecordsOldAndNewInterval(t *testing.T) {
	f := newFixture(t)
	b := f.bookConfirmed(at(10, 0), at(11, 0))

	moved, err := f.bookings.MoveBooking(f.ctx, &RescheduleRequest{
		TenantID:  testTenant,
		BookingID: b.ID,
		StartAt:   at(10, 30),
		EndAt:     at(11, 30),
	})
	require.NoError(t, err)
	require.NotNil(t, moved.PreviousStartAt)
	assert.True(t, moved.PreviousStartAt.Equal(at(10, 0)))
	assert.True(t, moved.PreviousEndAt.Equal(at(11, 0)))
	assert.NotNil(t, moved.RescheduledAt)

	events, err := f.store.Outbox().ListByStatus(f.ctx, testTenant, entity.OutboxStatusReady, 0)
	require.NoError(t, err)
	var payload entity.JSONMap
	for _, e := range events {
		if e.EventCode == entity.EventBookingRescheduled {
			payload = e.Payload
		}
	}
	require.NotNil(t, payload)
	assert.Equal(t, "2024-06-10T10:00:00Z", payload["old_start_at"])
	assert.Equal(t, "2024-06-10T10:30:00Z", payload["new_start_at"])
	assert.Equal(t, RescheduleSourceDragDrop, payload["source"])

	slots := f.day()
	assert.False(t, availableAt(slots, at(10, 0)))
	assert.False(t, availableAt(slots, at(11, 0)))
	assert.True(t, availableAt(slots, at(12, 0)))
}

func TestRescheduleBooking_Conflicts(t *testing.T) {
	f := newFixture(t)
	a := f.bookConfirmed(at(10, 0), at(11, 0))
	f.bookConfirmed(at(12, 0), at(13, 0))
	f.hold(at(14, 0), at(15, 0), 0)

	_, err := f.bookings.RescheduleBooking(f.ctx, &RescheduleRequest{
		TenantID: testTenant, BookingID: a.ID, StartAt: at(12, 30), EndAt: at(13, 30),
	})
	assert.ErrorIs(t, err, entity.ErrSlotUnavailable)

	_, err = f.bookings.RescheduleBooking(f.ctx, &RescheduleRequest{
		TenantID: testTenant, BookingID: a.ID, StartAt: at(14, 0), EndAt: at(15, 0),
	})
	assert.ErrorIs(t, err, entity.ErrSlotUnavailable)

	got, err := f.bookings.GetBooking(f.ctx, testTenant, a.ID)
	require.NoError(t, err)
	assert.True(t, got.StartAt.Equal(at(10, 0)))
}

func TestRescheduleBooking_RejectsNonReschedulable(t *testing.T) {
	f := newFixture(t)
	pending := f.book(at(10, 0), at(11, 0))

	_, err := f.bookings.RescheduleBooking(f.ctx, &RescheduleRequest{
		TenantID: testTenant, BookingID: pending.ID, StartAt: at(12, 0), EndAt: at(13, 0),
	})
	assert.ErrorIs(t, err, entity.ErrBookingNotReschedulable)

	_, err = f.bookings.RescheduleBooking(f.ctx, &RescheduleRequest{
		TenantID: testTenant, BookingID: "missing", StartAt: at(12, 0), EndAt: at(13, 0),
	})
	assert.ErrorIs(t, err, entity.ErrBookingNotFound)
}

func TestListBookingsAndStats(t *testing.T) {
	f := newFixture(t)
	a := f.bookConfirmed(at(9, 0), at(10, 0))
	b := f.bookConfirmed(at(11, 0), at(12, 30))
	f.book(at(14, 0), at(15, 0))

	_, err := f.bookings.CheckInBooking(f.ctx, testTenant, a.ID)
	require.NoError(t, err)
	_, err = f.bookings.CompleteBooking(f.ctx, testTenant, a.ID)
	require.NoError(t, err)
	_, err = f.bookings.MarkNoShow(f.ctx, testTenant, b.ID)
	require.NoError(t, err)

	pending, err := f.bookings.ListBookings(f.ctx, entity.BookingFilter{TenantID: testTenant, Status: entity.BookingStatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.True(t, pending[0].StartAt.Equal(at(14, 0)))

	_, err = f.bookings.ListBookings(f.ctx, entity.BookingFilter{TenantID: testTenant, Status: "bogus"})
	assert.ErrorIs(t, err, entity.ErrValidation)

	stats, err := f.bookings.GetBookingStats(f.ctx, testTenant, at(0, 0), at(24, 0))
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalBookings)
	assert.Equal(t, 1, stats.BookingsByStatus[entity.BookingStatusCompleted])
	assert.Equal(t, 1, stats.BookingsByStatus[entity.BookingStatusNoShow])
	assert.InDelta(t, 0.5, stats.NoShowRate, 1e-9)
	assert.EqualValues(t, 120, stats.BookedMinutes)

	_, err = f.bookings.GetBookingStats(f.ctx, testTenant, at(10, 0), at(9, 0))
	assert.ErrorIs(t, err, entity.ErrValidation)
}
