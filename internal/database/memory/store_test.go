package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ds124wfegd/tithi-booking/internal/database"
	"github.com/ds124wfegd/tithi-booking/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)

func booking(id, clientID string, startHour int, status entity.BookingStatus) *entity.Booking {
	return &entity.Booking{
		ID:                id,
		TenantID:          "t1",
		ResourceID:        "r1",
		ClientGeneratedID: clientID,
		StartAt:           base.Add(time.Duration(startHour) * time.Hour),
		EndAt:             base.Add(time.Duration(startHour+1) * time.Hour),
		Status:            status,
	}
}

func TestWithTx_CommitAndRollback(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	err := s.WithTx(ctx, func(tx database.Tx) error {
		return tx.Bookings().Create(ctx, booking("b1", "c1", 1, entity.BookingStatusPending))
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.WithTx(ctx, func(tx database.Tx) error {
		require.NoError(t, tx.Bookings().Create(ctx, booking("b2", "c2", 2, entity.BookingStatusPending)))

		b, err := tx.Bookings().GetByID(ctx, "t1", "b1")
		require.NoError(t, err)
		b.Status = entity.BookingStatusCanceled
		require.NoError(t, tx.Bookings().Update(ctx, b))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.Bookings().GetByID(ctx, "t1", "b2")
	assert.ErrorIs(t, err, entity.ErrBookingNotFound)

	b, err := s.Bookings().GetByID(ctx, "t1", "b1")
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusPending, b.Status)
}

func TestWithTx_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := NewStore().WithTx(ctx, func(tx database.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestReadsReturnCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.Bookings().Create(ctx, booking("b1", "c1", 1, entity.BookingStatusPending)))

	b, err := s.Bookings().GetByID(ctx, "t1", "b1")
	require.NoError(t, err)
	b.Status = entity.BookingStatusCompleted

	again, err := s.Bookings().GetByID(ctx, "t1", "b1")
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusPending, again.Status)
}

func TestBookings_DuplicateClientIDAndTenantScope(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.Bookings().Create(ctx, booking("b1", "c1", 1, entity.BookingStatusPending)))

	err := s.Bookings().Create(ctx, booking("b2", "c1", 2, entity.BookingStatusPending))
	assert.ErrorIs(t, err, entity.ErrDuplicateClientID)

	other := booking("b3", "c1", 2, entity.BookingStatusPending)
	other.TenantID = "t2"
	require.NoError(t, s.Bookings().Create(ctx, other))

	_, err = s.Bookings().GetByID(ctx, "t1", "b3")
	assert.ErrorIs(t, err, entity.ErrBookingNotFound)
}

func TestBookings_ListOverlapping(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.Bookings().Create(ctx, booking("b1", "c1", 1, entity.BookingStatusConfirmed)))
	require.NoError(t, s.Bookings().Create(ctx, booking("b2", "c2", 2, entity.BookingStatusCanceled)))
	require.NoError(t, s.Bookings().Create(ctx, booking("b3", "c3", 3, entity.BookingStatusPending)))

	iv := entity.NewInterval(base, base.Add(4*time.Hour))
	got, err := s.Bookings().ListOverlapping(ctx, "t1", "r1", iv, entity.BlockingStatuses())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b1", got[0].ID)
	assert.Equal(t, "b3", got[1].ID)

	// Touching intervals do not overlap.
	touching := entity.NewInterval(base, base.Add(time.Hour))
	got, err = s.Bookings().ListOverlapping(ctx, "t1", "r1", touching, entity.BlockingStatuses())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestHolds_ActiveAndPurge(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	for i, until := range []time.Duration{time.Minute, 2 * time.Minute, time.Hour} {
		require.NoError(t, s.Holds().Create(ctx, &entity.BookingHold{
			ID:         string(rune('a' + i)),
			HoldKey:    string(rune('a' + i)),
			TenantID:   "t1",
			ResourceID: "r1",
			StartAt:    base.Add(time.Hour),
			EndAt:      base.Add(2 * time.Hour),
			HoldUntil:  base.Add(until),
		}))
	}

	now := base.Add(5 * time.Minute)
	iv := entity.NewInterval(base, base.Add(3*time.Hour))
	active, err := s.Holds().ListActiveOverlapping(ctx, "t1", "r1", iv, now)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "c", active[0].HoldKey)

	n, err := s.Holds().DeleteExpired(ctx, now, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	_, err = s.Holds().GetByKey(ctx, "t1", "a")
	assert.ErrorIs(t, err, entity.ErrHoldNotFound)

	n, err = s.Holds().DeleteExpired(ctx, now, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	removed, err := s.Holds().Delete(ctx, "t1", "c")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = s.Holds().Delete(ctx, "t1", "c")
	require.NoError(t, err)
	assert.False(t, removed)
}
