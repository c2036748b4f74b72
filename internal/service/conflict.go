package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ds124wfegd/tithi-booking/internal/database"
	"github.com/ds124wfegd/tithi-booking/internal/entity"
)

// ConflictQuery describes a candidate claim on a resource timeline.
type ConflictQuery struct {
	TenantID         string
	ResourceID       string
	Start            time.Time
	End              time.Time
	ExcludeBookingID string
	ExcludeHoldKey   string
	Now              time.Time
}

// ConflictEngine decides whether an interval can be claimed. Check must run
// inside the transaction that holds the resource lock, otherwise its answer
// is stale by the time it is acted upon.
type ConflictEngine struct {
	minDuration time.Duration
	maxDuration time.Duration
}

func NewConflictEngine(minDuration, maxDuration time.Duration) *ConflictEngine {
	return &ConflictEngine{minDuration: minDuration, maxDuration: maxDuration}
}

func (e *ConflictEngine) Validate(start, end time.Time) error {
	fields := map[string]string{}
	switch {
	case start.IsZero():
		fields["start_at"] = "is required"
	case end.IsZero():
		fields["end_at"] = "is required"
	case !start.Before(end):
		fields["end_at"] = "must be after start_at"
	default:
		d := end.Sub(start)
		if d < e.minDuration {
			fields["end_at"] = fmt.Sprintf("duration must be at least %s", e.minDuration)
		} else if d > e.maxDuration {
			fields["end_at"] = fmt.Sprintf("duration must be at most %s", e.maxDuration)
		}
	}
	if len(fields) > 0 {
		return entity.ValidationError(fields)
	}
	return nil
}

func (e *ConflictEngine) Check(ctx context.Context, tx database.Tx, q ConflictQuery) error {
	iv := entity.NewInterval(q.Start, q.End)

	bookings, err := tx.Bookings().ListOverlapping(ctx, q.TenantID, q.ResourceID, iv, entity.BlockingStatuses())
	if err != nil {
		return err
	}
	for _, b := range bookings {
		if b.ID != q.ExcludeBookingID {
			return entity.ErrSlotUnavailable
		}
	}

	holds, err := tx.Holds().ListActiveOverlapping(ctx, q.TenantID, q.ResourceID, iv, q.Now)
	if err != nil {
		return err
	}
	for _, h := range holds {
		if h.HoldKey != q.ExcludeHoldKey {
			return entity.ErrSlotUnavailable
		}
	}
	return nil
}
