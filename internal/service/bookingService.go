package service

import (
	"context"
	"errors"
	"time"

	"github.com/ds124wfegd/tithi-booking/internal/database"
	"github.com/ds124wfegd/tithi-booking/internal/entity"
	"github.com/ds124wfegd/tithi-booking/pkg/clock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CreateBookingRequest carries the fields needed to create a booking.
type CreateBookingRequest struct {
	TenantID          string    `json:"-"`
	CustomerID        string    `json:"customer_id" binding:"required"`
	ResourceID        string    `json:"resource_id" binding:"required"`
	ServiceID         string    `json:"service_id" binding:"required"`
	StartAt           time.Time `json:"start_at" binding:"required"`
	EndAt             time.Time `json:"end_at" binding:"required"`
	ClientGeneratedID string    `json:"client_generated_id" binding:"omitempty,max=255"`
	HoldKey           string    `json:"hold_key" binding:"omitempty,max=512"`
	AttendeeCount     int       `json:"attendee_count" binding:"omitempty,min=1,max=1000"`
	BookingTZ         string    `json:"booking_tz" binding:"omitempty,max=64"`
}

// RescheduleRequest moves a booking to a new interval on the same resource.
type RescheduleRequest struct {
	TenantID  string    `json:"-"`
	BookingID string    `json:"-"`
	StartAt   time.Time `json:"start_at" binding:"required"`
	EndAt     time.Time `json:"end_at" binding:"required"`
}

const (
	RescheduleSourceAPI      = "api"
	RescheduleSourceDragDrop = "drag_drop"
)

// PaymentVerifier reports whether a booking has been paid for.
type PaymentVerifier interface {
	BookingPaid(ctx context.Context, tenantID, bookingID string) (bool, error)
}

type bookingService struct {
	store        database.Store
	holds        database.HoldCache
	availability AvailabilityService
	conflicts    *ConflictEngine
	payments     PaymentVerifier
	clock        clock.Clock
	opts         Options
}

// NewBookingService creates a BookingService. payments may be
// nil, in which case confirmations that require payment are refused.
func NewBookingService(
	store database.Store,
	holds database.HoldCache,
	availability AvailabilityService,
	conflicts *ConflictEngine,
	payments PaymentVerifier,
	c clock.Clock,
	opts Options,
) BookingService {
	return &bookingService{
		store:        store,
		holds:        holds,
		availability: availability,
		conflicts:    conflicts,
		payments:     payments,
		clock:        c,
		opts:         opts,
	}
}

func (s *bookingService) CreateBooking(ctx context.Context, req *CreateBookingRequest) (*entity.Booking, error) {
	fields := map[string]string{}
	if req.TenantID == "" {
		fields["tenant_id"] = "is required"
	}
	if req.CustomerID == "" {
		fields["customer_id"] = "is required"
	}
	if req.ResourceID == "" {
		fields["resource_id"] = "is required"
	}
	if req.ServiceID == "" {
		fields["service_id"] = "is required"
	}
	if req.AttendeeCount < 0 {
		fields["attendee_count"] = "must be positive"
	}
	if req.BookingTZ != "" {
		if _, err := time.LoadLocation(req.BookingTZ); err != nil {
			fields["booking_tz"] = "unknown time zone"
		}
	}
	if len(fields) > 0 {
		return nil, entity.ValidationError(fields)
	}
	if err := s.conflicts.Validate(req.StartAt, req.EndAt); err != nil {
		return nil, err
	}

	clientID := req.ClientGeneratedID
	if clientID != "" {
		existing, err := s.store.Bookings().GetByClientID(ctx, req.TenantID, clientID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, entity.ErrBookingNotFound) {
			return nil, err
		}
	} else {
		clientID = uuid.NewString()
	}

	now := s.clock.Now()
	var (
		booking  *entity.Booking
		replayed bool
		consumed *entity.BookingHold
	)
	err := s.store.WithTx(ctx, func(tx database.Tx) error {
		if err := tx.LockResource(ctx, req.TenantID, req.ResourceID); err != nil {
			return entity.Transient("lock resource", err)
		}

		existing, err := tx.Bookings().GetByClientID(ctx, req.TenantID, clientID)
		if err == nil {
			booking, replayed = existing, true
			return nil
		}
		if !errors.Is(err, entity.ErrBookingNotFound) {
			return err
		}

		if err := requireActiveResource(ctx, tx, req.TenantID, req.ResourceID); err != nil {
			return err
		}
		svc, err := requireActiveService(ctx, tx, req.TenantID, req.ServiceID)
		if err != nil {
			return err
		}
		if _, err := tx.Catalog().GetCustomer(ctx, req.TenantID, req.CustomerID); err != nil {
			return err
		}

		interval := entity.NewInterval(req.StartAt, req.EndAt)
		hold, err := s.matchHold(ctx, tx, req, interval, now)
		if err != nil {
			return err
		}
		excludeHold := ""
		if hold != nil {
			excludeHold = hold.HoldKey
		}

		if err := s.conflicts.Check(ctx, tx, ConflictQuery{
			TenantID:       req.TenantID,
			ResourceID:     req.ResourceID,
			Start:          req.StartAt,
			End:            req.EndAt,
			ExcludeHoldKey: excludeHold,
			Now:            now,
		}); err != nil {
			return err
		}

		attendees := req.AttendeeCount
		if attendees == 0 {
			attendees = 1
		}
		tz := req.BookingTZ
		if tz == "" {
			tz = "UTC"
		}
		booking = &entity.Booking{
			ID:                uuid.NewString(),
			TenantID:          req.TenantID,
			CustomerID:        req.CustomerID,
			ResourceID:        req.ResourceID,
			ServiceID:         req.ServiceID,
			ServiceSnapshot:   svc.Snapshot(),
			StartAt:           req.StartAt,
			EndAt:             req.EndAt,
			BookingTZ:         tz,
			Status:            entity.BookingStatusPending,
			ClientGeneratedID: clientID,
			AttendeeCount:     attendees,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := tx.Bookings().Create(ctx, booking); err != nil {
			return err
		}

		if hold != nil {
			if _, err := tx.Holds().Delete(ctx, req.TenantID, hold.HoldKey); err != nil {
				return err
			}
			consumed = hold
		}

		payload := bookingPayload(booking)
		events := []string{entity.EventBookingCreated, entity.EventAnalyticsBookingCreated}
		if s.opts.WebhookEnabled {
			events = append(events, entity.EventWebhookBookingChanged)
		}
		return s.enqueue(ctx, tx, booking.TenantID, now, payload, events...)
	})
	if errors.Is(err, entity.ErrDuplicateClientID) {
		// Lost the race against a concurrent request with the same token.
		return s.store.Bookings().GetByClientID(ctx, req.TenantID, clientID)
	}
	if err != nil {
		return nil, err
	}
	if replayed {
		return booking, nil
	}

	if consumed != nil {
		if err := s.holds.Delete(ctx, consumed.TenantID, consumed.HoldKey); err != nil {
			logrus.WithError(err).WithField("hold_key", consumed.HoldKey).Warn("Failed to delete consumed hold from cache")
		}
	}
	s.availability.Invalidate(ctx, booking.TenantID, booking.ResourceID)

	logrus.WithFields(logrus.Fields{
		"tenant_id":   booking.TenantID,
		"booking_id":  booking.ID,
		"resource_id": booking.ResourceID,
		"start_at":    booking.StartAt,
	}).Info("Booking created")
	return booking, nil
}

// matchHold returns the caller's own active hold when it may be converted
// into this booking. Unknown or expired keys are ignored: an expired hold
// does not block anything anyway.
func (s *bookingService) matchHold(ctx context.Context, tx database.Tx, req *CreateBookingRequest, iv entity.Interval, now time.Time) (*entity.BookingHold, error) {
	if req.HoldKey == "" {
		return nil, nil
	}
	hold, err := tx.Holds().GetByKey(ctx, req.TenantID, req.HoldKey)
	if errors.Is(err, entity.ErrHoldNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !hold.ActiveAt(now) {
		return nil, nil
	}
	if hold.ResourceID != req.ResourceID || !hold.Interval().Contains(iv) {
		return nil, entity.ErrHoldMismatch
	}
	return hold, nil
}

func (s *bookingService) GetBooking(ctx context.Context, tenantID, id string) (*entity.Booking, error) {
	return s.store.Bookings().GetByID(ctx, tenantID, id)
}

func (s *bookingService) ListBookings(ctx context.Context, filter entity.BookingFilter) ([]*entity.Booking, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, entity.ValidationError(map[string]string{"status": "unknown booking status"})
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, entity.ValidationError(map[string]string{"to": "must not be before from"})
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.store.Bookings().List(ctx, filter)
}

func (s *bookingService) ConfirmBooking(ctx context.Context, tenantID, id string, requirePayment bool) (*entity.Booking, error) {
	if requirePayment {
		if s.payments == nil {
			return nil, entity.ErrPaymentRequired
		}
		paid, err := s.payments.BookingPaid(ctx, tenantID, id)
		if err != nil {
			return nil, err
		}
		if !paid {
			return nil, entity.ErrPaymentRequired
		}
	}
	return s.transition(ctx, tenantID, id, entity.BookingStatusConfirmed, nil,
		entity.EventBookingConfirmed, entity.EventNotifyBookingConfirmed)
}

func (s *bookingService) CheckInBooking(ctx context.Context, tenantID, id string) (*entity.Booking, error) {
	return s.transition(ctx, tenantID, id, entity.BookingStatusCheckedIn, nil, entity.EventBookingCheckedIn)
}

func (s *bookingService) CompleteBooking(ctx context.Context, tenantID, id string) (*entity.Booking, error) {
	return s.transition(ctx, tenantID, id, entity.BookingStatusCompleted, nil,
		entity.EventBookingCompleted, entity.EventAnalyticsBookingCompleted)
}

func (s *bookingService) CancelBooking(ctx context.Context, tenantID, id, reason string) (*entity.Booking, error) {
	if len(reason) > 500 {
		return nil, entity.ValidationError(map[string]string{"reason": "must be at most 500 characters"})
	}
	return s.transition(ctx, tenantID, id, entity.BookingStatusCanceled,
		func(ctx context.Context, tx database.Tx, b *entity.Booking, now time.Time) error {
			b.CanceledAt = &now
			if reason != "" {
				b.CancelReason = &reason
			}
			return s.notifyWaitlist(ctx, tx, b, now)
		},
		entity.EventBookingCanceled, entity.EventNotifyBookingCanceled)
}

func (s *bookingService) MarkNoShow(ctx context.Context, tenantID, id string) (*entity.Booking, error) {
	return s.transition(ctx, tenantID, id, entity.BookingStatusNoShow,
		func(ctx context.Context, tx database.Tx, b *entity.Booking, now time.Time) error {
			b.NoShowFlag = true
			return nil
		},
		entity.EventBookingNoShow)
}

type transitionHook func(ctx context.Context, tx database.Tx, b *entity.Booking, now time.Time) error

// transition applies one edge of the booking state machine under a row
// lock and enqueues its events in the same transaction.
func (s *bookingService) transition(ctx context.Context, tenantID, id string, next entity.BookingStatus, hook transitionHook, events ...string) (*entity.Booking, error) {
	now := s.clock.Now()
	if s.opts.WebhookEnabled {
		events = append(events, entity.EventWebhookBookingChanged)
	}

	var (
		booking  *entity.Booking
		previous entity.BookingStatus
	)
	err := s.store.WithTx(ctx, func(tx database.Tx) error {
		b, err := tx.Bookings().GetForUpdate(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if !b.Status.CanTransitionTo(next) {
			return entity.ErrInvalidTransition.
				WithMessage("cannot change booking status from %s to %s", b.Status, next).
				WithField("status", string(b.Status))
		}

		previous = b.Status
		b.Status = next
		b.UpdatedAt = now
		if hook != nil {
			if err := hook(ctx, tx, b, now); err != nil {
				return err
			}
		}
		if err := tx.Bookings().Update(ctx, b); err != nil {
			return err
		}

		payload := bookingPayload(b)
		payload["previous_status"] = string(previous)
		if err := s.enqueue(ctx, tx, b.TenantID, now, payload, events...); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.availability.Invalidate(ctx, booking.TenantID, booking.ResourceID)

	logrus.WithFields(logrus.Fields{
		"tenant_id":  booking.TenantID,
		"booking_id": booking.ID,
		"from":       previous,
		"to":         booking.Status,
	}).Info("Booking status changed")
	return booking, nil
}

// notifyWaitlist tells the best placed waitlist entries that the freed
// interval is open.
func (s *bookingService) notifyWaitlist(ctx context.Context, tx database.Tx, b *entity.Booking, now time.Time) error {
	if s.opts.NotifyLimit <= 0 {
		return nil
	}
	entries, err := tx.Waitlist().ListMatching(ctx, b.TenantID, b.ResourceID, b.Interval(), now, s.opts.NotifyLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		payload := entity.JSONMap{
			"waitlist_entry_id": e.ID,
			"customer_id":       e.CustomerID,
			"resource_id":       b.ResourceID,
			"service_id":        e.ServiceID,
			"start_at":          b.StartAt.UTC().Format(time.RFC3339),
			"end_at":            b.EndAt.UTC().Format(time.RFC3339),
		}
		if err := s.enqueue(ctx, tx, b.TenantID, now, payload, entity.EventNotifyWaitlistOpened); err != nil {
			return err
		}
		ids = append(ids, e.ID)
	}
	return tx.Waitlist().MarkNotified(ctx, b.TenantID, ids, now)
}

func (s *bookingService) RescheduleBooking(ctx context.Context, req *RescheduleRequest) (*entity.Booking, error) {
	return s.reschedule(ctx, req, RescheduleSourceAPI)
}

// MoveBooking is the calendar drag-and-drop entry point.
func (s *bookingService) MoveBooking(ctx context.Context, req *RescheduleRequest) (*entity.Booking, error) {
	return s.reschedule(ctx, req, RescheduleSourceDragDrop)
}

func (s *bookingService) reschedule(ctx context.Context, req *RescheduleRequest, source string) (*entity.Booking, error) {
	if err := s.conflicts.Validate(req.StartAt, req.EndAt); err != nil {
		return nil, err
	}

	current, err := s.store.Bookings().GetByID(ctx, req.TenantID, req.BookingID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var (
		booking *entity.Booking
		moved   bool
	)
	err = s.store.WithTx(ctx, func(tx database.Tx) error {
		if err := tx.LockResource(ctx, req.TenantID, current.ResourceID); err != nil {
			return entity.Transient("lock resource", err)
		}
		b, err := tx.Bookings().GetForUpdate(ctx, req.TenantID, req.BookingID)
		if err != nil {
			return err
		}
		if !b.Status.IsReschedulable() {
			return entity.ErrBookingNotReschedulable.WithField("status", string(b.Status))
		}

		if err := s.conflicts.Check(ctx, tx, ConflictQuery{
			TenantID:         b.TenantID,
			ResourceID:       b.ResourceID,
			Start:            req.StartAt,
			End:              req.EndAt,
			ExcludeBookingID: b.ID,
			Now:              now,
		}); err != nil {
			return err
		}

		booking = b
		if b.StartAt.Equal(req.StartAt) && b.EndAt.Equal(req.EndAt) {
			return nil
		}

		oldStart, oldEnd := b.StartAt, b.EndAt
		b.PreviousStartAt = &oldStart
		b.PreviousEndAt = &oldEnd
		b.StartAt = req.StartAt
		b.EndAt = req.EndAt
		b.RescheduledAt = &now
		b.UpdatedAt = now
		if err := tx.Bookings().Update(ctx, b); err != nil {
			return err
		}
		moved = true

		payload := bookingPayload(b)
		payload["old_start_at"] = oldStart.UTC().Format(time.RFC3339)
		payload["old_end_at"] = oldEnd.UTC().Format(time.RFC3339)
		payload["new_start_at"] = b.StartAt.UTC().Format(time.RFC3339)
		payload["new_end_at"] = b.EndAt.UTC().Format(time.RFC3339)
		payload["source"] = source
		events := []string{entity.EventBookingRescheduled}
		if s.opts.WebhookEnabled {
			events = append(events, entity.EventWebhookBookingChanged)
		}
		return s.enqueue(ctx, tx, b.TenantID, now, payload, events...)
	})
	if err != nil {
		return nil, err
	}

	if moved {
		s.availability.Invalidate(ctx, booking.TenantID, booking.ResourceID)
		logrus.WithFields(logrus.Fields{
			"tenant_id":  booking.TenantID,
			"booking_id": booking.ID,
			"source":     source,
			"start_at":   booking.StartAt,
		}).Info("Booking rescheduled")
	}
	return booking, nil
}

// GetBookingStats summarizes bookings starting in [from, to).
func (s *bookingService) GetBookingStats(ctx context.Context, tenantID string, from, to time.Time) (*entity.BookingStats, error) {
	if !from.Before(to) {
		return nil, entity.ValidationError(map[string]string{"to": "must be after from"})
	}
	bookings, err := s.store.Bookings().List(ctx, entity.BookingFilter{TenantID: tenantID, From: &from, To: &to})
	if err != nil {
		return nil, err
	}

	stats := &entity.BookingStats{BookingsByStatus: map[entity.BookingStatus]int{}}
	for _, b := range bookings {
		stats.TotalBookings++
		stats.BookingsByStatus[b.Status]++
		if b.Status.IsBlocking() || b.Status == entity.BookingStatusCompleted {
			stats.BookedMinutes += int64(b.EndAt.Sub(b.StartAt) / time.Minute)
		}
	}
	attended := stats.BookingsByStatus[entity.BookingStatusCompleted] + stats.BookingsByStatus[entity.BookingStatusNoShow]
	if attended > 0 {
		stats.NoShowRate = float64(stats.BookingsByStatus[entity.BookingStatusNoShow]) / float64(attended)
	}
	return stats, nil
}

func (s *bookingService) enqueue(ctx context.Context, tx database.Tx, tenantID string, now time.Time, payload entity.JSONMap, codes ...string) error {
	for _, code := range codes {
		event := &entity.OutboxEvent{
			ID:          uuid.NewString(),
			TenantID:    tenantID,
			EventCode:   code,
			Payload:     payload.Clone(),
			Status:      entity.OutboxStatusReady,
			MaxAttempts: s.opts.MaxAttempts,
			ReadyAt:     now,
			CreatedAt:   now,
		}
		if err := tx.Outbox().Enqueue(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

func bookingPayload(b *entity.Booking) entity.JSONMap {
	return entity.JSONMap{
		"booking_id":   b.ID,
		"resource_id":  b.ResourceID,
		"customer_id":  b.CustomerID,
		"service_id":   b.ServiceID,
		"service_name": b.ServiceSnapshot.Name,
		"status":       string(b.Status),
		"start_at":     b.StartAt.UTC().Format(time.RFC3339),
		"end_at":       b.EndAt.UTC().Format(time.RFC3339),
	}
}
