package service

import (
	"context"
	"time"

	"github.com/ds124wfegd/tithi-booking/config"
	"github.com/ds124wfegd/tithi-booking/internal/entity"
	"github.com/ds124wfegd/tithi-booking/pkg/queue"
)

type AvailabilityService interface {
	ComputeAvailability(ctx context.Context, tenantID, resourceID string, rangeStart, rangeEnd time.Time) ([]entity.Slot, error)
	// Invalidate drops every cached day of the resource.
	Invalidate(ctx context.Context, tenantID, resourceID string)
}

type HoldService interface {
	CreateHold(ctx context.Context, req *CreateHoldRequest) (*entity.BookingHold, error)
	GetHold(ctx context.Context, tenantID, holdKey string) (*entity.BookingHold, error)
	ReleaseHold(ctx context.Context, tenantID, holdKey string) (bool, error)
	// PurgeExpired deletes up to limit hold rows that are already expired.
	PurgeExpired(ctx context.Context, limit int) (int64, error)
}

type BookingService interface {
	CreateBooking(ctx context.Context, req *CreateBookingRequest) (*entity.Booking, error)
	GetBooking(ctx context.Context, tenantID, id string) (*entity.Booking, error)
	ListBookings(ctx context.Context, filter entity.BookingFilter) ([]*entity.Booking, error)

	// Status transitions
	ConfirmBooking(ctx context.Context, tenantID, id string, requirePayment bool) (*entity.Booking, error)
	CheckInBooking(ctx context.Context, tenantID, id string) (*entity.Booking, error)
	CompleteBooking(ctx context.Context, tenantID, id string) (*entity.Booking, error)
	CancelBooking(ctx context.Context, tenantID, id, reason string) (*entity.Booking, error)
	MarkNoShow(ctx context.Context, tenantID, id string) (*entity.Booking, error)

	RescheduleBooking(ctx context.Context, req *RescheduleRequest) (*entity.Booking, error)
	MoveBooking(ctx context.Context, req *RescheduleRequest) (*entity.Booking, error)

	GetBookingStats(ctx context.Context, tenantID string, from, to time.Time) (*entity.BookingStats, error)
}

type ScheduleService interface {
	CreateResource(ctx context.Context, req *CreateResourceRequest) (*entity.Resource, error)
	GetResource(ctx context.Context, tenantID, id string) (*entity.Resource, error)
	ListResources(ctx context.Context, tenantID string) ([]*entity.Resource, error)

	CreateSchedule(ctx context.Context, req *ScheduleRequest) (*entity.WorkSchedule, error)
	UpdateSchedule(ctx context.Context, id string, req *ScheduleRequest) (*entity.WorkSchedule, error)
	DeleteSchedule(ctx context.Context, tenantID, id string) error
	ListSchedules(ctx context.Context, tenantID, resourceID string) ([]*entity.WorkSchedule, error)
}

type CatalogService interface {
	CreateService(ctx context.Context, req *CreateServiceRequest) (*entity.Service, error)
	GetService(ctx context.Context, tenantID, id string) (*entity.Service, error)
	CreateCustomer(ctx context.Context, req *CreateCustomerRequest) (*entity.Customer, error)
	GetCustomer(ctx context.Context, tenantID, id string) (*entity.Customer, error)
}

type WaitlistService interface {
	AddToWaitlist(ctx context.Context, req *AddWaitlistRequest) (*entity.WaitlistEntry, error)
}

// OutboxService is the operator view over the event outbox.
type OutboxService interface {
	ListEvents(ctx context.Context, tenantID string, status entity.OutboxStatus, limit int) ([]*entity.OutboxEvent, error)
	ListDeadLetters(ctx context.Context, tenantID string, limit int) ([]*queue.DeadLetter, error)
	RequeueDeadLetter(ctx context.Context, tenantID, id string) (*entity.OutboxEvent, error)
	DeadLetterStats(ctx context.Context, tenantID string) (*queue.DLQStats, error)
}

// Options carries the booking policy knobs shared by the services.
type Options struct {
	SlotMinutes    int
	DefaultHours   entity.WorkHours
	MinDuration    time.Duration
	MaxDuration    time.Duration
	HoldTTL        time.Duration
	MaxHoldTTL     time.Duration
	CacheTTL       time.Duration
	MaxRangeDays   int
	MaxAttempts    int
	NotifyLimit    int
	WaitlistTTL    time.Duration
	WebhookEnabled bool
}

func DefaultOptions() Options {
	return Options{
		SlotMinutes:  60,
		DefaultHours: entity.WorkHours{StartHour: 9, EndHour: 17},
		MinDuration:  15 * time.Minute,
		MaxDuration:  8 * time.Hour,
		HoldTTL:      15 * time.Minute,
		MaxHoldTTL:   time.Hour,
		CacheTTL:     5 * time.Minute,
		MaxRangeDays: 62,
		MaxAttempts:  3,
		NotifyLimit:  5,
		WaitlistTTL:  30 * 24 * time.Hour,
	}
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SlotMinutes:    cfg.Booking.SlotMinutes,
		DefaultHours:   entity.WorkHours{StartHour: cfg.Booking.DefaultStartHour, EndHour: cfg.Booking.DefaultEndHour},
		MinDuration:    cfg.Booking.MinDuration,
		MaxDuration:    cfg.Booking.MaxDuration,
		HoldTTL:        cfg.Booking.HoldTTL,
		MaxHoldTTL:     cfg.Booking.MaxHoldTTL,
		CacheTTL:       cfg.Booking.CacheTTL,
		MaxRangeDays:   cfg.Booking.MaxRangeDays,
		MaxAttempts:    cfg.Outbox.MaxAttempts,
		NotifyLimit:    cfg.Waitlist.NotifyLimit,
		WaitlistTTL:    cfg.Waitlist.EntryTTL,
		WebhookEnabled: cfg.Webhook.URL != "",
	}
}
