package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCheckedIn BookingStatus = "checked_in"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCanceled  BookingStatus = "canceled"
	BookingStatusNoShow    BookingStatus = "no_show"
	BookingStatusFailed    BookingStatus = "failed"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusCanceled},
	BookingStatusConfirmed: {BookingStatusCheckedIn, BookingStatusCanceled, BookingStatusNoShow},
	BookingStatusCheckedIn: {BookingStatusCompleted, BookingStatusCanceled, BookingStatusNoShow},
}

// blockingStatuses occupy the resource timeline. Pending bookings block
// both availability and new claims.
var blockingStatuses = []BookingStatus{
	BookingStatusPending,
	BookingStatusConfirmed,
	BookingStatusCheckedIn,
}

func BlockingStatuses() []BookingStatus {
	out := make([]BookingStatus, len(blockingStatuses))
	copy(out, blockingStatuses)
	return out
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCheckedIn,
		BookingStatusCompleted, BookingStatusCanceled, BookingStatusNoShow, BookingStatusFailed:
		return true
	}
	return false
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	return len(bookingTransitions[s]) == 0
}

func (s BookingStatus) IsBlocking() bool {
	for _, b := range blockingStatuses {
		if b == s {
			return true
		}
	}
	return false
}

func (s BookingStatus) IsReschedulable() bool {
	return s == BookingStatusConfirmed || s == BookingStatusCheckedIn
}

// ServiceSnapshot freezes the service as it was when the booking was made.
type ServiceSnapshot struct {
	ServiceID   string `json:"service_id"`
	Name        string `json:"name"`
	DurationMin int    `json:"duration_min"`
	PriceCents  int64  `json:"price_cents"`
	Category    string `json:"category,omitempty"`
}

func (s ServiceSnapshot) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	return string(b), err
}

func (s *ServiceSnapshot) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	case nil:
		*s = ServiceSnapshot{}
		return nil
	default:
		return fmt.Errorf("cannot scan type %T into ServiceSnapshot", value)
	}
}

type Booking struct {
	ID                string          `json:"id" db:"id"`
	TenantID          string          `json:"tenant_id" db:"tenant_id"`
	CustomerID        string          `json:"customer_id" db:"customer_id"`
	ResourceID        string          `json:"resource_id" db:"resource_id"`
	ServiceID         string          `json:"service_id" db:"service_id"`
	ServiceSnapshot   ServiceSnapshot `json:"service_snapshot" db:"service_snapshot"`
	StartAt           time.Time       `json:"start_at" db:"start_at"`
	EndAt             time.Time       `json:"end_at" db:"end_at"`
	BookingTZ         string          `json:"booking_tz" db:"booking_tz"`
	Status            BookingStatus   `json:"status" db:"status"`
	ClientGeneratedID string          `json:"client_generated_id" db:"client_generated_id"`
	AttendeeCount     int             `json:"attendee_count" db:"attendee_count"`
	NoShowFlag        bool            `json:"no_show_flag" db:"no_show_flag"`
	CanceledAt        *time.Time      `json:"canceled_at,omitempty" db:"canceled_at"`
	CancelReason      *string         `json:"cancel_reason,omitempty" db:"cancel_reason"`
	PreviousStartAt   *time.Time      `json:"previous_start_at,omitempty" db:"previous_start_at"`
	PreviousEndAt     *time.Time      `json:"previous_end_at,omitempty" db:"previous_end_at"`
	RescheduledAt     *time.Time      `json:"rescheduled_at,omitempty" db:"rescheduled_at"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

func (b *Booking) Interval() Interval {
	return Interval{Start: b.StartAt, End: b.EndAt}
}

type BookingFilter struct {
	TenantID   string
	ResourceID string
	CustomerID string
	Status     BookingStatus
	From       *time.Time
	To         *time.Time
	Limit      int
}

// BookingStats is a per-tenant status breakdown over a time window.
type BookingStats struct {
	TotalBookings    int                   `json:"total_bookings"`
	BookingsByStatus map[BookingStatus]int `json:"bookings_by_status"`
	NoShowRate       float64               `json:"no_show_rate"`
	BookedMinutes    int64                 `json:"booked_minutes"`
}
