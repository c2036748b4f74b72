package entity

import (
	"strings"
	"time"
)

type OutboxStatus string

const (
	OutboxStatusReady     OutboxStatus = "ready"
	OutboxStatusDelivered OutboxStatus = "delivered"
	OutboxStatusFailed    OutboxStatus = "failed"
)

func (s OutboxStatus) Valid() bool {
	return s == OutboxStatusReady || s == OutboxStatusDelivered || s == OutboxStatusFailed
}

// Event code prefixes used for handler routing.
const (
	PrefixNotify    = "NOTIFY_"
	PrefixWebhook   = "WEBHOOK_"
	PrefixAnalytics = "ANALYTICS_"
	PrefixBooking   = "BOOKING_"
)

const (
	EventBookingCreated     = "BOOKING_CREATED"
	EventBookingConfirmed   = "BOOKING_CONFIRMED"
	EventBookingCheckedIn   = "BOOKING_CHECKED_IN"
	EventBookingCompleted   = "BOOKING_COMPLETED"
	EventBookingCanceled    = "BOOKING_CANCELED"
	EventBookingNoShow      = "BOOKING_NO_SHOW"
	EventBookingRescheduled = "BOOKING_RESCHEDULED"

	EventNotifyBookingConfirmed = "NOTIFY_BOOKING_CONFIRMED"
	EventNotifyBookingCanceled  = "NOTIFY_BOOKING_CANCELED"
	EventNotifyWaitlistOpened   = "NOTIFY_WAITLIST_SLOT_OPENED"

	EventAnalyticsBookingCreated   = "ANALYTICS_BOOKING_CREATED"
	EventAnalyticsBookingCompleted = "ANALYTICS_BOOKING_COMPLETED"

	EventWebhookBookingChanged = "WEBHOOK_BOOKING_CHANGED"
)

// OutboxEvent is one domain event awaiting asynchronous delivery. Delivered
// and failed events are terminal.
type OutboxEvent struct {
	ID            string       `json:"id" db:"id"`
	TenantID      string       `json:"tenant_id" db:"tenant_id"`
	EventCode     string       `json:"event_code" db:"event_code"`
	Payload       JSONMap      `json:"payload" db:"payload"`
	Status        OutboxStatus `json:"status" db:"status"`
	Attempts      int          `json:"attempts" db:"attempts"`
	MaxAttempts   int          `json:"max_attempts" db:"max_attempts"`
	ReadyAt       time.Time    `json:"ready_at" db:"ready_at"`
	DeliveredAt   *time.Time   `json:"delivered_at,omitempty" db:"delivered_at"`
	FailedAt      *time.Time   `json:"failed_at,omitempty" db:"failed_at"`
	LastAttemptAt *time.Time   `json:"last_attempt_at,omitempty" db:"last_attempt_at"`
	ErrorMessage  *string      `json:"error_message,omitempty" db:"error_message"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
}

// Dispatchable reports whether the event is eligible for a delivery attempt
// at now.
func (e *OutboxEvent) Dispatchable(now time.Time) bool {
	return e.Status == OutboxStatusReady && e.Attempts < e.MaxAttempts && !e.ReadyAt.After(now)
}

func (e *OutboxEvent) HasPrefix(prefix string) bool {
	return strings.HasPrefix(e.EventCode, prefix)
}

func (e *OutboxEvent) MarkDelivered(now time.Time) {
	e.Status = OutboxStatusDelivered
	e.DeliveredAt = &now
	e.ErrorMessage = nil
}

// MarkAttemptFailed records a failed attempt. It returns true when the
// event became terminal.
func (e *OutboxEvent) MarkAttemptFailed(now time.Time, cause error, backoff time.Duration) bool {
	e.Attempts++
	e.LastAttemptAt = &now
	if cause != nil {
		msg := cause.Error()
		e.ErrorMessage = &msg
	}
	if e.Attempts >= e.MaxAttempts {
		e.Status = OutboxStatusFailed
		e.FailedAt = &now
		return true
	}
	e.ReadyAt = now.Add(backoff)
	return false
}
