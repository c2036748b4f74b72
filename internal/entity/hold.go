package entity

import "time"

// BookingHold is a short-lived exclusive claim on an interval. Holds expire
// passively: once HoldUntil has passed the hold no longer blocks anything,
// whether or not the row has been purged.
type BookingHold struct {
	ID         string    `json:"id" db:"id"`
	HoldKey    string    `json:"hold_key" db:"hold_key"`
	TenantID   string    `json:"tenant_id" db:"tenant_id"`
	ResourceID string    `json:"resource_id" db:"resource_id"`
	ServiceID  string    `json:"service_id" db:"service_id"`
	StartAt    time.Time `json:"start_at" db:"start_at"`
	EndAt      time.Time `json:"end_at" db:"end_at"`
	HoldUntil  time.Time `json:"hold_until" db:"hold_until"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

func (h *BookingHold) ActiveAt(now time.Time) bool {
	return now.Before(h.HoldUntil)
}

func (h *BookingHold) Interval() Interval {
	return Interval{Start: h.StartAt, End: h.EndAt}
}
