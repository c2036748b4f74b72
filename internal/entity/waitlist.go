package entity

import "time"

type WaitlistEntry struct {
	ID               string     `json:"id" db:"id"`
	TenantID         string     `json:"tenant_id" db:"tenant_id"`
	ResourceID       string     `json:"resource_id" db:"resource_id"`
	ServiceID        string     `json:"service_id" db:"service_id"`
	CustomerID       string     `json:"customer_id" db:"customer_id"`
	PreferredStartAt *time.Time `json:"preferred_start_at,omitempty" db:"preferred_start_at"`
	PreferredEndAt   *time.Time `json:"preferred_end_at,omitempty" db:"preferred_end_at"`
	Priority         int        `json:"priority" db:"priority"`
	ExpiresAt        time.Time  `json:"expires_at" db:"expires_at"`
	NotifiedAt       *time.Time `json:"notified_at,omitempty" db:"notified_at"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
}

// Wants reports whether a freed interval is of interest to this entry. An
// entry without a preferred window accepts anything.
func (w *WaitlistEntry) Wants(iv Interval, now time.Time) bool {
	if !now.Before(w.ExpiresAt) || w.NotifiedAt != nil {
		return false
	}
	if w.PreferredStartAt == nil || w.PreferredEndAt == nil {
		return true
	}
	return iv.Overlaps(Interval{Start: *w.PreferredStartAt, End: *w.PreferredEndAt})
}
