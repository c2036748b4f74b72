package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type ScheduleType string

const (
	ScheduleTypeRegular  ScheduleType = "regular"
	ScheduleTypeOverride ScheduleType = "override"
	ScheduleTypeTimeOff  ScheduleType = "time_off"
	ScheduleTypeHoliday  ScheduleType = "holiday"
)

func (t ScheduleType) Valid() bool {
	switch t {
	case ScheduleTypeRegular, ScheduleTypeOverride, ScheduleTypeTimeOff, ScheduleTypeHoliday:
		return true
	}
	return false
}

// WorkHours is a daily window in whole hours, end exclusive.
type WorkHours struct {
	StartHour int `json:"start_hour"`
	EndHour   int `json:"end_hour"`
}

func (w WorkHours) Valid() bool {
	return w.StartHour >= 0 && w.StartHour < w.EndHour && w.EndHour <= 24
}

// On returns the concrete interval of these hours on day in loc.
func (w WorkHours) On(day Date, loc *time.Location) Interval {
	return Interval{Start: day.At(w.StartHour, loc), End: day.At(w.EndHour, loc)}
}

func (w WorkHours) Value() (driver.Value, error) {
	b, err := json.Marshal(w)
	return string(b), err
}

func (w *WorkHours) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, w)
	case string:
		return json.Unmarshal([]byte(v), w)
	case nil:
		*w = WorkHours{}
		return nil
	default:
		return fmt.Errorf("cannot scan type %T into WorkHours", value)
	}
}

type WorkSchedule struct {
	ID               string       `json:"id" db:"id"`
	TenantID         string       `json:"tenant_id" db:"tenant_id"`
	ResourceID       string       `json:"resource_id" db:"resource_id"`
	ScheduleType     ScheduleType `json:"schedule_type" db:"schedule_type"`
	StartDate        Date         `json:"start_date" db:"start_date"`
	EndDate          NullDate     `json:"end_date" db:"end_date"`
	WorkHours        WorkHours    `json:"work_hours" db:"work_hours"`
	IsTimeOff        bool         `json:"is_time_off" db:"is_time_off"`
	OverridesRegular bool         `json:"overrides_regular" db:"overrides_regular"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at" db:"updated_at"`
}

// Normalize derives the flags implied by the schedule type.
func (s *WorkSchedule) Normalize() {
	switch s.ScheduleType {
	case ScheduleTypeTimeOff, ScheduleTypeHoliday:
		s.IsTimeOff = true
	case ScheduleTypeOverride:
		s.OverridesRegular = true
	}
}

// Covers reports whether day falls inside the validity window.
func (s *WorkSchedule) Covers(day Date) bool {
	if day.Before(s.StartDate.Time) {
		return false
	}
	if s.EndDate.Valid && day.After(s.EndDate.Date.Time) {
		return false
	}
	return true
}

// Validate returns per-field problems; an empty map means valid.
func (s *WorkSchedule) Validate() map[string]string {
	fields := map[string]string{}
	if !s.ScheduleType.Valid() {
		fields["schedule_type"] = "must be one of regular, override, time_off, holiday"
	}
	if s.StartDate.IsZero() {
		fields["start_date"] = "is required"
	}
	if s.EndDate.Valid && s.EndDate.Date.Before(s.StartDate.Time) {
		fields["end_date"] = "must not be before start_date"
	}
	if !s.IsTimeOff && !s.WorkHours.Valid() {
		fields["work_hours"] = "start_hour must be before end_hour, both within 0..24"
	}
	return fields
}
