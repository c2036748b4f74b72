package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Date is a civil calendar date without a time zone. The wrapped time is
// always midnight UTC so values compare with ==.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the civil date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

func (d Date) AddDays(n int) Date {
	return Date{d.Time.AddDate(0, 0, n)}
}

// At returns the instant hour:00 of this date in loc. Hour 24 is the next
// midnight.
func (d Date) At(hour int, loc *time.Location) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, loc)
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

func (d *Date) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	switch v := value.(type) {
	case time.Time:
		*d = NewDate(v.Year(), v.Month(), v.Day())
	case []byte:
		return d.scanString(string(v))
	case string:
		return d.scanString(v)
	default:
		return fmt.Errorf("cannot scan type %T into Date", value)
	}
	return nil
}

func (d *Date) scanString(s string) error {
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// NullDate is a Date that may be absent (open-ended schedules).
type NullDate struct {
	Date  Date
	Valid bool
}

func (n NullDate) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return n.Date.MarshalJSON()
}

func (n *NullDate) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*n = NullDate{}
		return nil
	}
	if err := n.Date.UnmarshalJSON(b); err != nil {
		return err
	}
	n.Valid = true
	return nil
}

func (n NullDate) Value() (driver.Value, error) {
	if !n.Valid {
		return nil, nil
	}
	return n.Date.Value()
}

func (n *NullDate) Scan(value interface{}) error {
	if value == nil {
		*n = NullDate{}
		return nil
	}
	if err := n.Date.Scan(value); err != nil {
		return err
	}
	n.Valid = true
	return nil
}

// JSONMap is a free-form JSON object stored in a jsonb column.
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	return string(b), err
}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan type %T into JSONMap", value)
	}
	return json.Unmarshal(raw, m)
}

// Bool reads a boolean flag, accepting only a real JSON true.
func (m JSONMap) Bool(key string) bool {
	v, ok := m[key].(bool)
	return ok && v
}

func (m JSONMap) Clone() JSONMap {
	if m == nil {
		return nil
	}
	out := make(JSONMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
