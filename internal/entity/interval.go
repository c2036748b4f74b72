package entity

import "time"

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func NewInterval(start, end time.Time) Interval {
	return Interval{Start: start, End: end}
}

func (i Interval) Valid() bool {
	return i.Start.Before(i.End)
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Overlaps reports a.start < b.end && a.end > b.start. Touching intervals
// do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && i.End.After(other.Start)
}

// Contains reports whether other lies completely inside i.
func (i Interval) Contains(other Interval) bool {
	return !other.Start.Before(i.Start) && !other.End.After(i.End)
}

// Slot is one candidate bookable interval produced by availability.
type Slot struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
}

func (s Slot) Interval() Interval {
	return Interval{Start: s.Start, End: s.End}
}
