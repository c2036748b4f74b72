package service

import (
	"sort"
	"time"

	"github.com/ds124wfegd/tithi-booking/internal/entity"
)

// resourceDays lists the resource-local civil dates touched by
// [rangeStart, rangeEnd]. A range ending exactly at local midnight does not
// include the day that starts there.
func resourceDays(rangeStart, rangeEnd time.Time, loc *time.Location) []entity.Date {
	first := entity.DateOf(rangeStart.In(loc))
	localEnd := rangeEnd.In(loc)
	last := entity.DateOf(localEnd)
	if rangeEnd.After(rangeStart) && localEnd.Equal(last.At(0, loc)) {
		last = last.AddDays(-1)
	}

	var days []entity.Date
	for d := first; !d.After(last.Time); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

// dayWindows resolves the working windows of one day. Time off wins over
// everything, overrides replace regular hours, regular schedules are
// unioned, and a day without any schedule uses the default hours.
func dayWindows(day entity.Date, schedules []*entity.WorkSchedule, def entity.WorkHours, loc *time.Location) []entity.Interval {
	var overrides, regular []entity.WorkHours
	for _, s := range schedules {
		if !s.Covers(day) {
			continue
		}
		if s.IsTimeOff {
			return nil
		}
		if s.OverridesRegular {
			overrides = append(overrides, s.WorkHours)
		} else {
			regular = append(regular, s.WorkHours)
		}
	}

	hours := regular
	if len(overrides) > 0 {
		hours = overrides
	}
	if len(hours) == 0 {
		hours = []entity.WorkHours{def}
	}

	windows := make([]entity.Interval, 0, len(hours))
	for _, h := range hours {
		if h.Valid() {
			windows = append(windows, h.On(day, loc))
		}
	}
	return windows
}

// generateSlots cuts every window into back-to-back slots of the given
// length. Only slots that fit completely are kept; slots produced by more
// than one overlapping window appear once.
func generateSlots(windows []entity.Interval, length time.Duration) []entity.Slot {
	if length <= 0 {
		return nil
	}

	type span struct{ start, end int64 }
	seen := map[span]struct{}{}
	var slots []entity.Slot
	for _, w := range windows {
		for t := w.Start; !t.Add(length).After(w.End); t = t.Add(length) {
			k := span{t.UnixNano(), t.Add(length).UnixNano()}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			slots = append(slots, entity.Slot{Start: t, End: t.Add(length), Available: true})
		}
	}

	sort.Slice(slots, func(i, j int) bool {
		if !slots[i].Start.Equal(slots[j].Start) {
			return slots[i].Start.Before(slots[j].Start)
		}
		return slots[i].End.Before(slots[j].End)
	})
	return slots
}

// markBlocked flips every slot overlapping a blocking booking or an active
// hold to unavailable.
func markBlocked(slots []entity.Slot, bookings []*entity.Booking, holds []*entity.BookingHold, now time.Time) {
	for i := range slots {
		iv := slots[i].Interval()
		for _, b := range bookings {
			if b.Status.IsBlocking() && iv.Overlaps(b.Interval()) {
				slots[i].Available = false
				break
			}
		}
		if !slots[i].Available {
			continue
		}
		for _, h := range holds {
			if h.ActiveAt(now) && iv.Overlaps(h.Interval()) {
				slots[i].Available = false
				break
			}
		}
	}
}
