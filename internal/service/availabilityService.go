package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ds124wfegd/tithi-booking/internal/database"
	"github.com/ds124wfegd/tithi-booking/internal/entity"
	"github.com/ds124wfegd/tithi-booking/pkg/clock"
	"github.com/sirupsen/logrus"
)

type availabilityService struct {
	store database.Store
	cache database.AvailabilityCache
	clock clock.Clock
	opts  Options

	// dirty holds resources whose last invalidation failed. Their cached
	// days may predate a committed change and are bypassed until an
	// invalidation goes through.
	mu    sync.Mutex
	dirty map[string]struct{}
}

func NewAvailabilityService(store database.Store, cache database.AvailabilityCache, c clock.Clock, opts Options) AvailabilityService {
	return &availabilityService{
		store: store,
		cache: cache,
		clock: c,
		opts:  opts,
		dirty: map[string]struct{}{},
	}
}

func (s *availabilityService) ComputeAvailability(ctx context.Context, tenantID, resourceID string, rangeStart, rangeEnd time.Time) ([]entity.Slot, error) {
	if rangeStart.IsZero() || rangeEnd.IsZero() {
		return nil, entity.ValidationError(map[string]string{"range": "start and end are required"})
	}
	if rangeEnd.Before(rangeStart) {
		return nil, entity.ValidationError(map[string]string{"end": "must not be before start"})
	}

	resource, err := s.store.Resources().GetByID(ctx, tenantID, resourceID)
	if err != nil {
		return nil, err
	}
	loc, err := resource.Location()
	if err != nil {
		return nil, entity.ErrInternal.WithMessage("resource %s has an invalid timezone %q", resource.ID, resource.Timezone).Wrap(err)
	}

	days := resourceDays(rangeStart, rangeEnd, loc)
	if s.opts.MaxRangeDays > 0 && len(days) > s.opts.MaxRangeDays {
		return nil, entity.ValidationError(map[string]string{
			"range": fmt.Sprintf("must span at most %d days", s.opts.MaxRangeDays),
		})
	}

	now := s.clock.Now()
	log := logrus.WithFields(logrus.Fields{"tenant_id": tenantID, "resource_id": resourceID})

	// The generation is read before any storage read, so slots computed
	// here are never stored under a generation that postdates a change.
	cacheUsable := s.recover(ctx, tenantID, resourceID)
	if !cacheUsable {
		log.Warn("Availability cache not invalidated after a change, computing from storage")
	}
	var gen int64
	if cacheUsable {
		gen, err = s.cache.Generation(ctx, tenantID, resourceID)
		if err != nil {
			cacheUsable = false
			log.WithError(err).Warn("Availability cache unavailable, computing from storage")
		}
	}

	perDay := make(map[entity.Date][]entity.Slot, len(days))
	var missing []entity.Date
	for _, day := range days {
		if cacheUsable {
			slots, ok, err := s.cache.Get(ctx, tenantID, resourceID, gen, day)
			if err != nil {
				log.WithError(err).Warn("Availability cache read failed")
			} else if ok {
				perDay[day] = slots
				continue
			}
		}
		missing = append(missing, day)
	}

	if len(missing) > 0 {
		computed, holds, err := s.computeDays(ctx, tenantID, resourceID, missing, loc, now)
		if err != nil {
			return nil, err
		}
		for _, day := range missing {
			slots := computed[day]
			perDay[day] = slots
			if !cacheUsable {
				continue
			}
			ttl := s.cacheTTL(day, loc, holds, now)
			if ttl <= 0 {
				continue
			}
			if err := s.cache.Set(ctx, tenantID, resourceID, gen, day, slots, ttl); err != nil {
				log.WithError(err).Warn("Availability cache write failed")
			}
		}
	}

	result := make([]entity.Slot, 0, len(days)*8)
	for _, day := range days {
		result = append(result, perDay[day]...)
	}
	return result, nil
}

func (s *availabilityService) computeDays(ctx context.Context, tenantID, resourceID string, days []entity.Date, loc *time.Location, now time.Time) (map[entity.Date][]entity.Slot, []*entity.BookingHold, error) {
	first, last := days[0], days[len(days)-1]
	span := entity.NewInterval(first.At(0, loc), last.AddDays(1).At(0, loc))

	schedules, err := s.store.Schedules().ListCovering(ctx, tenantID, resourceID, first, last)
	if err != nil {
		return nil, nil, err
	}
	bookings, err := s.store.Bookings().ListOverlapping(ctx, tenantID, resourceID, span, entity.BlockingStatuses())
	if err != nil {
		return nil, nil, err
	}
	holds, err := s.store.Holds().ListActiveOverlapping(ctx, tenantID, resourceID, span, now)
	if err != nil {
		return nil, nil, err
	}

	length := time.Duration(s.opts.SlotMinutes) * time.Minute
	out := make(map[entity.Date][]entity.Slot, len(days))
	for _, day := range days {
		slots := generateSlots(dayWindows(day, schedules, s.opts.DefaultHours, loc), length)
		markBlocked(slots, bookings, holds, now)
		out[day] = slots
	}
	return out, holds, nil
}

// cacheTTL bounds a day entry by the earliest expiry among the holds that
// touch the day, so a passively expiring hold never outlives its entry.
func (s *availabilityService) cacheTTL(day entity.Date, loc *time.Location, holds []*entity.BookingHold, now time.Time) time.Duration {
	ttl := s.opts.CacheTTL
	dayIv := entity.NewInterval(day.At(0, loc), day.AddDays(1).At(0, loc))
	for _, h := range holds {
		if !h.Interval().Overlaps(dayIv) {
			continue
		}
		if left := h.HoldUntil.Sub(now); left < ttl {
			ttl = left
		}
	}
	return ttl
}

// Invalidate drops the cached days of the resource. On failure the
// resource is marked dirty and reads skip the cache until a later
// invalidation succeeds.
func (s *availabilityService) Invalidate(ctx context.Context, tenantID, resourceID string) {
	k := dirtyKey(tenantID, resourceID)
	if err := s.cache.Invalidate(ctx, tenantID, resourceID); err != nil {
		s.mu.Lock()
		s.dirty[k] = struct{}{}
		s.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"tenant_id":   tenantID,
			"resource_id": resourceID,
		}).WithError(err).Error("Failed to invalidate availability cache")
		return
	}
	s.mu.Lock()
	delete(s.dirty, k)
	s.mu.Unlock()
}

// recover retries the invalidation of a dirty resource and reports whether
// its cache can be trusted.
func (s *availabilityService) recover(ctx context.Context, tenantID, resourceID string) bool {
	k := dirtyKey(tenantID, resourceID)
	s.mu.Lock()
	_, isDirty := s.dirty[k]
	s.mu.Unlock()
	if !isDirty {
		return true
	}
	if err := s.cache.Invalidate(ctx, tenantID, resourceID); err != nil {
		return false
	}
	s.mu.Lock()
	delete(s.dirty, k)
	s.mu.Unlock()
	return true
}

func dirtyKey(tenantID, resourceID string) string {
	return tenantID + "/" + resourceID
}
