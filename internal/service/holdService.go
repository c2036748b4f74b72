package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ds124wfegd/tithi-booking/internal/database"
	"github.com/ds124wfegd/tithi-booking/internal/entity"
	"github.com/ds124wfegd/tithi-booking/pkg/clock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CreateHoldRequest asks for a temporary hold on a slot.
type CreateHoldRequest struct {
	TenantID   string    `json:"-"`
	ResourceID string    `json:"resource_id" binding:"required"`
	ServiceID  string    `json:"service_id" binding:"required"`
	StartAt    time.Time `json:"start_at" binding:"required"`
	EndAt      time.Time `json:"end_at" binding:"required"`
	TTLSeconds int       `json:"ttl_seconds" binding:"omitempty,min=1"`
}

type holdService struct {
	store        database.Store
	holds        database.HoldCache
	availability AvailabilityService
	conflicts    *ConflictEngine
	clock        clock.Clock
	opts         Options
}

func NewHoldService(
	store database.Store,
	holds database.HoldCache,
	availability AvailabilityService,
	conflicts *ConflictEngine,
	c clock.Clock,
	opts Options,
) HoldService {
	return &holdService{
		store:        store,
		holds:        holds,
		availability: availability,
		conflicts:    conflicts,
		clock:        c,
		opts:         opts,
	}
}

func newHoldKey(tenantID, resourceID string, start time.Time) string {
	suffix := uuid.New()
	return fmt.Sprintf("%s_%s_%s_%x", tenantID, resourceID, start.UTC().Format(time.RFC3339), suffix[:4])
}

func (s *holdService) ttl(requested int) time.Duration {
	ttl := s.opts.HoldTTL
	if requested > 0 {
		ttl = time.Duration(requested) * time.Second
	}
	if s.opts.MaxHoldTTL > 0 && ttl > s.opts.MaxHoldTTL {
		ttl = s.opts.MaxHoldTTL
	}
	return ttl
}

func (s *holdService) CreateHold(ctx context.Context, req *CreateHoldRequest) (*entity.BookingHold, error) {
	fields := map[string]string{}
	if req.TenantID == "" {
		fields["tenant_id"] = "is required"
	}
	if req.ResourceID == "" {
		fields["resource_id"] = "is required"
	}
	if req.ServiceID == "" {
		fields["service_id"] = "is required"
	}
	if req.TTLSeconds < 0 {
		fields["ttl_seconds"] = "must be positive"
	}
	if len(fields) > 0 {
		return nil, entity.ValidationError(fields)
	}
	if err := s.conflicts.Validate(req.StartAt, req.EndAt); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	ttl := s.ttl(req.TTLSeconds)
	hold := &entity.BookingHold{
		ID:         uuid.NewString(),
		HoldKey:    newHoldKey(req.TenantID, req.ResourceID, req.StartAt),
		TenantID:   req.TenantID,
		ResourceID: req.ResourceID,
		ServiceID:  req.ServiceID,
		StartAt:    req.StartAt,
		EndAt:      req.EndAt,
		HoldUntil:  now.Add(ttl),
		CreatedAt:  now,
	}

	cached := false
	err := s.store.WithTx(ctx, func(tx database.Tx) error {
		if err := requireActiveResource(ctx, tx, req.TenantID, req.ResourceID); err != nil {
			return err
		}
		if _, err := requireActiveService(ctx, tx, req.TenantID, req.ServiceID); err != nil {
			return err
		}
		if err := tx.LockResource(ctx, req.TenantID, req.ResourceID); err != nil {
			return entity.Transient("lock resource", err)
		}
		if err := s.conflicts.Check(ctx, tx, ConflictQuery{
			TenantID:   req.TenantID,
			ResourceID: req.ResourceID,
			Start:      req.StartAt,
			End:        req.EndAt,
			Now:        now,
		}); err != nil {
			return err
		}
		if err := s.holds.Put(ctx, hold, ttl); err != nil {
			return entity.Transient("store hold", err)
		}
		cached = true
		return tx.Holds().Create(ctx, hold)
	})
	if err != nil {
		if cached {
			if derr := s.holds.Delete(ctx, hold.TenantID, hold.HoldKey); derr != nil {
				logrus.WithError(derr).WithField("hold_key", hold.HoldKey).Error("Failed to remove orphaned hold cache entry")
			}
			return nil, entity.Transient("create hold", err)
		}
		return nil, err
	}

	s.availability.Invalidate(ctx, hold.TenantID, hold.ResourceID)

	logrus.WithFields(logrus.Fields{
		"tenant_id":   hold.TenantID,
		"resource_id": hold.ResourceID,
		"hold_key":    hold.HoldKey,
		"hold_until":  hold.HoldUntil,
	}).Info("Hold created")
	return hold, nil
}

func (s *holdService) GetHold(ctx context.Context, tenantID, holdKey string) (*entity.BookingHold, error) {
	now := s.clock.Now()

	hold, err := s.holds.Get(ctx, tenantID, holdKey)
	if err != nil {
		logrus.WithError(err).WithField("hold_key", holdKey).Warn("Hold cache read failed, falling back to storage")
	}
	if hold != nil && hold.ActiveAt(now) {
		return hold, nil
	}

	hold, err = s.store.Holds().GetByKey(ctx, tenantID, holdKey)
	if err != nil {
		return nil, err
	}
	if !hold.ActiveAt(now) {
		return nil, entity.ErrHoldNotFound
	}
	return hold, nil
}

// ReleaseHold is idempotent: unknown and expired holds report false.
func (s *holdService) ReleaseHold(ctx context.Context, tenantID, holdKey string) (bool, error) {
	now := s.clock.Now()

	hold, err := s.store.Holds().GetByKey(ctx, tenantID, holdKey)
	if errors.Is(err, entity.ErrHoldNotFound) {
		s.dropCached(ctx, tenantID, holdKey)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	removed, err := s.store.Holds().Delete(ctx, tenantID, holdKey)
	if err != nil {
		return false, err
	}
	s.dropCached(ctx, tenantID, holdKey)

	if !removed || !hold.ActiveAt(now) {
		return false, nil
	}

	s.availability.Invalidate(ctx, tenantID, hold.ResourceID)
	logrus.WithFields(logrus.Fields{
		"tenant_id":   tenantID,
		"resource_id": hold.ResourceID,
		"hold_key":    holdKey,
	}).Info("Hold released")
	return true, nil
}

func (s *holdService) dropCached(ctx context.Context, tenantID, holdKey string) {
	if err := s.holds.Delete(ctx, tenantID, holdKey); err != nil {
		logrus.WithError(err).WithField("hold_key", holdKey).Warn("Failed to delete hold cache entry")
	}
}

func (s *holdService) PurgeExpired(ctx context.Context, limit int) (int64, error) {
	return s.store.Holds().DeleteExpired(ctx, s.clock.Now(), limit)
}

func requireActiveResource(ctx context.Context, tx database.Tx, tenantID, resourceID string) error {
	resource, err := tx.Resources().GetByID(ctx, tenantID, resourceID)
	if err != nil {
		return err
	}
	if !resource.IsActive {
		return entity.ErrResourceInactive
	}
	return nil
}

func requireActiveService(ctx context.Context, tx database.Tx, tenantID, serviceID string) (*entity.Service, error) {
	svc, err := tx.Catalog().GetService(ctx, tenantID, serviceID)
	if err != nil {
		return nil, err
	}
	if !svc.IsActive {
		return nil, entity.ErrServiceInactive
	}
	return svc, nil
}
