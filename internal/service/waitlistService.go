package service

import (
	"context"
	"time"

	"github.com/ds124wfegd/tithi-booking/internal/database"
	"github.com/ds124wfegd/tithi-booking/internal/entity"
	"github.com/ds124wfegd/tithi-booking/pkg/clock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type AddWaitlistRequest struct {
	TenantID         string     `json:"-"`
	CustomerID       string     `json:"customer_id" binding:"required"`
	ResourceID       string     `json:"resource_id" binding:"required"`
	ServiceID        string     `json:"service_id" binding:"required"`
	PreferredStartAt *time.Time `json:"preferred_start_at,omitempty"`
	PreferredEndAt   *time.Time `json:"preferred_end_at,omitempty"`
	Priority         int        `json:"priority" binding:"min=0,max=100"`
}

type waitlistService struct {
	store database.Store
	clock clock.Clock
	ttl   time.Duration
}

func NewWaitlistService(store database.Store, c clock.Clock, opts Options) WaitlistService {
	return &waitlistService{store: store, clock: c, ttl: opts.WaitlistTTL}
}

func (s *waitlistService) AddToWaitlist(ctx context.Context, req *AddWaitlistRequest) (*entity.WaitlistEntry, error) {
	fields := map[string]string{}
	if req.CustomerID == "" {
		fields["customer_id"] = "is required"
	}
	if req.ResourceID == "" {
		fields["resource_id"] = "is required"
	}
	if req.ServiceID == "" {
		fields["service_id"] = "is required"
	}
	if req.Priority < 0 {
		fields["priority"] = "must not be negative"
	}
	if req.PreferredStartAt != nil && req.PreferredEndAt != nil && !req.PreferredStartAt.Before(*req.PreferredEndAt) {
		fields["preferred_end_at"] = "must be after preferred_start_at"
	}
	if len(fields) > 0 {
		return nil, entity.ValidationError(fields)
	}

	now := s.clock.Now()
	entry := &entity.WaitlistEntry{
		ID:               uuid.NewString(),
		TenantID:         req.TenantID,
		ResourceID:       req.ResourceID,
		ServiceID:        req.ServiceID,
		CustomerID:       req.CustomerID,
		PreferredStartAt: req.PreferredStartAt,
		PreferredEndAt:   req.PreferredEndAt,
		Priority:         req.Priority,
		ExpiresAt:        now.Add(s.ttl),
		CreatedAt:        now,
	}

	err := s.store.WithTx(ctx, func(tx database.Tx) error {
		if _, err := tx.Catalog().GetCustomer(ctx, req.TenantID, req.CustomerID); err != nil {
			return err
		}
		if _, err := tx.Resources().GetByID(ctx, req.TenantID, req.ResourceID); err != nil {
			return err
		}
		if _, err := tx.Catalog().GetService(ctx, req.TenantID, req.ServiceID); err != nil {
			return err
		}
		return tx.Waitlist().Create(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"tenant_id":   entry.TenantID,
		"resource_id": entry.ResourceID,
		"entry_id":    entry.ID,
	}).Info("Customer added to waitlist")
	return entry, nil
}
