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

type CreateResourceRequest struct {
	TenantID string              `json:"-"`
	Type     entity.ResourceType `json:"type" binding:"required,oneof=staff equipment"`
	Name     string              `json:"name" binding:"required,min=1,max=255"`
	Timezone string              `json:"timezone" binding:"omitempty,max=64"`
}

// ScheduleRequest is used for both creation and full replacement of a
// work schedule.
type ScheduleRequest struct {
	TenantID         string              `json:"-"`
	ResourceID       string              `json:"-"`
	ScheduleType     entity.ScheduleType `json:"schedule_type" binding:"required"`
	StartDate        entity.Date         `json:"start_date"`
	EndDate          *entity.Date        `json:"end_date,omitempty"`
	WorkHours        entity.WorkHours    `json:"work_hours"`
	IsTimeOff        bool                `json:"is_time_off"`
	OverridesRegular bool                `json:"overrides_regular"`
}

func (r *ScheduleRequest) apply(s *entity.WorkSchedule) {
	s.ScheduleType = r.ScheduleType
	s.StartDate = r.StartDate
	s.EndDate = entity.NullDate{}
	if r.EndDate != nil {
		s.EndDate = entity.NullDate{Date: *r.EndDate, Valid: true}
	}
	s.WorkHours = r.WorkHours
	s.IsTimeOff = r.IsTimeOff
	s.OverridesRegular = r.OverridesRegular
	s.Normalize()
}

type scheduleService struct {
	store        database.Store
	availability AvailabilityService
	clock        clock.Clock
}

func NewScheduleService(store database.Store, availability AvailabilityService, c clock.Clock) ScheduleService {
	return &scheduleService{
		store:        store,
		availability: availability,
		clock:        c,
	}
}

func (s *scheduleService) CreateResource(ctx context.Context, req *CreateResourceRequest) (*entity.Resource, error) {
	fields := map[string]string{}
	if req.TenantID == "" {
		fields["tenant_id"] = "is required"
	}
	if req.Name == "" {
		fields["name"] = "is required"
	}
	if !req.Type.Valid() {
		fields["type"] = "must be staff or equipment"
	}
	tz := req.Timezone
	if tz == "" {
		tz = "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		fields["timezone"] = "unknown time zone"
	}
	if len(fields) > 0 {
		return nil, entity.ValidationError(fields)
	}

	now := s.clock.Now()
	resource := &entity.Resource{
		ID:        uuid.NewString(),
		TenantID:  req.TenantID,
		Type:      req.Type,
		Name:      req.Name,
		Timezone:  tz,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Resources().Create(ctx, resource); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"tenant_id":   resource.TenantID,
		"resource_id": resource.ID,
	}).Info("Resource created")
	return resource, nil
}

func (s *scheduleService) GetResource(ctx context.Context, tenantID, id string) (*entity.Resource, error) {
	return s.store.Resources().GetByID(ctx, tenantID, id)
}

func (s *scheduleService) ListResources(ctx context.Context, tenantID string) ([]*entity.Resource, error) {
	return s.store.Resources().List(ctx, tenantID)
}

func (s *scheduleService) CreateSchedule(ctx context.Context, req *ScheduleRequest) (*entity.WorkSchedule, error) {
	if _, err := s.store.Resources().GetByID(ctx, req.TenantID, req.ResourceID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	schedule := &entity.WorkSchedule{
		ID:         uuid.NewString(),
		TenantID:   req.TenantID,
		ResourceID: req.ResourceID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	req.apply(schedule)
	if fields := schedule.Validate(); len(fields) > 0 {
		return nil, entity.ValidationError(fields)
	}

	if err := s.store.Schedules().Create(ctx, schedule); err != nil {
		return nil, err
	}
	s.availability.Invalidate(ctx, schedule.TenantID, schedule.ResourceID)
	return schedule, nil
}

func (s *scheduleService) UpdateSchedule(ctx context.Context, id string, req *ScheduleRequest) (*entity.WorkSchedule, error) {
	schedule, err := s.store.Schedules().GetByID(ctx, req.TenantID, id)
	if err != nil {
		return nil, err
	}

	req.apply(schedule)
	schedule.UpdatedAt = s.clock.Now()
	if fields := schedule.Validate(); len(fields) > 0 {
		return nil, entity.ValidationError(fields)
	}

	if err := s.store.Schedules().Update(ctx, schedule); err != nil {
		return nil, err
	}
	s.availability.Invalidate(ctx, schedule.TenantID, schedule.ResourceID)
	return schedule, nil
}

func (s *scheduleService) DeleteSchedule(ctx context.Context, tenantID, id string) error {
	schedule, err := s.store.Schedules().GetByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := s.store.Schedules().Delete(ctx, tenantID, id); err != nil {
		return err
	}
	s.availability.Invalidate(ctx, tenantID, schedule.ResourceID)
	return nil
}

func (s *scheduleService) ListSchedules(ctx context.Context, tenantID, resourceID string) ([]*entity.WorkSchedule, error) {
	if _, err := s.store.Resources().GetByID(ctx, tenantID, resourceID); err != nil {
		return nil, err
	}
	return s.store.Schedules().ListByResource(ctx, tenantID, resourceID)
}
