package service

import (
	"context"

	"github.com/ds124wfegd/tithi-booking/internal/database"
	"github.com/ds124wfegd/tithi-booking/internal/entity"
	"github.com/ds124wfegd/tithi-booking/pkg/clock"
	"github.com/google/uuid"
)

type CreateServiceRequest struct {
	TenantID    string `json:"-"`
	Name        string `json:"name" binding:"required,min=1,max=255"`
	DurationMin int    `json:"duration_min" binding:"required,min=1,max=1440"`
	PriceCents  int64  `json:"price_cents" binding:"min=0"`
	Category    string `json:"category" binding:"max=100"`
}

type CreateCustomerRequest struct {
	TenantID   string `json:"-"`
	Name       string `json:"name" binding:"required,min=1,max=255"`
	Email      string `json:"email" binding:"omitempty,email"`
	Phone      string `json:"phone" binding:"max=50"`
	TelegramID string `json:"telegram_id" binding:"max=100"`
}

// catalogService manages the minimal service and customer records that
// bookings reference.
type catalogService struct {
	store database.Store
	clock clock.Clock
}

func NewCatalogService(store database.Store, c clock.Clock) CatalogService {
	return &catalogService{store: store, clock: c}
}

func (s *catalogService) CreateService(ctx context.Context, req *CreateServiceRequest) (*entity.Service, error) {
	fields := map[string]string{}
	if req.Name == "" {
		fields["name"] = "is required"
	}
	if req.DurationMin <= 0 {
		fields["duration_min"] = "must be positive"
	}
	if req.PriceCents < 0 {
		fields["price_cents"] = "must not be negative"
	}
	if len(fields) > 0 {
		return nil, entity.ValidationError(fields)
	}

	svc := &entity.Service{
		ID:          uuid.NewString(),
		TenantID:    req.TenantID,
		Name:        req.Name,
		DurationMin: req.DurationMin,
		PriceCents:  req.PriceCents,
		Category:    req.Category,
		IsActive:    true,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.store.Catalog().CreateService(ctx, svc); err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *catalogService) GetService(ctx context.Context, tenantID, id string) (*entity.Service, error) {
	return s.store.Catalog().GetService(ctx, tenantID, id)
}

func (s *catalogService) CreateCustomer(ctx context.Context, req *CreateCustomerRequest) (*entity.Customer, error) {
	if req.Name == "" {
		return nil, entity.ValidationError(map[string]string{"name": "is required"})
	}

	customer := &entity.Customer{
		ID:         uuid.NewString(),
		TenantID:   req.TenantID,
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		TelegramID: req.TelegramID,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.store.Catalog().CreateCustomer(ctx, customer); err != nil {
		return nil, err
	}
	return customer, nil
}

func (s *catalogService) GetCustomer(ctx context.Context, tenantID, id string) (*entity.Customer, error) {
	return s.store.Catalog().GetCustomer(ctx, tenantID, id)
}
