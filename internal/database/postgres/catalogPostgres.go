package repository

import (
	"context"

	"github.com/ds124wfegd/tithi-booking/internal/entity"
	"github.com/jmoiron/sqlx"
)

type catalogRepository struct {
	q sqlx.ExtContext
}

func (r *catalogRepository) CreateService(ctx context.Context, service *entity.Service) error {
	query := `
		INSERT INTO services (id, tenant_id, name, duration_min, price_cents, category, is_active, created_at)
		VALUES (:id, :tenant_id, :name, :duration_min, :price_cents, :category, :is_active, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, r.q, query, service); err != nil {
		return entity.Transient("create service", err)
	}
	return nil
}

func (r *catalogRepository) GetService(ctx context.Context, tenantID, id string) (*entity.Service, error) {
	query := `
		SELECT id, tenant_id, name, duration_min, price_cents, category, is_active, created_at
		FROM services WHERE tenant_id = $1 AND id = $2`

	var service entity.Service
	if err := sqlx.GetContext(ctx, r.q, &service, query, tenantID, id); err != nil {
		return nil, notFound(err, entity.ErrServiceNotFound, "get service")
	}
	return &service, nil
}

func (r *catalogRepository) CreateCustomer(ctx context.Context, customer *entity.Customer) error {
	query := `
		INSERT INTO customers (id, tenant_id, name, email, phone, telegram_id, created_at)
		VALUES (:id, :tenant_id, :name, :email, :phone, :telegram_id, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, r.q, query, customer); err != nil {
		return entity.Transient("create customer", err)
	}
	return nil
}

func (r *catalogRepository) GetCustomer(ctx context.Context, tenantID, id string) (*entity.Customer, error) {
	query := `
		SELECT id, tenant_id, name, email, phone, telegram_id, created_at
		FROM customers WHERE tenant_id = $1 AND id = $2`

	var customer entity.Customer
	if err := sqlx.GetContext(ctx, r.q, &customer, query, tenantID, id); err != nil {
		return nil, notFound(err, entity.ErrCustomerNotFound, "get customer")
	}
	return &customer, nil
}
