package repository

import (
	"context"

	"github.com/ds124wfegd/tithi-booking/internal/entity"
	"github.com/jmoiron/sqlx"
)

const resourceColumns = `id, tenant_id, type, name, timezone, is_active, created_at, updated_at`

type resourceRepository struct {
	q sqlx.ExtContext
}

func (r *resourceRepository) Create(ctx context.Context, resource *entity.Resource) error {
	query := `
		INSERT INTO resources (` + resourceColumns + `)
		VALUES (:id, :tenant_id, :type, :name, :timezone, :is_active, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, r.q, query, resource); err != nil {
		return entity.Transient("create resource", err)
	}
	return nil
}

func (r *resourceRepository) GetByID(ctx context.Context, tenantID, id string) (*entity.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE tenant_id = $1 AND id = $2`

	var resource entity.Resource
	if err := sqlx.GetContext(ctx, r.q, &resource, query, tenantID, id); err != nil {
		return nil, notFound(err, entity.ErrResourceNotFound, "get resource")
	}
	return &resource, nil
}

func (r *resourceRepository) List(ctx context.Context, tenantID string) ([]*entity.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE tenant_id = $1 ORDER BY name ASC`

	var resources []*entity.Resource
	if err := sqlx.SelectContext(ctx, r.q, &resources, query, tenantID); err != nil {
		return nil, entity.Transient("list resources", err)
	}
	return resources, nil
}
