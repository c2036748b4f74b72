package repository

import (
	"context"

	"github.com/ds124wfegd/tithi-booking/internal/entity"
	"github.com/jmoiron/sqlx"
)

const scheduleColumns = `
	id, tenant_id, resource_id, schedule_type, start_date, end_date, work_hours,
	is_time_off, overrides_regular, created_at, updated_at`

type scheduleRepository struct {
	q sqlx.ExtContext
}

func (r *scheduleRepository) Create(ctx context.Context, schedule *entity.WorkSchedule) error {
	query := `
		INSERT INTO work_schedules (` + scheduleColumns + `)
		VALUES (
			:id, :tenant_id, :resource_id, :schedule_type, :start_date, :end_date, :work_hours,
			:is_time_off, :overrides_regular, :created_at, :updated_at
		)`

	if _, err := sqlx.NamedExecContext(ctx, r.q, query, schedule); err != nil {
		return entity.Transient("create work schedule", err)
	}
	return nil
}

func (r *scheduleRepository) Update(ctx context.Context, schedule *entity.WorkSchedule) error {
	query := `
		UPDATE work_schedules
		SET schedule_type = :schedule_type, start_date = :start_date, end_date = :end_date,
		    work_hours = :work_hours, is_time_off = :is_time_off,
		    overrides_regular = :overrides_regular, updated_at = :updated_at
		WHERE tenant_id = :tenant_id AND id = :id`

	res, err := sqlx.NamedExecContext(ctx, r.q, query, schedule)
	if err != nil {
		return entity.Transient("update work schedule", err)
	}
	return checkAffected(res, entity.ErrScheduleNotFound, "update work schedule")
}

func (r *scheduleRepository) Delete(ctx context.Context, tenantID, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM work_schedules WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return entity.Transient("delete work schedule", err)
	}
	return checkAffected(res, entity.ErrScheduleNotFound, "delete work schedule")
}

func (r *scheduleRepository) GetByID(ctx context.Context, tenantID, id string) (*entity.WorkSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM work_schedules WHERE tenant_id = $1 AND id = $2`

	var schedule entity.WorkSchedule
	if err := sqlx.GetContext(ctx, r.q, &schedule, query, tenantID, id); err != nil {
		return nil, notFound(err, entity.ErrScheduleNotFound, "get work schedule")
	}
	return &schedule, nil
}

func (r *scheduleRepository) ListByResource(ctx context.Context, tenantID, resourceID string) ([]*entity.WorkSchedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM work_schedules
		WHERE tenant_id = $1 AND resource_id = $2
		ORDER BY start_date ASC, id ASC`

	var schedules []*entity.WorkSchedule
	if err := sqlx.SelectContext(ctx, r.q, &schedules, query, tenantID, resourceID); err != nil {
		return nil, entity.Transient("list work schedules", err)
	}
	return schedules, nil
}

func (r *scheduleRepository) ListCovering(ctx context.Context, tenantID, resourceID string, from, to entity.Date) ([]*entity.WorkSchedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM work_schedules
		WHERE tenant_id = $1 AND resource_id = $2
		  AND start_date <= $4
		  AND (end_date IS NULL OR end_date >= $3)
		ORDER BY start_date ASC, id ASC`

	var schedules []*entity.WorkSchedule
	if err := sqlx.SelectContext(ctx, r.q, &schedules, query, tenantID, resourceID, from, to); err != nil {
		return nil, entity.Transient("list covering work schedules", err)
	}
	return schedules, nil
}
