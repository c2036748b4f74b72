package repository

import (
	"context"
	"time"

	"github.com/ds124wfegd/tithi-booking/internal/entity"
	"github.com/jmoiron/sqlx"
)

const holdColumns = `id, hold_key, tenant_id, resource_id, service_id, start_at, end_at, hold_until, created_at`

type holdRepository struct {
	q sqlx.ExtContext
}

func (r *holdRepository) Create(ctx context.Context, hold *entity.BookingHold) error {
	query := `
		INSERT INTO booking_holds (` + holdColumns + `)
		VALUES (:id, :hold_key, :tenant_id, :resource_id, :service_id, :start_at, :end_at, :hold_until, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, r.q, query, hold); err != nil {
		return entity.Transient("create hold", err)
	}
	return nil
}

// GetByKey returns the hold row whether or not it has expired; callers
// decide with ActiveAt.
func (r *holdRepository) GetByKey(ctx context.Context, tenantID, holdKey string) (*entity.BookingHold, error) {
	query := `SELECT ` + holdColumns + ` FROM booking_holds WHERE tenant_id = $1 AND hold_key = $2`

	var hold entity.BookingHold
	if err := sqlx.GetContext(ctx, r.q, &hold, query, tenantID, holdKey); err != nil {
		return nil, notFound(err, entity.ErrHoldNotFound, "get hold")
	}
	return &hold, nil
}

func (r *holdRepository) Delete(ctx context.Context, tenantID, holdKey string) (bool, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM booking_holds WHERE tenant_id = $1 AND hold_key = $2`, tenantID, holdKey)
	if err != nil {
		return false, entity.Transient("delete hold", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, entity.Transient("delete hold: rows affected", err)
	}
	return rows > 0, nil
}

func (r *holdRepository) ListActiveOverlapping(ctx context.Context, tenantID, resourceID string, iv entity.Interval, now time.Time) ([]*entity.BookingHold, error) {
	query := `
		SELECT ` + holdColumns + `
		FROM booking_holds
		WHERE tenant_id = $1 AND resource_id = $2
		  AND start_at < $4 AND end_at > $3
		  AND hold_until > $5
		ORDER BY start_at ASC`

	var holds []*entity.BookingHold
	if err := sqlx.SelectContext(ctx, r.q, &holds, query, tenantID, resourceID, iv.Start, iv.End, now); err != nil {
		return nil, entity.Transient("list active holds", err)
	}
	return holds, nil
}

// DeleteExpired purges up to limit expired holds, oldest expiry first.
func (r *holdRepository) DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error) {
	query := `
		DELETE FROM booking_holds
		WHERE id IN (
			SELECT id FROM booking_holds
			WHERE hold_until <= $1
			ORDER BY hold_until ASC
			LIMIT $2
		)`

	res, err := r.q.ExecContext(ctx, query, now, limit)
	if err != nil {
		return 0, entity.Transient("delete expired holds", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, entity.Transient("delete expired holds: rows affected", err)
	}
	return rows, nil
}
