package repository

import (
	"context"
	"time"

	"github.com/ds124wfegd/tithi-booking/internal/entity"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const waitlistColumns = `
	id, tenant_id, resource_id, service_id, customer_id, preferred_start_at,
	preferred_end_at, priority, expires_at, notified_at, created_at`

type waitlistRepository struct {
	q sqlx.ExtContext
}

func (r *waitlistRepository) Create(ctx context.Context, entry *entity.WaitlistEntry) error {
	query := `
		INSERT INTO waitlist_entries (` + waitlistColumns + `)
		VALUES (
			:id, :tenant_id, :resource_id, :service_id, :customer_id, :preferred_start_at,
			:preferred_end_at, :priority, :expires_at, :notified_at, :created_at
		)`

	if _, err := sqlx.NamedExecContext(ctx, r.q, query, entry); err != nil {
		return entity.Transient("create waitlist entry", err)
	}
	return nil
}

func (r *waitlistRepository) ListMatching(ctx context.Context, tenantID, resourceID string, iv entity.Interval, now time.Time, limit int) ([]*entity.WaitlistEntry, error) {
	query := `
		SELECT ` + waitlistColumns + `
		FROM waitlist_entries
		WHERE tenant_id = $1 AND resource_id = $2
		  AND expires_at > $3 AND notified_at IS NULL
		  AND (preferred_start_at IS NULL OR preferred_end_at IS NULL
		       OR (preferred_start_at < $5 AND preferred_end_at > $4))
		ORDER BY priority DESC, created_at ASC
		LIMIT $6`

	var entries []*entity.WaitlistEntry
	if err := sqlx.SelectContext(ctx, r.q, &entries, query, tenantID, resourceID, now, iv.Start, iv.End, limit); err != nil {
		return nil, entity.Transient("list waitlist entries", err)
	}
	return entries, nil
}

func (r *waitlistRepository) MarkNotified(ctx context.Context, tenantID string, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE waitlist_entries SET notified_at = $1 WHERE tenant_id = $2 AND id = ANY($3)`
	if _, err := r.q.ExecContext(ctx, query, at, tenantID, pq.Array(ids)); err != nil {
		return entity.Transient("mark waitlist entries notified", err)
	}
	return nil
}
