package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ds124wfegd/tithi-booking/internal/entity"
	"github.com/jmoiron/sqlx"
)

const outboxColumns = `
	id, tenant_id, event_code, payload, status, attempts, max_attempts, ready_at,
	delivered_at, failed_at, last_attempt_at, error_message, created_at`

type outboxRepository struct {
	q sqlx.ExtContext
}

// Enqueue must run on the transaction of the state change it describes.
func (r *outboxRepository) Enqueue(ctx context.Context, event *entity.OutboxEvent) error {
	query := `
		INSERT INTO event_outbox (` + outboxColumns + `)
		VALUES (
			:id, :tenant_id, :event_code, :payload, :status, :attempts, :max_attempts, :ready_at,
			:delivered_at, :failed_at, :last_attempt_at, :error_message, :created_at
		)`

	if _, err := sqlx.NamedExecContext(ctx, r.q, query, event); err != nil {
		return entity.Transient("enqueue outbox event", err)
	}
	return nil
}

func (r *outboxRepository) ListReady(ctx context.Context, now time.Time, limit int) ([]*entity.OutboxEvent, error) {
	query := `
		SELECT ` + outboxColumns + `
		FROM event_outbox
		WHERE status = 'ready' AND attempts < max_attempts AND ready_at <= $1
		ORDER BY ready_at ASC, created_at ASC
		LIMIT $2`

	var events []*entity.OutboxEvent
	if err := sqlx.SelectContext(ctx, r.q, &events, query, now, limit); err != nil {
		return nil, entity.Transient("list ready outbox events", err)
	}
	return events, nil
}

// Claim re-checks eligibility under a row lock. SKIP LOCKED lets several
// dispatchers share the table without blocking on each other.
func (r *outboxRepository) Claim(ctx context.Context, id string, now time.Time) (*entity.OutboxEvent, error) {
	query := `
		SELECT ` + outboxColumns + `
		FROM event_outbox
		WHERE id = $1 AND status = 'ready' AND attempts < max_attempts AND ready_at <= $2
		FOR UPDATE SKIP LOCKED`

	var event entity.OutboxEvent
	err := sqlx.GetContext(ctx, r.q, &event, query, id, now)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, entity.Transient("claim outbox event", err)
	}
	return &event, nil
}

func (r *outboxRepository) Update(ctx context.Context, event *entity.OutboxEvent) error {
	query := `
		UPDATE event_outbox
		SET status = :status, attempts = :attempts, ready_at = :ready_at,
		    delivered_at = :delivered_at, failed_at = :failed_at,
		    last_attempt_at = :last_attempt_at, error_message = :error_message
		WHERE id = :id`

	res, err := sqlx.NamedExecContext(ctx, r.q, query, event)
	if err != nil {
		return entity.Transient("update outbox event", err)
	}
	return checkAffected(res, errors.New("outbox event not found"), "update outbox event")
}

func (r *outboxRepository) ListByStatus(ctx context.Context, tenantID string, status entity.OutboxStatus, limit int) ([]*entity.OutboxEvent, error) {
	query := `
		SELECT ` + outboxColumns + `
		FROM event_outbox
		WHERE tenant_id = $1 AND ($2::text = '' OR status = $2::text)
		ORDER BY created_at DESC
		LIMIT $3`

	var events []*entity.OutboxEvent
	if err := sqlx.SelectContext(ctx, r.q, &events, query, tenantID, string(status), limit); err != nil {
		return nil, entity.Transient("list outbox events", err)
	}
	return events, nil
}
