package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ds124wfegd/tithi-booking/internal/database"
	"github.com/ds124wfegd/tithi-booking/internal/entity"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// queries binds every repository to one executor: the pool for plain
// calls, a transaction inside WithTx.
type queries struct {
	q sqlx.ExtContext
}

func (q queries) Resources() database.ResourceRepository { return &resourceRepository{q: q.q} }
func (q queries) Schedules() database.ScheduleRepository { return &scheduleRepository{q: q.q} }
func (q queries) Bookings() database.BookingRepository   { return &bookingRepository{q: q.q} }
func (q queries) Holds() database.HoldRepository         { return &holdRepository{q: q.q} }
func (q queries) Outbox() database.OutboxRepository      { return &outboxRepository{q: q.q} }
func (q queries) Waitlist() database.WaitlistRepository  { return &waitlistRepository{q: q.q} }
func (q queries) Catalog() database.CatalogRepository    { return &catalogRepository{q: q.q} }

// LockResource takes a transaction scoped advisory lock on the
// (tenant, resource) timeline. It is released on commit or rollback.
func (q queries) LockResource(ctx context.Context, tenantID, resourceID string) error {
	_, err := q.q.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, tenantID+":"+resourceID)
	if err != nil {
		return entity.Transient("lock resource timeline", err)
	}
	return nil
}

type Store struct {
	queries
	db *sqlx.DB
}

var _ database.Store = (*Store)(nil)

func NewStore(db *sqlx.DB) *Store {
	return &Store{queries: queries{q: db}, db: db}
}

// WithTx runs fn in a read committed transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx database.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return entity.Transient("begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(queries{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return entity.Transient("commit transaction", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return string(pqErr.Code) == uniqueViolation && (constraint == "" || pqErr.Constraint == constraint)
}

// notFound maps sql.ErrNoRows to the domain error and everything else to a
// transient storage failure.
func notFound(err error, domainErr error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domainErr
	}
	return entity.Transient(op, err)
}

func checkAffected(res sql.Result, domainErr error, op string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return entity.Transient(fmt.Sprintf("%s: rows affected", op), err)
	}
	if rows == 0 {
		return domainErr
	}
	return nil
}
