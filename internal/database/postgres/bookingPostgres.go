package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/ds124wfegd/tithi-booking/internal/entity"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const bookingColumns = `
	id, tenant_id, customer_id, resource_id, service_id, service_snapshot,
	start_at, end_at, booking_tz, status, client_generated_id, attendee_count,
	no_show_flag, canceled_at, cancel_reason, previous_start_at, previous_end_at,
	rescheduled_at, created_at, updated_at`

type bookingRepository struct {
	q sqlx.ExtContext
}

// Create inserts a booking. The (tenant_id, client_generated_id) unique
// constraint is the last line of defence for idempotent creation.
func (r *bookingRepository) Create(ctx context.Context, booking *entity.Booking) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES (
			:id, :tenant_id, :customer_id, :resource_id, :service_id, :service_snapshot,
			:start_at, :end_at, :booking_tz, :status, :client_generated_id, :attendee_count,
			:no_show_flag, :canceled_at, :cancel_reason, :previous_start_at, :previous_end_at,
			:rescheduled_at, :created_at, :updated_at
		)`

	if _, err := sqlx.NamedExecContext(ctx, r.q, query, booking); err != nil {
		if isUniqueViolation(err, "bookings_tenant_client_id_key") {
			return entity.ErrDuplicateClientID
		}
		return entity.Transient("create booking", err)
	}
	return nil
}

// GetByID retrieves a booking by its ID
func (r *bookingRepository) GetByID(ctx context.Context, tenantID, id string) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE tenant_id = $1 AND id = $2`

	var booking entity.Booking
	if err := sqlx.GetContext(ctx, r.q, &booking, query, tenantID, id); err != nil {
		return nil, notFound(err, entity.ErrBookingNotFound, "get booking")
	}
	return &booking, nil
}

// GetForUpdate retrieves a booking and locks its row for the transaction
func (r *bookingRepository) GetForUpdate(ctx context.Context, tenantID, id string) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE tenant_id = $1 AND id = $2 FOR UPDATE`

	var booking entity.Booking
	if err := sqlx.GetContext(ctx, r.q, &booking, query, tenantID, id); err != nil {
		return nil, notFound(err, entity.ErrBookingNotFound, "get booking with lock")
	}
	return &booking, nil
}

func (r *bookingRepository) GetByClientID(ctx context.Context, tenantID, clientID string) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE tenant_id = $1 AND client_generated_id = $2`

	var booking entity.Booking
	if err := sqlx.GetContext(ctx, r.q, &booking, query, tenantID, clientID); err != nil {
		return nil, notFound(err, entity.ErrBookingNotFound, "get booking by client id")
	}
	return &booking, nil
}

func (r *bookingRepository) Update(ctx context.Context, booking *entity.Booking) error {
	query := `
		UPDATE bookings
		SET start_at = :start_at, end_at = :end_at, status = :status,
		    no_show_flag = :no_show_flag, canceled_at = :canceled_at,
		    cancel_reason = :cancel_reason, previous_start_at = :previous_start_at,
		    previous_end_at = :previous_end_at, rescheduled_at = :rescheduled_at,
		    updated_at = :updated_at
		WHERE tenant_id = :tenant_id AND id = :id`

	res, err := sqlx.NamedExecContext(ctx, r.q, query, booking)
	if err != nil {
		return entity.Transient("update booking", err)
	}
	return checkAffected(res, entity.ErrBookingNotFound, "update booking")
}

// ListOverlapping returns bookings in the given statuses whose interval
// intersects iv (half-open on both sides).
func (r *bookingRepository) ListOverlapping(ctx context.Context, tenantID, resourceID string, iv entity.Interval, statuses []entity.BookingStatus) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE tenant_id = $1 AND resource_id = $2
		  AND status = ANY($3)
		  AND start_at < $5 AND end_at > $4
		ORDER BY start_at ASC, id ASC`

	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	var bookings []*entity.Booking
	if err := sqlx.SelectContext(ctx, r.q, &bookings, query, tenantID, resourceID, pq.Array(names), iv.Start, iv.End); err != nil {
		return nil, entity.Transient("list overlapping bookings", err)
	}
	return bookings, nil
}

func (r *bookingRepository) List(ctx context.Context, filter entity.BookingFilter) ([]*entity.Booking, error) {
	conditions := []string{"tenant_id = $1"}
	args := []interface{}{filter.TenantID}

	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}
	if filter.ResourceID != "" {
		add("resource_id = $%d", filter.ResourceID)
	}
	if filter.CustomerID != "" {
		add("customer_id = $%d", filter.CustomerID)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.From != nil {
		add("start_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("start_at < $%d", *filter.To)
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY start_at ASC, id ASC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var bookings []*entity.Booking
	if err := sqlx.SelectContext(ctx, r.q, &bookings, query, args...); err != nil {
		return nil, entity.Transient("list bookings", err)
	}
	return bookings, nil
}
