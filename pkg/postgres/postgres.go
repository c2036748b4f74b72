package postgres

import (
	"context"
	"fmt"

	"github.com/ds124wfegd/tithi-booking/config"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	_ "github.com/lib/pq"
)

func NewPostgresDB(cfg *config.DatabaseConfig) (*sqlx.DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.Info("Successfully connected to PostgreSQL")
	return db, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS resources (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		type VARCHAR(20) NOT NULL,
		name VARCHAR(255) NOT NULL,
		timezone VARCHAR(64) NOT NULL DEFAULT 'UTC',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS services (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name VARCHAR(255) NOT NULL,
		duration_min INTEGER NOT NULL CHECK (duration_min > 0),
		price_cents BIGINT NOT NULL DEFAULT 0,
		category VARCHAR(100) NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL DEFAULT '',
		phone VARCHAR(50) NOT NULL DEFAULT '',
		telegram_id VARCHAR(100) NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS work_schedules (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		resource_id TEXT NOT NULL REFERENCES resources(id) ON DELETE CASCADE,
		schedule_type VARCHAR(20) NOT NULL,
		start_date DATE NOT NULL,
		end_date DATE,
		work_hours JSONB NOT NULL DEFAULT '{}',
		is_time_off BOOLEAN NOT NULL DEFAULT FALSE,
		overrides_regular BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (end_date IS NULL OR end_date >= start_date)
	)`,

	`CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		customer_id TEXT NOT NULL,
		resource_id TEXT NOT NULL REFERENCES resources(id),
		service_id TEXT NOT NULL,
		service_snapshot JSONB NOT NULL,
		start_at TIMESTAMPTZ NOT NULL,
		end_at TIMESTAMPTZ NOT NULL,
		booking_tz VARCHAR(64) NOT NULL DEFAULT 'UTC',
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		client_generated_id TEXT NOT NULL,
		attendee_count INTEGER NOT NULL DEFAULT 1,
		no_show_flag BOOLEAN NOT NULL DEFAULT FALSE,
		canceled_at TIMESTAMPTZ,
		cancel_reason TEXT,
		previous_start_at TIMESTAMPTZ,
		previous_end_at TIMESTAMPTZ,
		rescheduled_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT bookings_interval_check CHECK (start_at < end_at),
		CONSTRAINT bookings_tenant_client_id_key UNIQUE (tenant_id, client_generated_id)
	)`,

	`CREATE TABLE IF NOT EXISTS booking_holds (
		id TEXT PRIMARY KEY,
		hold_key TEXT NOT NULL UNIQUE,
		tenant_id TEXT NOT NULL,
		resource_id TEXT NOT NULL REFERENCES resources(id) ON DELETE CASCADE,
		service_id TEXT NOT NULL,
		start_at TIMESTAMPTZ NOT NULL,
		end_at TIMESTAMPTZ NOT NULL,
		hold_until TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (start_at < end_at)
	)`,

	`CREATE TABLE IF NOT EXISTS event_outbox (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		event_code VARCHAR(100) NOT NULL,
		payload JSONB NOT NULL DEFAULT '{}',
		status VARCHAR(20) NOT NULL DEFAULT 'ready',
		attempts INTEGER NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL DEFAULT 3,
		ready_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		delivered_at TIMESTAMPTZ,
		failed_at TIMESTAMPTZ,
		last_attempt_at TIMESTAMPTZ,
		error_message TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (attempts <= max_attempts)
	)`,

	`CREATE TABLE IF NOT EXISTS waitlist_entries (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		resource_id TEXT NOT NULL REFERENCES resources(id) ON DELETE CASCADE,
		service_id TEXT NOT NULL,
		customer_id TEXT NOT NULL,
		preferred_start_at TIMESTAMPTZ,
		preferred_end_at TIMESTAMPTZ,
		priority INTEGER NOT NULL DEFAULT 0,
		expires_at TIMESTAMPTZ NOT NULL,
		notified_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	// Indexes
	`CREATE INDEX IF NOT EXISTS idx_resources_tenant ON resources(tenant_id)`,
	`CREATE INDEX IF NOT EXISTS idx_schedules_resource ON work_schedules(tenant_id, resource_id, start_date)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_resource_time ON bookings(tenant_id, resource_id, start_at, end_at)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(tenant_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_holds_resource_time ON booking_holds(tenant_id, resource_id, start_at, end_at)`,
	`CREATE INDEX IF NOT EXISTS idx_holds_hold_until ON booking_holds(hold_until)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_ready ON event_outbox(status, ready_at) WHERE status = 'ready'`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_tenant_status ON event_outbox(tenant_id, status, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_waitlist_resource ON waitlist_entries(tenant_id, resource_id, priority DESC, created_at)`,
}

func RunMigrations(ctx context.Context, db *sqlx.DB) error {
	for _, migration := range migrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	logrus.Info("Database migrations completed successfully")
	return nil
}
