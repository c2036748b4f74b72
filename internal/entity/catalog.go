package entity

import "time"

// Service is the catalog entry snapshotted into a booking.
type Service struct {
	ID          string    `json:"id" db:"id"`
	TenantID    string    `json:"tenant_id" db:"tenant_id"`
	Name        string    `json:"name" db:"name"`
	DurationMin int       `json:"duration_min" db:"duration_min"`
	PriceCents  int64     `json:"price_cents" db:"price_cents"`
	Category    string    `json:"category" db:"category"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

func (s *Service) Snapshot() ServiceSnapshot {
	return ServiceSnapshot{
		ServiceID:   s.ID,
		Name:        s.Name,
		DurationMin: s.DurationMin,
		PriceCents:  s.PriceCents,
		Category:    s.Category,
	}
}

type Customer struct {
	ID         string    `json:"id" db:"id"`
	TenantID   string    `json:"tenant_id" db:"tenant_id"`
	Name       string    `json:"name" db:"name"`
	Email      string    `json:"email" db:"email"`
	Phone      string    `json:"phone" db:"phone"`
	TelegramID string    `json:"telegram_id" db:"telegram_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
