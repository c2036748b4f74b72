package entity

import (
	"time"
)

type ResourceType string

const (
	ResourceTypeStaff     ResourceType = "staff"
	ResourceTypeEquipment ResourceType = "equipment"
)

func (t ResourceType) Valid() bool {
	return t == ResourceTypeStaff || t == ResourceTypeEquipment
}

type Resource struct {
	ID        string       `json:"id" db:"id"`
	TenantID  string       `json:"tenant_id" db:"tenant_id"`
	Type      ResourceType `json:"type" db:"type"`
	Name      string       `json:"name" db:"name"`
	Timezone  string       `json:"timezone" db:"timezone"`
	IsActive  bool         `json:"is_active" db:"is_active"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt time.Time    `json:"updated_at" db:"updated_at"`
}

// Location resolves the resource time zone. An empty zone means UTC.
func (r *Resource) Location() (*time.Location, error) {
	if r.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(r.Timezone)
}
