package models

import (
	"github.com/google/uuid"
)

// ============================================================================
// LOGISTICS PROVIDERS
// ============================================================================

// LogisticsProvider is a transport company that carries paid requests to
// storage. Its id is what the company sends as X-User-ID when accepting an
// order.
type LogisticsProvider struct {
	ID                uuid.UUID `json:"id" db:"id"`
	CompanyName       string    `json:"company_name" db:"company_name"`
	LicenseNumber     string    `json:"license_number" db:"license_number"`
	ContactPerson     *string   `json:"contact_person,omitempty" db:"contact_person"`
	Phone             *string   `json:"phone,omitempty" db:"phone"`
	Email             *string   `json:"email,omitempty" db:"email"`
	State             string    `json:"state" db:"state"`
	District          string    `json:"district" db:"district"`
	AvailableVehicles int       `json:"available_vehicles" db:"available_vehicles"`
	Rating            float64   `json:"rating" db:"rating"`
	CreatedAt         int64     `json:"created_at" db:"created_at"`
	UpdatedAt         int64     `json:"updated_at" db:"updated_at"`
}
