// Package tenant provides models and repository for the hotels and agencies
// that share the platform. Every domain record is scoped to a tenant ID.
package tenant

import "time"

// Tenant type constants.
const (
	TypeHotel  = "hotel"
	TypeAgency = "agency"
)

// Tenant status constants.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

// Tenant represents a hotel or agency account on the platform.
type Tenant struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`   // hotel or agency
	Status   string `json:"status"` // active or suspended
	Currency string `json:"currency"`

	// CommissionPercent is the agency commission applied to bookings placed
	// through this tenant. Zero for hotels.
	CommissionPercent float64 `json:"commission_percent"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// IsActive reports whether the tenant may perform booking operations.
func (t *Tenant) IsActive() bool {
	return t.Status == StatusActive
}

// ValidType reports whether the given tenant type is supported.
func ValidType(t string) bool {
	return t == TypeHotel || t == TypeAgency
}
