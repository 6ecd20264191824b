package domain

import "time"

// User represents reference data mirrored from the external identity system.
// The core never mutates identity fields; it only reads them and reacts to
// deactivation events.
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Active      bool      `json:"active"`
	Roles       []string  `json:"roles"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
