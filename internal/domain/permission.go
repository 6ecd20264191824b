package domain

import "time"

// RoleAdmin grants full capabilities on every zone. Roles are issued by the
// external identity system and arrive as verified token claims.
const RoleAdmin = "admin"

// Capabilities represents the effective rights of a user over a zone
type Capabilities struct {
	View   bool `json:"view"`
	Edit   bool `json:"edit"`
	Delete bool `json:"delete"`
	Share  bool `json:"share"`
}

// FullCapabilities returns all capabilities granted
func FullCapabilities() Capabilities {
	return Capabilities{View: true, Edit: true, Delete: true, Share: true}
}

// ZonePermission represents an explicit capability grant for a (zone, user)
// pair. Absence of a record means no explicit grant.
type ZonePermission struct {
	ZoneID    string    `json:"zone_id"`
	UserID    string    `json:"user_id"`
	CanView   bool      `json:"can_view"`
	CanEdit   bool      `json:"can_edit"`
	CanDelete bool      `json:"can_delete"`
	CanShare  bool      `json:"can_share"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Capabilities returns the grant's stored booleans as a capability set
func (p *ZonePermission) Capabilities() Capabilities {
	return Capabilities{
		View:   p.CanView,
		Edit:   p.CanEdit,
		Delete: p.CanDelete,
		Share:  p.CanShare,
	}
}

// Identity is the verified caller identity the core receives from the
// identity system: a user id plus role set.
type Identity struct {
	UserID string
	Roles  []string
}

// IsAdmin checks if the identity carries the administrative role
func (i Identity) IsAdmin() bool {
	for _, r := range i.Roles {
		if r == RoleAdmin {
			return true
		}
	}
	return false
}

// ResolveCapabilities computes the effective capabilities of an identity over
// a zone, first match wins:
//  1. owner: full capabilities
//  2. administrative role: full capabilities
//  3. explicit grant: its stored booleans, verbatim
//  4. public and published zone: view only
//  5. otherwise: none
//
// The function is pure; callers must pass freshly read zone and grant state so
// concurrent permission edits are never decided on stale data.
func ResolveCapabilities(identity Identity, zone *Zone, grant *ZonePermission) Capabilities {
	if zone == nil {
		return Capabilities{}
	}
	if identity.UserID != "" && identity.UserID == zone.OwnerID {
		return FullCapabilities()
	}
	if identity.IsAdmin() {
		return FullCapabilities()
	}
	if grant != nil {
		return grant.Capabilities()
	}
	if zone.IsPubliclyVisible() {
		return Capabilities{View: true}
	}
	return Capabilities{}
}
