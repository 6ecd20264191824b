package repository

import (
	"context"

	"github.com/zonelab/geozone/internal/domain"
)

// ZoneFilter holds the catalog predicates a List call composes. All fields
// are optional and conjunctive. Viewer restricts results to zones the viewer
// may see, applied inside the query so page sizes are exact post-filter.
type ZoneFilter struct {
	Viewer   domain.Identity
	Statuses []domain.ZoneStatus
	OwnerID  string
	Tags     []string
	Search   string
	BBox     *domain.BoundingBox
}

// Keyset marks the last-seen (sort key, id) pair of the previous page. Key
// must be typed to match the sort column (string, time.Time, float64 or int).
type Keyset struct {
	Key any
	ID  string
}

// ZoneListQuery combines filter, sort and keyset pagination for one page fetch
type ZoneListQuery struct {
	Filter ZoneFilter
	SortBy string // one of name, created_at, updated_at, area, status
	Desc   bool
	After  *Keyset
	Limit  int
}

// ZoneRepository defines the interface for zone storage. Every mutation
// writes its audit row in the same transaction as the zone row.
type ZoneRepository interface {
	// Create persists a new zone draft together with its creation audit record
	Create(ctx context.Context, zone *domain.Zone, record *domain.ZoneStatusHistory) error
	// GetByID retrieves a zone by ID
	GetByID(ctx context.Context, id string) (*domain.Zone, error)
	// Update persists zone changes guarded by the expected version. On success
	// the zone's version is bumped in place.
	Update(ctx context.Context, zone *domain.Zone, expectedVersion int64) error
	// Transition atomically applies a status change and appends its audit record
	Transition(ctx context.Context, zone *domain.Zone, expectedVersion int64, record *domain.ZoneStatusHistory) error
	// HardDelete purges a zone with its grants and audit trail (administrative)
	HardDelete(ctx context.Context, id string) error
	// List fetches one keyset page of zones matching the query
	List(ctx context.Context, query *ZoneListQuery) ([]*domain.Zone, error)
	// ListByOwner retrieves all zones owned by a user
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Zone, error)
	// ReassignOwner moves every zone of one owner to another, bumping versions
	ReassignOwner(ctx context.Context, fromUserID, toUserID string) (int64, error)
}

// HistoryRepository defines read access to the append-only audit trail.
// Records are inserted only inside ZoneRepository transactions; no update or
// delete path exists.
type HistoryRepository interface {
	// ListByZone retrieves a zone's status history, oldest first
	ListByZone(ctx context.Context, zoneID string) ([]*domain.ZoneStatusHistory, error)
}

// PermissionRepository defines the interface for explicit capability grants
type PermissionRepository interface {
	// Get retrieves the grant for a (zone, user) pair, nil when absent
	Get(ctx context.Context, zoneID, userID string) (*domain.ZonePermission, error)
	// Upsert creates or replaces the grant for a (zone, user) pair
	Upsert(ctx context.Context, perm *domain.ZonePermission) error
	// ListByZone retrieves all grants on a zone
	ListByZone(ctx context.Context, zoneID string) ([]*domain.ZonePermission, error)
	// DeleteByUser removes every grant held by a user
	DeleteByUser(ctx context.Context, userID string) error
}

// UserRepository defines access to the mirrored identity reference data
type UserRepository interface {
	// GetByID retrieves a user by ID, nil when unknown
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// Upsert mirrors a user record from the identity system
	Upsert(ctx context.Context, user *domain.User) error
	// Deactivate clears the active flag
	Deactivate(ctx context.Context, id string) error
}
