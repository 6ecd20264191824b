package service

import (
	"context"

	"github.com/zonelab/geozone/internal/domain"
	"github.com/zonelab/geozone/internal/dto"
)

// ZoneService defines the interface for zone lifecycle business logic
type ZoneService interface {
	// CreateZone creates a new zone draft owned by the caller
	CreateZone(ctx context.Context, identity domain.Identity, req *dto.CreateZoneRequest) (*domain.Zone, error)
	// GetZone retrieves a zone the caller may view
	GetZone(ctx context.Context, identity domain.Identity, id string) (*domain.Zone, error)
	// UpdateZone edits metadata/geometry guarded by the expected version
	UpdateZone(ctx context.Context, identity domain.Identity, id string, req *dto.UpdateZoneRequest) (*domain.Zone, error)
	// ImportZone creates a zone draft from the canonical interchange document
	ImportZone(ctx context.Context, identity domain.Identity, feature *dto.GeoJSONFeature) (*domain.Zone, error)
	// ExportZone produces the canonical interchange document for a zone
	ExportZone(ctx context.Context, identity domain.Identity, id string) (*dto.GeoJSONFeature, error)
	// PurgeZone hard-deletes a zone with its grants and history (admin only)
	PurgeZone(ctx context.Context, identity domain.Identity, id string) error
	// HandleUserDeactivated applies the ownership cleanup policy after an
	// identity-system deactivation event
	HandleUserDeactivated(ctx context.Context, event *dto.UserDeactivatedEvent) error
}

// WorkflowService defines the interface for status transitions and audit reads
type WorkflowService interface {
	// ChangeStatus moves a zone along the workflow graph, appending exactly
	// one audit record in the same atomic unit
	ChangeStatus(ctx context.Context, identity domain.Identity, zoneID string, req *dto.ChangeStatusRequest) (*domain.Zone, error)
	// History lists a zone's status transitions, oldest first
	History(ctx context.Context, identity domain.Identity, zoneID string) ([]*domain.ZoneStatusHistory, error)
}

// PermissionService defines the interface for capability resolution and grants
type PermissionService interface {
	// Resolve computes the caller's effective capabilities over a zone from
	// freshly read state
	Resolve(ctx context.Context, identity domain.Identity, zone *domain.Zone) (domain.Capabilities, error)
	// Grant sets the explicit capability grant for a user on a zone
	Grant(ctx context.Context, identity domain.Identity, zoneID, granteeID string, req *dto.GrantPermissionRequest) (*domain.ZonePermission, error)
	// ListGrants lists the explicit grants on a zone
	ListGrants(ctx context.Context, identity domain.Identity, zoneID string) ([]*domain.ZonePermission, error)
}

// UserService defines the interface for the mirrored identity reference data
type UserService interface {
	// SyncUser mirrors a user record from an identity-system event
	SyncUser(ctx context.Context, user *domain.User) error
	// GetUser retrieves a mirrored user, nil when unknown
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

// CatalogService defines the interface for the filtered, sorted, paginated
// zone listing
type CatalogService interface {
	// List returns one page of zones visible to the caller plus the cursor
	// for the next page (empty when exhausted)
	List(ctx context.Context, identity domain.Identity, filter *dto.CatalogFilter) ([]*domain.Zone, string, error)
}
