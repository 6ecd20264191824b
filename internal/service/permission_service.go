package service

import (
	"context"
	"time"

	"github.com/zonelab/geozone/internal/domain"
	"github.com/zonelab/geozone/internal/dto"
	"github.com/zonelab/geozone/internal/repository"
)

// permissionService implements PermissionService
type permissionService struct {
	permRepo repository.PermissionRepository
	zoneRepo repository.ZoneRepository
	userRepo repository.UserRepository
}

// NewPermissionService creates a new PermissionService
func NewPermissionService(permRepo repository.PermissionRepository, zoneRepo repository.ZoneRepository, userRepo repository.UserRepository) PermissionService {
	return &permissionService{
		permRepo: permRepo,
		zoneRepo: zoneRepo,
		userRepo: userRepo,
	}
}

// Resolve computes the caller's effective capabilities over a zone. The grant
// row is read fresh on every call; capabilities are never cached across a
// request boundary so a concurrent grant edit cannot be decided on stale
// state.
func (s *permissionService) Resolve(ctx context.Context, identity domain.Identity, zone *domain.Zone) (domain.Capabilities, error) {
	if zone == nil {
		return domain.Capabilities{}, nil
	}
	// Owner and admin short-circuit without a grant lookup
	if identity.UserID == zone.OwnerID || identity.IsAdmin() {
		return domain.ResolveCapabilities(identity, zone, nil), nil
	}

	grant, err := s.permRepo.Get(ctx, zone.ID, identity.UserID)
	if err != nil {
		return domain.Capabilities{}, err
	}
	return domain.ResolveCapabilities(identity, zone, grant), nil
}

// Grant sets the explicit capability grant for a user on a zone. Requires the
// share capability on the zone.
func (s *permissionService) Grant(ctx context.Context, identity domain.Identity, zoneID, granteeID string, req *dto.GrantPermissionRequest) (*domain.ZonePermission, error) {
	zone, err := s.zoneRepo.GetByID(ctx, zoneID)
	if err != nil {
		return nil, err
	}

	caps, err := s.Resolve(ctx, identity, zone)
	if err != nil {
		return nil, err
	}
	if !caps.View {
		// Non-viewers learn nothing about the zone's existence
		return nil, domain.ErrZoneNotFound
	}
	if !caps.Share {
		return nil, domain.ErrForbidden
	}

	grantee, err := s.userRepo.GetByID(ctx, granteeID)
	if err != nil {
		return nil, err
	}
	if grantee == nil {
		return nil, domain.ErrUserNotFound
	}

	now := time.Now()
	perm := &domain.ZonePermission{
		ZoneID:    zoneID,
		UserID:    granteeID,
		CanView:   req.View,
		CanEdit:   req.Edit,
		CanDelete: req.Delete,
		CanShare:  req.Share,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.permRepo.Upsert(ctx, perm); err != nil {
		return nil, err
	}
	return perm, nil
}

// ListGrants lists the explicit grants on a zone. Requires share, the same
// capability needed to change them.
func (s *permissionService) ListGrants(ctx context.Context, identity domain.Identity, zoneID string) ([]*domain.ZonePermission, error) {
	zone, err := s.zoneRepo.GetByID(ctx, zoneID)
	if err != nil {
		return nil, err
	}

	caps, err := s.Resolve(ctx, identity, zone)
	if err != nil {
		return nil, err
	}
	if !caps.View {
		return nil, domain.ErrZoneNotFound
	}
	if !caps.Share {
		return nil, domain.ErrForbidden
	}

	return s.permRepo.ListByZone(ctx, zoneID)
}
