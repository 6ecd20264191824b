package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zonelab/geozone/internal/domain"
	"github.com/zonelab/geozone/internal/dto"
	"github.com/zonelab/geozone/internal/repository"
	"github.com/zonelab/geozone/pkg/logger"
)

// systemActorID is the audit actor recorded for mutations driven by
// identity-system events rather than an authenticated caller.
const systemActorID = "system"

// zoneService implements ZoneService
type zoneService struct {
	zoneRepo repository.ZoneRepository
	permRepo repository.PermissionRepository
	userRepo repository.UserRepository
	permSvc  PermissionService
}

// NewZoneService creates a new ZoneService
func NewZoneService(zoneRepo repository.ZoneRepository, permRepo repository.PermissionRepository, userRepo repository.UserRepository, permSvc PermissionService) ZoneService {
	return &zoneService{
		zoneRepo: zoneRepo,
		permRepo: permRepo,
		userRepo: userRepo,
		permSvc:  permSvc,
	}
}

// CreateZone creates a new zone draft owned by the caller. Every zone starts
// in in_progress regardless of the request payload.
func (s *zoneService) CreateZone(ctx context.Context, identity domain.Identity, req *dto.CreateZoneRequest) (*domain.Zone, error) {
	return s.createDraft(ctx, identity, &draftSpec{
		name:        req.Name,
		description: req.Description,
		boundary:    domain.Ring(req.Boundary),
		color:       req.Color,
		isPublic:    req.IsPublic,
		tags:        req.Tags,
	})
}

// GetZone retrieves a zone the caller may view. Callers without view access
// get a not-found error so the zone's existence does not leak.
func (s *zoneService) GetZone(ctx context.Context, identity domain.Identity, id string) (*domain.Zone, error) {
	zone, err := s.zoneRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	caps, err := s.permSvc.Resolve(ctx, identity, zone)
	if err != nil {
		return nil, err
	}
	if !caps.View {
		return nil, domain.ErrZoneNotFound
	}
	return zone, nil
}

// UpdateZone edits metadata or geometry guarded by the expected version.
// Deleted zones are immutable.
func (s *zoneService) UpdateZone(ctx context.Context, identity domain.Identity, id string, req *dto.UpdateZoneRequest) (*domain.Zone, error) {
	zone, err := s.zoneRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	caps, err := s.permSvc.Resolve(ctx, identity, zone)
	if err != nil {
		return nil, err
	}
	if !caps.View {
		return nil, domain.ErrZoneNotFound
	}
	if !caps.Edit {
		return nil, domain.ErrForbidden
	}
	if zone.IsDeleted() {
		return nil, domain.ErrInvalidTransition
	}

	if req.Name != nil {
		zone.Name = *req.Name
	}
	if req.Description != nil {
		zone.Description = *req.Description
	}
	if req.Color != nil {
		zone.Color = *req.Color
	}
	if req.IsPublic != nil {
		zone.IsPublic = *req.IsPublic
	}
	if req.Tags != nil {
		zone.Tags = domain.NormalizeTags(req.Tags)
	}
	if req.Boundary != nil {
		if err := zone.SetBoundary(domain.Ring(req.Boundary)); err != nil {
			return nil, err
		}
	}
	zone.UpdatedAt = time.Now()

	if err := s.zoneRepo.Update(ctx, zone, req.ExpectedVersion); err != nil {
		return nil, err
	}
	return zone, nil
}

// ImportZone creates a zone draft from the canonical interchange document.
// The status property of the document is ignored; imported zones start as
// drafts like any other.
func (s *zoneService) ImportZone(ctx context.Context, identity domain.Identity, feature *dto.GeoJSONFeature) (*domain.Zone, error) {
	return s.createDraft(ctx, identity, &draftSpec{
		name:        feature.Properties.Name,
		description: feature.Properties.Description,
		boundary:    feature.Ring(),
		color:       feature.Properties.Color,
		isPublic:    feature.Properties.IsPublic,
		tags:        feature.Properties.Tags,
	})
}

// ExportZone produces the canonical interchange document for a zone
func (s *zoneService) ExportZone(ctx context.Context, identity domain.Identity, id string) (*dto.GeoJSONFeature, error) {
	zone, err := s.GetZone(ctx, identity, id)
	if err != nil {
		return nil, err
	}
	return dto.FeatureFromZone(zone), nil
}

// PurgeZone hard-deletes a zone with its grants and history. Reserved for
// administrators; the soft workflow delete is the normal path.
func (s *zoneService) PurgeZone(ctx context.Context, identity domain.Identity, id string) error {
	if !identity.IsAdmin() {
		return domain.ErrForbidden
	}
	return s.zoneRepo.HardDelete(ctx, id)
}

// HandleUserDeactivated applies the ownership cleanup policy after an
// identity-system deactivation event. With a successor the zones are
// reassigned wholesale; without one the user's still-active zones are
// workflow-deleted by the system actor. Either way the user's explicit
// grants are removed.
func (s *zoneService) HandleUserDeactivated(ctx context.Context, event *dto.UserDeactivatedEvent) error {
	log := logger.Get()

	if event.SuccessorID != "" {
		successor, err := s.userRepo.GetByID(ctx, event.SuccessorID)
		if err != nil {
			return err
		}
		if successor == nil {
			return domain.ErrUserNotFound
		}
		moved, err := s.zoneRepo.ReassignOwner(ctx, event.UserID, event.SuccessorID)
		if err != nil {
			return err
		}
		log.Info("reassigned zones of deactivated user",
			zap.String("user_id", event.UserID),
			zap.String("successor_id", event.SuccessorID),
			zap.Int64("zones", moved))
	} else {
		zones, err := s.zoneRepo.ListByOwner(ctx, event.UserID)
		if err != nil {
			return err
		}
		for _, zone := range zones {
			if zone.IsDeleted() {
				continue
			}
			record := newHistoryRecord(zone.ID, &zone.Status, domain.ZoneStatusDeleted, systemActorID, "owner deactivated: "+event.Reason)
			prev := zone.Status
			zone.Status = domain.ZoneStatusDeleted
			zone.StatusChangedAt = record.CreatedAt
			zone.StatusChangedBy = systemActorID
			if err := s.zoneRepo.Transition(ctx, zone, zone.Version, record); err != nil {
				// A concurrent edit may have bumped the version; the next
				// event redelivery retries the remainder.
				zone.Status = prev
				log.Warn("failed to delete zone of deactivated user",
					zap.String("zone_id", zone.ID),
					zap.String("user_id", event.UserID),
					zap.Error(err))
				return err
			}
		}
	}

	if err := s.permRepo.DeleteByUser(ctx, event.UserID); err != nil {
		return err
	}
	if err := s.userRepo.Deactivate(ctx, event.UserID); err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return err
	}
	return nil
}

// draftSpec carries the fields of a new zone draft
type draftSpec struct {
	name        string
	description string
	boundary    domain.Ring
	color       string
	isPublic    bool
	tags        []string
}

func (s *zoneService) createDraft(ctx context.Context, identity domain.Identity, spec *draftSpec) (*domain.Zone, error) {
	now := time.Now()
	zone := &domain.Zone{
		ID:              uuid.New().String(),
		OwnerID:         identity.UserID,
		Name:            spec.name,
		Description:     spec.description,
		Color:           spec.color,
		IsPublic:        spec.isPublic,
		Tags:            domain.NormalizeTags(spec.tags),
		Status:          domain.ZoneStatusInProgress,
		StatusChangedAt: now,
		StatusChangedBy: identity.UserID,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := zone.SetBoundary(spec.boundary); err != nil {
		return nil, err
	}

	record := newHistoryRecord(zone.ID, nil, domain.ZoneStatusInProgress, identity.UserID, "created")
	if err := s.zoneRepo.Create(ctx, zone, record); err != nil {
		return nil, err
	}
	return zone, nil
}

// newHistoryRecord builds an audit record for a status change. prev is nil
// for the creation record.
func newHistoryRecord(zoneID string, prev *domain.ZoneStatus, next domain.ZoneStatus, actorID, note string) *domain.ZoneStatusHistory {
	var prevCopy *domain.ZoneStatus
	if prev != nil {
		p := *prev
		prevCopy = &p
	}
	return &domain.ZoneStatusHistory{
		ID:         uuid.New().String(),
		ZoneID:     zoneID,
		PrevStatus: prevCopy,
		NewStatus:  next,
		ActorID:    actorID,
		Note:       note,
		CreatedAt:  time.Now(),
	}
}
