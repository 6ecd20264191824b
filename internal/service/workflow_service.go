package service

import (
	"context"

	"github.com/zonelab/geozone/internal/domain"
	"github.com/zonelab/geozone/internal/dto"
	"github.com/zonelab/geozone/internal/repository"
)

// workflowService implements WorkflowService
type workflowService struct {
	zoneRepo    repository.ZoneRepository
	historyRepo repository.HistoryRepository
	permSvc     PermissionService
}

// NewWorkflowService creates a new WorkflowService
func NewWorkflowService(zoneRepo repository.ZoneRepository, historyRepo repository.HistoryRepository, permSvc PermissionService) WorkflowService {
	return &workflowService{
		zoneRepo:    zoneRepo,
		historyRepo: historyRepo,
		permSvc:     permSvc,
	}
}

// ChangeStatus moves a zone along the workflow graph. The zone row and its
// audit record commit in one transaction. Moving to deleted requires the
// delete capability, other targets require edit. Publishing re-validates the
// boundary so a zone whose geometry rules tightened since its draft cannot
// go live.
func (s *workflowService) ChangeStatus(ctx context.Context, identity domain.Identity, zoneID string, req *dto.ChangeStatusRequest) (*domain.Zone, error) {
	zone, err := s.zoneRepo.GetByID(ctx, zoneID)
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

	target := domain.ZoneStatus(req.Status)
	if target == domain.ZoneStatusDeleted {
		if !caps.Delete {
			return nil, domain.ErrForbidden
		}
	} else if !caps.Edit {
		return nil, domain.ErrForbidden
	}

	if !zone.Status.CanTransition(target) {
		return nil, domain.ErrInvalidTransition
	}
	if target == domain.ZoneStatusPublished {
		if err := zone.Boundary.Validate(); err != nil {
			return nil, domain.ErrNotPublishable
		}
	}

	record := newHistoryRecord(zone.ID, &zone.Status, target, identity.UserID, req.Note)
	prev := zone.Status
	zone.Status = target
	zone.StatusChangedAt = record.CreatedAt
	zone.StatusChangedBy = identity.UserID
	if err := s.zoneRepo.Transition(ctx, zone, req.ExpectedVersion, record); err != nil {
		zone.Status = prev
		return nil, err
	}
	return zone, nil
}

// History lists a zone's status transitions, oldest first. Readable by
// anyone who may view the zone.
func (s *workflowService) History(ctx context.Context, identity domain.Identity, zoneID string) ([]*domain.ZoneStatusHistory, error) {
	zone, err := s.zoneRepo.GetByID(ctx, zoneID)
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

	return s.historyRepo.ListByZone(ctx, zoneID)
}
