package dto

import (
	"time"

	"github.com/zonelab/geozone/internal/domain"
)

// CreateZoneRequest represents the request to create a new zone draft
type CreateZoneRequest struct {
	Name        string         `json:"name" binding:"required,min=1,max=255"`
	Description string         `json:"description" binding:"max=2000"`
	Boundary    []domain.Point `json:"boundary" binding:"required"`
	Color       string         `json:"color"`
	IsPublic    bool           `json:"is_public"`
	Tags        []string       `json:"tags"`
}

// Validate validates the CreateZoneRequest
func (r *CreateZoneRequest) Validate() (bool, string) {
	if r.Name == "" {
		return false, "Zone name is required"
	}
	if len(r.Boundary) < 3 {
		return false, "Boundary requires at least 3 points"
	}
	if r.Color != "" && !domain.ValidHexColor(r.Color) {
		return false, "Color must be a #rrggbb hex triple"
	}
	return true, ""
}

// UpdateZoneRequest represents the request to edit zone metadata or geometry.
// ExpectedVersion carries the version the caller last observed; a mismatch is
// a concurrent-edit conflict.
type UpdateZoneRequest struct {
	ExpectedVersion int64          `json:"expected_version" binding:"required,min=1"`
	Name            *string        `json:"name" binding:"omitempty,min=1,max=255"`
	Description     *string        `json:"description" binding:"omitempty,max=2000"`
	Boundary        []domain.Point `json:"boundary"`
	Color           *string        `json:"color"`
	IsPublic        *bool          `json:"is_public"`
	Tags            []string       `json:"tags"`
}

// Validate validates the UpdateZoneRequest
func (r *UpdateZoneRequest) Validate() (bool, string) {
	if r.ExpectedVersion < 1 {
		return false, "expected_version is required"
	}
	if r.Boundary != nil && len(r.Boundary) < 3 {
		return false, "Boundary requires at least 3 points"
	}
	if r.Color != nil && *r.Color != "" && !domain.ValidHexColor(*r.Color) {
		return false, "Color must be a #rrggbb hex triple"
	}
	return true, ""
}

// ChangeStatusRequest represents the request to move a zone along the
// workflow graph
type ChangeStatusRequest struct {
	Status          string `json:"status" binding:"required"`
	Note            string `json:"note" binding:"max=1000"`
	ExpectedVersion int64  `json:"expected_version" binding:"required,min=1"`
}

// Validate validates the ChangeStatusRequest
func (r *ChangeStatusRequest) Validate() (bool, string) {
	if !domain.ZoneStatus(r.Status).IsValid() {
		return false, "Status must be one of in_progress, published, deleted"
	}
	if r.ExpectedVersion < 1 {
		return false, "expected_version is required"
	}
	return true, ""
}

// GrantPermissionRequest represents the request to set an explicit capability
// grant for a user on a zone
type GrantPermissionRequest struct {
	View   bool `json:"view"`
	Edit   bool `json:"edit"`
	Delete bool `json:"delete"`
	Share  bool `json:"share"`
}

// ZoneResponse represents the response for a zone
type ZoneResponse struct {
	ID              string         `json:"id"`
	OwnerID         string         `json:"owner_id"`
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	Boundary        []domain.Point `json:"boundary"`
	Color           string         `json:"color,omitempty"`
	IsPublic        bool           `json:"is_public"`
	Tags            []string       `json:"tags"`
	Status          string         `json:"status"`
	StatusChangedAt string         `json:"status_changed_at"`
	StatusChangedBy string         `json:"status_changed_by"`
	Area            float64        `json:"area"`
	Version         int64          `json:"version"`
	CreatedAt       string         `json:"created_at"`
	UpdatedAt       string         `json:"updated_at"`
}

// FromZone converts a domain zone to its response form. The boundary is
// returned in the closed interchange form.
func FromZone(z *domain.Zone) *ZoneResponse {
	tags := z.Tags
	if tags == nil {
		tags = []string{}
	}
	return &ZoneResponse{
		ID:              z.ID,
		OwnerID:         z.OwnerID,
		Name:            z.Name,
		Description:     z.Description,
		Boundary:        z.Boundary.Closed(),
		Color:           z.Color,
		IsPublic:        z.IsPublic,
		Tags:            tags,
		Status:          z.Status.String(),
		StatusChangedAt: z.StatusChangedAt.Format(time.RFC3339),
		StatusChangedBy: z.StatusChangedBy,
		Area:            z.Area,
		Version:         z.Version,
		CreatedAt:       z.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       z.UpdatedAt.Format(time.RFC3339),
	}
}

// HistoryEntryResponse represents one audit record of a status transition
type HistoryEntryResponse struct {
	ID         string  `json:"id"`
	ZoneID     string  `json:"zone_id"`
	PrevStatus *string `json:"prev_status,omitempty"`
	NewStatus  string  `json:"new_status"`
	ActorID    string  `json:"actor_id"`
	Note       string  `json:"note,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

// FromHistory converts a domain history record to its response form
func FromHistory(h *domain.ZoneStatusHistory) *HistoryEntryResponse {
	resp := &HistoryEntryResponse{
		ID:        h.ID,
		ZoneID:    h.ZoneID,
		NewStatus: h.NewStatus.String(),
		ActorID:   h.ActorID,
		Note:      h.Note,
		CreatedAt: h.CreatedAt.Format(time.RFC3339),
	}
	if h.PrevStatus != nil {
		s := h.PrevStatus.String()
		resp.PrevStatus = &s
	}
	return resp
}

// PermissionResponse represents an explicit grant
type PermissionResponse struct {
	ZoneID    string `json:"zone_id"`
	UserID    string `json:"user_id"`
	View      bool   `json:"view"`
	Edit      bool   `json:"edit"`
	Delete    bool   `json:"delete"`
	Share     bool   `json:"share"`
	UpdatedAt string `json:"updated_at"`
}

// FromPermission converts a domain grant to its response form
func FromPermission(p *domain.ZonePermission) *PermissionResponse {
	return &PermissionResponse{
		ZoneID:    p.ZoneID,
		UserID:    p.UserID,
		View:      p.CanView,
		Edit:      p.CanEdit,
		Delete:    p.CanDelete,
		Share:     p.CanShare,
		UpdatedAt: p.UpdatedAt.Format(time.RFC3339),
	}
}

// ZonePageResponse represents one catalog page plus the cursor for the next
type ZonePageResponse struct {
	Zones      []*ZoneResponse `json:"zones"`
	NextCursor string          `json:"next_cursor,omitempty"`
}
