package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/zonelab/geozone/internal/domain"
	"github.com/zonelab/geozone/internal/dto"
	"github.com/zonelab/geozone/internal/service"
	"github.com/zonelab/geozone/pkg/middleware"
	"github.com/zonelab/geozone/pkg/response"
)

// ZoneHandler handles zone-related HTTP requests
type ZoneHandler struct {
	zoneService       service.ZoneService
	workflowService   service.WorkflowService
	permissionService service.PermissionService
	catalogService    service.CatalogService
}

// NewZoneHandler creates a new ZoneHandler
func NewZoneHandler(zoneService service.ZoneService, workflowService service.WorkflowService, permissionService service.PermissionService, catalogService service.CatalogService) *ZoneHandler {
	return &ZoneHandler{
		zoneService:       zoneService,
		workflowService:   workflowService,
		permissionService: permissionService,
		catalogService:    catalogService,
	}
}

// callerIdentity builds the verified identity from the auth middleware context
func callerIdentity(c *gin.Context) (domain.Identity, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return domain.Identity{}, false
	}
	return domain.Identity{UserID: userID, Roles: middleware.GetRoles(c)}, true
}

// respondError maps domain errors to their HTTP form
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrZoneNotFound):
		response.NotFound(c, "Zone not found")
	case errors.Is(err, domain.ErrUserNotFound):
		response.NotFound(c, "User not found")
	case errors.Is(err, domain.ErrForbidden):
		response.Forbidden(c, "Operation not permitted")
	case errors.Is(err, domain.ErrVersionConflict):
		response.Conflict(c, "VERSION_CONFLICT", "Zone was modified concurrently, refetch and retry")
	case errors.Is(err, domain.ErrInvalidTransition):
		response.Conflict(c, "INVALID_TRANSITION", "Status change is not allowed from the current status")
	case errors.Is(err, domain.ErrNotPublishable):
		response.UnprocessableEntity(c, "NOT_PUBLISHABLE", "Zone boundary does not meet publication rules")
	case errors.Is(err, domain.ErrInvalidGeometry):
		response.UnprocessableEntity(c, "INVALID_GEOMETRY", "Zone boundary is not a valid simple polygon")
	case errors.Is(err, dto.ErrInvalidCursor):
		response.BadRequest(c, "Invalid pagination cursor")
	case errors.Is(err, domain.ErrUnavailable):
		response.ServiceUnavailable(c, "Storage is temporarily unavailable")
	default:
		response.InternalError(c, err)
	}
}

// Create handles POST /zones - creates a new zone draft
func (h *ZoneHandler) Create(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}

	var req dto.CreateZoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	if valid, msg := req.Validate(); !valid {
		response.BadRequest(c, msg)
		return
	}

	zone, err := h.zoneService.CreateZone(c.Request.Context(), identity, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, dto.FromZone(zone))
}

// Get handles GET /zones/:id - retrieves a zone the caller may view
func (h *ZoneHandler) Get(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}

	zone, err := h.zoneService.GetZone(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, dto.FromZone(zone))
}

// Update handles PATCH /zones/:id - edits metadata or geometry
func (h *ZoneHandler) Update(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}

	var req dto.UpdateZoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	if valid, msg := req.Validate(); !valid {
		response.BadRequest(c, msg)
		return
	}

	zone, err := h.zoneService.UpdateZone(c.Request.Context(), identity, c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, dto.FromZone(zone))
}

// List handles GET /zones - the filtered, sorted, paginated catalog
func (h *ZoneHandler) List(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}

	var filter dto.CatalogFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}
	if valid, msg := filter.Validate(); !valid {
		response.BadRequest(c, msg)
		return
	}

	zones, nextCursor, err := h.catalogService.List(c.Request.Context(), identity, &filter)
	if err != nil {
		respondError(c, err)
		return
	}

	page := &dto.ZonePageResponse{
		Zones:      make([]*dto.ZoneResponse, len(zones)),
		NextCursor: nextCursor,
	}
	for i, zone := range zones {
		page.Zones[i] = dto.FromZone(zone)
	}
	response.Success(c, page)
}

// ChangeStatus handles POST /zones/:id/status - moves a zone along the
// workflow graph
func (h *ZoneHandler) ChangeStatus(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}

	var req dto.ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	if valid, msg := req.Validate(); !valid {
		response.BadRequest(c, msg)
		return
	}

	zone, err := h.workflowService.ChangeStatus(c.Request.Context(), identity, c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, dto.FromZone(zone))
}

// History handles GET /zones/:id/history - lists the audit trail oldest first
func (h *ZoneHandler) History(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}

	records, err := h.workflowService.History(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]*dto.HistoryEntryResponse, len(records))
	for i, record := range records {
		out[i] = dto.FromHistory(record)
	}
	response.Success(c, out)
}

// GrantPermission handles PUT /zones/:id/permissions/:user_id - sets the
// explicit grant for a user
func (h *ZoneHandler) GrantPermission(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}

	var req dto.GrantPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	perm, err := h.permissionService.Grant(c.Request.Context(), identity, c.Param("id"), c.Param("user_id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, dto.FromPermission(perm))
}

// ListPermissions handles GET /zones/:id/permissions - lists explicit grants
func (h *ZoneHandler) ListPermissions(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}

	grants, err := h.permissionService.ListGrants(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]*dto.PermissionResponse, len(grants))
	for i, grant := range grants {
		out[i] = dto.FromPermission(grant)
	}
	response.Success(c, out)
}

// Purge handles DELETE /zones/:id - permanently removes a zone (admin only)
func (h *ZoneHandler) Purge(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}

	if err := h.zoneService.PurgeZone(c.Request.Context(), identity, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"purged": true})
}

// Import handles POST /zones/import - creates a draft from a GeoJSON Feature
func (h *ZoneHandler) Import(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}

	var feature dto.GeoJSONFeature
	if err := c.ShouldBindJSON(&feature); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	if valid, msg := feature.Validate(); !valid {
		response.BadRequest(c, msg)
		return
	}

	zone, err := h.zoneService.ImportZone(c.Request.Context(), identity, &feature)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, dto.FromZone(zone))
}

// Export handles GET /zones/:id/export - returns the GeoJSON Feature form
func (h *ZoneHandler) Export(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}

	feature, err := h.zoneService.ExportZone(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, feature)
}
