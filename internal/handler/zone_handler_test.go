package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zonelab/geozone/internal/domain"
	"github.com/zonelab/geozone/internal/dto"
	"github.com/zonelab/geozone/pkg/middleware"
)

// MockZoneService is a map-backed mock of ZoneService
type MockZoneService struct {
	zones     map[string]*domain.Zone
	createErr error
}

func NewMockZoneService() *MockZoneService {
	return &MockZoneService{zones: make(map[string]*domain.Zone)}
}

func (m *MockZoneService) AddZone(zone *domain.Zone) {
	m.zones[zone.ID] = zone
}

func (m *MockZoneService) CreateZone(ctx context.Context, identity domain.Identity, req *dto.CreateZoneRequest) (*domain.Zone, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	zone := &domain.Zone{
		ID:              "zone-123",
		OwnerID:         identity.UserID,
		Name:            req.Name,
		Description:     req.Description,
		Color:           req.Color,
		IsPublic:        req.IsPublic,
		Tags:            domain.NormalizeTags(req.Tags),
		Status:          domain.ZoneStatusInProgress,
		StatusChangedAt: time.Now(),
		StatusChangedBy: identity.UserID,
		Version:         1,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	if err := zone.SetBoundary(domain.Ring(req.Boundary)); err != nil {
		return nil, err
	}
	m.zones[zone.ID] = zone
	return zone, nil
}

func (m *MockZoneService) GetZone(ctx context.Context, identity domain.Identity, id string) (*domain.Zone, error) {
	zone, ok := m.zones[id]
	if !ok {
		return nil, domain.ErrZoneNotFound
	}
	caps := domain.ResolveCapabilities(identity, zone, nil)
	if !caps.View {
		return nil, domain.ErrZoneNotFound
	}
	return zone, nil
}

func (m *MockZoneService) UpdateZone(ctx context.Context, identity domain.Identity, id string, req *dto.UpdateZoneRequest) (*domain.Zone, error) {
	zone, ok := m.zones[id]
	if !ok {
		return nil, domain.ErrZoneNotFound
	}
	if zone.Version != req.ExpectedVersion {
		return nil, domain.ErrVersionConflict
	}
	if req.Name != nil {
		zone.Name = *req.Name
	}
	zone.Version++
	return zone, nil
}

func (m *MockZoneService) ImportZone(ctx context.Context, identity domain.Identity, feature *dto.GeoJSONFeature) (*domain.Zone, error) {
	return m.CreateZone(ctx, identity, &dto.CreateZoneRequest{
		Name:     feature.Properties.Name,
		Boundary: feature.Ring(),
		Tags:     feature.Properties.Tags,
	})
}

func (m *MockZoneService) ExportZone(ctx context.Context, identity domain.Identity, id string) (*dto.GeoJSONFeature, error) {
	zone, err := m.GetZone(ctx, identity, id)
	if err != nil {
		return nil, err
	}
	return dto.FeatureFromZone(zone), nil
}

func (m *MockZoneService) PurgeZone(ctx context.Context, identity domain.Identity, id string) error {
	if !identity.IsAdmin() {
		return domain.ErrForbidden
	}
	if _, ok := m.zones[id]; !ok {
		return domain.ErrZoneNotFound
	}
	delete(m.zones, id)
	return nil
}

func (m *MockZoneService) HandleUserDeactivated(ctx context.Context, event *dto.UserDeactivatedEvent) error {
	return nil
}

// MockWorkflowService is a mock of WorkflowService
type MockWorkflowService struct {
	zoneService *MockZoneService
	history     map[string][]*domain.ZoneStatusHistory
}

func NewMockWorkflowService(zoneService *MockZoneService) *MockWorkflowService {
	return &MockWorkflowService{
		zoneService: zoneService,
		history:     make(map[string][]*domain.ZoneStatusHistory),
	}
}

func (m *MockWorkflowService) ChangeStatus(ctx context.Context, identity domain.Identity, zoneID string, req *dto.ChangeStatusRequest) (*domain.Zone, error) {
	zone, ok := m.zoneService.zones[zoneID]
	if !ok {
		return nil, domain.ErrZoneNotFound
	}
	target := domain.ZoneStatus(req.Status)
	if !zone.Status.CanTransition(target) {
		return nil, domain.ErrInvalidTransition
	}
	if zone.Version != req.ExpectedVersion {
		return nil, domain.ErrVersionConflict
	}
	prev := zone.Status
	zone.Status = target
	zone.Version++
	m.history[zoneID] = append(m.history[zoneID], &domain.ZoneStatusHistory{
		ID:         "hist-1",
		ZoneID:     zoneID,
		PrevStatus: &prev,
		NewStatus:  target,
		ActorID:    identity.UserID,
		Note:       req.Note,
		CreatedAt:  time.Now(),
	})
	return zone, nil
}

func (m *MockWorkflowService) History(ctx context.Context, identity domain.Identity, zoneID string) ([]*domain.ZoneStatusHistory, error) {
	if _, ok := m.zoneService.zones[zoneID]; !ok {
		return nil, domain.ErrZoneNotFound
	}
	return m.history[zoneID], nil
}

// MockPermissionService is a mock of PermissionService
type MockPermissionService struct {
	zoneService *MockZoneService
	grants      map[string]*domain.ZonePermission
}

func NewMockPermissionService(zoneService *MockZoneService) *MockPermissionService {
	return &MockPermissionService{
		zoneService: zoneService,
		grants:      make(map[string]*domain.ZonePermission),
	}
}

func (m *MockPermissionService) Resolve(ctx context.Context, identity domain.Identity, zone *domain.Zone) (domain.Capabilities, error) {
	return domain.ResolveCapabilities(identity, zone, nil), nil
}

func (m *MockPermissionService) Grant(ctx context.Context, identity domain.Identity, zoneID, granteeID string, req *dto.GrantPermissionRequest) (*domain.ZonePermission, error) {
	zone, ok := m.zoneService.zones[zoneID]
	if !ok {
		return nil, domain.ErrZoneNotFound
	}
	if identity.UserID != zone.OwnerID && !identity.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	perm := &domain.ZonePermission{
		ZoneID:    zoneID,
		UserID:    granteeID,
		CanView:   req.View,
		CanEdit:   req.Edit,
		CanDelete: req.Delete,
		CanShare:  req.Share,
		UpdatedAt: time.Now(),
	}
	m.grants[zoneID+"/"+granteeID] = perm
	return perm, nil
}

func (m *MockPermissionService) ListGrants(ctx context.Context, identity domain.Identity, zoneID string) ([]*domain.ZonePermission, error) {
	if _, ok := m.zoneService.zones[zoneID]; !ok {
		return nil, domain.ErrZoneNotFound
	}
	var out []*domain.ZonePermission
	for _, p := range m.grants {
		if p.ZoneID == zoneID {
			out = append(out, p)
		}
	}
	return out, nil
}

// MockCatalogService is a mock of CatalogService
type MockCatalogService struct {
	zoneService *MockZoneService
	nextCursor  string
}

func NewMockCatalogService(zoneService *MockZoneService) *MockCatalogService {
	return &MockCatalogService{zoneService: zoneService}
}

func (m *MockCatalogService) List(ctx context.Context, identity domain.Identity, filter *dto.CatalogFilter) ([]*domain.Zone, string, error) {
	filter.SetDefaults()
	var out []*domain.Zone
	for _, z := range m.zoneService.zones {
		caps := domain.ResolveCapabilities(identity, z, nil)
		if caps.View {
			out = append(out, z)
		}
	}
	return out, m.nextCursor, nil
}

type handlerFixture struct {
	zoneService *MockZoneService
	router      *gin.Engine
}

// asUser injects the identity the auth middleware would have set
func asUser(userID string, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		c.Set(middleware.UserRolesKey, roles)
		c.Next()
	}
}

func newHandlerFixture(userID string, roles ...string) *handlerFixture {
	gin.SetMode(gin.TestMode)

	zoneService := NewMockZoneService()
	h := NewZoneHandler(
		zoneService,
		NewMockWorkflowService(zoneService),
		NewMockPermissionService(zoneService),
		NewMockCatalogService(zoneService),
	)

	router := gin.New()
	v1 := router.Group("/api/v1")
	if userID != "" {
		v1.Use(asUser(userID, roles...))
	}
	v1.GET("/zones", h.List)
	v1.POST("/zones", h.Create)
	v1.POST("/zones/import", h.Import)
	v1.GET("/zones/:id", h.Get)
	v1.PATCH("/zones/:id", h.Update)
	v1.DELETE("/zones/:id", h.Purge)
	v1.POST("/zones/:id/status", h.ChangeStatus)
	v1.GET("/zones/:id/history", h.History)
	v1.GET("/zones/:id/export", h.Export)
	v1.GET("/zones/:id/permissions", h.ListPermissions)
	v1.PUT("/zones/:id/permissions/:user_id", h.GrantPermission)

	return &handlerFixture{zoneService: zoneService, router: router}
}

func (f *handlerFixture) addZone(id, ownerID string, status domain.ZoneStatus) *domain.Zone {
	zone := &domain.Zone{
		ID:              id,
		OwnerID:         ownerID,
		Name:            "Zone " + id,
		Status:          status,
		StatusChangedAt: time.Now(),
		StatusChangedBy: ownerID,
		Version:         1,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	err := zone.SetBoundary(domain.Ring{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 1},
		{Lat: 1, Lon: 1},
		{Lat: 1, Lon: 0},
	})
	if err != nil {
		panic(err)
	}
	f.zoneService.AddZone(zone)
	return zone
}

func (f *handlerFixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestZoneHandler_Create(t *testing.T) {
	f := newHandlerFixture("user-1")

	t.Run("creates draft", func(t *testing.T) {
		w := f.do(http.MethodPost, "/api/v1/zones", gin.H{
			"name": "Harbor",
			"boundary": []gin.H{
				{"lat": 0, "lon": 0},
				{"lat": 0, "lon": 1},
				{"lat": 1, "lon": 1},
				{"lat": 1, "lon": 0},
			},
			"tags": []string{"port"},
		})
		assert.Equal(t, http.StatusCreated, w.Code)

		env := decodeEnvelope(t, w)
		assert.True(t, env.Success)

		var zone dto.ZoneResponse
		require.NoError(t, json.Unmarshal(env.Data, &zone))
		assert.Equal(t, "user-1", zone.OwnerID)
		assert.Equal(t, "in_progress", zone.Status)
		// Responses carry the closed ring form
		assert.Len(t, zone.Boundary, 5)
	})

	t.Run("rejects too few points", func(t *testing.T) {
		w := f.do(http.MethodPost, "/api/v1/zones", gin.H{
			"name": "Harbor",
			"boundary": []gin.H{
				{"lat": 0, "lon": 0},
				{"lat": 0, "lon": 1},
			},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects self-intersection with 422", func(t *testing.T) {
		w := f.do(http.MethodPost, "/api/v1/zones", gin.H{
			"name": "Bowtie",
			"boundary": []gin.H{
				{"lat": 0, "lon": 0},
				{"lat": 1, "lon": 1},
				{"lat": 1, "lon": 0},
				{"lat": 0, "lon": 1},
			},
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		env := decodeEnvelope(t, w)
		require.NotNil(t, env.Error)
		assert.Equal(t, "INVALID_GEOMETRY", env.Error.Code)
	})

	t.Run("requires authentication", func(t *testing.T) {
		anon := newHandlerFixture("")
		w := anon.do(http.MethodPost, "/api/v1/zones", gin.H{"name": "x"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestZoneHandler_Get(t *testing.T) {
	f := newHandlerFixture("user-1")
	f.addZone("z1", "user-1", domain.ZoneStatusInProgress)

	t.Run("owner reads own zone", func(t *testing.T) {
		w := f.do(http.MethodGet, "/api/v1/zones/z1", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown zone is 404", func(t *testing.T) {
		w := f.do(http.MethodGet, "/api/v1/zones/nope", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		env := decodeEnvelope(t, w)
		require.NotNil(t, env.Error)
		assert.Equal(t, "NOT_FOUND", env.Error.Code)
	})

	t.Run("foreign private zone is 404, not 403", func(t *testing.T) {
		stranger := newHandlerFixture("stranger")
		stranger.addZone("z1", "user-1", domain.ZoneStatusInProgress)
		w := stranger.do(http.MethodGet, "/api/v1/zones/z1", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestZoneHandler_Update(t *testing.T) {
	f := newHandlerFixture("user-1")
	f.addZone("z1", "user-1", domain.ZoneStatusInProgress)

	t.Run("updates name", func(t *testing.T) {
		w := f.do(http.MethodPatch, "/api/v1/zones/z1", gin.H{
			"expected_version": 1,
			"name":             "Renamed",
		})
		assert.Equal(t, http.StatusOK, w.Code)

		env := decodeEnvelope(t, w)
		var zone dto.ZoneResponse
		require.NoError(t, json.Unmarshal(env.Data, &zone))
		assert.Equal(t, "Renamed", zone.Name)
		assert.Equal(t, int64(2), zone.Version)
	})

	t.Run("stale version is 409", func(t *testing.T) {
		w := f.do(http.MethodPatch, "/api/v1/zones/z1", gin.H{
			"expected_version": 1,
			"name":             "Again",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
		env := decodeEnvelope(t, w)
		require.NotNil(t, env.Error)
		assert.Equal(t, "VERSION_CONFLICT", env.Error.Code)
	})

	t.Run("missing expected_version is 400", func(t *testing.T) {
		w := f.do(http.MethodPatch, "/api/v1/zones/z1", gin.H{"name": "Again"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestZoneHandler_ChangeStatusAndHistory(t *testing.T) {
	f := newHandlerFixture("user-1")
	f.addZone("z1", "user-1", domain.ZoneStatusInProgress)

	w := f.do(http.MethodPost, "/api/v1/zones/z1/status", gin.H{
		"status":           "published",
		"note":             "go live",
		"expected_version": 1,
	})
	assert.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	var zone dto.ZoneResponse
	require.NoError(t, json.Unmarshal(env.Data, &zone))
	assert.Equal(t, "published", zone.Status)

	// Terminal state rejects further transitions
	w = f.do(http.MethodPost, "/api/v1/zones/z1/status", gin.H{
		"status":           "deleted",
		"expected_version": 2,
	})
	assert.Equal(t, http.StatusOK, w.Code)
	w = f.do(http.MethodPost, "/api/v1/zones/z1/status", gin.H{
		"status":           "in_progress",
		"expected_version": 3,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_TRANSITION", decodeEnvelope(t, w).Error.Code)

	// Unknown status never reaches the service
	w = f.do(http.MethodPost, "/api/v1/zones/z1/status", gin.H{
		"status":           "archived",
		"expected_version": 3,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodGet, "/api/v1/zones/z1/history", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var records []*dto.HistoryEntryResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &records))
	assert.Len(t, records, 2)
}

func TestZoneHandler_Permissions(t *testing.T) {
	f := newHandlerFixture("user-1")
	f.addZone("z1", "user-1", domain.ZoneStatusInProgress)

	w := f.do(http.MethodPut, "/api/v1/zones/z1/permissions/colleague", gin.H{
		"view": true,
		"edit": true,
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var perm dto.PermissionResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &perm))
	assert.Equal(t, "colleague", perm.UserID)
	assert.True(t, perm.Edit)
	assert.False(t, perm.Share)

	w = f.do(http.MethodGet, "/api/v1/zones/z1/permissions", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var grants []*dto.PermissionResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &grants))
	assert.Len(t, grants, 1)
}

func TestZoneHandler_Purge(t *testing.T) {
	t.Run("admin purges", func(t *testing.T) {
		f := newHandlerFixture("ops", domain.RoleAdmin)
		f.addZone("z1", "user-1", domain.ZoneStatusDeleted)

		w := f.do(http.MethodDelete, "/api/v1/zones/z1", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = f.do(http.MethodGet, "/api/v1/zones/z1", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("owner cannot purge", func(t *testing.T) {
		f := newHandlerFixture("user-1")
		f.addZone("z1", "user-1", domain.ZoneStatusDeleted)

		w := f.do(http.MethodDelete, "/api/v1/zones/z1", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestZoneHandler_ImportExport(t *testing.T) {
	f := newHandlerFixture("user-1")

	w := f.do(http.MethodPost, "/api/v1/zones/import", gin.H{
		"type": "Feature",
		"properties": gin.H{
			"name": "Imported",
		},
		"geometry": gin.H{
			"type": "Polygon",
			"coordinates": [][][2]float64{{
				{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0},
			}},
		},
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var zone dto.ZoneResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &zone))
	assert.Equal(t, "Imported", zone.Name)

	w = f.do(http.MethodGet, "/api/v1/zones/"+zone.ID+"/export", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var feature dto.GeoJSONFeature
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &feature))
	assert.Equal(t, "Feature", feature.Type)
	assert.Equal(t, "Polygon", feature.Geometry.Type)

	t.Run("rejects multipolygon", func(t *testing.T) {
		w := f.do(http.MethodPost, "/api/v1/zones/import", gin.H{
			"type": "Feature",
			"properties": gin.H{
				"name": "Bad",
			},
			"geometry": gin.H{
				"type":        "MultiPolygon",
				"coordinates": [][][2]float64{},
			},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestZoneHandler_List(t *testing.T) {
	f := newHandlerFixture("user-1")
	f.addZone("z1", "user-1", domain.ZoneStatusInProgress)
	f.addZone("z2", "other", domain.ZoneStatusInProgress)

	w := f.do(http.MethodGet, "/api/v1/zones?limit=10", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var page dto.ZonePageResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &page))
	// Only the caller's own zone is visible
	require.Len(t, page.Zones, 1)
	assert.Equal(t, "z1", page.Zones[0].ID)

	t.Run("rejects unknown sort key", func(t *testing.T) {
		w := f.do(http.MethodGet, "/api/v1/zones?sort=elevation", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects malformed bbox", func(t *testing.T) {
		w := f.do(http.MethodGet, "/api/v1/zones?bbox=1,2,3", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
