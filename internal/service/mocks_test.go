package service

import (
	"context"

	"github.com/zonelab/geozone/internal/domain"
	"github.com/zonelab/geozone/internal/repository"
)

// MockZoneRepository is a map-backed mock of ZoneRepository. List is
// scripted: each call pops the next prepared page so pagination logic can be
// driven deterministically.
type MockZoneRepository struct {
	zones       map[string]*domain.Zone
	history     map[string][]*domain.ZoneStatusHistory
	listPages   [][]*domain.Zone
	listQueries []repository.ZoneListQuery
	createErr   error
	updateErr   error
	listErr     error
}

func NewMockZoneRepository() *MockZoneRepository {
	return &MockZoneRepository{
		zones:   make(map[string]*domain.Zone),
		history: make(map[string][]*domain.ZoneStatusHistory),
	}
}

func (m *MockZoneRepository) AddZone(zone *domain.Zone) {
	m.zones[zone.ID] = zone
}

func (m *MockZoneRepository) Create(ctx context.Context, zone *domain.Zone, record *domain.ZoneStatusHistory) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.zones[zone.ID] = zone
	m.history[zone.ID] = append(m.history[zone.ID], record)
	return nil
}

func (m *MockZoneRepository) GetByID(ctx context.Context, id string) (*domain.Zone, error) {
	zone, ok := m.zones[id]
	if !ok {
		return nil, domain.ErrZoneNotFound
	}
	return zone, nil
}

func (m *MockZoneRepository) Update(ctx context.Context, zone *domain.Zone, expectedVersion int64) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	current, ok := m.zones[zone.ID]
	if !ok {
		return domain.ErrZoneNotFound
	}
	if current.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	zone.Version = expectedVersion + 1
	m.zones[zone.ID] = zone
	return nil
}

func (m *MockZoneRepository) Transition(ctx context.Context, zone *domain.Zone, expectedVersion int64, record *domain.ZoneStatusHistory) error {
	current, ok := m.zones[zone.ID]
	if !ok {
		return domain.ErrZoneNotFound
	}
	if current.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	zone.Version = expectedVersion + 1
	m.zones[zone.ID] = zone
	m.history[zone.ID] = append(m.history[zone.ID], record)
	return nil
}

func (m *MockZoneRepository) HardDelete(ctx context.Context, id string) error {
	if _, ok := m.zones[id]; !ok {
		return domain.ErrZoneNotFound
	}
	delete(m.zones, id)
	delete(m.history, id)
	return nil
}

func (m *MockZoneRepository) List(ctx context.Context, query *repository.ZoneListQuery) ([]*domain.Zone, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.listQueries = append(m.listQueries, *query)
	if len(m.listPages) == 0 {
		return nil, nil
	}
	page := m.listPages[0]
	m.listPages = m.listPages[1:]
	if len(page) > query.Limit {
		page = page[:query.Limit]
	}
	return page, nil
}

func (m *MockZoneRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Zone, error) {
	var out []*domain.Zone
	for _, z := range m.zones {
		if z.OwnerID == ownerID {
			out = append(out, z)
		}
	}
	return out, nil
}

func (m *MockZoneRepository) ReassignOwner(ctx context.Context, fromUserID, toUserID string) (int64, error) {
	var moved int64
	for _, z := range m.zones {
		if z.OwnerID == fromUserID {
			z.OwnerID = toUserID
			z.Version++
			moved++
		}
	}
	return moved, nil
}

// MockHistoryRepository reads the audit trail captured by MockZoneRepository
type MockHistoryRepository struct {
	zoneRepo *MockZoneRepository
}

func NewMockHistoryRepository(zoneRepo *MockZoneRepository) *MockHistoryRepository {
	return &MockHistoryRepository{zoneRepo: zoneRepo}
}

func (m *MockHistoryRepository) ListByZone(ctx context.Context, zoneID string) ([]*domain.ZoneStatusHistory, error) {
	return m.zoneRepo.history[zoneID], nil
}

// MockPermissionRepository is a map-backed mock of PermissionRepository
type MockPermissionRepository struct {
	grants map[string]*domain.ZonePermission
	getErr error
}

func NewMockPermissionRepository() *MockPermissionRepository {
	return &MockPermissionRepository{grants: make(map[string]*domain.ZonePermission)}
}

func permKey(zoneID, userID string) string {
	return zoneID + "/" + userID
}

func (m *MockPermissionRepository) AddGrant(perm *domain.ZonePermission) {
	m.grants[permKey(perm.ZoneID, perm.UserID)] = perm
}

func (m *MockPermissionRepository) Get(ctx context.Context, zoneID, userID string) (*domain.ZonePermission, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.grants[permKey(zoneID, userID)], nil
}

func (m *MockPermissionRepository) Upsert(ctx context.Context, perm *domain.ZonePermission) error {
	m.grants[permKey(perm.ZoneID, perm.UserID)] = perm
	return nil
}

func (m *MockPermissionRepository) ListByZone(ctx context.Context, zoneID string) ([]*domain.ZonePermission, error) {
	var out []*domain.ZonePermission
	for _, p := range m.grants {
		if p.ZoneID == zoneID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MockPermissionRepository) DeleteByUser(ctx context.Context, userID string) error {
	for k, p := range m.grants {
		if p.UserID == userID {
			delete(m.grants, k)
		}
	}
	return nil
}

// MockUserRepository is a map-backed mock of UserRepository
type MockUserRepository struct {
	users map[string]*domain.User
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[string]*domain.User)}
}

func (m *MockUserRepository) AddUser(user *domain.User) {
	m.users[user.ID] = user
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return m.users[id], nil
}

func (m *MockUserRepository) Upsert(ctx context.Context, user *domain.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *MockUserRepository) Deactivate(ctx context.Context, id string) error {
	user, ok := m.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	user.Active = false
	return nil
}
