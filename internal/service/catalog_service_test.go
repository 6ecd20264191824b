package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zonelab/geozone/internal/domain"
	"github.com/zonelab/geozone/internal/dto"
)

func catalogZone(id string, minLat, minLon, size float64) *domain.Zone {
	zone := &domain.Zone{
		ID:        id,
		OwnerID:   "owner-1",
		Name:      "Zone " + id,
		Status:    domain.ZoneStatusPublished,
		IsPublic:  true,
		Version:   1,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	err := zone.SetBoundary(domain.Ring{
		{Lat: minLat, Lon: minLon},
		{Lat: minLat, Lon: minLon + size},
		{Lat: minLat + size, Lon: minLon + size},
		{Lat: minLat + size, Lon: minLon},
	})
	if err != nil {
		panic(err)
	}
	return zone
}

func TestCatalogService_List_Defaults(t *testing.T) {
	zoneRepo := NewMockZoneRepository()
	zoneRepo.listPages = [][]*domain.Zone{{
		catalogZone("z1", 0, 0, 1),
		catalogZone("z2", 10, 10, 1),
	}}
	svc := NewCatalogService(zoneRepo)

	zones, next, err := svc.List(context.Background(), domain.Identity{UserID: "u1"}, &dto.CatalogFilter{})
	require.NoError(t, err)
	assert.Len(t, zones, 2)
	assert.Empty(t, next)

	require.Len(t, zoneRepo.listQueries, 1)
	q := zoneRepo.listQueries[0]
	assert.Equal(t, dto.SortByCreatedAt, q.SortBy)
	assert.False(t, q.Desc)
	// One extra row is requested to detect a further page
	assert.Equal(t, 21, q.Limit)
	assert.Equal(t, "u1", q.Filter.Viewer.UserID)
}

func TestCatalogService_List_CursorOnFullPage(t *testing.T) {
	z1 := catalogZone("z1", 0, 0, 1)
	z2 := catalogZone("z2", 10, 10, 1)
	z3 := catalogZone("z3", 20, 20, 1)

	zoneRepo := NewMockZoneRepository()
	zoneRepo.listPages = [][]*domain.Zone{{z1, z2, z3}}
	svc := NewCatalogService(zoneRepo)

	zones, next, err := svc.List(context.Background(), domain.Identity{UserID: "u1"}, &dto.CatalogFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, zones, 2)
	assert.Equal(t, "z1", zones[0].ID)
	assert.Equal(t, "z2", zones[1].ID)

	// The cursor marks the last row of the returned page
	require.NotEmpty(t, next)
	cursor, err := dto.DecodeCursor(next)
	require.NoError(t, err)
	assert.Equal(t, "z2", cursor.ID)
}

func TestCatalogService_List_CursorRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		sortBy  string
		keyOf   func(z *domain.Zone) any
		wantKey func(z *domain.Zone) any
	}{
		{
			name:    "name key stays a string",
			sortBy:  dto.SortByName,
			wantKey: func(z *domain.Zone) any { return z.Name },
		},
		{
			name:    "area key parses back to float",
			sortBy:  dto.SortByArea,
			wantKey: func(z *domain.Zone) any { return z.Area },
		},
		{
			name:    "status key parses back to its ordinal",
			sortBy:  dto.SortByStatus,
			wantKey: func(z *domain.Zone) any { return z.Status.Ordinal() },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			boundary := catalogZone("z1", 0, 0, 1)
			boundary2 := catalogZone("z2", 5, 5, 2)
			boundary3 := catalogZone("z3", 10, 10, 3)

			zoneRepo := NewMockZoneRepository()
			zoneRepo.listPages = [][]*domain.Zone{{boundary, boundary2}}
			svc := NewCatalogService(zoneRepo)

			_, next, err := svc.List(context.Background(), domain.Identity{UserID: "u1"}, &dto.CatalogFilter{
				SortBy: tt.sortBy,
				Limit:  1,
			})
			require.NoError(t, err)
			require.NotEmpty(t, next)

			// Feed the cursor back and verify the keyset type the query carries
			zoneRepo2 := NewMockZoneRepository()
			zoneRepo2.listPages = [][]*domain.Zone{{boundary3}}
			svc2 := NewCatalogService(zoneRepo2)

			_, _, err = svc2.List(context.Background(), domain.Identity{UserID: "u1"}, &dto.CatalogFilter{
				SortBy: tt.sortBy,
				Limit:  1,
				Cursor: next,
			})
			require.NoError(t, err)
			require.Len(t, zoneRepo2.listQueries, 1)
			after := zoneRepo2.listQueries[0].After
			require.NotNil(t, after)
			assert.Equal(t, "z1", after.ID)
			assert.Equal(t, tt.wantKey(boundary), after.Key)
		})
	}
}

func TestCatalogService_List_TimeCursorRoundTrip(t *testing.T) {
	z1 := catalogZone("z1", 0, 0, 1)
	z2 := catalogZone("z2", 5, 5, 1)

	zoneRepo := NewMockZoneRepository()
	zoneRepo.listPages = [][]*domain.Zone{{z1, z2}}
	svc := NewCatalogService(zoneRepo)

	_, next, err := svc.List(context.Background(), domain.Identity{UserID: "u1"}, &dto.CatalogFilter{
		SortBy: dto.SortByUpdatedAt,
		Limit:  1,
	})
	require.NoError(t, err)
	require.NotEmpty(t, next)

	zoneRepo2 := NewMockZoneRepository()
	svc2 := NewCatalogService(zoneRepo2)
	_, _, err = svc2.List(context.Background(), domain.Identity{UserID: "u1"}, &dto.CatalogFilter{
		SortBy: dto.SortByUpdatedAt,
		Limit:  1,
		Cursor: next,
	})
	require.NoError(t, err)

	after := zoneRepo2.listQueries[0].After
	require.NotNil(t, after)
	key, ok := after.Key.(time.Time)
	require.True(t, ok)
	assert.True(t, key.Equal(z1.UpdatedAt))
}

func TestCatalogService_List_CursorBoundToSort(t *testing.T) {
	zoneRepo := NewMockZoneRepository()
	zoneRepo.listPages = [][]*domain.Zone{{
		catalogZone("z1", 0, 0, 1),
		catalogZone("z2", 5, 5, 1),
	}}
	svc := NewCatalogService(zoneRepo)

	_, next, err := svc.List(context.Background(), domain.Identity{UserID: "u1"}, &dto.CatalogFilter{
		SortBy: dto.SortByCreatedAt,
		Limit:  1,
	})
	require.NoError(t, err)
	require.NotEmpty(t, next)

	// A cursor minted under one ordering must not be accepted under
	// another, even where the key would happen to parse
	for _, sortBy := range []string{dto.SortByName, dto.SortByUpdatedAt, dto.SortByArea} {
		_, _, err = svc.List(context.Background(), domain.Identity{UserID: "u1"}, &dto.CatalogFilter{
			SortBy: sortBy,
			Limit:  1,
			Cursor: next,
		})
		assert.ErrorIs(t, err, dto.ErrInvalidCursor, "sort_by=%s", sortBy)
	}
}

func TestCatalogService_List_InvalidCursor(t *testing.T) {
	svc := NewCatalogService(NewMockZoneRepository())

	_, _, err := svc.List(context.Background(), domain.Identity{UserID: "u1"}, &dto.CatalogFilter{
		Cursor: "not-a-cursor!!!",
	})
	assert.ErrorIs(t, err, dto.ErrInvalidCursor)
}

func TestCatalogService_List_IntersectsRefinement(t *testing.T) {
	// Probe covers (0..2, 0..2); zB lies far outside and must be filtered
	// out after the fetch without shrinking the page
	zA := catalogZone("zA", 0, 0, 1)
	zB := catalogZone("zB", 50, 50, 1)
	zC := catalogZone("zC", 1, 1, 1)

	zoneRepo := NewMockZoneRepository()
	zoneRepo.listPages = [][]*domain.Zone{{zA, zB, zC}}
	svc := NewCatalogService(zoneRepo)

	zones, next, err := svc.List(context.Background(), domain.Identity{UserID: "u1"}, &dto.CatalogFilter{
		Intersects: `[[0,0],[2,0],[2,2],[0,2],[0,0]]`,
		Limit:      2,
	})
	require.NoError(t, err)
	require.Len(t, zones, 2)
	assert.Equal(t, "zA", zones[0].ID)
	assert.Equal(t, "zC", zones[1].ID)
	assert.Empty(t, next)

	// The probe's bounding box is pushed down into the query
	q := zoneRepo.listQueries[0]
	require.NotNil(t, q.Filter.BBox)
	assert.Equal(t, 0.0, q.Filter.BBox.MinLon)
	assert.Equal(t, 2.0, q.Filter.BBox.MaxLat)

	// The repo is asked again to fill the gap left by the filtered row
	require.Len(t, zoneRepo.listQueries, 2)
	require.NotNil(t, zoneRepo.listQueries[1].After)
	assert.Equal(t, "zC", zoneRepo.listQueries[1].After.ID)
}

func TestCatalogService_List_RejectsUnknownSort(t *testing.T) {
	filter := &dto.CatalogFilter{SortBy: "elevation"}
	ok, _ := filter.Validate()
	assert.False(t, ok)
}
