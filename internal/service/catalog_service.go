package service

import (
	"context"
	"strconv"
	"time"

	"github.com/zonelab/geozone/internal/domain"
	"github.com/zonelab/geozone/internal/dto"
	"github.com/zonelab/geozone/internal/repository"
)

// catalogService implements CatalogService
type catalogService struct {
	zoneRepo repository.ZoneRepository
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(zoneRepo repository.ZoneRepository) CatalogService {
	return &catalogService{zoneRepo: zoneRepo}
}

// List returns one page of zones visible to the caller. Visibility and all
// SQL-expressible predicates run inside the query so pages stay exact; the
// polygon-intersection predicate is refined here after a bounding-box
// prefilter, refetching until the page fills or the catalog is exhausted.
func (s *catalogService) List(ctx context.Context, identity domain.Identity, filter *dto.CatalogFilter) ([]*domain.Zone, string, error) {
	filter.SetDefaults()

	query := &repository.ZoneListQuery{
		Filter: repository.ZoneFilter{
			Viewer:   identity,
			Statuses: filter.StatusSet(),
			OwnerID:  filter.OwnerID,
			Tags:     filter.TagSet(),
			Search:   filter.Search,
		},
		SortBy: filter.SortBy,
		Desc:   filter.Order == "desc",
		Limit:  filter.Limit,
	}

	if filter.BBox != "" {
		box, _ := filter.BoundingBox()
		query.Filter.BBox = &box
	}

	var probe domain.Ring
	if filter.Intersects != "" {
		probe, _ = filter.IntersectsRing()
		// Bounding-box prefilter narrows the scan; exact intersection is
		// checked per row below.
		probeBox := probe.Bounds()
		if query.Filter.BBox == nil {
			query.Filter.BBox = &probeBox
		} else {
			merged := intersectBoxes(*query.Filter.BBox, probeBox)
			query.Filter.BBox = &merged
		}
	}

	if filter.Cursor != "" {
		cursor, err := dto.DecodeCursor(filter.Cursor)
		if err != nil {
			return nil, "", err
		}
		after, err := parseKeyset(filter.SortBy, cursor)
		if err != nil {
			return nil, "", err
		}
		query.After = after
	}

	page := make([]*domain.Zone, 0, filter.Limit)
	for {
		// Over-fetch by one so a full page can tell whether more rows exist
		query.Limit = filter.Limit - len(page) + 1
		zones, err := s.zoneRepo.List(ctx, query)
		if err != nil {
			return nil, "", err
		}

		exhausted := len(zones) < query.Limit
		for _, zone := range zones {
			if probe != nil && !zone.Boundary.Intersects(probe) {
				continue
			}
			if len(page) == filter.Limit {
				// One more match exists beyond this page
				return page, encodeCursor(filter.SortBy, page[len(page)-1]), nil
			}
			page = append(page, zone)
		}

		if exhausted {
			return page, "", nil
		}
		last := zones[len(zones)-1]
		query.After = &repository.Keyset{Key: sortKeyValue(filter.SortBy, last), ID: last.ID}
	}
}

// sortKeyValue extracts the typed keyset value of a zone for a sort key
func sortKeyValue(sortBy string, z *domain.Zone) any {
	switch sortBy {
	case dto.SortByName:
		return z.Name
	case dto.SortByUpdatedAt:
		return z.UpdatedAt
	case dto.SortByArea:
		return z.Area
	case dto.SortByStatus:
		return z.Status.Ordinal()
	default:
		return z.CreatedAt
	}
}

// encodeCursor renders the last row of a page as an opaque cursor
func encodeCursor(sortBy string, z *domain.Zone) string {
	var key string
	switch v := sortKeyValue(sortBy, z).(type) {
	case string:
		key = v
	case time.Time:
		key = v.UTC().Format(time.RFC3339Nano)
	case float64:
		key = strconv.FormatFloat(v, 'g', -1, 64)
	case int:
		key = strconv.Itoa(v)
	}
	return dto.Cursor{Sort: sortBy, Key: key, ID: z.ID}.Encode()
}

// parseKeyset decodes the cursor key back into the type the sort column
// compares against
func parseKeyset(sortBy string, cursor dto.Cursor) (*repository.Keyset, error) {
	if cursor.Sort != sortBy {
		return nil, dto.ErrInvalidCursor
	}

	var key any
	switch sortBy {
	case dto.SortByName:
		key = cursor.Key
	case dto.SortByCreatedAt, dto.SortByUpdatedAt:
		t, err := time.Parse(time.RFC3339Nano, cursor.Key)
		if err != nil {
			return nil, dto.ErrInvalidCursor
		}
		key = t
	case dto.SortByArea:
		f, err := strconv.ParseFloat(cursor.Key, 64)
		if err != nil {
			return nil, dto.ErrInvalidCursor
		}
		key = f
	case dto.SortByStatus:
		n, err := strconv.Atoi(cursor.Key)
		if err != nil {
			return nil, dto.ErrInvalidCursor
		}
		key = n
	default:
		return nil, dto.ErrInvalidCursor
	}
	return &repository.Keyset{Key: key, ID: cursor.ID}, nil
}

// intersectBoxes returns the overlap of two bounding boxes. A degenerate box
// simply matches nothing when the inputs are disjoint.
func intersectBoxes(a, b domain.BoundingBox) domain.BoundingBox {
	out := domain.BoundingBox{
		MinLat: a.MinLat, MinLon: a.MinLon,
		MaxLat: a.MaxLat, MaxLon: a.MaxLon,
	}
	if b.MinLat > out.MinLat {
		out.MinLat = b.MinLat
	}
	if b.MinLon > out.MinLon {
		out.MinLon = b.MinLon
	}
	if b.MaxLat < out.MaxLat {
		out.MaxLat = b.MaxLat
	}
	if b.MaxLon < out.MaxLon {
		out.MaxLon = b.MaxLon
	}
	return out
}
