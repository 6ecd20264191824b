package dto

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/zonelab/geozone/internal/domain"
)

// Sort keys accepted by the catalog
const (
	SortByName      = "name"
	SortByCreatedAt = "created_at"
	SortByUpdatedAt = "updated_at"
	SortByArea      = "area"
	SortByStatus    = "status"
)

// CatalogFilter represents the catalog query parameters. All predicates are
// conjunctive and each is optional.
type CatalogFilter struct {
	Status     string `form:"status"`     // comma-separated subset
	OwnerID    string `form:"owner"`      //
	Tags       string `form:"tags"`       // comma-separated, any-of
	Search     string `form:"q"`          // substring on name/description
	BBox       string `form:"bbox"`       // min_lon,min_lat,max_lon,max_lat
	Intersects string `form:"intersects"` // JSON ring [[lon,lat],...]
	SortBy     string `form:"sort"`
	Order      string `form:"order"` // asc (default) or desc
	Limit      int    `form:"limit"`
	Cursor     string `form:"cursor"`
}

// SetDefaults applies default sort and page size
func (f *CatalogFilter) SetDefaults() {
	if f.SortBy == "" {
		f.SortBy = SortByCreatedAt
	}
	if f.Order == "" {
		f.Order = "asc"
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
}

// Validate validates the CatalogFilter
func (f *CatalogFilter) Validate() (bool, string) {
	switch f.SortBy {
	case "", SortByName, SortByCreatedAt, SortByUpdatedAt, SortByArea, SortByStatus:
	default:
		return false, "Unknown sort key"
	}
	if f.Order != "" && f.Order != "asc" && f.Order != "desc" {
		return false, "Order must be asc or desc"
	}
	for _, s := range f.StatusSet() {
		if !s.IsValid() {
			return false, "Unknown status in filter"
		}
	}
	if f.BBox != "" {
		if _, ok := f.BoundingBox(); !ok {
			return false, "bbox must be min_lon,min_lat,max_lon,max_lat"
		}
	}
	if f.Intersects != "" {
		if _, ok := f.IntersectsRing(); !ok {
			return false, "intersects must be a JSON ring of [lon,lat] pairs"
		}
	}
	return true, ""
}

// StatusSet parses the status filter into a status subset
func (f *CatalogFilter) StatusSet() []domain.ZoneStatus {
	if f.Status == "" {
		return nil
	}
	parts := strings.Split(f.Status, ",")
	out := make([]domain.ZoneStatus, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, domain.ZoneStatus(p))
		}
	}
	return out
}

// TagSet parses the tag filter
func (f *CatalogFilter) TagSet() []string {
	if f.Tags == "" {
		return nil
	}
	return domain.NormalizeTags(strings.Split(f.Tags, ","))
}

// BoundingBox parses the bbox filter
func (f *CatalogFilter) BoundingBox() (domain.BoundingBox, bool) {
	parts := strings.Split(f.BBox, ",")
	if len(parts) != 4 {
		return domain.BoundingBox{}, false
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return domain.BoundingBox{}, false
		}
		vals[i] = v
	}
	box := domain.BoundingBox{MinLon: vals[0], MinLat: vals[1], MaxLon: vals[2], MaxLat: vals[3]}
	if box.MinLon > box.MaxLon || box.MinLat > box.MaxLat {
		return domain.BoundingBox{}, false
	}
	return box, true
}

// IntersectsRing parses the intersects filter as a closed [lon,lat] ring
func (f *CatalogFilter) IntersectsRing() (domain.Ring, bool) {
	var coords [][]float64
	if err := json.Unmarshal([]byte(f.Intersects), &coords); err != nil {
		return nil, false
	}
	ring := make(domain.Ring, 0, len(coords))
	for _, c := range coords {
		if len(c) != 2 {
			return nil, false
		}
		ring = append(ring, domain.Point{Lon: c[0], Lat: c[1]})
	}
	ring = ring.Normalize()
	if ring.Validate() != nil {
		return nil, false
	}
	return ring, true
}
