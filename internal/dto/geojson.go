package dto

import (
	"github.com/zonelab/geozone/internal/domain"
)

// The import/export interchange format is a GeoJSON Feature carrying a
// Polygon with a single closed WGS84 ring. Anything richer (holes,
// multipolygons, other geometry types) is outside the canonical form and is
// rejected; full-format conversion belongs to external tooling.

// GeoJSONGeometry represents the geometry member of a Feature
type GeoJSONGeometry struct {
	Type        string         `json:"type"`
	Coordinates [][][2]float64 `json:"coordinates"` // rings of [lon, lat]
}

// GeoJSONProperties represents the zone metadata carried by a Feature
type GeoJSONProperties struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Color       string   `json:"color,omitempty"`
	IsPublic    bool     `json:"is_public,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Status      string   `json:"status,omitempty"`
}

// GeoJSONFeature represents the canonical zone interchange document
type GeoJSONFeature struct {
	Type       string            `json:"type" binding:"required"`
	ID         string            `json:"id,omitempty"`
	Properties GeoJSONProperties `json:"properties"`
	Geometry   GeoJSONGeometry   `json:"geometry" binding:"required"`
}

// Validate validates the GeoJSONFeature against the canonical form
func (f *GeoJSONFeature) Validate() (bool, string) {
	if f.Type != "Feature" {
		return false, "Document must be a GeoJSON Feature"
	}
	if f.Geometry.Type != "Polygon" {
		return false, "Geometry must be a Polygon"
	}
	if len(f.Geometry.Coordinates) != 1 {
		return false, "Polygon must carry exactly one ring (holes are not supported)"
	}
	if f.Properties.Name == "" {
		return false, "Feature name property is required"
	}
	if f.Properties.Color != "" && !domain.ValidHexColor(f.Properties.Color) {
		return false, "Color must be a #rrggbb hex triple"
	}
	return true, ""
}

// Ring extracts the outer boundary as a domain ring (unclosed form)
func (f *GeoJSONFeature) Ring() domain.Ring {
	coords := f.Geometry.Coordinates[0]
	ring := make(domain.Ring, 0, len(coords))
	for _, c := range coords {
		ring = append(ring, domain.Point{Lon: c[0], Lat: c[1]})
	}
	return ring.Normalize()
}

// FeatureFromZone builds the canonical interchange document for a zone
func FeatureFromZone(z *domain.Zone) *GeoJSONFeature {
	closed := z.Boundary.Closed()
	coords := make([][2]float64, 0, len(closed))
	for _, p := range closed {
		coords = append(coords, [2]float64{p.Lon, p.Lat})
	}
	return &GeoJSONFeature{
		Type: "Feature",
		ID:   z.ID,
		Properties: GeoJSONProperties{
			Name:        z.Name,
			Description: z.Description,
			Color:       z.Color,
			IsPublic:    z.IsPublic,
			Tags:        z.Tags,
			Status:      z.Status.String(),
		},
		Geometry: GeoJSONGeometry{
			Type:        "Polygon",
			Coordinates: [][][2]float64{coords},
		},
	}
}
