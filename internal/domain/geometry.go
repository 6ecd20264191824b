package domain

import "math"

// Point represents a WGS84 coordinate pair
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Ring represents an ordered polygon boundary. It is stored unclosed: the
// segment from the last vertex back to the first is implicit.
type Ring []Point

// BoundingBox represents the axis-aligned extent of a ring
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Overlaps checks if two bounding boxes overlap
func (b BoundingBox) Overlaps(other BoundingBox) bool {
	if b.MaxLat < other.MinLat || other.MaxLat < b.MinLat {
		return false
	}
	if b.MaxLon < other.MinLon || other.MaxLon < b.MinLon {
		return false
	}
	return true
}

// Normalize returns the ring without a closing duplicate vertex. Inputs may
// repeat the first vertex at the end (the common interchange form); the
// canonical stored form does not.
func (r Ring) Normalize() Ring {
	if len(r) >= 2 && r[0] == r[len(r)-1] {
		return r[:len(r)-1]
	}
	return r
}

// Closed returns the ring with the first vertex repeated at the end, the form
// used by the geometry interchange format.
func (r Ring) Closed() Ring {
	if len(r) == 0 {
		return r
	}
	if r[0] == r[len(r)-1] {
		return r
	}
	closed := make(Ring, len(r)+1)
	copy(closed, r)
	closed[len(r)] = r[0]
	return closed
}

// Validate checks that the ring is a usable zone boundary: at least 3 distinct
// vertices, coordinates within WGS84 ranges, non-zero enclosed area and no
// self-intersections. The ring must already be normalized.
func (r Ring) Validate() error {
	if len(r) < 3 {
		return ErrInvalidGeometry
	}

	distinct := make(map[Point]struct{}, len(r))
	for _, p := range r {
		if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
			return ErrInvalidGeometry
		}
		if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) {
			return ErrInvalidGeometry
		}
		distinct[p] = struct{}{}
	}
	if len(distinct) < 3 {
		return ErrInvalidGeometry
	}

	// Consecutive duplicates produce zero-length segments
	for i := range r {
		if r[i] == r[(i+1)%len(r)] {
			return ErrInvalidGeometry
		}
	}

	if r.Area() == 0 {
		return ErrInvalidGeometry
	}

	if r.selfIntersects() {
		return ErrInvalidGeometry
	}

	return nil
}

// Area returns the approximate enclosed area in squared degrees (shoelace
// formula on raw coordinates). Only useful for relative comparison, which is
// all the catalog sort needs.
func (r Ring) Area() float64 {
	if len(r) < 3 {
		return 0
	}
	var sum float64
	for i := range r {
		j := (i + 1) % len(r)
		sum += r[i].Lon*r[j].Lat - r[j].Lon*r[i].Lat
	}
	return math.Abs(sum) / 2
}

// Bounds returns the bounding box of the ring
func (r Ring) Bounds() BoundingBox {
	if len(r) == 0 {
		return BoundingBox{}
	}
	b := BoundingBox{
		MinLat: r[0].Lat, MaxLat: r[0].Lat,
		MinLon: r[0].Lon, MaxLon: r[0].Lon,
	}
	for _, p := range r[1:] {
		b.MinLat = math.Min(b.MinLat, p.Lat)
		b.MaxLat = math.Max(b.MaxLat, p.Lat)
		b.MinLon = math.Min(b.MinLon, p.Lon)
		b.MaxLon = math.Max(b.MaxLon, p.Lon)
	}
	return b
}

// Contains checks if a point is inside the ring using ray casting
func (r Ring) Contains(p Point) bool {
	inside := false
	n := len(r)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		if (r[i].Lat > p.Lat) != (r[j].Lat > p.Lat) &&
			p.Lon < (r[j].Lon-r[i].Lon)*(p.Lat-r[i].Lat)/(r[j].Lat-r[i].Lat)+r[i].Lon {
			inside = !inside
		}
	}
	return inside
}

// Intersects checks if two rings intersect: any crossing edge pair, or either
// ring fully containing the other.
func (r Ring) Intersects(other Ring) bool {
	if len(r) < 3 || len(other) < 3 {
		return false
	}
	if !r.Bounds().Overlaps(other.Bounds()) {
		return false
	}
	for i := range r {
		a1, a2 := r[i], r[(i+1)%len(r)]
		for j := range other {
			b1, b2 := other[j], other[(j+1)%len(other)]
			if segmentsIntersect(a1, a2, b1, b2) {
				return true
			}
		}
	}
	// No crossing edges: one ring may still lie entirely inside the other
	return r.Contains(other[0]) || other.Contains(r[0])
}

// selfIntersects reports whether any two non-adjacent edges of the ring touch
// or cross.
func (r Ring) selfIntersects() bool {
	n := len(r)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			// Adjacent edges share a vertex and always "intersect" there
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			if segmentsIntersect(r[i], r[(i+1)%n], r[j], r[(j+1)%n]) {
				return true
			}
		}
	}
	return false
}

// segmentsIntersect checks whether segments p1-p2 and p3-p4 intersect,
// including collinear overlap and endpoint touching.
func segmentsIntersect(p1, p2, p3, p4 Point) bool {
	d1 := cross(p3, p4, p1)
	d2 := cross(p3, p4, p2)
	d3 := cross(p1, p2, p3)
	d4 := cross(p1, p2, p4)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	if d1 == 0 && onSegment(p3, p4, p1) {
		return true
	}
	if d2 == 0 && onSegment(p3, p4, p2) {
		return true
	}
	if d3 == 0 && onSegment(p1, p2, p3) {
		return true
	}
	if d4 == 0 && onSegment(p1, p2, p4) {
		return true
	}
	return false
}

// cross returns the cross product of vectors a->b and a->c
func cross(a, b, c Point) float64 {
	return (b.Lon-a.Lon)*(c.Lat-a.Lat) - (c.Lon-a.Lon)*(b.Lat-a.Lat)
}

// onSegment checks if point p lies on segment a-b, assuming collinearity
func onSegment(a, b, p Point) bool {
	return math.Min(a.Lon, b.Lon) <= p.Lon && p.Lon <= math.Max(a.Lon, b.Lon) &&
		math.Min(a.Lat, b.Lat) <= p.Lat && p.Lat <= math.Max(a.Lat, b.Lat)
}
