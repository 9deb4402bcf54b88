package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/twpayne/go-geos"
)

// Shape is a geometry held by GEOS for exact predicates. Shapes are
// immutable and safe for concurrent use. A nil *Shape matches nothing.
type Shape struct {
	g *geos.Geom
}

// NewShape converts g into a GEOS geometry. Invalid polygons, such as
// self-intersecting rings from county exports, are repaired so that
// overlay operations do not fail later.
func NewShape(g orb.Geometry) (*Shape, error) {
	if g == nil {
		return nil, fmt.Errorf("geometry is nil")
	}
	switch v := g.(type) {
	case orb.Ring:
		g = orb.Polygon{v}
	case orb.Bound:
		g = v.ToPolygon()
	}

	data, err := geojson.NewGeometry(g).MarshalJSON()
	if err != nil {
		return nil, err
	}
	geom, err := geos.NewGeomFromGeoJSON(string(data))
	if err != nil {
		return nil, err
	}
	if !geom.IsValid() {
		repaired := geom.MakeValidWithParams(geos.MakeValidLinework, geos.MakeValidDiscardCollapsed)
		geom.Destroy()
		geom = repaired
	}
	return &Shape{g: geom}, nil
}

// Intersects reports whether two shapes share at least one point.
// Touching boundaries count as intersecting.
func (s *Shape) Intersects(o *Shape) bool {
	if s == nil || o == nil {
		return false
	}
	return s.g.Intersects(o.g)
}

// Distance returns the planar distance between two shapes, zero when they
// intersect.
func (s *Shape) Distance(o *Shape) float64 {
	if s == nil || o == nil {
		return math.Inf(1)
	}
	return s.g.Distance(o.g)
}

// OverlapArea returns the area shared by two shapes.
func (s *Shape) OverlapArea(o *Shape) float64 {
	if s == nil || o == nil {
		return 0
	}
	inter := s.g.Intersection(o.g)
	defer inter.Destroy()
	return inter.Area()
}

// Area returns the planar area of polygonal shapes, zero otherwise.
func (s *Shape) Area() float64 {
	if s == nil {
		return 0
	}
	return s.g.Area()
}

// Length returns the boundary length of polygons and the length of lines.
func (s *Shape) Length() float64 {
	if s == nil {
		return 0
	}
	return s.g.Length()
}

// ExteriorVertexCount returns the number of coordinates on the exterior
// ring of a polygonal geometry, counting the closing coordinate, so a
// rectangle reports 5. A multipolygon with a single part is treated as
// that polygon. Any other geometry reports 0.
func ExteriorVertexCount(g orb.Geometry) int {
	switch g := g.(type) {
	case orb.Polygon:
		if len(g) == 0 {
			return 0
		}
		return ringLen(g[0])
	case orb.MultiPolygon:
		if len(g) == 1 {
			return ExteriorVertexCount(g[0])
		}
	case orb.Ring:
		return ringLen(g)
	}
	return 0
}

// ringLen counts an unclosed ring as if it were closed.
func ringLen(r orb.Ring) int {
	if len(r) == 0 || r.Closed() {
		return len(r)
	}
	return len(r) + 1
}
