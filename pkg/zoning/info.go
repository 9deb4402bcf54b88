package zoning

import (
	"github.com/paulmach/orb"

	"github.com/beetlebugorg/zoning/internal/geo"
)

// GeometryInfo summarises a parcel geometry in working CRS units.
type GeometryInfo struct {
	Type        string    `json:"type"`
	Area        float64   `json:"area"`
	Perimeter   float64   `json:"perimeter"`
	VertexCount int       `json:"vertex_count"`
	Bound       orb.Bound `json:"-"`
}

// DescribeGeometry computes GeometryInfo for g.
func DescribeGeometry(g orb.Geometry) GeometryInfo {
	if g == nil {
		return GeometryInfo{}
	}
	info := GeometryInfo{
		Type:        g.GeoJSONType(),
		VertexCount: geo.ExteriorVertexCount(g),
		Bound:       g.Bound(),
	}
	if shape, err := geo.NewShape(g); err == nil {
		info.Area = shape.Area()
		info.Perimeter = shape.Length()
	}
	return info
}
