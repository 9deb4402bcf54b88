package layer

import (
	"math"

	"github.com/paulmach/orb"
)

// validateCoordinate checks a lon/lat pair against geographic bounds.
func validateCoordinate(feature int, p orb.Point) error {
	lon, lat := p[0], p[1]
	if lat < -90.0 || lat > 90.0 || lon < -180.0 || lon > 180.0 {
		return &ErrInvalidCoordinate{Feature: feature, Lon: lon, Lat: lat}
	}
	return nil
}

// validateGeometry rejects geometries the spatial index and predicates
// cannot handle. When geographic is true every coordinate must also be a
// valid lon/lat pair.
func validateGeometry(feature int, g orb.Geometry, geographic bool) error {
	if g == nil {
		return &ErrInvalidGeometry{Feature: feature, Reason: "geometry is nil"}
	}

	var bad error
	visit(g, func(p orb.Point) bool {
		if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
			bad = &ErrInvalidGeometry{Feature: feature, Type: g.GeoJSONType(), Reason: "non-finite coordinate"}
			return false
		}
		if geographic {
			if err := validateCoordinate(feature, p); err != nil {
				bad = err
				return false
			}
		}
		return true
	})
	if bad != nil {
		return bad
	}

	switch g := g.(type) {
	case orb.Polygon:
		return validatePolygon(feature, g)
	case orb.MultiPolygon:
		for _, poly := range g {
			if err := validatePolygon(feature, poly); err != nil {
				return err
			}
		}
	}
	return nil
}

func validatePolygon(feature int, poly orb.Polygon) error {
	if len(poly) == 0 {
		return &ErrInvalidGeometry{Feature: feature, Type: "Polygon", Reason: "polygon has no rings"}
	}
	// A degenerate ring cannot enclose anything.
	if len(poly[0]) < 3 {
		return &ErrInvalidGeometry{Feature: feature, Type: "Polygon", Reason: "exterior ring has fewer than 3 points"}
	}
	return nil
}

// visit calls fn for every coordinate in g until fn returns false.
func visit(g orb.Geometry, fn func(orb.Point) bool) bool {
	switch g := g.(type) {
	case orb.Point:
		return fn(g)
	case orb.MultiPoint:
		for _, p := range g {
			if !fn(p) {
				return false
			}
		}
	case orb.LineString:
		for _, p := range g {
			if !fn(p) {
				return false
			}
		}
	case orb.Ring:
		for _, p := range g {
			if !fn(p) {
				return false
			}
		}
	case orb.MultiLineString:
		for _, ls := range g {
			if !visit(ls, fn) {
				return false
			}
		}
	case orb.Polygon:
		for _, r := range g {
			if !visit(r, fn) {
				return false
			}
		}
	case orb.MultiPolygon:
		for _, p := range g {
			if !visit(p, fn) {
				return false
			}
		}
	case orb.Collection:
		for _, c := range g {
			if !visit(c, fn) {
				return false
			}
		}
	}
	return true
}
