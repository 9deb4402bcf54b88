package zoning

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/beetlebugorg/zoning/internal/errdefs"
	"github.com/beetlebugorg/zoning/internal/geo"
	"github.com/beetlebugorg/zoning/internal/layer"
)

// UnknownZone is reported for parcels outside every zoning district.
const UnknownZone = "UNKNOWN"

// TieBreak selects among several zoning districts intersecting a parcel.
type TieBreak string

const (
	// TieBreakLayerOrder picks the first intersecting district in source
	// order. It is the default.
	TieBreakLayerOrder TieBreak = "layer_order"

	// TieBreakLargestOverlap picks the district sharing the most area with
	// the parcel, falling back to source order on equal overlap.
	TieBreakLargestOverlap TieBreak = "largest_overlap"
)

// ResolveZone returns the zone code governing parcel.
//
// A parcel intersecting no district yields UnknownZone and no error. The
// zoning layer must carry one of its configured zone-code attributes;
// otherwise the call fails with ErrSchema. A matched district with a blank
// zone code also yields UnknownZone.
func ResolveZone(parcel orb.Geometry, zoning *layer.Layer, tb TieBreak) (string, error) {
	if zoning == nil || zoning.Len() == 0 {
		return UnknownZone, nil
	}
	if zoning.IDField == "" {
		return "", fmt.Errorf("%w: zoning layer %q has no zone code attribute", errdefs.ErrSchema, zoning.Name)
	}

	shape, err := geo.NewShape(parcel)
	if err != nil {
		return "", fmt.Errorf("%w: parcel geometry: %v", errdefs.ErrFormat, err)
	}

	var match *layer.Feature
	bestOverlap := -1.0
	for _, f := range zoning.Search(parcel.Bound()) {
		if !shape.Intersects(f.Shape()) {
			continue
		}
		if tb != TieBreakLargestOverlap {
			match = f
			break
		}
		if a := shape.OverlapArea(f.Shape()); a > bestOverlap {
			match, bestOverlap = f, a
		}
	}

	if match == nil || match.ID == "" {
		return UnknownZone, nil
	}
	return match.ID, nil
}
