package zoning

import (
	"github.com/paulmach/orb"

	"github.com/beetlebugorg/zoning/internal/geo"
	"github.com/beetlebugorg/zoning/internal/layer"
)

// NamedLayer is an overlay layer and the name it is reported under.
type NamedLayer struct {
	Name  string
	Layer *layer.Layer
}

// DetectOverlays returns the names of the overlays with at least one
// feature intersecting parcel, in the order given. Nil and empty layers
// are skipped. A parcel geometry GEOS cannot read matches no overlay.
func DetectOverlays(parcel orb.Geometry, overlays []NamedLayer) []string {
	names := make([]string, 0, len(overlays))
	shape, err := geo.NewShape(parcel)
	if err != nil {
		return names
	}
	for _, o := range overlays {
		if o.Layer == nil || o.Layer.Len() == 0 {
			continue
		}
		for _, f := range o.Layer.Search(parcel.Bound()) {
			if shape.Intersects(f.Shape()) {
				names = append(names, o.Name)
				break
			}
		}
	}
	return names
}
