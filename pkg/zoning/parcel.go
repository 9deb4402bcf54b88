package zoning

import (
	"github.com/paulmach/orb"

	"github.com/beetlebugorg/zoning/internal/errdefs"
	"github.com/beetlebugorg/zoning/internal/geo"
	"github.com/beetlebugorg/zoning/internal/layer"
)

// UnknownAPN is reported for a parcel whose identifier attribute is blank.
const UnknownAPN = "UNKNOWN"

// Parcel is a resolved parcel.
type Parcel struct {
	Feature *layer.Feature
	APN     string

	// APNMissing is set when the matched feature had no identifier and APN
	// fell back to UnknownAPN. Such results should not be trusted blindly.
	APNMissing bool

	// Distance from the query point in working CRS units; zero for APN
	// lookups and for points inside the parcel.
	Distance float64
}

// Geometry returns the parcel geometry in the working CRS.
func (p *Parcel) Geometry() orb.Geometry {
	return p.Feature.Geometry
}

// ParcelResolver finds parcels by identifier or location.
type ParcelResolver struct {
	Parcels  *layer.Layer
	InputCRS string
	Registry *geo.Registry
}

// ByAPN returns the first parcel whose identifier equals apn.
func (r *ParcelResolver) ByAPN(apn string) (*Parcel, error) {
	f, ok := r.Parcels.Lookup(apn)
	if !ok {
		return nil, errdefs.NotFoundf("parcel not found for APN: %s", apn)
	}
	return &Parcel{Feature: f, APN: apn}, nil
}

// ByCoordinate returns the parcel nearest to c. The coordinate is
// reprojected from the input CRS into the parcel layer's CRS first.
func (r *ParcelResolver) ByCoordinate(c LatLng) (*Parcel, error) {
	reg := r.Registry
	if reg == nil {
		reg = geo.Default
	}
	input := r.InputCRS
	if input == "" {
		input = geo.DefaultInput
	}
	tr, err := reg.Transform(input, r.Parcels.CRS)
	if err != nil {
		return nil, err
	}
	p, err := tr.Point(orb.Point{c.Lng, c.Lat})
	if err != nil {
		return nil, &errdefs.QueryError{Field: "lat_lng", Value: c.String(), Reason: "cannot project: " + err.Error()}
	}

	f, d, ok := r.Parcels.Nearest(p)
	if !ok {
		return nil, errdefs.NotFoundf("no parcel near %s", c)
	}

	parcel := &Parcel{Feature: f, APN: f.ID, Distance: d}
	if parcel.APN == "" {
		parcel.APN, parcel.APNMissing = UnknownAPN, true
	}
	return parcel, nil
}
