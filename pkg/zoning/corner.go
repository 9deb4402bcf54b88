package zoning

import (
	"strconv"

	"github.com/paulmach/orb"

	"github.com/beetlebugorg/zoning/internal/geo"
	"github.com/beetlebugorg/zoning/internal/layer"
)

// CornerLotDetector classifies a parcel as a corner lot.
type CornerLotDetector interface {
	IsCornerLot(parcel orb.Geometry) bool
}

// DefaultVertexThreshold is the exterior coordinate count above which the
// vertex heuristic reports a corner lot. A rectangle has 5 coordinates
// counting the closing one.
const DefaultVertexThreshold = 5

// VertexCountDetector approximates corner lots from polygon shape alone:
// lots with more exterior coordinates than Threshold are corners.
// Non-polygonal geometry is never a corner lot.
type VertexCountDetector struct {
	Threshold int
}

// IsCornerLot implements CornerLotDetector.
func (d VertexCountDetector) IsCornerLot(parcel orb.Geometry) bool {
	threshold := d.Threshold
	if threshold <= 0 {
		threshold = DefaultVertexThreshold
	}
	return geo.ExteriorVertexCount(parcel) > threshold
}

// StreetProximityDetector reports a corner lot when the parcel lies within
// Buffer of at least two distinct streets. Streets are told apart by their
// name attribute when the layer has one, otherwise by feature.
type StreetProximityDetector struct {
	Streets *layer.Layer
	Buffer  float64
}

// IsCornerLot implements CornerLotDetector.
func (d StreetProximityDetector) IsCornerLot(parcel orb.Geometry) bool {
	if d.Streets == nil || parcel == nil {
		return false
	}
	shape, err := geo.NewShape(parcel)
	if err != nil {
		return false
	}
	streets := make(map[string]struct{}, 2)
	for _, f := range d.Streets.Search(parcel.Bound().Pad(d.Buffer)) {
		if shape.Distance(f.Shape()) > d.Buffer {
			continue
		}
		key := f.ID
		if key == "" {
			key = "#" + strconv.Itoa(f.Index)
		}
		streets[key] = struct{}{}
		if len(streets) >= 2 {
			return true
		}
	}
	return false
}

// NewCornerLotDetector uses street proximity when a non-empty street layer
// is available and the vertex heuristic otherwise.
func NewCornerLotDetector(streets *layer.Layer, buffer float64) CornerLotDetector {
	if streets == nil || streets.Len() == 0 {
		return VertexCountDetector{}
	}
	if buffer <= 0 {
		buffer = DefaultStreetBuffer
	}
	return StreetProximityDetector{Streets: streets, Buffer: buffer}
}
