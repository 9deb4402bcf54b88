// Package layer loads GeoJSON feature collections into spatially indexed,
// CRS-normalised layers.
//
// Every layer is reprojected into a single working CRS at load time, so the
// predicates run by the resolution engine never mix coordinate systems.
// Features keep their source order; query results are always returned in
// that order so callers can rely on "first match wins" semantics.
package layer

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/beetlebugorg/zoning/internal/geo"
)

// Feature is one record of a layer: a geometry in the layer's working CRS
// plus its attributes.
type Feature struct {
	// Index is the feature's position in the source file.
	Index int

	// ID is the identifier resolved through the layer's field mapping.
	// Empty when none of the identifier fields were present.
	ID string

	Geometry   orb.Geometry
	Properties geojson.Properties

	bound orb.Bound
	shape *geo.Shape
}

// Bound returns the feature's bounding box in the working CRS.
func (f *Feature) Bound() orb.Bound {
	return f.bound
}

// Shape returns the feature's geometry prepared for exact predicates.
// It is nil when GEOS could not read the geometry.
func (f *Feature) Shape() *geo.Shape {
	return f.shape
}

// Layer is an ordered, indexed collection of features sharing one CRS.
type Layer struct {
	Name      string
	Path      string
	CRS       string // working CRS of every geometry in the layer
	SourceCRS string // CRS declared by (or assumed for) the source file
	IDField   string // attribute backing Feature.ID, empty when none matched

	features []*Feature
	byID     map[string]*Feature
	rtree    *rtreego.Rtree
}

// minExtent pads zero-width bounds, which the R-tree cannot store.
const minExtent = 1e-9

// indexedFeature wraps a feature for R-tree storage.
type indexedFeature struct {
	feature *Feature
}

// Bounds implements rtreego.Spatial.
func (f *indexedFeature) Bounds() rtreego.Rect {
	return boundToRect(f.feature.bound)
}

func boundToRect(b orb.Bound) rtreego.Rect {
	point := rtreego.Point{b.Min[0], b.Min[1]}
	lengths := []float64{
		math.Max(b.Max[0]-b.Min[0], minExtent),
		math.Max(b.Max[1]-b.Min[1], minExtent),
	}
	rect, _ := rtreego.NewRect(point, lengths)
	return rect
}

// New builds a layer from features already in crs. Feature indices are
// reassigned to match slice order. Features whose geometry GEOS rejects
// keep a nil Shape and never match a predicate; Load reports them instead.
func New(name, crs string, features []*Feature) *Layer {
	l := &Layer{
		Name:      name,
		CRS:       crs,
		SourceCRS: crs,
		features:  features,
		byID:      make(map[string]*Feature, len(features)),
	}
	l.buildIndex()
	return l
}

func (l *Layer) buildIndex() {
	// 2D, min=25 children, max=50 children
	l.rtree = rtreego.NewTree(2, 25, 50)
	for i, f := range l.features {
		f.Index = i
		f.bound = f.Geometry.Bound()
		if f.shape == nil {
			f.shape, _ = geo.NewShape(f.Geometry)
		}
		if f.ID != "" {
			// First occurrence wins for duplicate identifiers.
			if _, dup := l.byID[f.ID]; !dup {
				l.byID[f.ID] = f
			}
		}
		l.rtree.Insert(&indexedFeature{feature: f})
	}
}

// Len returns the number of features in the layer.
func (l *Layer) Len() int {
	return len(l.features)
}

// Features returns all features in source order.
func (l *Layer) Features() []*Feature {
	return l.features
}

// Lookup returns the first feature whose identifier equals id.
func (l *Layer) Lookup(id string) (*Feature, bool) {
	f, ok := l.byID[id]
	return f, ok
}

// Search returns features whose bounding boxes touch b, in source order.
// Callers still need an exact predicate to confirm a match.
func (l *Layer) Search(b orb.Bound) []*Feature {
	if l.rtree == nil || l.rtree.Size() == 0 {
		return nil
	}

	// Pad so that features sharing only an edge with b are returned.
	padded := b.Pad(minExtent)
	spatials := l.rtree.SearchIntersect(boundToRect(padded))

	result := make([]*Feature, 0, len(spatials))
	for _, s := range spatials {
		result = append(result, s.(*indexedFeature).feature)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Index < result[j].Index })
	return result
}

// nearestCandidates is the initial candidate count for nearest searches.
const nearestCandidates = 8

// Nearest returns the feature whose geometry is closest to p and the exact
// distance to it. Candidates are gathered from the R-tree by bounding box
// distance and re-ranked with exact geometry distance; the candidate set
// grows until no unexamined feature could be closer. Equal distances are
// broken by source order.
func (l *Layer) Nearest(p orb.Point) (*Feature, float64, bool) {
	n := l.Len()
	if n == 0 {
		return nil, 0, false
	}
	target, err := geo.NewShape(p)
	if err != nil {
		return nil, 0, false
	}

	k := min(nearestCandidates, n)
	for {
		var (
			best     *Feature
			bestDist = math.Inf(1)
			farthest float64
		)
		for _, s := range l.rtree.NearestNeighbors(k, rtreego.Point{p[0], p[1]}) {
			if s == nil {
				continue
			}
			f := s.(*indexedFeature).feature
			farthest = math.Max(farthest, boundDistance(f.bound, p))

			d := f.shape.Distance(target)
			if d < bestDist || (d == bestDist && best != nil && f.Index < best.Index) {
				best, bestDist = f, d
			}
		}

		// Every feature outside the candidate set has a bounding box at
		// least as far away as the farthest candidate's.
		if k >= n || farthest > bestDist {
			return best, bestDist, best != nil
		}
		k = min(k*2, n)
	}
}

// boundDistance returns the planar distance from p to b, zero when p is
// inside. It never exceeds the exact distance to any geometry b encloses.
func boundDistance(b orb.Bound, p orb.Point) float64 {
	dx := math.Max(0, math.Max(b.Min[0]-p[0], p[0]-b.Max[0]))
	dy := math.Max(0, math.Max(b.Min[1]-p[1], p[1]-b.Max[1]))
	return math.Hypot(dx, dy)
}
