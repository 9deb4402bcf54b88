// Package geo provides coordinate reference system handling and the exact
// spatial predicates used by the resolution engine.
//
// Reprojection is delegated to PROJ (go-proj) and predicates to GEOS
// (go-geos); both need the C libraries at build time.
package geo

import (
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/twpayne/go-proj/v10"

	"github.com/beetlebugorg/zoning/internal/errdefs"
)

// Well known CRS identifiers.
const (
	WGS84          = "EPSG:4326"
	WebMercator    = "EPSG:3857"
	TexasCentral   = "EPSG:2277" // NAD83 / Texas Central (ftUS)
	DefaultInput   = WGS84
	DefaultWorking = TexasCentral
)

// Transformer converts coordinates from one CRS to another. Points are
// x/y in GIS order: lon/lat for geographic systems, easting/northing for
// projected ones. The zero value is the identity.
type Transformer struct {
	pj *proj.PJ
}

// Point transforms a single point.
func (t Transformer) Point(p orb.Point) (orb.Point, error) {
	if t.pj == nil {
		return p, nil
	}
	c, err := t.pj.Forward(proj.NewCoord(p[0], p[1], 0, 0))
	if err != nil {
		return orb.Point{}, err
	}
	return orb.Point{c.X(), c.Y()}, nil
}

// Geometry returns a transformed copy of g. The input is never modified.
func (t Transformer) Geometry(g orb.Geometry) (orb.Geometry, error) {
	if t.pj == nil {
		return g, nil
	}
	var perr error
	out := project.Geometry(orb.Clone(g), func(p orb.Point) orb.Point {
		q, err := t.Point(p)
		if err != nil && perr == nil {
			perr = err
		}
		return q
	})
	if perr != nil {
		return nil, perr
	}
	return out, nil
}

// Registry creates and caches PROJ transformations between EPSG systems.
// Any CRS known to the installed PROJ database is supported, including the
// state plane zones used for parcel work.
//
// Example:
//
//	reg := geo.NewRegistry()
//	tr, err := reg.Transform("EPSG:4326", "EPSG:2277")
//	p, err := tr.Point(orb.Point{-97.74, 30.27})
type Registry struct {
	mu         sync.Mutex
	transforms map[[2]string]*proj.PJ
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{transforms: make(map[[2]string]*proj.PJ)}
}

// Default is the process-wide registry used when none is supplied.
var Default = NewRegistry()

// Transform returns the transformation from one CRS to another. Identical
// systems yield the identity without consulting PROJ. Unknown systems fail
// with errdefs.ErrConfig.
func (r *Registry) Transform(from, to string) (Transformer, error) {
	from, to = NormalizeCRS(from), NormalizeCRS(to)
	if from == to {
		return Transformer{}, nil
	}
	key := [2]string{from, to}

	r.mu.Lock()
	defer r.mu.Unlock()
	if pj, ok := r.transforms[key]; ok {
		return Transformer{pj: pj}, nil
	}

	pj, err := proj.NewCRSToCRS(from, to, nil)
	if err != nil {
		return Transformer{}, errdefs.Configf("unsupported CRS transform %s -> %s: %v", from, to, err)
	}
	// PROJ follows the authority axis order (lat/lon for EPSG:4326).
	pj, err = pj.NormalizeForVisualization()
	if err != nil {
		return Transformer{}, errdefs.Configf("unsupported CRS transform %s -> %s: %v", from, to, err)
	}
	r.transforms[key] = pj
	return Transformer{pj: pj}, nil
}

// NormalizeCRS canonicalises the common spellings of a CRS name to the
// "EPSG:<code>" form. Unrecognised names are returned upper-cased.
//
//	"urn:ogc:def:crs:EPSG::2277"      -> "EPSG:2277"
//	"urn:ogc:def:crs:OGC:1.3:CRS84"   -> "EPSG:4326"
//	"epsg:3857"                       -> "EPSG:3857"
func NormalizeCRS(name string) string {
	s := strings.TrimSpace(name)
	upper := strings.ToUpper(s)
	switch {
	case upper == "":
		return ""
	case strings.HasSuffix(upper, "CRS84"), upper == "WGS84":
		return WGS84
	case upper == "EPSG:900913":
		return WebMercator
	case strings.HasPrefix(upper, "URN:OGC:DEF:CRS:EPSG:"):
		code := upper[strings.LastIndex(upper, ":")+1:]
		return "EPSG:" + code
	}
	return upper
}
