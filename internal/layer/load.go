package layer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/beetlebugorg/zoning/internal/errdefs"
	"github.com/beetlebugorg/zoning/internal/geo"
)

// LoadOptions controls how a GeoJSON file becomes a Layer.
type LoadOptions struct {
	// Name labels the layer in logs and errors. Defaults to the file's base name.
	Name string

	// DefaultCRS is assumed when the file declares no CRS.
	DefaultCRS string

	// TargetCRS is the working CRS every geometry is reprojected into.
	// Empty keeps the source CRS.
	TargetCRS string

	// Registry supplies projections. Defaults to geo.Default.
	Registry *geo.Registry

	// IDFields lists candidate identifier attributes in priority order. The
	// first one present on any feature becomes the layer's IDField and
	// populates Feature.ID.
	IDFields []string

	// SkipInvalid drops features with unusable geometry instead of failing
	// the whole load. Dropped features are logged at warn level.
	SkipInvalid bool

	// Logger receives load diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultLoadOptions returns options for a WGS84 source with no reprojection.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		DefaultCRS:  geo.DefaultInput,
		Registry:    geo.Default,
		SkipInvalid: true,
	}
}

// crsMember is the legacy GeoJSON 2008 "crs" member, which RFC 7946 dropped
// but which county GIS exports still carry.
type crsMember struct {
	CRS *struct {
		Type       string `json:"type"`
		Properties struct {
			Name string      `json:"name"`
			Code json.Number `json:"code"`
		} `json:"properties"`
	} `json:"crs"`
}

// DetectCRS returns the CRS declared in a GeoJSON document, or "" when none.
func DetectCRS(data []byte) string {
	var m crsMember
	if err := json.Unmarshal(data, &m); err != nil || m.CRS == nil {
		return ""
	}
	if name := m.CRS.Properties.Name; name != "" {
		return geo.NormalizeCRS(name)
	}
	if code := m.CRS.Properties.Code.String(); code != "" {
		return geo.NormalizeCRS("EPSG:" + code)
	}
	return ""
}

// Load reads a GeoJSON FeatureCollection from path, reprojects it into the
// working CRS and builds its spatial index.
//
// A missing file yields an error wrapping errdefs.ErrNotFound; unparseable
// content wraps errdefs.ErrFormat; an unsupported CRS wraps errdefs.ErrConfig.
//
// Example:
//
//	opts := layer.DefaultLoadOptions()
//	opts.TargetCRS = "EPSG:2277"
//	opts.IDFields = []string{"APN"}
//	parcels, err := layer.Load("data/austin_tx/parcels.geojson", opts)
func Load(path string, opts LoadOptions) (*Layer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &errdefs.FileError{Path: path, Kind: errdefs.ErrNotFound, Err: err}
		}
		return nil, &errdefs.FileError{Path: path, Kind: errdefs.ErrFormat, Err: err}
	}

	l, err := Parse(data, opts)
	if err != nil {
		var fe *errdefs.FileError
		if errors.As(err, &fe) {
			fe.Path = path
			return nil, fe
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	l.Path = path
	if l.Name == "" {
		l.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return l, nil
}

// Parse builds a Layer from GeoJSON bytes. See Load.
func Parse(data []byte, opts LoadOptions) (*Layer, error) {
	if opts.Registry == nil {
		opts.Registry = geo.Default
	}
	if opts.DefaultCRS == "" {
		opts.DefaultCRS = geo.DefaultInput
	}
	log := logger(opts)

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, &errdefs.FileError{Path: opts.Name, Kind: errdefs.ErrFormat, Err: err}
	}
	// The decoder accepts a bare null as an empty collection.
	if fc.Type != "FeatureCollection" {
		return nil, &errdefs.FileError{
			Path: opts.Name,
			Kind: errdefs.ErrFormat,
			Err:  fmt.Errorf("expected a FeatureCollection, got %q", fc.Type),
		}
	}

	source := DetectCRS(data)
	if source == "" {
		source = geo.NormalizeCRS(opts.DefaultCRS)
	}
	target := geo.NormalizeCRS(opts.TargetCRS)
	if target == "" {
		target = source
	}
	transform, err := opts.Registry.Transform(source, target)
	if err != nil {
		return nil, fmt.Errorf("layer %s: %w", opts.Name, err)
	}

	idField := resolveField(fc, opts.IDFields)
	geographic := source == geo.WGS84
	features := make([]*Feature, 0, len(fc.Features))
	for i, gf := range fc.Features {
		g, shape, err := prepare(i, gf.Geometry, geographic, transform)
		if err != nil {
			if !opts.SkipInvalid {
				return nil, &errdefs.FileError{Path: opts.Name, Kind: errdefs.ErrFormat, Err: err}
			}
			log.Warn("skipping invalid feature", "layer", opts.Name, "index", i, "error", err)
			continue
		}

		props := gf.Properties
		if props == nil {
			props = geojson.Properties{}
		}
		f := &Feature{Geometry: g, Properties: props, shape: shape}
		if idField != "" {
			f.ID, _ = StringValue(props, idField)
		}
		features = append(features, f)
	}

	l := New(opts.Name, target, features)
	l.SourceCRS = source
	l.IDField = idField

	log.Debug("layer loaded",
		"layer", opts.Name,
		"features", l.Len(),
		"source_crs", source,
		"crs", target,
		"id_field", idField,
	)
	return l, nil
}

// prepare validates a source geometry, reprojects it and hands it to GEOS.
func prepare(i int, g orb.Geometry, geographic bool, t geo.Transformer) (orb.Geometry, *geo.Shape, error) {
	if err := validateGeometry(i, g, geographic); err != nil {
		return nil, nil, err
	}
	out, err := t.Geometry(g)
	if err != nil {
		return nil, nil, &ErrInvalidGeometry{Feature: i, Type: g.GeoJSONType(), Reason: "reprojection failed: " + err.Error()}
	}
	shape, err := geo.NewShape(out)
	if err != nil {
		return nil, nil, &ErrInvalidGeometry{Feature: i, Type: g.GeoJSONType(), Reason: err.Error()}
	}
	return out, shape, nil
}

// resolveField returns the first candidate present on any feature.
func resolveField(fc *geojson.FeatureCollection, candidates []string) string {
	for _, c := range candidates {
		for _, f := range fc.Features {
			if _, ok := f.Properties[c]; ok {
				return c
			}
		}
	}
	return ""
}

// StringValue returns attribute key formatted as a string. Numeric values
// are rendered without a trailing ".0". Missing, null and blank values
// report false.
func StringValue(props geojson.Properties, key string) (string, bool) {
	v, ok := props[key]
	if !ok || v == nil {
		return "", false
	}
	s := formatValue(v)
	return s, s != ""
}

func formatValue(v any) string {
	switch v := v.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	}
	return fmt.Sprint(v)
}
