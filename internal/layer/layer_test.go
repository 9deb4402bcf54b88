package layer

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"

	"github.com/beetlebugorg/zoning/internal/errdefs"
	"github.com/beetlebugorg/zoning/internal/geo"
)

const parcelsJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"APN": "0101010101", "OWNER": "A"},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}},
    {"type": "Feature", "properties": {"PROP_ID": 202020},
     "geometry": {"type": "Polygon", "coordinates": [[[2,0],[3,0],[3,1],[2,1],[2,0]]]}},
    {"type": "Feature", "properties": {"APN": "0101010101"},
     "geometry": {"type": "Polygon", "coordinates": [[[5,5],[6,5],[6,6],[5,6],[5,5]]]}},
    {"type": "Feature", "properties": {"APN": "broken"}, "geometry": null}
  ]
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func loadParcels(t *testing.T) *Layer {
	t.Helper()
	opts := DefaultLoadOptions()
	opts.IDFields = []string{"APN", "PROP_ID"}
	l, err := Load(writeFile(t, "parcels.geojson", parcelsJSON), opts)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return l
}

func TestLoad(t *testing.T) {
	l := loadParcels(t)

	if l.Name != "parcels" {
		t.Errorf("Name = %q, want parcels", l.Name)
	}
	if l.Len() != 3 {
		t.Fatalf("Len() = %d, want 3 (null geometry skipped)", l.Len())
	}
	if l.SourceCRS != geo.WGS84 || l.CRS != geo.WGS84 {
		t.Errorf("CRS = %s/%s, want EPSG:4326 for an undeclared source", l.SourceCRS, l.CRS)
	}

	if l.IDField != "APN" {
		t.Errorf("IDField = %q, want APN", l.IDField)
	}
	if id := l.Features()[1].ID; id != "" {
		t.Errorf("feature without APN got ID %q", id)
	}

	first, ok := l.Lookup("0101010101")
	if !ok || first.Index != 0 {
		t.Errorf("duplicate APN should resolve to the first feature, got %+v", first)
	}
}

func TestLoadNumericIdentifier(t *testing.T) {
	opts := DefaultLoadOptions()
	opts.IDFields = []string{"PARCEL_ID", "PROP_ID", "APN"}
	l, err := Load(writeFile(t, "parcels.geojson", parcelsJSON), opts)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if l.IDField != "PROP_ID" {
		t.Fatalf("IDField = %q, want PROP_ID", l.IDField)
	}
	f, ok := l.Lookup("202020")
	if !ok {
		t.Fatal("numeric PROP_ID should map to identifier 202020")
	}
	if f.Index != 1 {
		t.Errorf("Index = %d, want 1", f.Index)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		opts    LoadOptions
		wantErr error
	}{
		{
			name:    "missing file",
			path:    func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.geojson") },
			wantErr: errdefs.ErrNotFound,
		},
		{
			name:    "not json",
			path:    func(t *testing.T) string { return writeFile(t, "bad.geojson", "{not json") },
			wantErr: errdefs.ErrFormat,
		},
		{
			name:    "null document",
			path:    func(t *testing.T) string { return writeFile(t, "null.geojson", "null") },
			wantErr: errdefs.ErrFormat,
		},
		{
			name: "bare geometry",
			path: func(t *testing.T) string {
				return writeFile(t, "poly.geojson", `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`)
			},
			wantErr: errdefs.ErrFormat,
		},
		{
			name: "unsupported crs",
			path: func(t *testing.T) string {
				return writeFile(t, "crs.geojson", `{"type":"FeatureCollection",
					"crs":{"type":"name","properties":{"name":"urn:ogc:def:crs:EPSG::999999"}},
					"features":[]}`)
			},
			wantErr: errdefs.ErrConfig,
		},
		{
			name:    "invalid geometry strict",
			path:    func(t *testing.T) string { return writeFile(t, "p.geojson", parcelsJSON) },
			opts:    LoadOptions{SkipInvalid: false},
			wantErr: errdefs.ErrFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path(t), tt.opts)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Load() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadOutOfRangeCoordinate(t *testing.T) {
	path := writeFile(t, "far.geojson", `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[200,10]}}]}`)

	_, err := Load(path, LoadOptions{})
	var coordErr *ErrInvalidCoordinate
	if !errors.As(err, &coordErr) {
		t.Fatalf("expected ErrInvalidCoordinate, got %v", err)
	}
	if coordErr.Lon != 200 {
		t.Errorf("Lon = %v, want 200", coordErr.Lon)
	}
}

func TestDetectCRS(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"none", `{"type":"FeatureCollection","features":[]}`, ""},
		{"named", `{"crs":{"type":"name","properties":{"name":"urn:ogc:def:crs:EPSG::2277"}}}`, "EPSG:2277"},
		{"crs84", `{"crs":{"type":"name","properties":{"name":"urn:ogc:def:crs:OGC:1.3:CRS84"}}}`, "EPSG:4326"},
		{"epsg code", `{"crs":{"type":"EPSG","properties":{"code":3857}}}`, "EPSG:3857"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectCRS([]byte(tt.doc)); got != tt.want {
				t.Errorf("DetectCRS() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReprojectOnLoad(t *testing.T) {
	opts := DefaultLoadOptions()
	opts.TargetCRS = geo.WebMercator
	l, err := Load(writeFile(t, "parcels.geojson", parcelsJSON), opts)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if l.CRS != geo.WebMercator {
		t.Errorf("CRS = %s, want %s", l.CRS, geo.WebMercator)
	}
	b := l.Features()[0].Bound()
	// One degree of longitude at the equator is about 111 km.
	if w := b.Max[0] - b.Min[0]; math.Abs(w-111319.49) > 1 {
		t.Errorf("projected width = %v, want about 111319", w)
	}
}

func TestReprojectToStatePlane(t *testing.T) {
	opts := DefaultLoadOptions()
	opts.TargetCRS = geo.TexasCentral
	l, err := Load(writeFile(t, "austin.geojson", `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"APN":"1"},"geometry":{"type":"Polygon",
		 "coordinates":[[[-97.7410,30.2740],[-97.7400,30.2740],[-97.7400,30.2750],[-97.7410,30.2750],[-97.7410,30.2740]]]}}]}`), opts)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	f := l.Features()[0]
	b := f.Bound()
	// 0.001 degrees of longitude at 30.27N is about 316 ft.
	if w := b.Max[0] - b.Min[0]; w < 300 || w > 330 {
		t.Errorf("projected width = %v ft, want about 316", w)
	}
	if f.Shape() == nil {
		t.Fatal("loaded feature has no shape")
	}
	if a := f.Shape().Area(); a < 1.0e5 || a > 1.2e5 {
		t.Errorf("Area() = %v sq ft, want about 1.1e5", a)
	}
}

func TestSearch(t *testing.T) {
	l := loadParcels(t)

	tests := []struct {
		name  string
		bound orb.Bound
		want  []int
	}{
		{"first parcel", orb.Bound{Min: orb.Point{0.2, 0.2}, Max: orb.Point{0.4, 0.4}}, []int{0}},
		{"spanning two", orb.Bound{Min: orb.Point{0.5, 0.5}, Max: orb.Point{2.5, 0.6}}, []int{0, 1}},
		{"shared edge", orb.Bound{Min: orb.Point{1, 0}, Max: orb.Point{1.5, 1}}, []int{0}},
		{"empty area", orb.Bound{Min: orb.Point{10, 10}, Max: orb.Point{11, 11}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := l.Search(tt.bound)
			if len(got) != len(tt.want) {
				t.Fatalf("Search() returned %d features, want %d", len(got), len(tt.want))
			}
			for i, f := range got {
				if f.Index != tt.want[i] {
					t.Errorf("result %d index = %d, want %d", i, f.Index, tt.want[i])
				}
			}
		})
	}
}

func TestNearest(t *testing.T) {
	l := loadParcels(t)

	tests := []struct {
		name     string
		p        orb.Point
		wantIdx  int
		wantDist float64
	}{
		{"inside first", orb.Point{0.5, 0.5}, 0, 0},
		{"between first two", orb.Point{1.8, 0.5}, 1, 0.2},
		{"near third", orb.Point{7, 5.5}, 2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, d, ok := l.Nearest(tt.p)
			if !ok {
				t.Fatal("Nearest() found nothing")
			}
			if f.Index != tt.wantIdx {
				t.Errorf("Nearest() index = %d, want %d", f.Index, tt.wantIdx)
			}
			if math.Abs(d-tt.wantDist) > 1e-9 {
				t.Errorf("Nearest() distance = %v, want %v", d, tt.wantDist)
			}
		})
	}
}

// A long thin parcel whose bounding box is nearest but whose geometry is
// not must lose to the truly closest parcel.
func TestNearestReranksByExactDistance(t *testing.T) {
	diagonal := &Feature{Geometry: orb.Polygon{orb.Ring{{0, 0}, {10, 10}, {10, 10.1}, {0, 0.1}, {0, 0}}}}
	square := &Feature{Geometry: orb.Polygon{orb.Ring{{9, 1}, {9.5, 1}, {9.5, 1.5}, {9, 1.5}, {9, 1}}}}
	l := New("test", geo.WGS84, []*Feature{diagonal, square})

	f, _, ok := l.Nearest(orb.Point{9.8, 0.5})
	if !ok || f.Index != 1 {
		t.Fatalf("expected the square, got %+v", f)
	}
}

func TestNearestManyFeatures(t *testing.T) {
	var features []*Feature
	for i := 0; i < 100; i++ {
		x := float64(i) * 2
		features = append(features, &Feature{Geometry: orb.Polygon{orb.Ring{{x, 0}, {x + 1, 0}, {x + 1, 1}, {x, 1}, {x, 0}}}})
	}
	l := New("grid", geo.WGS84, features)

	f, d, ok := l.Nearest(orb.Point{150.5, 3})
	if !ok {
		t.Fatal("Nearest() found nothing")
	}
	if f.Index != 75 {
		t.Errorf("Nearest() index = %d, want 75", f.Index)
	}
	if math.Abs(d-2) > 1e-9 {
		t.Errorf("Nearest() distance = %v, want 2", d)
	}
}

func TestNearestEmpty(t *testing.T) {
	l := New("empty", geo.WGS84, nil)
	if _, _, ok := l.Nearest(orb.Point{0, 0}); ok {
		t.Error("expected no result from an empty layer")
	}
}

func TestLoadAll(t *testing.T) {
	dir := t.TempDir()
	var sources []Source
	for _, name := range []string{"a", "b", "c", "d"} {
		path := filepath.Join(dir, name+".geojson")
		if err := os.WriteFile(path, []byte(parcelsJSON), 0o644); err != nil {
			t.Fatal(err)
		}
		sources = append(sources, Source{Name: name, Path: path})
	}

	layers, err := LoadAll(context.Background(), sources, DefaultLoadOptions(), 2)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	for i, l := range layers {
		if l.Name != sources[i].Name {
			t.Errorf("layer %d name = %q, want %q", i, l.Name, sources[i].Name)
		}
	}

	optional := append(sources, Source{Name: "gone", Path: filepath.Join(dir, "gone.geojson"), Optional: true})
	layers, err = LoadAll(context.Background(), optional, DefaultLoadOptions(), 2)
	if err != nil {
		t.Fatalf("LoadAll() with optional source error = %v", err)
	}
	if layers[len(layers)-1] != nil {
		t.Error("missing optional source should yield a nil layer")
	}

	sources = append(sources, Source{Name: "missing", Path: filepath.Join(dir, "missing.geojson")})
	if _, err := LoadAll(context.Background(), sources, DefaultLoadOptions(), 2); !errors.Is(err, errdefs.ErrNotFound) {
		t.Errorf("LoadAll() error = %v, want ErrNotFound", err)
	}
}

func TestBoundDistance(t *testing.T) {
	b := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}}
	tests := []struct {
		name string
		p    orb.Point
		want float64
	}{
		{"inside", orb.Point{5, 5}, 0},
		{"right of edge", orb.Point{13, 5}, 3},
		{"diagonal from corner", orb.Point{13, 14}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := boundDistance(b, tt.p); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("boundDistance() = %v, want %v", got, tt.want)
			}
		})
	}
}
