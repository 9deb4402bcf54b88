package zoning

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beetlebugorg/zoning/internal/citation"
	"github.com/beetlebugorg/zoning/internal/rules"
	"github.com/beetlebugorg/zoning/internal/telemetry"
)

const testRules = `
version: 1
jurisdiction: austin_tx
crs:
  input: EPSG:4326
  internal: EPSG:4326
zones:
  SF-3:
    height_ft: 35
    far: 0.4
    lot_coverage_pct: 40
    setbacks_ft: {front: 25, side: 5, rear: 10}
    corner_lot:
      street_side_setback_ft: 15
  MF-2:
    height_ft: 40
    far: 0.75
    lot_coverage_pct: 60
    setbacks_ft: {front: 15, side: 5, rear: 10}
overlays:
  floodplain:
    name: Floodplain
    rules:
      notes: additional review required
      height_ft: 30
`

// Parcels 1001-1003 lie in SF-3, the unnamed parcel in MF-2 and 1004
// outside every district. 1002 has six exterior coordinates; 1003 lies in
// the floodplain.
const testParcels = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"APN": "1001"},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[10,0],[10,10],[0,10],[0,0]]]}},
    {"type": "Feature", "properties": {"APN": "1002"},
     "geometry": {"type": "Polygon", "coordinates": [[[20,0],[30,0],[30,10],[25,12],[20,10],[20,0]]]}},
    {"type": "Feature", "properties": {"APN": "1003"},
     "geometry": {"type": "Polygon", "coordinates": [[[40,0],[50,0],[50,10],[40,10],[40,0]]]}},
    {"type": "Feature", "properties": {"APN": "1004"},
     "geometry": {"type": "Polygon", "coordinates": [[[100,60],[110,60],[110,70],[100,70],[100,60]]]}},
    {"type": "Feature", "properties": {"OWNER": "city"},
     "geometry": {"type": "Polygon", "coordinates": [[[60,0],[70,0],[70,10],[60,10],[60,0]]]}}
  ]
}`

const testZoning = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"zone": "SF-3"},
     "geometry": {"type": "Polygon", "coordinates": [[[-1,-1],[55,-1],[55,15],[-1,15],[-1,-1]]]}},
    {"type": "Feature", "properties": {"zone": "MF-2"},
     "geometry": {"type": "Polygon", "coordinates": [[[56,-1],[80,-1],[80,15],[56,15],[56,-1]]]}}
  ]
}`

const testFloodplain = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {},
     "geometry": {"type": "Polygon", "coordinates": [[[38,-2],[52,-2],[52,12],[38,12],[38,-2]]]}}
  ]
}`

const testCode = `§25-2-492 Site Development Regulations
(A) Minimum lot size is 5,750 square feet.
`

// writeJurisdiction lays out a complete jurisdiction under a temp dir and
// returns the dir and a registry naming it "austin".
func writeJurisdiction(t *testing.T) (string, Registry) {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"rules/austin.yaml":              testRules,
		"data/austin/parcels.geojson":    testParcels,
		"data/austin/zoning.geojson":     testZoning,
		"data/austin/floodplain.geojson": testFloodplain,
		"docs/austin/ldc.txt":            testCode,
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	reg := Registry{
		"austin": {
			ParcelLayer: "data/austin/parcels.geojson",
			ZoningLayer: "data/austin/zoning.geojson",
			OverlayLayers: []OverlayLayer{
				{Name: "floodplain", Path: "data/austin/floodplain.geojson"},
				{Name: "airport", Path: "data/austin/airport.geojson"}, // absent
			},
			RulesFile:     "rules/austin.yaml",
			CodeDocuments: []string{"docs/austin/ldc.txt"},
			CodeSections:  []string{"§25-2-492", "§25-2-999"},
		},
	}
	return dir, reg
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	dir, reg := writeJurisdiction(t)
	opts := DefaultEngineOptions()
	opts.DataDir = dir
	opts.Jurisdictions = reg
	return NewEngine(opts)
}

func TestResolveByAPN(t *testing.T) {
	engine := newTestEngine(t)
	rec := telemetry.NewRecorder()

	result, err := engine.Resolve(context.Background(), Query{APN: "1001", Jurisdiction: "austin"}, rec)
	require.NoError(t, err)

	assert.Equal(t, "1001", result.APN)
	assert.Equal(t, "Austin, TX", result.Jurisdiction)
	assert.Equal(t, "SF-3", result.Zone)
	assert.Equal(t, 25.0, result.SetbacksFt.Front)
	assert.Equal(t, 5.0, result.SetbacksFt.Side)
	assert.Equal(t, 10.0, result.SetbacksFt.Rear)
	assert.Zero(t, result.SetbacksFt.StreetSide)
	assert.Equal(t, 35.0, result.HeightFt)
	assert.Equal(t, 0.4, result.FAR)
	assert.Equal(t, 40.0, result.LotCoveragePct)
	assert.NotNil(t, result.Overlays)
	assert.Empty(t, result.Overlays)
	assert.Empty(t, result.Notes)
	assert.GreaterOrEqual(t, result.RunMs, 0.0)
	require.NotEmpty(t, result.Sources)
	assert.Equal(t, citation.MapSource("austin"), result.Sources[0])

	assert.EqualValues(t, 1, rec.Counter(telemetry.CounterParcelsProcessed))
	assert.EqualValues(t, 1, rec.Counter(telemetry.CounterRulesApplied))
	assert.Zero(t, rec.Counter(telemetry.CounterErrors))
	_, ok := rec.Gauge(telemetry.GaugeRuntimeMs)
	assert.True(t, ok)
}

func TestResolveCornerLot(t *testing.T) {
	engine := newTestEngine(t)

	result, err := engine.Resolve(context.Background(), Query{APN: "1002", Jurisdiction: "austin"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "SF-3", result.Zone)
	assert.Equal(t, 15.0, result.SetbacksFt.StreetSide)
	assert.Equal(t, rules.CornerLotNote, result.Notes)
}

func TestResolveOverlay(t *testing.T) {
	engine := newTestEngine(t)

	result, err := engine.Resolve(context.Background(), Query{APN: "1003", Jurisdiction: "austin"}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"floodplain"}, result.Overlays)
	assert.Equal(t, "additional review required", result.Notes)
	assert.Equal(t, 30.0, result.HeightFt, "overlay cap applies")
	assert.Zero(t, result.SetbacksFt.StreetSide)
}

func TestResolveByCoordinate(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		name string
		at   LatLng
		apn  string
		zone string
	}{
		{"inside parcel", LatLng{Lat: 5, Lng: 5}, "1001", "SF-3"},
		{"nearest parcel", LatLng{Lat: 5, Lng: 14}, "1001", "SF-3"},
		{"inside corner lot", LatLng{Lat: 5, Lng: 25}, "1002", "SF-3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			at := tt.at
			result, err := engine.Resolve(context.Background(), Query{Coordinate: &at, Jurisdiction: "austin"}, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.apn, result.APN)
			assert.Equal(t, tt.zone, result.Zone)
		})
	}
}

func TestResolveMissingAPN(t *testing.T) {
	engine := newTestEngine(t)
	rec := telemetry.NewRecorder()

	result, err := engine.Resolve(context.Background(), Query{
		Coordinate:   &LatLng{Lat: 5, Lng: 65},
		Jurisdiction: "austin",
	}, rec)
	require.NoError(t, err)

	assert.Equal(t, UnknownAPN, result.APN)
	assert.Equal(t, "MF-2", result.Zone)
	assert.EqualValues(t, 1, rec.Counter(telemetry.CounterAPNMissing))
	assert.EqualValues(t, 1, rec.Counter(telemetry.CounterWarnings))
}

func TestResolveAPNRoundTrip(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	byPoint, err := engine.Resolve(ctx, Query{Coordinate: &LatLng{Lat: 5, Lng: 45}, Jurisdiction: "austin"}, nil)
	require.NoError(t, err)

	byAPN, err := engine.Resolve(ctx, Query{APN: byPoint.APN, Jurisdiction: "austin"}, nil)
	require.NoError(t, err)

	assert.Equal(t, byPoint.Zone, byAPN.Zone)
	assert.Equal(t, byPoint.SetbacksFt, byAPN.SetbacksFt)
	assert.Equal(t, byPoint.Overlays, byAPN.Overlays)
}

func TestResolveErrors(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		name    string
		query   Query
		wantErr error
		wantMsg string
	}{
		{"no jurisdiction", Query{APN: "1001"}, ErrInvalidQuery, ""},
		{"no identifier", Query{Jurisdiction: "austin"}, ErrInvalidQuery, ""},
		{"both identifiers", Query{APN: "1001", Coordinate: &LatLng{}, Jurisdiction: "austin"}, ErrInvalidQuery, ""},
		{"latitude out of range", Query{Coordinate: &LatLng{Lat: 91}, Jurisdiction: "austin"}, ErrInvalidQuery, ""},
		{"unknown jurisdiction", Query{APN: "1001", Jurisdiction: "houston"}, ErrNotFound, "unknown jurisdiction: houston"},
		{"unknown parcel", Query{APN: "9999", Jurisdiction: "austin"}, ErrNotFound, "parcel not found for APN: 9999"},
		{"outside every district", Query{APN: "1004", Jurisdiction: "austin"}, ErrNotFound, "no rules found for zone: UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := telemetry.NewRecorder()
			_, err := engine.Resolve(context.Background(), tt.query, rec)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
			assert.EqualValues(t, 1, rec.Counter(telemetry.CounterErrors))
		})
	}
}

func TestResolveBrokenData(t *testing.T) {
	dir, reg := writeJurisdiction(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data/austin/zoning.geojson"), []byte("{not json"), 0o644))

	opts := DefaultEngineOptions()
	opts.DataDir = dir
	opts.Jurisdictions = reg
	engine := NewEngine(opts)

	_, err := engine.Resolve(context.Background(), Query{APN: "1001", Jurisdiction: "austin"}, nil)
	assert.ErrorIs(t, err, ErrFormat)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "data/austin/zoning.geojson"), []byte(testZoning), 0o644))
	j := reg["austin"]
	j.ParcelLayer = "data/austin/missing.geojson"
	reg["austin"] = j
	engine = NewEngine(opts)
	_, err = engine.Resolve(context.Background(), Query{APN: "1001", Jurisdiction: "austin"}, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveCitesCachedSections(t *testing.T) {
	dir, reg := writeJurisdiction(t)
	opts := DefaultEngineOptions()
	opts.DataDir = dir
	opts.Jurisdictions = reg
	opts.Citations = &citation.CacheProvider{Cache: citation.OpenCache(filepath.Join(dir, "snippets.json"), nil)}
	engine := NewEngine(opts)

	result, err := engine.Resolve(context.Background(), Query{APN: "1001", Jurisdiction: "austin"}, nil)
	require.NoError(t, err)

	require.Len(t, result.Sources, 2, "only sections present in the documents are cited")
	assert.Equal(t, citation.TypeCode, result.Sources[1].Type)
	assert.Equal(t, "§25-2-492", result.Sources[1].Cite)
}

func TestSnapshotSingleLoad(t *testing.T) {
	engine := newTestEngine(t)

	const callers = 16
	snaps := make([]*Snapshot, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := engine.Snapshot(context.Background(), "austin")
			assert.NoError(t, err)
			snaps[i] = s
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, engine.Loads())
	for _, s := range snaps {
		assert.Same(t, snaps[0], s)
	}
	assert.Equal(t, []string{"austin"}, engine.CacheStats().Jurisdictions)
}

func TestInvalidate(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	first, err := engine.Snapshot(ctx, "austin")
	require.NoError(t, err)

	engine.Invalidate("austin")
	assert.Empty(t, engine.CacheStats().Jurisdictions)

	second, err := engine.Snapshot(ctx, "austin")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.EqualValues(t, 2, engine.Loads())
}

func TestWarm(t *testing.T) {
	engine := newTestEngine(t)
	require.NoError(t, engine.Warm(context.Background()))
	assert.Equal(t, []string{"austin"}, engine.CacheStats().Jurisdictions)

	err := engine.Warm(context.Background(), "houston")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestEngineFiles(t *testing.T) {
	dir, reg := writeJurisdiction(t)
	opts := DefaultEngineOptions()
	opts.DataDir = dir
	opts.Jurisdictions = reg
	engine := NewEngine(opts)

	files := engine.Files()
	assert.Equal(t, "austin", files[filepath.Join(dir, "rules/austin.yaml")])
	assert.Equal(t, "austin", files[filepath.Join(dir, "data/austin/floodplain.geojson")])
	assert.Len(t, files, 5)
}

func TestSnapshotSkipsMissingOverlay(t *testing.T) {
	engine := newTestEngine(t)
	s, err := engine.Snapshot(context.Background(), "austin")
	require.NoError(t, err)

	require.Len(t, s.Overlays, 1)
	assert.Equal(t, "floodplain", s.Overlays[0].Name)
	assert.Nil(t, s.Streets)
	assert.IsType(t, VertexCountDetector{}, s.Corner)
}

func TestResolveOutsideEveryDistrictWithUnknownRule(t *testing.T) {
	dir, reg := writeJurisdiction(t)
	withUnknown := strings.Replace(testRules, "zones:\n", `zones:
  UNKNOWN:
    height_ft: 35
    far: 0.4
    lot_coverage_pct: 40
    setbacks_ft: {front: 25, side: 5, rear: 10}
`, 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules/austin.yaml"), []byte(withUnknown), 0o644))

	opts := DefaultEngineOptions()
	opts.DataDir = dir
	opts.Jurisdictions = reg
	engine := NewEngine(opts)

	result, err := engine.Resolve(context.Background(), Query{APN: "1004", Jurisdiction: "austin"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "1004", result.APN)
	assert.Equal(t, UnknownZone, result.Zone)
	assert.Equal(t, 35.0, result.HeightFt)
	assert.Empty(t, result.Overlays)
}

// Rules without a crs block work in Texas Central state plane feet.
const statePlaneRules = `
version: 1
jurisdiction: austin_tx
zones:
  CS:
    height_ft: 60
    far: 2.0
    lot_coverage_pct: 95
    setbacks_ft: {front: 0, side: 0, rear: 0}
  MF-2:
    height_ft: 40
    far: 0.75
    lot_coverage_pct: 60
    setbacks_ft: {front: 15, side: 5, rear: 10}
`

const downtownParcels = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"APN": "0201"},
     "geometry": {"type": "Polygon", "coordinates": [[[-97.7410,30.2740],[-97.7400,30.2740],[-97.7400,30.2750],[-97.7410,30.2750],[-97.7410,30.2740]]]}},
    {"type": "Feature", "properties": {"APN": "0202"},
     "geometry": {"type": "Polygon", "coordinates": [[[-97.7390,30.2740],[-97.7380,30.2740],[-97.7380,30.2750],[-97.7390,30.2750],[-97.7390,30.2740]]]}}
  ]
}`

const downtownZoning = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"zone": "CS"},
     "geometry": {"type": "Polygon", "coordinates": [[[-97.7420,30.2730],[-97.7395,30.2730],[-97.7395,30.2760],[-97.7420,30.2760],[-97.7420,30.2730]]]}},
    {"type": "Feature", "properties": {"zone": "MF-2"},
     "geometry": {"type": "Polygon", "coordinates": [[[-97.7395,30.2730],[-97.7370,30.2730],[-97.7370,30.2760],[-97.7395,30.2760],[-97.7395,30.2730]]]}}
  ]
}`

func TestResolveDefaultWorkingCRS(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"rules.yaml":      statePlaneRules,
		"parcels.geojson": downtownParcels,
		"zoning.geojson":  downtownZoning,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	opts := DefaultEngineOptions()
	opts.DataDir = dir
	opts.Jurisdictions = Registry{
		"austin": {ParcelLayer: "parcels.geojson", ZoningLayer: "zoning.geojson", RulesFile: "rules.yaml"},
	}
	engine := NewEngine(opts)
	ctx := context.Background()

	result, err := engine.Resolve(ctx, Query{APN: "0201", Jurisdiction: "austin"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "CS", result.Zone)

	result, err = engine.Resolve(ctx, Query{Coordinate: &LatLng{Lat: 30.2745, Lng: -97.7385}, Jurisdiction: "austin"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "0202", result.APN)
	assert.Equal(t, "MF-2", result.Zone)

	snap, err := engine.Snapshot(ctx, "austin")
	require.NoError(t, err)
	assert.Equal(t, "EPSG:2277", snap.Parcels.CRS)

	parcel, ok := snap.Parcels.Lookup("0201")
	require.True(t, ok)
	// About 314 ft by 364 ft.
	info := DescribeGeometry(parcel.Geometry)
	assert.InDelta(t, 1.14e5, info.Area, 0.05e5)
	assert.InDelta(t, 1356, info.Perimeter, 30)
}

func TestResolveCountsSnapshotLoads(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	first := telemetry.NewRecorder()
	_, err := engine.Resolve(ctx, Query{APN: "1001", Jurisdiction: "austin"}, first)
	require.NoError(t, err)
	assert.EqualValues(t, 1, first.Counter(telemetry.CounterSnapshotLoads))

	second := telemetry.NewRecorder()
	_, err = engine.Resolve(ctx, Query{APN: "1002", Jurisdiction: "austin"}, second)
	require.NoError(t, err)
	assert.EqualValues(t, 0, second.Counter(telemetry.CounterSnapshotLoads), "cached snapshot")
}
