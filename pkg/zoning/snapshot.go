package zoning

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/beetlebugorg/zoning/internal/geo"
	"github.com/beetlebugorg/zoning/internal/layer"
	"github.com/beetlebugorg/zoning/internal/rules"
)

// Snapshot is everything loaded for one jurisdiction. It is read-only and
// shared by all concurrent resolutions of that jurisdiction.
type Snapshot struct {
	Name     string // registry key, e.g. "austin"
	Config   Jurisdiction
	Rules    *rules.RuleSet
	Parcels  *layer.Layer
	Zoning   *layer.Layer
	Overlays []NamedLayer
	Streets  *layer.Layer // nil without a street layer
	Corner   CornerLotDetector
	LoadedAt time.Time

	registry *geo.Registry
	baseDir  string
}

// SnapshotOptions controls LoadSnapshot.
type SnapshotOptions struct {
	BaseDir  string
	Registry *geo.Registry
	Workers  int
	Logger   *slog.Logger
}

// LoadSnapshot loads the rules and every layer of a jurisdiction. Layers
// are loaded concurrently and reprojected into the rule set's working CRS.
// Missing overlay and street files are skipped; any other missing file
// fails the load.
func LoadSnapshot(ctx context.Context, name string, j Jurisdiction, opts SnapshotOptions) (*Snapshot, error) {
	if opts.Registry == nil {
		opts.Registry = geo.Default
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	log := opts.Logger.With("jurisdiction", name)

	rs, err := rules.Load(resolve(opts.BaseDir, j.RulesFile))
	if err != nil {
		return nil, fmt.Errorf("load jurisdiction %s: %w", name, err)
	}
	log.Debug("rules loaded", "version", rs.Version, "zones", len(rs.Zones),
		"input_crs", rs.InputCRS(), "internal_crs", rs.InternalCRS())

	fields := j.Fields.withDefaults()
	sources := []layer.Source{
		{Name: "parcels", Path: resolve(opts.BaseDir, j.ParcelLayer), IDFields: fields.Identifier},
		{Name: "zoning", Path: resolve(opts.BaseDir, j.ZoningLayer), IDFields: fields.ZoneCode},
	}
	for _, o := range j.OverlayLayers {
		sources = append(sources, layer.Source{Name: o.Name, Path: resolve(opts.BaseDir, o.Path), Optional: true})
	}
	streetIdx := -1
	if j.StreetLayer != "" {
		streetIdx = len(sources)
		sources = append(sources, layer.Source{
			Name: "streets", Path: resolve(opts.BaseDir, j.StreetLayer), IDFields: fields.StreetName, Optional: true,
		})
	}

	loadOpts := layer.DefaultLoadOptions()
	loadOpts.TargetCRS = rs.InternalCRS()
	loadOpts.Registry = opts.Registry
	loadOpts.Logger = log

	layers, err := layer.LoadAll(ctx, sources, loadOpts, opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("load jurisdiction %s: %w", name, err)
	}

	s := &Snapshot{
		Name:     name,
		Config:   j,
		Rules:    rs,
		Parcels:  layers[0],
		Zoning:   layers[1],
		LoadedAt: time.Now(),
		registry: opts.Registry,
		baseDir:  opts.BaseDir,
	}
	for i, o := range j.OverlayLayers {
		if l := layers[2+i]; l != nil {
			s.Overlays = append(s.Overlays, NamedLayer{Name: o.Name, Layer: l})
		}
	}
	if streetIdx >= 0 {
		s.Streets = layers[streetIdx]
	}
	s.Corner = NewCornerLotDetector(s.Streets, j.StreetBuffer)

	log.Info("jurisdiction loaded",
		"parcels", s.Parcels.Len(),
		"zoning_districts", s.Zoning.Len(),
		"overlays", len(s.Overlays),
		"streets", s.Streets != nil,
	)
	return s, nil
}

// ParcelResolver returns a resolver over the snapshot's parcels.
func (s *Snapshot) ParcelResolver() *ParcelResolver {
	return &ParcelResolver{Parcels: s.Parcels, InputCRS: s.Rules.InputCRS(), Registry: s.registry}
}

// Files returns every file the snapshot was built from.
func (s *Snapshot) Files() []string {
	return jurisdictionFiles(s.baseDir, s.Config)
}

// CodeDocuments returns the resolved paths of the citation documents.
func (s *Snapshot) CodeDocuments() []string {
	docs := make([]string, 0, len(s.Config.CodeDocuments))
	for _, d := range s.Config.CodeDocuments {
		docs = append(docs, resolve(s.baseDir, d))
	}
	return docs
}

func jurisdictionFiles(base string, j Jurisdiction) []string {
	files := []string{
		resolve(base, j.RulesFile),
		resolve(base, j.ParcelLayer),
		resolve(base, j.ZoningLayer),
	}
	for _, o := range j.OverlayLayers {
		files = append(files, resolve(base, o.Path))
	}
	if j.StreetLayer != "" {
		files = append(files, resolve(base, j.StreetLayer))
	}
	return files
}

// memorySize estimates the snapshot's footprint for cache accounting:
// about 1KB per feature plus 16 bytes per coordinate.
func (s *Snapshot) memorySize() int64 {
	size := int64(1024)
	add := func(l *layer.Layer) {
		if l == nil {
			return
		}
		for _, f := range l.Features() {
			size += 1024 + int64(coordinateCount(f))*16
		}
	}
	add(s.Parcels)
	add(s.Zoning)
	add(s.Streets)
	for _, o := range s.Overlays {
		add(o.Layer)
	}
	return size
}

func coordinateCount(f *layer.Feature) int {
	// The exterior ring count is a cheap proxy; holes are rare in parcel data.
	if n := geo.ExteriorVertexCount(f.Geometry); n > 0 {
		return n
	}
	return 1
}
