package zoning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/beetlebugorg/zoning/internal/citation"
	"github.com/beetlebugorg/zoning/internal/geo"
	"github.com/beetlebugorg/zoning/internal/rules"
	"github.com/beetlebugorg/zoning/internal/schema"
	"github.com/beetlebugorg/zoning/internal/telemetry"
)

// EngineOptions configures an Engine.
type EngineOptions struct {
	// DataDir is the base for relative jurisdiction paths.
	DataDir string

	// Jurisdictions is the registry of known jurisdictions.
	// Defaults to DefaultRegistry().
	Jurisdictions Registry

	// Projections supplies CRS transforms. Defaults to geo.Default.
	Projections *geo.Registry

	// Citations supplies result sources. Defaults to a map-only provider.
	Citations citation.Provider

	// Offline restricts citation lookups to cached snippets.
	Offline bool

	// MaxCacheMemory bounds the snapshot cache in bytes; 0 is unlimited.
	MaxCacheMemory int64

	// Workers bounds concurrent layer loads per jurisdiction.
	Workers int

	Logger *slog.Logger
}

// DefaultEngineOptions returns options for the built-in jurisdictions
// rooted at the current directory.
func DefaultEngineOptions() EngineOptions {
	return EngineOptions{
		DataDir:       ".",
		Jurisdictions: DefaultRegistry(),
		Projections:   geo.Default,
	}
}

// Engine resolves parcels to zoning constraints. It loads each
// jurisdiction once, on first use, and shares the snapshot between
// concurrent requests. Concurrent first requests for the same
// jurisdiction wait on a single load.
//
// Example:
//
//	engine := zoning.NewEngine(zoning.DefaultEngineOptions())
//	result, err := engine.Resolve(ctx, zoning.Query{
//	    APN:          "0101010101",
//	    Jurisdiction: "austin",
//	}, telemetry.Nop{})
//	if errors.Is(err, zoning.ErrNotFound) {
//	    // unknown parcel, jurisdiction or zone
//	}
type Engine struct {
	opts   EngineOptions
	logger *slog.Logger
	cache  *SnapshotCache
	group  singleflight.Group

	mu          sync.Mutex
	generations map[string]uint64 // bumped by Invalidate

	loads atomic.Int64
}

// NewEngine creates an engine. No data is loaded until first use.
func NewEngine(opts EngineOptions) *Engine {
	if opts.Jurisdictions == nil {
		opts.Jurisdictions = DefaultRegistry()
	}
	if opts.Projections == nil {
		opts.Projections = geo.Default
	}
	if opts.Citations == nil {
		opts.Citations = &citation.CacheProvider{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		opts:        opts,
		logger:      opts.Logger,
		cache:       NewSnapshotCache(opts.MaxCacheMemory),
		generations: make(map[string]uint64),
	}
}

// Jurisdictions returns the registered jurisdiction keys.
func (e *Engine) Jurisdictions() []string {
	return e.opts.Jurisdictions.Names()
}

// Files maps every data file of every jurisdiction to its jurisdiction key.
func (e *Engine) Files() map[string]string {
	files := make(map[string]string)
	for name, j := range e.opts.Jurisdictions {
		for _, f := range jurisdictionFiles(e.opts.DataDir, j) {
			files[f] = name
		}
	}
	return files
}

// Loads returns how many jurisdiction loads the engine has started.
func (e *Engine) Loads() int64 {
	return e.loads.Load()
}

// CacheStats reports on loaded snapshots.
func (e *Engine) CacheStats() CacheStats {
	return e.cache.Stats()
}

// Snapshot returns the loaded data of a jurisdiction, loading it if needed.
func (e *Engine) Snapshot(ctx context.Context, name string) (*Snapshot, error) {
	return e.snapshot(ctx, name, telemetry.Nop{})
}

// snapshot is Snapshot with the loads it starts counted on sink.
func (e *Engine) snapshot(ctx context.Context, name string, sink telemetry.Sink) (*Snapshot, error) {
	if s, ok := e.cache.Get(name); ok {
		return s, nil
	}

	j, err := e.opts.Jurisdictions.Lookup(name)
	if err != nil {
		return nil, err
	}

	v, err, shared := e.group.Do(name, func() (any, error) {
		if s, ok := e.cache.Get(name); ok {
			return s, nil
		}
		gen := e.generation(name)

		e.loads.Add(1)
		sink.Increment(telemetry.CounterSnapshotLoads)
		s, err := LoadSnapshot(context.WithoutCancel(ctx), name, j, SnapshotOptions{
			BaseDir:  e.opts.DataDir,
			Registry: e.opts.Projections,
			Workers:  e.opts.Workers,
			Logger:   e.logger,
		})
		if err != nil {
			return nil, err
		}

		// Data invalidated mid-load may already be stale; serve it to the
		// waiting callers but do not cache it.
		if e.generation(name) == gen {
			e.cache.Add(name, s)
		}
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		e.logger.Debug("shared in-flight jurisdiction load", "jurisdiction", name)
	}
	return v.(*Snapshot), nil
}

func (e *Engine) generation(name string) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generations[name]
}

// Invalidate drops a jurisdiction's snapshot so the next request reloads it.
func (e *Engine) Invalidate(name string) {
	e.mu.Lock()
	e.generations[name]++
	e.mu.Unlock()

	e.group.Forget(name)
	e.cache.Remove(name)
	e.logger.Info("jurisdiction invalidated", "jurisdiction", name)
}

// Warm loads the named jurisdictions concurrently, or all of them when
// names is empty.
func (e *Engine) Warm(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		names = e.Jurisdictions()
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range names {
		g.Go(func() error {
			_, err := e.Snapshot(ctx, name)
			return err
		})
	}
	return g.Wait()
}

// Resolve answers a query with a validated ConstraintResult.
//
// Failures wrap ErrInvalidQuery for malformed queries, ErrNotFound for an
// unknown jurisdiction, parcel or zone rule, ErrConfig or ErrFormat for
// unusable data files and ErrSchema for a zoning layer without zone codes
// or a result that fails output validation.
func (e *Engine) Resolve(ctx context.Context, q Query, sink telemetry.Sink) (*schema.ConstraintResult, error) {
	start := time.Now()
	if sink == nil {
		sink = telemetry.Nop{}
	}
	ctx, span := sink.StartSpan(ctx, "resolve")
	defer span.End()

	result, err := e.resolve(ctx, q, sink, start)
	if err != nil {
		sink.Increment(telemetry.CounterErrors)
		e.logger.Debug("resolution failed",
			"jurisdiction", q.Jurisdiction,
			"apn", q.APN,
			"error", err,
		)
		return nil, err
	}
	return result, nil
}

func (e *Engine) resolve(ctx context.Context, q Query, sink telemetry.Sink, start time.Time) (*schema.ConstraintResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	loadCtx, loadSpan := sink.StartSpan(ctx, "load_jurisdiction")
	snap, err := e.snapshot(loadCtx, q.Jurisdiction, sink)
	loadSpan.End()
	if err != nil {
		return nil, err
	}
	log := e.logger.With("jurisdiction", q.Jurisdiction)

	_, parcelSpan := sink.StartSpan(ctx, "find_parcel")
	parcel, err := e.findParcel(snap, q)
	parcelSpan.End()
	if err != nil {
		return nil, err
	}
	if parcel.APNMissing {
		sink.Increment(telemetry.CounterWarnings)
		sink.Increment(telemetry.CounterAPNMissing)
		log.Warn("matched parcel has no identifier", "lat_lng", q.Coordinate.String(), "index", parcel.Feature.Index)
	}

	_, ruleSpan := sink.StartSpan(ctx, "apply_rules")
	zone, err := ResolveZone(parcel.Geometry(), snap.Zoning, snap.Config.TieBreak)
	if err != nil {
		ruleSpan.End()
		return nil, err
	}
	if zone == UnknownZone {
		sink.Increment(telemetry.CounterWarnings)
		log.Warn("parcel outside all zoning districts", "apn", parcel.APN)
	}

	cornerLot := snap.Corner.IsCornerLot(parcel.Geometry())
	constraints, err := snap.Rules.ZoneConstraints(zone, cornerLot)
	if err != nil {
		ruleSpan.End()
		return nil, fmt.Errorf("apn %s: %w", parcel.APN, err)
	}

	overlays := DetectOverlays(parcel.Geometry(), snap.Overlays)
	constraints = snap.Rules.ApplyOverlayCaps(constraints, overlays)
	notes := rules.BuildNotes(cornerLot, snap.Rules.OverlayNotes(overlays))
	ruleSpan.End()
	sink.Increment(telemetry.CounterRulesApplied)

	sources := e.opts.Citations.Sources(ctx, citation.Request{
		City:      snap.Name,
		Sections:  snap.Config.CodeSections,
		Documents: snap.CodeDocuments(),
		Offline:   e.opts.Offline,
	})

	result := &schema.ConstraintResult{
		APN:          parcel.APN,
		Jurisdiction: rules.DisplayName(snap.Rules.Jurisdiction),
		Zone:         zone,
		SetbacksFt: schema.Setbacks{
			Front:      constraints.Front,
			Side:       constraints.Side,
			Rear:       constraints.Rear,
			StreetSide: constraints.StreetSide,
		},
		HeightFt:       constraints.HeightFt,
		FAR:            constraints.FAR,
		LotCoveragePct: constraints.LotCoveragePct,
		Overlays:       overlays,
		Sources:        sources,
		Notes:          notes,
	}
	result.RunMs = float64(time.Since(start).Microseconds()) / 1000

	if err := schema.ValidateResult(result); err != nil {
		return nil, err
	}

	sink.Increment(telemetry.CounterParcelsProcessed)
	sink.Observe(telemetry.GaugeRuntimeMs, result.RunMs)
	log.Debug("parcel resolved",
		"apn", result.APN,
		"zone", result.Zone,
		"corner_lot", cornerLot,
		"overlays", len(result.Overlays),
		"run_ms", result.RunMs,
	)
	return result, nil
}

func (e *Engine) findParcel(snap *Snapshot, q Query) (*Parcel, error) {
	r := snap.ParcelResolver()
	if q.Coordinate != nil {
		return r.ByCoordinate(*q.Coordinate)
	}
	return r.ByAPN(strings.TrimSpace(q.APN))
}
