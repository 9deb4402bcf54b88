// Package zoning resolves a parcel, identified by APN or by coordinate, to
// the zoning constraints that govern it.
//
// Each jurisdiction is a set of GeoJSON layers (parcels, zoning districts,
// optional overlays and street centerlines) plus a YAML rule file keyed by
// zone code. The engine loads a jurisdiction on first use, reprojects every
// layer into the rule file's working CRS, indexes it with an R-tree and
// keeps it in an LRU cache shared by all requests.
//
// # Basic Usage
//
//	engine := zoning.NewEngine(zoning.DefaultEngineOptions())
//	result, err := engine.Resolve(ctx, zoning.Query{
//	    APN:          "0101010101",
//	    Jurisdiction: "austin",
//	}, telemetry.Nop{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%s: %s, height %.0f ft\n", result.APN, result.Zone, result.HeightFt)
//
// # Coordinate Queries
//
// A coordinate is given in the jurisdiction's input CRS (EPSG:4326 by
// default) and matched to the containing parcel, or the nearest one when no
// parcel contains it:
//
//	result, err := engine.Resolve(ctx, zoning.Query{
//	    Coordinate:   &zoning.LatLng{Lat: 30.2672, Lng: -97.7431},
//	    Jurisdiction: "austin",
//	}, sink)
//
// A matched parcel without an identifier is reported with APN "UNKNOWN" and
// counted as a warning.
//
// # Resolution
//
// The governing zone is the first intersecting zoning district in layer
// order, or the one with the largest overlap when the jurisdiction sets
// tie_break: largest_overlap. A parcel outside every district is zone
// "UNKNOWN". Base constraints come from the zone's rule; corner lots add the
// rule's street-side setback. Corner lots are detected from street
// centerlines when a street layer is configured and from parcel shape
// otherwise. Overlay layers the parcel intersects add their notes and may
// tighten height, FAR and lot coverage.
//
// # Errors
//
// Failures can be classified with errors.Is:
//
//	switch {
//	case errors.Is(err, zoning.ErrInvalidQuery):
//	    // malformed request
//	case errors.Is(err, zoning.ErrNotFound):
//	    // unknown jurisdiction, parcel or zone rule
//	case errors.Is(err, zoning.ErrConfig), errors.Is(err, zoning.ErrFormat):
//	    // unusable data files
//	}
//
// # Reloading
//
// Invalidate drops a jurisdiction so that its next request reloads it from
// disk. Files lists every data file by jurisdiction for file watchers.
package zoning
