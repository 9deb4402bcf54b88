package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/beetlebugorg/zoning/internal/telemetry"
	"github.com/beetlebugorg/zoning/pkg/zoning"
)

var (
	resolveAPN        string
	resolveLatLng     string
	resolveCity       string
	resolveOut        string
	resolveOffline    bool
	resolveMetricsOut string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve one parcel and write its constraints as JSON",
	Example: `  zoning resolve --apn 0101010101 --city austin --out result.json
  zoning resolve --lat-lng 30.2672,-97.7431 --city austin`,
	Args: cobra.NoArgs,
	RunE: runResolve,
}

func init() {
	f := resolveCmd.Flags()
	f.StringVar(&resolveAPN, "apn", "", "APN (parcel ID)")
	f.StringVar(&resolveLatLng, "lat-lng", "", "Latitude,Longitude (e.g., 30.2672,-97.7431)")
	f.StringVar(&resolveCity, "city", "", "City/jurisdiction (e.g., austin)")
	f.StringVar(&resolveOut, "out", "-", "Output JSON file, - for stdout")
	f.BoolVar(&resolveOffline, "offline", cfg.Offline, "Offline mode (use cached citations only)")
	f.StringVar(&resolveMetricsOut, "metrics-out", "", "Write run metrics as JSON to this file")

	resolveCmd.MarkFlagsOneRequired("apn", "lat-lng")
	resolveCmd.MarkFlagsMutuallyExclusive("apn", "lat-lng")
	_ = resolveCmd.MarkFlagRequired("city")
}

func runResolve(cmd *cobra.Command, _ []string) error {
	logger := setupLogger()
	ctx := cmd.Context()

	q := zoning.Query{APN: resolveAPN, Jurisdiction: strings.ToLower(resolveCity)}
	if resolveLatLng != "" {
		c, err := zoning.ParseLatLng(resolveLatLng)
		if err != nil {
			return fmt.Errorf("invalid lat-lng format: %s: %w", resolveLatLng, err)
		}
		q.Coordinate = &c
	}

	engine, snippets, err := newEngine(logger, resolveOffline)
	if err != nil {
		return err
	}

	rec := telemetry.NewRecorder()
	result, err := engine.Resolve(ctx, q, rec)
	if resolveMetricsOut != "" {
		if werr := writeMetrics(rec, resolveMetricsOut); werr != nil {
			logger.Warn("could not write metrics", "path", resolveMetricsOut, "error", werr)
		}
	}
	if err != nil {
		return err
	}

	if !resolveOffline {
		if err := snippets.Save(); err != nil {
			logger.Warn("could not save snippet cache", "error", err)
		}
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if resolveOut == "-" {
		if _, err := cmd.OutOrStdout().Write(data); err != nil {
			return err
		}
	} else if err := os.WriteFile(resolveOut, data, 0o644); err != nil {
		return err
	}

	if verbose {
		printParcelInfo(cmd, engine, q)
		if resolveOut != "-" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Output written to %s\n", resolveOut)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Runtime: %.0fms\n", result.RunMs)
	}
	return nil
}

// printParcelInfo describes the matched parcel's geometry on stderr.
func printParcelInfo(cmd *cobra.Command, engine *zoning.Engine, q zoning.Query) {
	snap, err := engine.Snapshot(cmd.Context(), q.Jurisdiction)
	if err != nil {
		return
	}
	r := snap.ParcelResolver()
	var p *zoning.Parcel
	if q.Coordinate != nil {
		p, err = r.ByCoordinate(*q.Coordinate)
	} else {
		p, err = r.ByAPN(q.APN)
	}
	if err != nil {
		return
	}

	info := zoning.DescribeGeometry(p.Geometry())
	w := cmd.ErrOrStderr()
	fmt.Fprintf(w, "Parcel %s: %s, %d vertices\n", p.APN, info.Type, info.VertexCount)
	fmt.Fprintf(w, "  area %.1f, perimeter %.1f (%s units)\n", info.Area, info.Perimeter, snap.Parcels.CRS)
	if p.Distance > 0 {
		fmt.Fprintf(w, "  nearest parcel, %.1f units from the query point\n", p.Distance)
	}
}

func writeMetrics(rec *telemetry.Recorder, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return rec.WriteFile(path)
}
