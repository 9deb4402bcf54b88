package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/beetlebugorg/zoning/internal/telemetry"
)

var metricsInput string

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Print a metrics file written by resolve --metrics-out as a markdown table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return printMetrics(cmd.OutOrStdout(), metricsInput)
	},
}

func init() {
	metricsCmd.Flags().StringVarP(&metricsInput, "input", "i", "metrics.json", "Metrics JSON file")
}

// coreMetrics are listed first, in this order, even when zero.
var coreMetrics = []struct{ key, label string }{
	{telemetry.CounterParcelsProcessed, "Parcels Processed"},
	{telemetry.CounterRulesApplied, "Rules Applied"},
	{telemetry.GaugeRuntimeMs, "Total Runtime (ms)"},
	{telemetry.CounterErrors, "Errors"},
	{telemetry.CounterWarnings, "Warnings"},
}

func printMetrics(w io.Writer, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(w, "No metrics yet")
		return nil
	}
	if err != nil {
		return err
	}

	var rep telemetry.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	values := make(map[string]float64, len(rep.Counters)+len(rep.Gauges))
	for k, v := range rep.Counters {
		values[k] = float64(v)
	}
	for k, v := range rep.Gauges {
		values[k] = v
	}

	fmt.Fprintln(w, "| Metric | Value |")
	fmt.Fprintln(w, "|--------|-------|")
	core := make(map[string]bool, len(coreMetrics))
	for _, m := range coreMetrics {
		core[m.key] = true
		fmt.Fprintf(w, "| %s | %g |\n", m.label, values[m.key])
	}

	rest := make([]string, 0, len(values))
	for k := range values {
		if !core[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		fmt.Fprintf(w, "| %s | %g |\n", k, values[k])
	}

	spans := make([]string, 0, len(rep.SpansMs))
	for k := range rep.SpansMs {
		spans = append(spans, k)
	}
	sort.Strings(spans)
	for _, k := range spans {
		fmt.Fprintf(w, "| span %s (ms) | %g |\n", k, rep.SpansMs[k])
	}
	return nil
}
