// Command zoning resolves parcels to zoning constraints from the command
// line or over HTTP.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/beetlebugorg/zoning/internal/citation"
	"github.com/beetlebugorg/zoning/internal/config"
	"github.com/beetlebugorg/zoning/pkg/zoning"
)

var (
	rootCmd = &cobra.Command{
		Use:           "zoning",
		Short:         "Resolve land parcels to zoning constraints",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	dataDir           string
	jurisdictionsFile string
	verbose           bool
)

// cfg holds settings from the environment; flags override them.
var cfg = mustLoadConfig()

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", cfg.DataDir, "Data directory holding rules and layers")
	rootCmd.PersistentFlags().StringVar(&jurisdictionsFile, "jurisdictions", cfg.JurisdictionsFile, "Jurisdiction registry YAML (default: built-in)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateRulesCmd)
	rootCmd.AddCommand(metricsCmd)
}

func mustLoadConfig() config.Config {
	c, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return c
}

// setupLogger installs the process logger; --verbose forces debug level.
func setupLogger() *slog.Logger {
	c := cfg
	if verbose {
		c.LogLevel = "debug"
	}
	return config.SetupLogger(os.Stderr, c)
}

// newEngine builds an engine and the snippet cache behind its citations.
func newEngine(logger *slog.Logger, offline bool) (*zoning.Engine, *citation.SnippetCache, error) {
	reg, err := config.LoadJurisdictions(jurisdictionsFile)
	if err != nil {
		return nil, nil, err
	}

	cachePath := cfg.SnippetCache
	if !filepath.IsAbs(cachePath) {
		cachePath = filepath.Join(dataDir, cachePath)
	}
	snippets := citation.OpenCache(cachePath, logger)

	opts := zoning.DefaultEngineOptions()
	opts.DataDir = dataDir
	opts.Jurisdictions = reg
	opts.Citations = &citation.CacheProvider{Cache: snippets}
	opts.Offline = offline
	opts.MaxCacheMemory = cfg.MaxCacheMemory
	opts.Logger = logger
	return zoning.NewEngine(opts), snippets, nil
}
