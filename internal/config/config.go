// Package config loads service settings from the environment and the
// jurisdiction registry from YAML.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/beetlebugorg/zoning/internal/errdefs"
	"github.com/beetlebugorg/zoning/pkg/zoning"
)

// Config holds process-wide settings. Zero values are replaced by defaults.
type Config struct {
	DataDir           string  // base directory for jurisdiction files
	Addr              string  // HTTP listen address
	JurisdictionsFile string  // optional registry override
	SnippetCache      string  // citation snippet cache file
	LogLevel          string  // debug, info, warn, error
	LogFormat         string  // text or json
	RateLimit         float64 // requests per second; 0 disables
	RateBurst         int
	MaxCacheMemory    int64 // snapshot cache limit in bytes; 0 is unlimited
	Offline           bool
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DataDir:      ".",
		Addr:         ":8000",
		SnippetCache: ".cache/snippets.json",
		LogLevel:     "info",
		LogFormat:    "text",
		RateLimit:    20,
		RateBurst:    40,
	}
}

// Environment variables read by Load.
const (
	EnvDataDir        = "ZONING_DATA_DIR"
	EnvAddr           = "ZONING_ADDR"
	EnvJurisdictions  = "ZONING_JURISDICTIONS"
	EnvSnippetCache   = "ZONING_SNIPPET_CACHE"
	EnvRateLimit      = "ZONING_RATE_LIMIT"
	EnvRateBurst      = "ZONING_RATE_BURST"
	EnvMaxCacheMemory = "ZONING_MAX_CACHE_MEMORY"
	EnvOffline        = "ZONING_OFFLINE"
	EnvLogLevel       = "LOG_LEVEL"
	EnvLogFormat      = "LOG_FORMAT"
)

// Load returns the defaults overridden by a .env file in the working
// directory, if any, and then by the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv applies overrides read through getenv to the defaults.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()

	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str(EnvDataDir, &cfg.DataDir)
	str(EnvAddr, &cfg.Addr)
	str(EnvJurisdictions, &cfg.JurisdictionsFile)
	str(EnvSnippetCache, &cfg.SnippetCache)
	str(EnvLogLevel, &cfg.LogLevel)
	str(EnvLogFormat, &cfg.LogFormat)

	if v := getenv(EnvRateLimit); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return cfg, errdefs.Configf("%s=%q: want a non-negative number", EnvRateLimit, v)
		}
		cfg.RateLimit = f
	}
	if v := getenv(EnvRateBurst); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return cfg, errdefs.Configf("%s=%q: want a positive integer", EnvRateBurst, v)
		}
		cfg.RateBurst = n
	}
	if v := getenv(EnvMaxCacheMemory); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return cfg, errdefs.Configf("%s=%q: want a byte count", EnvMaxCacheMemory, v)
		}
		cfg.MaxCacheMemory = n
	}
	if v := getenv(EnvOffline); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, errdefs.Configf("%s=%q: want a boolean", EnvOffline, v)
		}
		cfg.Offline = b
	}
	return cfg, nil
}

// jurisdictionsFile is the on-disk registry layout:
//
//	jurisdictions:
//	  austin:
//	    parcel_layer: data/austin/parcels.geojson
//	    ...
type jurisdictionsFile struct {
	Jurisdictions map[string]zoning.Jurisdiction `yaml:"jurisdictions" validate:"required,dive"`
}

var validate = validator.New()

// LoadJurisdictions reads a registry file and merges it over the built-in
// jurisdictions. An empty path returns the built-ins.
func LoadJurisdictions(path string) (zoning.Registry, error) {
	if path == "" {
		return zoning.DefaultRegistry(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &errdefs.FileError{Path: path, Kind: errdefs.ErrNotFound, Err: err}
		}
		return nil, &errdefs.FileError{Path: path, Kind: errdefs.ErrConfig, Err: err}
	}
	return ParseJurisdictions(data)
}

// ParseJurisdictions parses registry YAML. See LoadJurisdictions.
func ParseJurisdictions(data []byte) (zoning.Registry, error) {
	var f jurisdictionsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: jurisdictions: %v", errdefs.ErrFormat, err)
	}
	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("%w: jurisdictions: %v", errdefs.ErrConfig, err)
	}

	out := make(zoning.Registry, len(f.Jurisdictions))
	for name, j := range f.Jurisdictions {
		out[strings.ToLower(name)] = j
	}
	return zoning.DefaultRegistry().Merge(out), nil
}
