package zoning

import (
	"path/filepath"
	"sort"

	"github.com/beetlebugorg/zoning/internal/errdefs"
)

// Jurisdiction lists the data files of one jurisdiction. Paths are relative
// to the engine's data directory unless absolute.
type Jurisdiction struct {
	ParcelLayer   string         `yaml:"parcel_layer" validate:"required"`
	ZoningLayer   string         `yaml:"zoning_layer" validate:"required"`
	OverlayLayers []OverlayLayer `yaml:"overlay_layers" validate:"dive"`
	StreetLayer   string         `yaml:"street_layer"`
	RulesFile     string         `yaml:"rules_file" validate:"required"`

	// CodeDocuments are searched for CodeSections when citing sources.
	CodeDocuments []string `yaml:"code_documents"`
	CodeSections  []string `yaml:"code_sections"`

	Fields FieldMapping `yaml:"fields"`

	// TieBreak picks between overlapping zoning districts.
	TieBreak TieBreak `yaml:"tie_break" validate:"omitempty,oneof=layer_order largest_overlap"`

	// StreetBuffer is the distance, in working CRS units, within which a
	// street centerline counts as a frontage.
	StreetBuffer float64 `yaml:"street_buffer" validate:"gte=0"`
}

// OverlayLayer is one named overlay file. Overlays are reported in the
// order they are listed.
type OverlayLayer struct {
	Name string `yaml:"name" validate:"required"`
	Path string `yaml:"path" validate:"required"`
}

// FieldMapping names the attributes that hold parcel identifiers, zone
// codes and street names, each as a priority list. Empty lists fall back
// to the defaults.
type FieldMapping struct {
	Identifier []string `yaml:"identifier"`
	ZoneCode   []string `yaml:"zone_code"`
	StreetName []string `yaml:"street_name"`
}

// Default attribute priority lists.
var (
	DefaultIdentifierFields = []string{"APN"}
	DefaultZoneCodeFields   = []string{"zone", "ZONE", "zoning", "ZONING", "zone_code", "ZONE_CODE"}
	DefaultStreetNameFields = []string{"name", "NAME", "street", "STREET", "FULL_NAME"}
)

// DefaultStreetBuffer matches a 10 ft frontage tolerance.
const DefaultStreetBuffer = 10.0

// withDefaults fills empty mappings.
func (m FieldMapping) withDefaults() FieldMapping {
	if len(m.Identifier) == 0 {
		m.Identifier = DefaultIdentifierFields
	}
	if len(m.ZoneCode) == 0 {
		m.ZoneCode = DefaultZoneCodeFields
	}
	if len(m.StreetName) == 0 {
		m.StreetName = DefaultStreetNameFields
	}
	return m
}

// resolve returns p joined to base unless p is absolute.
func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// Registry maps jurisdiction keys such as "austin" to their data files.
type Registry map[string]Jurisdiction

// DefaultRegistry returns the built-in jurisdictions.
func DefaultRegistry() Registry {
	return Registry{
		"austin": {
			ParcelLayer:  "data/austin/parcels.geojson",
			ZoningLayer:  "data/austin/zoning.geojson",
			RulesFile:    "rules/austin.yaml",
			CodeSections: []string{"§25-2-492"},
		},
	}
}

// Lookup returns the named jurisdiction.
func (r Registry) Lookup(name string) (Jurisdiction, error) {
	j, ok := r[name]
	if !ok {
		return Jurisdiction{}, errdefs.NotFoundf("unknown jurisdiction: %s", name)
	}
	return j, nil
}

// Names returns the registered keys, sorted.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for n := range r {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Merge returns a registry with other's entries replacing r's.
func (r Registry) Merge(other Registry) Registry {
	out := make(Registry, len(r)+len(other))
	for k, v := range r {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}
