// Package rules loads jurisdiction rule documents and merges zone,
// corner-lot and overlay rules into dimensional constraints.
package rules

import (
	"github.com/beetlebugorg/zoning/internal/geo"
)

// RuleSet is one jurisdiction's rule document. It is immutable after Load.
type RuleSet struct {
	Version      string                 `yaml:"version" validate:"required"`
	Jurisdiction string                 `yaml:"jurisdiction" validate:"required"`
	CRS          CRSConfig              `yaml:"crs"`
	Zones        map[string]ZoneRule    `yaml:"zones" validate:"dive"`
	Overlays     map[string]OverlayRule `yaml:"overlays" validate:"dive"`
}

// CRSConfig names the CRS of incoming coordinates and the projected CRS
// all geometry work happens in.
type CRSConfig struct {
	Input    string `yaml:"input"`
	Internal string `yaml:"internal"`
}

// ZoneRule holds the dimensional standards of one zoning district.
// Absent numeric fields are zero.
type ZoneRule struct {
	HeightFt       float64        `yaml:"height_ft" validate:"gte=0"`
	FAR            float64        `yaml:"far" validate:"gte=0"`
	LotCoveragePct float64        `yaml:"lot_coverage_pct" validate:"gte=0,lte=100"`
	Setbacks       Setbacks       `yaml:"setbacks_ft"`
	CornerLot      *CornerLotRule `yaml:"corner_lot"`
}

// Setbacks are minimum distances in feet from the respective lot lines.
type Setbacks struct {
	Front float64 `yaml:"front" validate:"gte=0"`
	Side  float64 `yaml:"side" validate:"gte=0"`
	Rear  float64 `yaml:"rear" validate:"gte=0"`
}

// CornerLotRule overrides the side setback along a second street frontage.
type CornerLotRule struct {
	StreetSideSetbackFt float64 `yaml:"street_side_setback_ft" validate:"gte=0"`
}

// OverlayRule is keyed in RuleSet.Overlays by normalised overlay name.
type OverlayRule struct {
	Name  string          `yaml:"name"`
	Rules OverlayRuleBody `yaml:"rules"`
}

// OverlayRuleBody carries an overlay's notes and optional numeric caps.
// A cap only ever tightens the zone value.
type OverlayRuleBody struct {
	Notes          string   `yaml:"notes"`
	HeightFt       *float64 `yaml:"height_ft" validate:"omitempty,gte=0"`
	FAR            *float64 `yaml:"far" validate:"omitempty,gte=0"`
	LotCoveragePct *float64 `yaml:"lot_coverage_pct" validate:"omitempty,gte=0,lte=100"`
}

// InputCRS returns the CRS of query coordinates, EPSG:4326 when unset.
func (rs *RuleSet) InputCRS() string {
	if rs.CRS.Input == "" {
		return geo.DefaultInput
	}
	return geo.NormalizeCRS(rs.CRS.Input)
}

// InternalCRS returns the working CRS, EPSG:2277 when unset.
func (rs *RuleSet) InternalCRS() string {
	if rs.CRS.Internal == "" {
		return geo.DefaultWorking
	}
	return geo.NormalizeCRS(rs.CRS.Internal)
}

// Zone returns the rule for a zone code.
func (rs *RuleSet) Zone(code string) (ZoneRule, bool) {
	z, ok := rs.Zones[code]
	return z, ok
}
