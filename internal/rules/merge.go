package rules

import (
	"math"
	"strings"

	"github.com/beetlebugorg/zoning/internal/errdefs"
)

// CornerLotNote is prepended to the notes of every corner lot.
const CornerLotNote = "Corner lot; street-side setback applied"

// noteSeparator joins the individual notes of a result.
const noteSeparator = "; "

// Constraints are the dimensional limits produced for one parcel.
type Constraints struct {
	HeightFt       float64
	FAR            float64
	LotCoveragePct float64
	Front          float64
	Side           float64
	Rear           float64
	StreetSide     float64
}

// ApplyZoneRules turns a zone rule into constraints. Front, side and rear
// setbacks are copied from the rule. The street-side setback is zero
// unless the lot is a corner lot, in which case it comes from the rule's
// corner-lot override (zero when the rule has none).
func ApplyZoneRules(rule ZoneRule, cornerLot bool) Constraints {
	c := Constraints{
		HeightFt:       rule.HeightFt,
		FAR:            rule.FAR,
		LotCoveragePct: rule.LotCoveragePct,
		Front:          rule.Setbacks.Front,
		Side:           rule.Setbacks.Side,
		Rear:           rule.Setbacks.Rear,
	}
	if cornerLot && rule.CornerLot != nil {
		c.StreetSide = rule.CornerLot.StreetSideSetbackFt
	}
	return c
}

// ZoneConstraints looks up a zone and applies its rules.
func (rs *RuleSet) ZoneConstraints(zone string, cornerLot bool) (Constraints, error) {
	rule, ok := rs.Zone(zone)
	if !ok {
		return Constraints{}, errdefs.NotFoundf("no rules found for zone: %s", zone)
	}
	return ApplyZoneRules(rule, cornerLot), nil
}

// NormalizeOverlayName converts a display name to its rule key:
// lower-case with spaces replaced by underscores.
func NormalizeOverlayName(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "_")
}

// overlayRules returns the matching rules for names in input order.
// Unknown overlays are skipped.
func (rs *RuleSet) overlayRules(names []string) []OverlayRuleBody {
	out := make([]OverlayRuleBody, 0, len(names))
	for _, name := range names {
		if o, ok := rs.Overlays[NormalizeOverlayName(name)]; ok {
			out = append(out, o.Rules)
		}
	}
	return out
}

// OverlayNotes collects the notes of every matching overlay rule,
// preserving the order of names.
func (rs *RuleSet) OverlayNotes(names []string) []string {
	notes := make([]string, 0, len(names))
	for _, r := range rs.overlayRules(names) {
		if r.Notes != "" {
			notes = append(notes, r.Notes)
		}
	}
	return notes
}

// ApplyOverlayCaps tightens c with any numeric caps carried by the matching
// overlays. The most restrictive value wins.
func (rs *RuleSet) ApplyOverlayCaps(c Constraints, names []string) Constraints {
	for _, r := range rs.overlayRules(names) {
		if r.HeightFt != nil {
			c.HeightFt = math.Min(c.HeightFt, *r.HeightFt)
		}
		if r.FAR != nil {
			c.FAR = math.Min(c.FAR, *r.FAR)
		}
		if r.LotCoveragePct != nil {
			c.LotCoveragePct = math.Min(c.LotCoveragePct, *r.LotCoveragePct)
		}
	}
	return c
}

// BuildNotes joins the corner-lot annotation (when applicable) and the
// overlay notes into a single string.
func BuildNotes(cornerLot bool, overlayNotes []string) string {
	parts := make([]string, 0, len(overlayNotes)+1)
	if cornerLot {
		parts = append(parts, CornerLotNote)
	}
	parts = append(parts, overlayNotes...)
	return strings.Join(parts, noteSeparator)
}
