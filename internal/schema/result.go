// Package schema defines the frozen ConstraintResult output record and its
// validator.
package schema

// ConstraintResult is the single externally visible output of a
// resolution. Its JSON field set is frozen.
type ConstraintResult struct {
	APN            string   `json:"apn"`
	Jurisdiction   string   `json:"jurisdiction"`
	Zone           string   `json:"zone"`
	SetbacksFt     Setbacks `json:"setbacks_ft"`
	HeightFt       float64  `json:"height_ft"`
	FAR            float64  `json:"far"`
	LotCoveragePct float64  `json:"lot_coverage_pct"`
	Overlays       []string `json:"overlays"`
	Sources        []Source `json:"sources"`
	Notes          string   `json:"notes"`
	RunMs          float64  `json:"run_ms"`
}

// Setbacks in feet.
type Setbacks struct {
	Front      float64 `json:"front"`
	Side       float64 `json:"side"`
	Rear       float64 `json:"rear"`
	StreetSide float64 `json:"street_side"`
}

// Source cites where a value came from.
type Source struct {
	Type string `json:"type"`
	Cite string `json:"cite"`
}
