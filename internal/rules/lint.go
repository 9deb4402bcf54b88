package rules

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Lint checks a rule document more strictly than Parse: every zone must
// carry all dimensional fields, not just well-formed ones. It returns one
// message per problem, or nil for a clean document.
func Lint(data []byte) []string {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return []string{fmt.Sprintf("YAML parse error: %v", err)}
	}
	if doc == nil {
		return []string{"empty rules document"}
	}

	var problems []string
	for _, key := range requiredKeys {
		if _, ok := doc[key]; !ok {
			problems = append(problems, fmt.Sprintf("missing required field: %s", key))
		}
	}

	if raw, ok := doc["crs"]; ok {
		crs, isMap := raw.(map[string]any)
		_, hasInput := crs["input"]
		_, hasInternal := crs["internal"]
		if !isMap || !hasInput || !hasInternal {
			problems = append(problems, "CRS config missing 'input' or 'internal'")
		}
	}

	if raw, ok := doc["zones"]; ok {
		zones, isMap := raw.(map[string]any)
		if !isMap {
			problems = append(problems, "'zones' must be a mapping")
		} else {
			names := make([]string, 0, len(zones))
			for name := range zones {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				problems = append(problems, lintZone(name, zones[name])...)
			}
		}
	}
	return problems
}

func lintZone(name string, raw any) []string {
	zone, ok := raw.(map[string]any)
	if !ok {
		return []string{fmt.Sprintf("zone %s: must be a mapping", name)}
	}

	var problems []string
	for _, field := range []string{"height_ft", "far", "lot_coverage_pct", "setbacks_ft"} {
		if _, ok := zone[field]; !ok {
			problems = append(problems, fmt.Sprintf("zone %s: missing required field '%s'", name, field))
		}
	}

	if raw, ok := zone["setbacks_ft"]; ok {
		setbacks, isMap := raw.(map[string]any)
		if !isMap {
			problems = append(problems, fmt.Sprintf("zone %s: 'setbacks_ft' must be a mapping", name))
		} else {
			for _, side := range []string{"front", "side", "rear"} {
				v, ok := setbacks[side]
				if !ok {
					problems = append(problems, fmt.Sprintf("zone %s: missing setback '%s'", name, side))
				} else if !nonNegative(v) {
					problems = append(problems, fmt.Sprintf("zone %s: setback '%s' must be a non-negative number", name, side))
				}
			}
		}
	}

	for _, field := range []string{"height_ft", "far", "lot_coverage_pct"} {
		if v, ok := zone[field]; ok && !nonNegative(v) {
			problems = append(problems, fmt.Sprintf("zone %s: '%s' must be a non-negative number", name, field))
		}
	}
	return problems
}

func nonNegative(v any) bool {
	switch n := v.(type) {
	case int:
		return n >= 0
	case int64:
		return n >= 0
	case uint64:
		return true
	case float64:
		return n >= 0
	}
	return false
}
