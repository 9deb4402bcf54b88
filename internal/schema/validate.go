package schema

import (
	"encoding/json"
	"fmt"

	"github.com/beetlebugorg/zoning/internal/errdefs"
)

// requiredFields maps each top-level key to its type check.
var requiredFields = []struct {
	key   string
	check func(any) bool
}{
	{"apn", isString},
	{"jurisdiction", isString},
	{"zone", isString},
	{"setbacks_ft", isObject},
	{"height_ft", isNumber},
	{"far", isNumber},
	{"lot_coverage_pct", isNumber},
	{"overlays", isStringList},
	{"sources", isList},
	{"notes", isString},
	{"run_ms", isNumber},
}

var setbackKeys = []string{"front", "side", "rear", "street_side"}

// Validate reports whether doc, a decoded JSON object, has every required
// field with the right type. It never repairs or coerces.
func Validate(doc map[string]any) bool {
	if doc == nil {
		return false
	}
	for _, f := range requiredFields {
		v, ok := doc[f.key]
		if !ok || !f.check(v) {
			return false
		}
	}

	setbacks := doc["setbacks_ft"].(map[string]any)
	for _, k := range setbackKeys {
		if v, ok := setbacks[k]; !ok || !isNumber(v) {
			return false
		}
	}

	for _, s := range doc["sources"].([]any) {
		src, ok := s.(map[string]any)
		if !ok {
			return false
		}
		if !isString(src["type"]) || !isString(src["cite"]) {
			return false
		}
	}
	return true
}

// ValidateJSON decodes data and validates it.
func ValidateJSON(data []byte) bool {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return false
	}
	return Validate(doc)
}

// ValidateResult checks a constructed result through its JSON form, the
// same form consumers see. A failure wraps errdefs.ErrSchema.
func ValidateResult(r *ConstraintResult) error {
	if r == nil {
		return fmt.Errorf("%w: nil result", errdefs.ErrSchema)
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("%w: %v", errdefs.ErrSchema, err)
	}
	if !ValidateJSON(data) {
		return fmt.Errorf("%w: result for %q failed output validation", errdefs.ErrSchema, r.APN)
	}
	return nil
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

func isObject(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

func isList(v any) bool {
	_, ok := v.([]any)
	return ok
}

func isStringList(v any) bool {
	list, ok := v.([]any)
	if !ok {
		return false
	}
	for _, item := range list {
		if !isString(item) {
			return false
		}
	}
	return true
}

func isNumber(v any) bool {
	switch v.(type) {
	case float64, float32, int, int64, json.Number:
		return true
	}
	return false
}
