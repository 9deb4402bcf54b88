package rules

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/beetlebugorg/zoning/internal/errdefs"
)

var validate = validator.New()

// requiredKeys must be present at the top level of every rule document.
var requiredKeys = []string{"version", "jurisdiction", "zones"}

// Load reads and validates a rule document.
//
// A missing file wraps errdefs.ErrNotFound, invalid YAML wraps
// errdefs.ErrFormat and a document missing required keys or carrying
// out-of-range values wraps errdefs.ErrConfig.
func Load(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &errdefs.FileError{Path: path, Kind: errdefs.ErrNotFound, Err: err}
		}
		return nil, &errdefs.FileError{Path: path, Kind: errdefs.ErrFormat, Err: err}
	}

	rs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("rules %s: %w", path, err)
	}
	return rs, nil
}

// Parse decodes and validates a rule document. See Load.
func Parse(data []byte) (*RuleSet, error) {
	var top map[string]any
	if err := yaml.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", errdefs.ErrFormat, err)
	}
	if top == nil {
		return nil, errdefs.Configf("empty rules document")
	}
	for _, key := range requiredKeys {
		if _, ok := top[key]; !ok {
			return nil, errdefs.Configf("rules file missing '%s' field", key)
		}
	}

	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("%w: %v", errdefs.ErrFormat, err)
	}
	if rs.Zones == nil {
		rs.Zones = map[string]ZoneRule{}
	}
	if rs.Overlays == nil {
		rs.Overlays = map[string]OverlayRule{}
	}

	if err := validate.Struct(&rs); err != nil {
		return nil, errdefs.Configf("%s", describeValidation(err))
	}
	return &rs, nil
}

// describeValidation flattens validator errors into one readable line.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "RuleSet.")
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be >= %s", field, fe.Param()))
		case "lte":
			msgs = append(msgs, fmt.Sprintf("%s must be <= %s", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
