package layer

import (
	"fmt"

	"github.com/beetlebugorg/zoning/internal/errdefs"
)

// ErrInvalidCoordinate indicates a geographic coordinate outside ±90/±180.
type ErrInvalidCoordinate struct {
	Feature  int
	Lon, Lat float64
}

func (e *ErrInvalidCoordinate) Error() string {
	return fmt.Sprintf("feature %d: invalid coordinate: lon=%f lat=%f (lat must be ±90, lon must be ±180)",
		e.Feature, e.Lon, e.Lat)
}

// Unwrap classifies the error as a format error.
func (e *ErrInvalidCoordinate) Unwrap() error { return errdefs.ErrFormat }

// ErrInvalidGeometry indicates a feature geometry that cannot be indexed.
type ErrInvalidGeometry struct {
	Feature int
	Type    string
	Reason  string
}

func (e *ErrInvalidGeometry) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("feature %d: invalid geometry (%s): %s", e.Feature, e.Type, e.Reason)
	}
	return fmt.Sprintf("feature %d: invalid geometry: %s", e.Feature, e.Reason)
}

// Unwrap classifies the error as a format error.
func (e *ErrInvalidGeometry) Unwrap() error { return errdefs.ErrFormat }
