package zoning

import (
	"math"
	"strconv"
	"strings"

	"github.com/beetlebugorg/zoning/internal/errdefs"
)

// LatLng is a geographic coordinate in the jurisdiction's input CRS.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Query asks for the constraints of one parcel. Exactly one of APN and
// Coordinate must be set.
type Query struct {
	APN          string
	Coordinate   *LatLng
	Jurisdiction string
}

// Validate checks the query's shape without touching any data.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Jurisdiction) == "" {
		return &errdefs.QueryError{Field: "jurisdiction", Reason: "required"}
	}
	hasAPN := strings.TrimSpace(q.APN) != ""
	switch {
	case hasAPN && q.Coordinate != nil:
		return &errdefs.QueryError{Field: "apn", Value: q.APN, Reason: "provide either an APN or a coordinate, not both"}
	case !hasAPN && q.Coordinate == nil:
		return &errdefs.QueryError{Field: "apn", Reason: "provide either an APN or a coordinate"}
	case q.Coordinate != nil:
		return q.Coordinate.Validate()
	}
	return nil
}

// Validate checks that both values are finite and within geographic bounds.
func (c LatLng) Validate() error {
	if !finite(c.Lat) {
		return &errdefs.QueryError{Field: "lat", Value: strconv.FormatFloat(c.Lat, 'f', -1, 64), Reason: "must be a finite number"}
	}
	if !finite(c.Lng) {
		return &errdefs.QueryError{Field: "lng", Value: strconv.FormatFloat(c.Lng, 'f', -1, 64), Reason: "must be a finite number"}
	}
	if c.Lat < -90 || c.Lat > 90 {
		return &errdefs.QueryError{Field: "lat", Value: strconv.FormatFloat(c.Lat, 'f', -1, 64), Reason: "must be within ±90"}
	}
	if c.Lng < -180 || c.Lng > 180 {
		return &errdefs.QueryError{Field: "lng", Value: strconv.FormatFloat(c.Lng, 'f', -1, 64), Reason: "must be within ±180"}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// String formats the coordinate as "lat,lng".
func (c LatLng) String() string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lng, 'f', -1, 64)
}

// ParseLatLng parses "lat,lng", e.g. "30.2672,-97.7431".
func ParseLatLng(s string) (LatLng, error) {
	latStr, lngStr, ok := strings.Cut(s, ",")
	if !ok {
		return LatLng{}, &errdefs.QueryError{Field: "lat_lng", Value: s, Reason: `expected "lat,lng"`}
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return LatLng{}, &errdefs.QueryError{Field: "lat", Value: latStr, Reason: "not a number"}
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return LatLng{}, &errdefs.QueryError{Field: "lng", Value: lngStr, Reason: "not a number"}
	}
	c := LatLng{Lat: lat, Lng: lng}
	return c, c.Validate()
}
