// Package api serves parcel resolutions over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/beetlebugorg/zoning/internal/errdefs"
	"github.com/beetlebugorg/zoning/internal/schema"
	"github.com/beetlebugorg/zoning/internal/telemetry"
	"github.com/beetlebugorg/zoning/pkg/zoning"
)

// ServiceVersion is reported by the health endpoint.
const ServiceVersion = "1.0.0"

// DefaultCity is used when a request names no jurisdiction.
const DefaultCity = "austin"

// Resolver is the part of zoning.Engine the handlers use.
type Resolver interface {
	Resolve(ctx context.Context, q zoning.Query, sink telemetry.Sink) (*schema.ConstraintResult, error)
	Jurisdictions() []string
	CacheStats() zoning.CacheStats
}

// Handlers contains the HTTP handlers.
type Handlers struct {
	resolver Resolver
	sink     telemetry.Sink
	logger   *slog.Logger
}

// NewHandlers creates handlers resolving through r. Metrics go to sink,
// which may be nil.
func NewHandlers(r Resolver, sink telemetry.Sink, logger *slog.Logger) *Handlers {
	if sink == nil {
		sink = telemetry.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{resolver: r, sink: sink, logger: logger}
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code classifies the failure: invalid_query, not_found, config or internal.
	Code string `json:"code,omitempty"`

	// RequestID echoes the X-Request-ID of the request.
	RequestID string `json:"request_id,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	Jurisdictions []string          `json:"jurisdictions"`
	Cache         zoning.CacheStats `json:"cache"`
}

// ZoningRequest holds the query parameters of GET /zoning.
type ZoningRequest struct {
	APN       string   `form:"apn"`
	Latitude  *float64 `form:"latitude"`
	Longitude *float64 `form:"longitude"`
	City      string   `form:"city"`
}

// query converts the request to an engine query. Exactly one of an APN or
// a full latitude/longitude pair is accepted.
func (r ZoningRequest) query() (zoning.Query, error) {
	city := strings.ToLower(strings.TrimSpace(r.City))
	if city == "" {
		city = DefaultCity
	}
	q := zoning.Query{APN: strings.TrimSpace(r.APN), Jurisdiction: city}

	hasPoint := r.Latitude != nil || r.Longitude != nil
	switch {
	case q.APN != "" && hasPoint:
		return q, &errdefs.QueryError{Field: "apn", Reason: "cannot specify both 'apn' and 'latitude'/'longitude'"}
	case q.APN == "" && (r.Latitude == nil || r.Longitude == nil):
		return q, &errdefs.QueryError{Field: "apn", Reason: "either 'apn' or both 'latitude' and 'longitude' must be provided"}
	case hasPoint:
		q.Coordinate = &zoning.LatLng{Lat: *r.Latitude, Lng: *r.Longitude}
	}
	return q, q.Validate()
}

// HandleHealth reports liveness and the loaded jurisdictions.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:        "healthy",
		Version:       ServiceVersion,
		Jurisdictions: h.resolver.Jurisdictions(),
		Cache:         h.resolver.CacheStats(),
	})
}

// HandleZoning resolves one parcel.
//
// GET /zoning?apn=0101010101&city=austin
// GET /zoning?latitude=30.2672&longitude=-97.7431&city=austin
func (h *Handlers) HandleZoning(c *gin.Context) {
	var req ZoningRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.fail(c, &errdefs.QueryError{Field: "query", Reason: err.Error()})
		return
	}
	q, err := req.query()
	if err != nil {
		h.fail(c, err)
		return
	}

	result, err := h.resolver.Resolve(c.Request.Context(), q, h.sink)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handlers) fail(c *gin.Context, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", c.FullPath(), "request_id", RequestID(c), "error", err)
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code, RequestID: RequestID(c)})
}

// classify maps an engine error to an HTTP status and error code. A file
// that cannot be read is a server configuration problem even when the
// file is missing.
func classify(err error) (int, string) {
	var fe *errdefs.FileError
	switch {
	case errors.Is(err, errdefs.ErrInvalidQuery):
		return http.StatusBadRequest, "invalid_query"
	case errors.As(err, &fe):
		return http.StatusInternalServerError, "config"
	case errors.Is(err, errdefs.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, errdefs.ErrConfig), errors.Is(err, errdefs.ErrFormat), errors.Is(err, errdefs.ErrSchema):
		return http.StatusInternalServerError, "config"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
