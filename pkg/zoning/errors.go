package zoning

import (
	"github.com/beetlebugorg/zoning/internal/errdefs"
)

// Errors returned by the engine. Every failure wraps exactly one of these,
// so callers can branch with errors.Is.
var (
	ErrNotFound     = errdefs.ErrNotFound
	ErrConfig       = errdefs.ErrConfig
	ErrFormat       = errdefs.ErrFormat
	ErrSchema       = errdefs.ErrSchema
	ErrInvalidQuery = errdefs.ErrInvalidQuery
)

// QueryError names the query field that was rejected.
type QueryError = errdefs.QueryError
