// Package errdefs holds the error taxonomy shared by the loaders, the
// rule engine and the public resolution API.
//
// Every failure surfaced by the engine wraps exactly one of the sentinel
// errors below so callers can branch with errors.Is regardless of which
// layer produced it.
package errdefs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a missing file, APN, jurisdiction or zone rule.
	ErrNotFound = errors.New("not found")

	// ErrConfig indicates an unusable configuration: missing rule keys,
	// malformed jurisdiction entries or an unsupported CRS.
	ErrConfig = errors.New("configuration error")

	// ErrFormat indicates an unparseable input file.
	ErrFormat = errors.New("format error")

	// ErrSchema indicates a result that failed output schema validation.
	ErrSchema = errors.New("schema error")

	// ErrInvalidQuery indicates a malformed resolution query.
	ErrInvalidQuery = errors.New("invalid query")
)

// QueryError describes which part of a query was rejected.
type QueryError struct {
	Field  string
	Value  string
	Reason string
}

func (e *QueryError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("invalid query: %s=%q: %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid query: %s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidQuery.
func (e *QueryError) Unwrap() error { return ErrInvalidQuery }

// FileError reports a failure tied to a specific input file.
type FileError struct {
	Path string
	Kind error // one of the sentinels above
	Err  error
}

func (e *FileError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Path, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Path, e.Kind, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *FileError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NotFoundf returns an error wrapping ErrNotFound.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Configf returns an error wrapping ErrConfig.
func Configf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}
