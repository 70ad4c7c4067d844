package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound - the UUID or path is not present in any manifest, or the
	// path has no side-car on disk.
	ErrNotFound = errors.New("resource not found")
	// ErrUnsupported - no importer recognizes the extension, or the importer
	// cannot produce the requested resource type.
	ErrUnsupported = errors.New("unsupported resource")
	// ErrInvalid - malformed side-car, settings hash mismatch or broken UUID.
	// Recoverable by reimporting.
	ErrInvalid = errors.New("invalid import data")
	// ErrMissingDependencies - the importer ran but requires assets that are
	// not present yet. Retryable once the dependencies exist.
	ErrMissingDependencies = errors.New("missing dependencies")
	// ErrIO - underlying filesystem failure. Retryable at the caller's
	// discretion.
	ErrIO = errors.New("i/o failure")
	// ErrFatal - the importer failed hard; the resource is marked broken.
	ErrFatal = errors.New("importer failure")
	// ErrUnavailable - the operation is not implemented by this importer
	// (e.g. group-file import).
	ErrUnavailable = errors.New("operation unavailable")
)

// ResourceError wraps a failure with the path it originated from so the
// editor can point at the offending asset.
type ResourceError struct {
	Path string
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

func NewResourceError(path string, err error) *ResourceError {
	return &ResourceError{Path: path, Err: err}
}
