package httpapi

import "errors"

var (
	// ErrEngineRequired is returned by NewServer without an engine.
	ErrEngineRequired = errors.New("engine is required")

	// ErrMalformedRequest is returned for request bodies or parameters that cannot be decoded.
	ErrMalformedRequest = errors.New("malformed request")

	// ErrEmptyBatch is returned for a batch request without queries.
	ErrEmptyBatch = errors.New("batch contains no queries")

	// ErrBatchTooLarge is returned for a batch request above the configured size.
	ErrBatchTooLarge = errors.New("batch too large")
)
