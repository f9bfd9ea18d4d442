package catalog

import "errors"

var (
	// ErrDuplicateID is returned when two records share the same ID.
	ErrDuplicateID = errors.New("duplicate record id")

	// ErrInvalidCatalogFile is returned when a catalog file cannot be decoded.
	ErrInvalidCatalogFile = errors.New("invalid catalog file")
)
