package batch

import "errors"

var (
	// ErrSearcherRequired is returned when a searcher is not provided.
	ErrSearcherRequired = errors.New("searcher required")

	// ErrRunnerReleased is returned when Run is called after Release.
	ErrRunnerReleased = errors.New("runner released")
)
