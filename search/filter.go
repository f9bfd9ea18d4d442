package search

import (
	"slices"

	"github.com/poiesic/umbratrace/core"
)

// Filter applies caller constraints to a merged result set.
//
// A nil state keeps everything. A non-empty Types list keeps only records of
// those types. A Confidence threshold keeps records whose tier score
// (high=100, medium=60, low=30) is at least the threshold. Both constraints
// must hold. Malformed input fails with core.ErrInvalidFilter.
func Filter(records []core.MergedRecord, state *core.FilterState) ([]core.MergedRecord, error) {
	if err := core.ValidateFilter(state); err != nil {
		return nil, err
	}

	filtered := make([]core.MergedRecord, 0, len(records))
	for _, record := range records {
		if admits(state, record.Record) {
			filtered = append(filtered, record)
		}
	}
	return filtered, nil
}

func admits(state *core.FilterState, record core.Record) bool {
	if state == nil {
		return true
	}
	if len(state.Types) > 0 && !slices.Contains(state.Types, record.Type) {
		return false
	}
	if state.Confidence != nil && float64(record.Confidence.Score()) < *state.Confidence {
		return false
	}
	return true
}
