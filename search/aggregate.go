package search

import (
	"math"
	"slices"

	"github.com/poiesic/umbratrace/core"
)

const (
	// DefaultLocationLimit is the number of top locations reported by default.
	DefaultLocationLimit = 3

	confidencePoints  = 20
	metadataKeyPoints = 2
	maxMetadataPoints = 15
)

// Summarize computes the summary of a filtered result set.
// A limit below 1 falls back to DefaultLocationLimit.
func Summarize(records []core.MergedRecord, limit int) core.Summary {
	return core.Summary{
		FootprintScore: FootprintScore(records),
		MatchCount:     len(records),
		TopLocations:   TopLocations(records, limit),
	}
}

// FootprintScore averages a per-record score of confidence weight times 20
// plus two points per metadata key, capped at 15. The mean is rounded half
// up and clamped to [0, 100]. An empty set scores 0.
func FootprintScore(records []core.MergedRecord) int {
	if len(records) == 0 {
		return 0
	}

	var total float64
	for _, record := range records {
		meta := min(maxMetadataPoints, metadataKeyPoints*len(record.Metadata))
		total += record.Confidence.Weight()*confidencePoints + float64(meta)
	}

	score := int(math.Floor(total/float64(len(records)) + 0.5))
	return max(0, min(100, score))
}

// TopLocations returns up to limit distinct location hints ordered by
// frequency. Equal counts keep first-seen order. Records without a hint
// contribute nothing.
func TopLocations(records []core.MergedRecord, limit int) []string {
	if limit < 1 {
		limit = DefaultLocationLimit
	}

	counts := make(map[string]int)
	order := []string{}
	for _, record := range records {
		hint := record.LocationHint
		if hint == "" {
			continue
		}
		if _, seen := counts[hint]; !seen {
			order = append(order, hint)
		}
		counts[hint]++
	}

	slices.SortStableFunc(order, func(a, b string) int {
		return counts[b] - counts[a]
	})

	if len(order) > limit {
		order = order[:limit]
	}
	return order
}
