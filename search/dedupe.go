package search

import (
	"maps"
	"slices"

	"github.com/poiesic/umbratrace/core"
)

// IdentityKeyFunc derives the key that decides which records describe the
// same subject. Records with equal keys are merged.
type IdentityKeyFunc func(core.Record) string

// HandleOrID is the default identity key: the handle when present, else the ID.
func HandleOrID(record core.Record) string {
	if record.Handle != "" {
		return record.Handle
	}
	return record.ID
}

// Merge groups records by identity key and folds each group into one
// MergedRecord. Output order follows the first occurrence of each key.
// A nil key function means HandleOrID. The input records are not modified
// and share no state with the result.
//
// Within a group, records are folded in input order onto a copy of the first:
//   - Confidence is raised only to a strictly higher tier
//   - Metadata is shallow-merged, later keys overwrite earlier ones
//   - Aliases, Emails and Phones become ordered exact-string unions
//   - Every other field keeps the first record's value
func Merge(records []core.Record, key IdentityKeyFunc) []core.MergedRecord {
	if key == nil {
		key = HandleOrID
	}

	merged := make([]core.MergedRecord, 0, len(records))
	index := make(map[string]int, len(records))

	for _, record := range records {
		k := key(record)
		i, seen := index[k]
		if !seen {
			index[k] = len(merged)
			merged = append(merged, core.MergedRecord{
				Record:     record.Clone(),
				MergedFrom: []string{record.ID},
			})
			continue
		}
		fold(&merged[i], record)
	}

	return merged
}

// fold merges record into acc.
func fold(acc *core.MergedRecord, record core.Record) {
	if record.Confidence.Rank() > acc.Confidence.Rank() {
		acc.Confidence = record.Confidence
	}

	if acc.Metadata != nil || record.Metadata != nil {
		combined := make(core.Metadata, len(acc.Metadata)+len(record.Metadata))
		maps.Copy(combined, acc.Metadata)
		maps.Copy(combined, record.Metadata.Clone())
		acc.Metadata = combined
	}

	acc.Aliases = union(acc.Aliases, record.Aliases)
	acc.Emails = union(acc.Emails, record.Emails)
	acc.Phones = union(acc.Phones, record.Phones)
	acc.MergedFrom = append(acc.MergedFrom, record.ID)
}

// union returns the distinct strings of a followed by b in first-seen order.
func union(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, v := range slices.Concat(a, b) {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
