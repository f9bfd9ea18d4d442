package search

import (
	"iter"
	"strings"

	"github.com/poiesic/umbratrace/core"
)

// Match returns copies of the records whose searchable fields contain query,
// compared case-insensitively. Output keeps the input order; it is a recall
// filter, not a ranking. An empty query matches nothing.
func Match(query string, records iter.Seq[core.Record]) []core.Record {
	matched := []core.Record{}
	if query == "" {
		return matched
	}

	q := strings.ToLower(query)
	for record := range records {
		if matches(q, record) {
			matched = append(matched, record.Clone())
		}
	}
	return matched
}

// matches reports whether any haystack entry of record contains the
// already-lowercased query.
func matches(q string, record core.Record) bool {
	for _, value := range haystack(record) {
		if strings.Contains(strings.ToLower(value), q) {
			return true
		}
	}
	return false
}

// haystack lists the searchable text of a record, skipping absent fields.
func haystack(record core.Record) []string {
	values := make([]string, 0, 4+len(record.Aliases)+len(record.Emails)+len(record.Phones))
	for _, v := range []string{record.Handle, record.Source, record.Platform} {
		if v != "" {
			values = append(values, v)
		}
	}
	for _, list := range [][]string{record.Aliases, record.Emails, record.Phones} {
		for _, v := range list {
			if v != "" {
				values = append(values, v)
			}
		}
	}
	if text := record.Metadata.Text(); text != "" {
		values = append(values, text)
	}
	return values
}
