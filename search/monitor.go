package search

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/poiesic/umbratrace/core"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate results of each stage.
// Hooks must not modify the records they receive.
type SearchMonitor interface {
	Start(query string)
	AfterMatch(records []core.Record)
	AfterMerge(records []core.MergedRecord)
	AfterFilter(records []core.MergedRecord)
	Finish(response *core.Response)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                    {}
func (n *noopMonitor) AfterMatch(_ []core.Record)        {}
func (n *noopMonitor) AfterMerge(_ []core.MergedRecord)  {}
func (n *noopMonitor) AfterFilter(_ []core.MergedRecord) {}
func (n *noopMonitor) Finish(_ *core.Response)           {}

// Monitors fans every hook out to each monitor in order.
type Monitors []SearchMonitor

var _ SearchMonitor = Monitors(nil)

func (ms Monitors) Start(query string) {
	for _, m := range ms {
		m.Start(query)
	}
}

func (ms Monitors) AfterMatch(records []core.Record) {
	for _, m := range ms {
		m.AfterMatch(records)
	}
}

func (ms Monitors) AfterMerge(records []core.MergedRecord) {
	for _, m := range ms {
		m.AfterMerge(records)
	}
}

func (ms Monitors) AfterFilter(records []core.MergedRecord) {
	for _, m := range ms {
		m.AfterFilter(records)
	}
}

func (ms Monitors) Finish(response *core.Response) {
	for _, m := range ms {
		m.Finish(response)
	}
}

// spanMonitor records each stage as an event on the search span.
type spanMonitor struct {
	span trace.Span
}

var _ SearchMonitor = (*spanMonitor)(nil)

func (m *spanMonitor) Start(_ string) {}

func (m *spanMonitor) AfterMatch(records []core.Record) {
	m.span.AddEvent("match", trace.WithAttributes(attribute.Int("records", len(records))))
}

func (m *spanMonitor) AfterMerge(records []core.MergedRecord) {
	m.span.AddEvent("merge", trace.WithAttributes(attribute.Int("records", len(records))))
}

func (m *spanMonitor) AfterFilter(records []core.MergedRecord) {
	m.span.AddEvent("filter", trace.WithAttributes(attribute.Int("records", len(records))))
}

func (m *spanMonitor) Finish(response *core.Response) {
	m.span.SetAttributes(
		attribute.Int("umbratrace.match_count", response.Summary.MatchCount),
		attribute.Int("umbratrace.footprint_score", response.Summary.FootprintScore),
	)
}
