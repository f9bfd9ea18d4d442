package search

import (
	"context"
	"iter"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/poiesic/umbratrace/core"
)

const tracerName = "github.com/poiesic/umbratrace/search"

// RecordSource is a read-only, ordered collection of records.
// *catalog.Catalog implements it.
type RecordSource interface {
	All() iter.Seq[core.Record]
}

// Searcher runs the match, merge, filter and summarize pipeline over a record source.
type Searcher struct {
	source        RecordSource
	identityKey   IdentityKeyFunc
	locationLimit int
	now           func() time.Time
	logger        *slog.Logger
	tracer        trace.Tracer
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithIdentityKey replaces the function used to group records for merging.
// Default is HandleOrID.
func WithIdentityKey(key IdentityKeyFunc) Option {
	return func(s *Searcher) error {
		if key == nil {
			key = HandleOrID
		}
		s.identityKey = key
		return nil
	}
}

// WithLocationLimit sets how many top locations a summary reports.
// Default is DefaultLocationLimit.
func WithLocationLimit(limit int) Option {
	return func(s *Searcher) error {
		if limit < 1 {
			return ErrInvalidLocationLimit
		}
		s.locationLimit = limit
		return nil
	}
}

// WithClock sets the time source used to stamp responses.
func WithClock(now func() time.Time) Option {
	return func(s *Searcher) error {
		if now == nil {
			now = time.Now
		}
		s.now = now
		return nil
	}
}

// WithTracerProvider sets the provider of the span recorded for each search.
// Default is the global provider from otel.GetTracerProvider().
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Searcher) error {
		if tp == nil {
			tp = otel.GetTracerProvider()
		}
		s.tracer = tp.Tracer(tracerName)
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(source RecordSource, opts ...Option) (*Searcher, error) {
	if source == nil {
		return nil, ErrRecordSourceRequired
	}

	s := &Searcher{
		source:        source,
		identityKey:   HandleOrID,
		locationLimit: DefaultLocationLimit,
		now:           time.Now,
		logger:        slog.Default(),
		tracer:        otel.Tracer(tracerName),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Search runs the pipeline for query and returns the filtered records and
// their summary. A nil state applies no filtering.
func (s *Searcher) Search(ctx context.Context, query string, state *core.FilterState) (*core.Response, error) {
	return s.SearchWithMonitor(ctx, query, state, nil)
}

// SearchWithMonitor runs the pipeline with monitoring.
// The monitor receives callbacks after each stage.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query string, state *core.FilterState, monitor SearchMonitor) (*core.Response, error) {
	ctx, span := s.tracer.Start(ctx, "search", trace.WithAttributes(
		attribute.String("umbratrace.query", query),
	))
	defer span.End()

	// Use noop monitor if none provided
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	response, err := s.run(ctx, query, state, Monitors{monitor, &spanMonitor{span: span}})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return response, nil
}

func (s *Searcher) run(ctx context.Context, query string, state *core.FilterState, monitor SearchMonitor) (*core.Response, error) {
	// Reject malformed filters before doing any work
	if err := core.ValidateFilter(state); err != nil {
		s.logger.Debug("rejecting filter", "query", query, "err", err)
		return nil, err
	}

	monitor.Start(query)

	// 1. Candidate matching
	matched := Match(query, s.source.All())
	monitor.AfterMatch(matched)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 2. Identity deduplication
	merged := Merge(matched, s.identityKey)
	monitor.AfterMerge(merged)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 3. Caller constraints
	filtered, err := Filter(merged, state)
	if err != nil {
		return nil, err
	}
	monitor.AfterFilter(filtered)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 4. Aggregation
	response := &core.Response{
		Query:     query,
		Timestamp: s.now().UTC(),
		Summary:   Summarize(filtered, s.locationLimit),
		Results:   filtered,
	}
	monitor.Finish(response)

	s.logger.Debug("search complete",
		"query", query,
		"matched", len(matched),
		"merged", len(merged),
		"results", len(filtered),
		"footprintScore", response.Summary.FootprintScore,
	)

	return response, nil
}
