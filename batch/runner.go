package batch

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/umbratrace/core"
)

// Searcher runs one query. *search.Searcher satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, state *core.FilterState) (*core.Response, error)
}

// Result is the outcome of one query in a batch.
type Result struct {
	Query    string
	Response *core.Response
	Err      error
}

// Runner executes batches of queries on a shared worker pool.
type Runner struct {
	searcher         Searcher
	pool             *ants.Pool
	progress         io.Writer
	progressInterval int
	logger           *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner) error

// WithPoolSize sets the worker pool size.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(r *Runner) error {
		if size < 1 {
			size = 1
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if r.pool != nil {
			r.pool.Release()
		}
		r.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithProgress reports batch progress to w every interval queries.
func WithProgress(w io.Writer, interval int) Option {
	return func(r *Runner) error {
		r.progress = w
		r.progressInterval = interval
		return nil
	}
}

// NewRunner creates a Runner around searcher.
func NewRunner(searcher Searcher, opts ...Option) (*Runner, error) {
	if searcher == nil {
		return nil, ErrSearcherRequired
	}

	poolSize := max(1, runtime.NumCPU()/2)
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		searcher: searcher,
		pool:     pool,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(r); optErr != nil {
			r.Release()
			return nil, optErr
		}
	}

	return r, nil
}

// Run searches every query with the same filter and returns one Result
// per query, in query order. The filter is validated once up front; an
// invalid filter fails the whole batch. Failures of individual queries
// are reported in their Result. If ctx is cancelled the batch stops
// submitting work and Run returns ctx.Err() along with whatever finished.
func (r *Runner) Run(ctx context.Context, queries []string, state *core.FilterState) ([]Result, error) {
	if err := core.ValidateFilter(state); err != nil {
		return nil, err
	}
	if r.pool.IsClosed() {
		return nil, ErrRunnerReleased
	}

	results := make([]Result, len(queries))
	for i, q := range queries {
		results[i].Query = q
	}

	var tracker *ProgressTracker
	if r.progress != nil {
		tracker = NewProgressTracker(r.progress, len(queries), r.progressInterval)
		tracker.Start()
		defer tracker.Finish()
	}

	var wg sync.WaitGroup
	for i, q := range queries {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		err := r.pool.Submit(func() {
			defer wg.Done()
			results[i].Response, results[i].Err = r.searcher.Search(ctx, q, state)
			if tracker != nil {
				tracker.Increment(1)
			}
		})
		if err != nil {
			wg.Done()
			results[i].Err = err
			r.logger.Error("error submitting query", "query", q, "err", err)
		}
	}
	wg.Wait()

	// Queries never submitted carry the cancellation
	if err := ctx.Err(); err != nil {
		for i := range results {
			if results[i].Response == nil && results[i].Err == nil {
				results[i].Err = err
			}
		}
		return results, err
	}

	r.logger.Debug("batch complete", "queries", len(queries))
	return results, nil
}

// Release releases the worker pool.
// The runner should not be used after calling Release.
func (r *Runner) Release() {
	if r.pool != nil {
		r.pool.Release()
	}
}
