// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package umbratrace correlates records about one subject across sources,
// merges those describing the same identity and scores the result.
//
// An Engine owns the read-only record catalog, the search pipeline, the
// recent search history and the batch runner:
//
//	engine, err := umbratrace.NewEngine(config.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer engine.Close()
//
//	resp, err := engine.Search(ctx, "hydra", nil)
package umbratrace

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/poiesic/umbratrace/batch"
	"github.com/poiesic/umbratrace/catalog"
	"github.com/poiesic/umbratrace/config"
	"github.com/poiesic/umbratrace/core"
	"github.com/poiesic/umbratrace/metrics"
	"github.com/poiesic/umbratrace/search"
	"github.com/poiesic/umbratrace/storage"
	"github.com/poiesic/umbratrace/storage/badger"
)

type Engine struct {
	config   *config.Config
	catalog  *catalog.Catalog
	searcher *search.Searcher
	backend  *badger.Backend
	history  storage.HistoryRepository
	runner   *batch.Runner
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	catalog  *catalog.Catalog
	progress io.Writer
	tracer   trace.TracerProvider
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics feeds search metrics into m.
func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(o *engineOptions) {
		o.metrics = m
	}
}

// WithClock replaces the time source used for response timestamps,
// history entries and fixture ages.
func WithClock(now func() time.Time) EngineOption {
	return func(o *engineOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithCatalog serves c instead of the configured catalog.
func WithCatalog(c *catalog.Catalog) EngineOption {
	return func(o *engineOptions) {
		o.catalog = c
	}
}

// WithBatchProgress reports batch progress to w.
func WithBatchProgress(w io.Writer) EngineOption {
	return func(o *engineOptions) {
		o.progress = w
	}
}

// WithTracerProvider records a span per search with tp instead of the
// global provider.
func WithTracerProvider(tp trace.TracerProvider) EngineOption {
	return func(o *engineOptions) {
		o.tracer = tp
	}
}

// NewEngine builds an Engine from cfg. A nil cfg means config.DefaultConfig().
// The catalog is read once here and never changes afterwards.
func NewEngine(cfg *config.Config, opts ...EngineOption) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Apply options
	options := &engineOptions{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(options)
	}
	logger := options.logger

	// Load catalog
	cat := options.catalog
	if cat == nil {
		var err error
		cat, err = loadCatalog(cfg, options.now)
		if err != nil {
			return nil, err
		}
	}
	logger.Info("catalog loaded", "records", cat.Len(), "path", cfg.CatalogPath)

	// Open history backend
	backend, err := badger.OpenBackend(cfg.HistoryPath, cfg.HistoryPath == "", badger.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	history, err := badger.NewHistoryRepository(backend, cfg.HistoryCapacity)
	if err != nil {
		backend.Close()
		return nil, err
	}

	searcher, err := search.NewSearcher(cat,
		search.WithLogger(logger),
		search.WithLocationLimit(cfg.LocationLimit),
		search.WithClock(options.now),
		search.WithTracerProvider(options.tracer),
	)
	if err != nil {
		history.Close()
		backend.Close()
		return nil, err
	}

	e := &Engine{
		config:   cfg,
		catalog:  cat,
		searcher: searcher,
		backend:  backend,
		history:  history,
		metrics:  options.metrics,
		logger:   logger,
	}

	runnerOpts := []batch.Option{batch.WithPoolSize(cfg.PoolSize), batch.WithLogger(logger)}
	if options.progress != nil {
		runnerOpts = append(runnerOpts, batch.WithProgress(options.progress, 1))
	}
	runner, err := batch.NewRunner(batchSearcher{e}, runnerOpts...)
	if err != nil {
		history.Close()
		backend.Close()
		return nil, err
	}
	e.runner = runner

	return e, nil
}

func loadCatalog(cfg *config.Config, now func() time.Time) (*catalog.Catalog, error) {
	if cfg.CatalogPath == "" {
		return catalog.Default(now()), nil
	}
	return catalog.LoadFile(cfg.CatalogPath)
}

// Search runs one query and, when history recording is enabled, remembers
// non-blank queries. A failed history write is logged and does not fail
// the search.
func (e *Engine) Search(ctx context.Context, query string, state *core.FilterState) (*core.Response, error) {
	resp, err := e.search(ctx, query, state)
	if err != nil {
		return nil, err
	}

	if e.config.RecordHistory && strings.TrimSpace(query) != "" {
		if err := e.history.Add(ctx, query, resp.Timestamp); err != nil {
			e.logger.Warn("error recording recent search", "query", query, "err", err)
			e.metrics.IncrementHistoryErrors()
		}
	}
	return resp, nil
}

// search runs the pipeline with metrics but leaves the history alone.
func (e *Engine) search(ctx context.Context, query string, state *core.FilterState) (*core.Response, error) {
	resp, err := e.searcher.SearchWithMonitor(ctx, query, state, e.metrics.NewSearchMonitor())
	e.metrics.IncrementSearch(err)
	return resp, err
}

// SearchBatch runs queries concurrently with a shared filter. Batch
// queries are not added to the history.
func (e *Engine) SearchBatch(ctx context.Context, queries []string, state *core.FilterState) ([]batch.Result, error) {
	return e.runner.Run(ctx, queries, state)
}

// batchSearcher runs searches for the batch runner without touching the history.
type batchSearcher struct {
	engine *Engine
}

func (b batchSearcher) Search(ctx context.Context, query string, state *core.FilterState) (*core.Response, error) {
	return b.engine.search(ctx, query, state)
}

func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

func (e *Engine) History() storage.HistoryRepository {
	return e.history
}

func (e *Engine) Config() *config.Config {
	return e.config
}

func (e *Engine) Close() error {
	e.runner.Release()

	historyErr := e.history.Close()
	if historyErr != nil {
		e.logger.Error("error closing history repository", "err", historyErr)
	}

	backendErr := e.backend.Close()
	if backendErr != nil {
		e.logger.Error("error closing backend storage", "err", backendErr)
	}
	return errors.Join(historyErr, backendErr)
}
