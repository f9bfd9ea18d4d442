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


package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/poiesic/umbratrace"
	"github.com/poiesic/umbratrace/catalog"
	"github.com/poiesic/umbratrace/config"
	"github.com/poiesic/umbratrace/core"
	"github.com/poiesic/umbratrace/httpapi"
	"github.com/poiesic/umbratrace/metrics"
)

const configKey = "config"

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "umbratrace",
		Usage:     "Correlate identity records across sources and score exposure",
		Writer:    stdout,
		ErrWriter: stderr,
		Metadata:  map[string]interface{}{},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"f"},
				Usage:   "Path to a YAML config file",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "catalog",
				Usage: "Path to a YAML record catalog (default: built-in fixtures)",
			},
			&cli.StringFlag{
				Name:    "history",
				Aliases: []string{"d"},
				Usage:   "Path to the BadgerDB recent search directory (default: in memory)",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the search API over HTTP",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Usage: "HTTP listen address",
					},
					&cli.DurationFlag{
						Name:  "latency-min",
						Usage: "Lower bound of simulated request latency",
					},
					&cli.DurationFlag{
						Name:  "latency-max",
						Usage: "Upper bound of simulated request latency",
					},
					&cli.Float64Flag{
						Name:  "rate-limit",
						Usage: "Requests per second accepted by /api (0 disables limiting)",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Run one or more queries and print the responses as JSON",
				ArgsUsage: "QUERY [QUERY...]",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.Float64Flag{
						Name:    "confidence",
						Aliases: []string{"c"},
						Usage:   "Minimum confidence score (0-100)",
					},
					&cli.StringFlag{
						Name:    "types",
						Aliases: []string{"t"},
						Usage:   "Comma separated record types (social, metadata, link, image)",
					},
					&cli.BoolFlag{
						Name:  "progress",
						Usage: "Report batch progress on stderr",
					},
				},
			},
			{
				Name:  "history",
				Usage: "Inspect and edit recent searches",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List recent searches, newest first",
						Action: historyListCommand,
						Flags: []cli.Flag{
							&cli.IntFlag{
								Name:  "limit",
								Usage: "Maximum number of entries",
								Value: 10,
							},
						},
					},
					{
						Name:      "remove",
						Usage:     "Remove recent searches; nothing is removed unless every term is found",
						ArgsUsage: "TERM [TERM...]",
						Action:    historyRemoveCommand,
					},
					{
						Name:   "clear",
						Usage:  "Remove every recent search",
						Action: historyClearCommand,
					},
				},
			},
			{
				Name:  "catalog",
				Usage: "Work with record catalogs",
				Subcommands: []*cli.Command{
					{
						Name:   "export",
						Usage:  "Write the configured catalog as YAML",
						Action: catalogExportCommand,
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:    "output",
								Aliases: []string{"o"},
								Usage:   "Output file (default: stdout)",
							},
						},
					},
				},
			},
		},
	}
}

// setup loads the configuration, applies global flag overrides and
// installs the default logger.
func setup(c *cli.Context) error {
	cfg := config.DefaultConfig()
	if path := c.String("config"); path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return err
		}
	}

	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("catalog") {
		cfg.CatalogPath = c.String("catalog")
	}
	if c.IsSet("history") {
		cfg.HistoryPath = c.String("history")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := setupLogger(c.App.ErrWriter, cfg.LogLevel); err != nil {
		return err
	}
	c.App.Metadata[configKey] = cfg
	return nil
}

func setupLogger(w io.Writer, levelStr string) error {
	// Map string to slog.Level
	var level slog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

func configFrom(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata[configKey].(*config.Config); ok {
		return cfg
	}
	return config.DefaultConfig()
}

func openEngine(c *cli.Context, opts ...umbratrace.EngineOption) (*umbratrace.Engine, error) {
	opts = append([]umbratrace.EngineOption{umbratrace.WithLogger(slog.Default())}, opts...)
	engine, err := umbratrace.NewEngine(configFrom(c), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open engine: %w", err)
	}
	return engine, nil
}

func serveCommand(c *cli.Context) error {
	cfg := configFrom(c)
	if c.IsSet("listen") {
		cfg.ListenAddr = c.String("listen")
	}
	if c.IsSet("latency-min") || c.IsSet("latency-max") {
		cfg.Apply(config.WithLatency(c.Duration("latency-min"), c.Duration("latency-max")))
	}
	if c.IsSet("rate-limit") {
		cfg.RateLimit = c.Float64("rate-limit")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	engine, err := openEngine(c, umbratrace.WithMetrics(m))
	if err != nil {
		return err
	}
	defer engine.Close()

	srv, err := httpapi.NewServer(engine, cfg,
		httpapi.WithLogger(slog.Default()),
		httpapi.WithMetrics(m, reg),
	)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("listening", "addr", cfg.ListenAddr, "records", engine.Catalog().Len())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down", "timeout", cfg.ShutdownTimeout)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func searchCommand(c *cli.Context) error {
	queries := c.Args().Slice()
	if len(queries) == 0 {
		return fmt.Errorf("at least one query is required")
	}

	state, err := filterFromFlags(c)
	if err != nil {
		return err
	}

	var opts []umbratrace.EngineOption
	if c.Bool("progress") {
		opts = append(opts, umbratrace.WithBatchProgress(c.App.ErrWriter))
	}
	engine, err := openEngine(c, opts...)
	if err != nil {
		return err
	}
	defer engine.Close()

	if len(queries) == 1 {
		resp, err := engine.Search(c.Context, queries[0], state)
		if err != nil {
			return err
		}
		return printJSON(c.App.Writer, resp)
	}

	results, err := engine.SearchBatch(c.Context, queries, state)
	if err != nil {
		return err
	}
	responses := make([]*core.Response, len(results))
	for i, result := range results {
		if result.Err != nil {
			return fmt.Errorf("query %q: %w", result.Query, result.Err)
		}
		responses[i] = result.Response
	}
	return printJSON(c.App.Writer, responses)
}

func filterFromFlags(c *cli.Context) (*core.FilterState, error) {
	var state core.FilterState
	if c.IsSet("confidence") {
		confidence := c.Float64("confidence")
		state.Confidence = &confidence
	}
	if c.IsSet("types") {
		types, err := core.ParseRecordTypes(c.String("types"))
		if err != nil {
			return nil, err
		}
		state.Types = types
	}
	if err := core.ValidateFilter(&state); err != nil {
		return nil, err
	}
	return &state, nil
}

func historyListCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	entries, err := engine.History().List(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}
	for _, entry := range entries {
		fmt.Fprintf(c.App.Writer, "%s\t%s\n", entry.At.Format(time.RFC3339), entry.Term)
	}
	return nil
}

func historyRemoveCommand(c *cli.Context) error {
	terms := c.Args().Slice()
	if len(terms) == 0 {
		return fmt.Errorf("at least one term is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	history := engine.History()
	return history.WithTransaction(c.Context, func(ctx context.Context) error {
		for _, term := range terms {
			if err := history.Remove(ctx, term); err != nil {
				return fmt.Errorf("failed to remove %q: %w", term, err)
			}
		}
		return nil
	})
}

func historyClearCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	return engine.History().Clear(c.Context)
}

func catalogExportCommand(c *cli.Context) error {
	cfg := configFrom(c)

	cat := catalog.Default(time.Now())
	if cfg.CatalogPath != "" {
		var err error
		cat, err = catalog.LoadFile(cfg.CatalogPath)
		if err != nil {
			return err
		}
	}

	w := c.App.Writer
	if path := c.String("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return catalog.WriteYAML(w, cat.Snapshot())
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
