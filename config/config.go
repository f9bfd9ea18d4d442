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


package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate and Load for unusable settings.
var ErrInvalidConfig = errors.New("invalid config")

// LogLevels lists the accepted values of Config.LogLevel.
var LogLevels = []string{"debug", "info", "warn", "error"}

// Config holds the settings of an umbratrace engine and its HTTP server.
type Config struct {
	// ListenAddr is the HTTP listen address.
	// Default: ":8080"
	ListenAddr string `yaml:"listenAddr"`

	// CatalogPath is a YAML record catalog. Empty means the built-in fixtures.
	CatalogPath string `yaml:"catalogPath"`

	// HistoryPath is the BadgerDB directory for recent searches.
	// Empty keeps the history in memory.
	HistoryPath string `yaml:"historyPath"`

	// HistoryCapacity is the number of recent searches retained.
	// Default: 10
	HistoryCapacity int `yaml:"historyCapacity"`

	// RecordHistory controls whether searches are added to the history.
	// Default: true
	RecordHistory bool `yaml:"recordHistory"`

	// LocationLimit caps the top locations in a summary.
	// Default: 3
	LocationLimit int `yaml:"locationLimit"`

	// PoolSize is the worker pool size for batch searches.
	// Default: runtime.NumCPU() / 2, with a minimum of 1
	PoolSize int `yaml:"poolSize"`

	// MaxBatchQueries is the largest batch accepted over HTTP.
	// Default: 100
	MaxBatchQueries int `yaml:"maxBatchQueries"`

	// CacheMaxAge is advertised in the Cache-Control header of search responses.
	// Default: 60s
	CacheMaxAge time.Duration `yaml:"cacheMaxAge"`

	// LatencyMin and LatencyMax bound a random delay added to each search
	// request. Both zero disables the delay.
	LatencyMin time.Duration `yaml:"latencyMin"`
	LatencyMax time.Duration `yaml:"latencyMax"`

	// RateLimit is the sustained request rate per second. Zero disables limiting.
	RateLimit float64 `yaml:"rateLimit"`

	// RateBurst is the largest burst allowed above RateLimit.
	// Default: 20
	RateBurst int `yaml:"rateBurst"`

	// ShutdownTimeout bounds graceful HTTP shutdown.
	// Default: 10s
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	// LogLevel is one of debug, info, warn or error.
	// Default: "info"
	LogLevel string `yaml:"logLevel"`
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithListenAddr sets the HTTP listen address.
func WithListenAddr(addr string) ConfigOption {
	return func(c *Config) {
		c.ListenAddr = addr
	}
}

// WithCatalogPath sets the YAML catalog file.
func WithCatalogPath(path string) ConfigOption {
	return func(c *Config) {
		c.CatalogPath = path
	}
}

// WithHistoryPath sets the history database directory.
func WithHistoryPath(path string) ConfigOption {
	return func(c *Config) {
		c.HistoryPath = path
	}
}

// WithHistoryCapacity sets the number of recent searches retained.
func WithHistoryCapacity(n int) ConfigOption {
	return func(c *Config) {
		c.HistoryCapacity = n
	}
}

// WithRecordHistory enables or disables recording searches.
func WithRecordHistory(record bool) ConfigOption {
	return func(c *Config) {
		c.RecordHistory = record
	}
}

// WithLocationLimit sets the top locations limit.
func WithLocationLimit(n int) ConfigOption {
	return func(c *Config) {
		c.LocationLimit = n
	}
}

// WithPoolSize sets the batch worker pool size.
func WithPoolSize(n int) ConfigOption {
	return func(c *Config) {
		c.PoolSize = n
	}
}

// WithMaxBatchQueries sets the largest accepted batch.
func WithMaxBatchQueries(n int) ConfigOption {
	return func(c *Config) {
		c.MaxBatchQueries = n
	}
}

// WithCacheMaxAge sets the advertised response cache lifetime.
func WithCacheMaxAge(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.CacheMaxAge = d
	}
}

// WithLatency sets the simulated request latency range.
func WithLatency(lo, hi time.Duration) ConfigOption {
	return func(c *Config) {
		c.LatencyMin = lo
		c.LatencyMax = hi
	}
}

// WithRateLimit sets the request rate limit and burst.
func WithRateLimit(perSecond float64, burst int) ConfigOption {
	return func(c *Config) {
		c.RateLimit = perSecond
		c.RateBurst = burst
	}
}

// WithShutdownTimeout sets the graceful shutdown bound.
func WithShutdownTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.ShutdownTimeout = d
	}
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) ConfigOption {
	return func(c *Config) {
		c.LogLevel = level
	}
}

// DefaultConfig returns a Config that serves the built-in catalog with an
// in-memory history on :8080.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:      ":8080",
		HistoryCapacity: 10,
		RecordHistory:   true,
		LocationLimit:   3,
		PoolSize:        max(1, runtime.NumCPU()/2),
		MaxBatchQueries: 100,
		CacheMaxAge:     60 * time.Second,
		RateBurst:       20,
		ShutdownTimeout: 10 * time.Second,
		LogLevel:        "info",
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithListenAddr("127.0.0.1:9000"),
//	    WithHistoryPath("/var/lib/umbratrace"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	return cfg
}

// Apply applies options to an existing Config.
func (c *Config) Apply(opts ...ConfigOption) {
	for _, opt := range opts {
		opt(c)
	}
}

// Load reads a YAML config file. Keys absent from the file keep their
// default values; unknown keys are rejected.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode reads YAML config from r on top of the defaults and validates it.
func Decode(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Normalize ensures the configuration is in a canonical form.
func (c *Config) Normalize() {
	c.ListenAddr = strings.TrimSpace(c.ListenAddr)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
}

// LatencyEnabled reports whether simulated latency is configured.
func (c *Config) LatencyEnabled() bool {
	return c.LatencyMax > 0
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration first.
func (c *Config) Validate() error {
	c.Normalize()

	switch {
	case c.ListenAddr == "":
		return fmt.Errorf("%w: ListenAddr is required", ErrInvalidConfig)
	case c.HistoryCapacity < 1:
		return fmt.Errorf("%w: HistoryCapacity must be at least 1", ErrInvalidConfig)
	case c.LocationLimit < 1:
		return fmt.Errorf("%w: LocationLimit must be at least 1", ErrInvalidConfig)
	case c.PoolSize < 1:
		return fmt.Errorf("%w: PoolSize must be at least 1", ErrInvalidConfig)
	case c.MaxBatchQueries < 1:
		return fmt.Errorf("%w: MaxBatchQueries must be at least 1", ErrInvalidConfig)
	case c.CacheMaxAge < 0:
		return fmt.Errorf("%w: CacheMaxAge must not be negative", ErrInvalidConfig)
	case c.LatencyMin < 0 || c.LatencyMax < 0:
		return fmt.Errorf("%w: latency bounds must not be negative", ErrInvalidConfig)
	case c.LatencyMax < c.LatencyMin:
		return fmt.Errorf("%w: LatencyMax must not be below LatencyMin", ErrInvalidConfig)
	case c.RateLimit < 0:
		return fmt.Errorf("%w: RateLimit must not be negative", ErrInvalidConfig)
	case c.RateLimit > 0 && c.RateBurst < 1:
		return fmt.Errorf("%w: RateBurst must be at least 1 when RateLimit is set", ErrInvalidConfig)
	case c.ShutdownTimeout <= 0:
		return fmt.Errorf("%w: ShutdownTimeout must be positive", ErrInvalidConfig)
	case !slices.Contains(LogLevels, c.LogLevel):
		return fmt.Errorf("%w: LogLevel must be one of %s", ErrInvalidConfig, strings.Join(LogLevels, ", "))
	}
	return nil
}
