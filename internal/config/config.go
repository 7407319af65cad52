// Package config loads the layered indexer configuration: YAML file
// defaults, overridden by environment variables, overridden by CLI
// flags. The struct shape mirrors the relational of concerns in the
// component design: discovery paths, search tuning, embeddings, and
// performance.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/basinlabs/symgraph/internal/sgerrors"
)

// CurrentVersion is the config schema version this build understands.
const CurrentVersion = 1

// Environment variable names recognized by Load.
const (
	EnvEmbeddingServiceURL  = "EMBEDDING_SERVICE_URL"
	EnvEmbeddingModel       = "EMBEDDING_MODEL"
	EnvIndexMaxWorkers      = "INDEX_MAX_WORKERS"
	EnvLogLevel             = "LOG_LEVEL"
	EnvPreferProjectStorage = "PREFER_PROJECT_STORAGE"
)

// Config is the complete indexer configuration.
type Config struct {
	Version     int               `yaml:"version"`
	Paths       PathsConfig       `yaml:"paths"`
	Search      SearchConfig      `yaml:"search"`
	Embeddings  EmbeddingsConfig  `yaml:"embeddings"`
	Performance PerformanceConfig `yaml:"performance"`
	Storage     StorageConfig     `yaml:"storage"`
	LogLevel    string            `yaml:"log_level"`
}

// PathsConfig configures which paths discovery includes and excludes.
type PathsConfig struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// SearchConfig configures keyword, semantic, and hybrid search tuning.
type SearchConfig struct {
	BM25K1         float64 `yaml:"bm25_k1"`
	BM25B          float64 `yaml:"bm25_b"`
	RRFConstant    float64 `yaml:"rrf_constant"`
	BM25Weight     float64 `yaml:"bm25_weight"`
	SemanticWeight float64 `yaml:"semantic_weight"`
	MaxResults     int     `yaml:"max_results"`
}

// EmbeddingsConfig configures the embedding service client.
type EmbeddingsConfig struct {
	ServiceURL      string `yaml:"service_url"`
	Model           string `yaml:"model"`
	MinBatch        int    `yaml:"min_batch"`
	MaxBatch        int    `yaml:"max_batch"`
	InitialBatch    int    `yaml:"initial_batch"`
	FlushIntervalMS int    `yaml:"flush_interval_ms"`
	MaxConcurrent   int    `yaml:"max_concurrent"`
	RetryAttempts   int    `yaml:"retry_attempts"`
	RetryDelaysMS   []int  `yaml:"retry_delays_ms"`
	TargetLatencyMS int    `yaml:"target_latency_ms"`
	GlobalTimeoutMS int    `yaml:"global_timeout_ms"`
}

// PerformanceConfig configures parallelism.
type PerformanceConfig struct {
	MaxWorkers int `yaml:"max_workers"`
}

// StorageConfig configures storage scope selection.
type StorageConfig struct {
	PreferProjectStorage bool `yaml:"prefer_project_storage"`
}

// Default returns the built-in configuration, matching the defaults
// enumerated in the component design.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Paths: PathsConfig{
			Include: []string{"**/*.ts", "**/*.tsx", "**/*.js", "**/*.jsx", "**/*.py", "**/*.md", "**/*.go"},
			Exclude: []string{
				"node_modules/**", "dist/**", "build/**", ".git/**",
				"**/*.test.*", "**/*.spec.*", "var/**", "vendor/**",
			},
		},
		Search: SearchConfig{
			BM25K1:         1.5,
			BM25B:          0.75,
			RRFConstant:    60,
			BM25Weight:     1.0,
			SemanticWeight: 1.0,
			MaxResults:     50,
		},
		Embeddings: EmbeddingsConfig{
			ServiceURL:      "http://localhost:8756/embed",
			Model:           "qwen3-embedding",
			MinBatch:        50,
			MaxBatch:        150,
			InitialBatch:    100,
			FlushIntervalMS: 500,
			MaxConcurrent:   3,
			RetryAttempts:   3,
			RetryDelaysMS:   []int{100, 500, 2000},
			TargetLatencyMS: 3000,
			GlobalTimeoutMS: 60000,
		},
		Performance: PerformanceConfig{
			MaxWorkers: 4,
		},
		LogLevel: "info",
	}
}

// Load reads a YAML config from path (skipped when path is empty or the
// file does not exist), layers environment variables on top, and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, sgerrors.New(sgerrors.KindConfig, sgerrors.CodeConfigNotFound, "read config file", err)
			}
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, sgerrors.ConfigErr("parse config file", err)
			}
			if cfg.Version > CurrentVersion {
				return nil, sgerrors.ConfigErr("config version newer than this build understands", nil).
					WithDetail("version", strconv.Itoa(cfg.Version))
			}
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvEmbeddingServiceURL); v != "" {
		cfg.Embeddings.ServiceURL = v
	}
	if v := os.Getenv(EnvEmbeddingModel); v != "" {
		cfg.Embeddings.Model = v
	}
	if v := os.Getenv(EnvIndexMaxWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Performance.MaxWorkers = n
		}
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvPreferProjectStorage); v != "" {
		cfg.Storage.PreferProjectStorage = isTruthy(v)
	}
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Validate checks the configuration for values that would make the
// indexer misbehave. Invalid configuration is fatal at initialize.
func (c *Config) Validate() error {
	if len(c.Paths.Include) == 0 {
		return sgerrors.ConfigErr("paths.include must not be empty", nil)
	}
	for _, g := range append(append([]string{}, c.Paths.Include...), c.Paths.Exclude...) {
		if strings.TrimSpace(g) == "" {
			return sgerrors.ConfigErr("empty glob pattern", nil)
		}
	}
	if c.Search.BM25K1 <= 0 {
		return sgerrors.ConfigErr("search.bm25_k1 must be positive", nil)
	}
	if c.Search.BM25B < 0 || c.Search.BM25B > 1 {
		return sgerrors.ConfigErr("search.bm25_b must be in [0,1]", nil)
	}
	if c.Search.RRFConstant <= 0 {
		return sgerrors.ConfigErr("search.rrf_constant must be positive", nil)
	}
	e := c.Embeddings
	if e.MinBatch <= 0 || e.MaxBatch <= 0 || e.InitialBatch <= 0 {
		return sgerrors.ConfigErr("embeddings batch bounds must be positive", nil)
	}
	if e.MinBatch > e.MaxBatch {
		return sgerrors.ConfigErr("embeddings.min_batch must not exceed max_batch", nil)
	}
	if e.InitialBatch < e.MinBatch || e.InitialBatch > e.MaxBatch {
		return sgerrors.ConfigErr("embeddings.initial_batch must lie within [min_batch, max_batch]", nil)
	}
	if e.MaxConcurrent <= 0 {
		return sgerrors.ConfigErr("embeddings.max_concurrent must be positive", nil)
	}
	if e.RetryAttempts < 1 {
		return sgerrors.ConfigErr("embeddings.retry_attempts must be at least 1", nil)
	}
	if c.Performance.MaxWorkers <= 0 {
		return sgerrors.ConfigErr("performance.max_workers must be positive", nil)
	}
	return nil
}

// EmbedRetryDelays converts the configured millisecond delays to
// durations, falling back to the defaults when unset.
func (c *Config) EmbedRetryDelays() []time.Duration {
	src := c.Embeddings.RetryDelaysMS
	if len(src) == 0 {
		src = []int{100, 500, 2000}
	}
	out := make([]time.Duration, len(src))
	for i, ms := range src {
		out[i] = time.Duration(ms) * time.Millisecond
	}
	return out
}
