package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1.5, cfg.Search.BM25K1)
	assert.Equal(t, 0.75, cfg.Search.BM25B)
	assert.Equal(t, 100, cfg.Embeddings.InitialBatch)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Search, cfg.Search)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
version: 1
search:
  bm25_k1: 1.2
  bm25_b: 0.5
  rrf_constant: 60
  max_results: 20
performance:
  max_workers: 8
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1.2, cfg.Search.BM25K1)
	assert.Equal(t, 8, cfg.Performance.MaxWorkers)
	// Unset sections keep defaults.
	assert.Equal(t, 150, cfg.Embeddings.MaxBatch)
}

func TestLoadRefusesNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 99\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvEmbeddingServiceURL, "http://example.test/embed")
	t.Setenv(EnvEmbeddingModel, "test-model")
	t.Setenv(EnvIndexMaxWorkers, "7")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvPreferProjectStorage, "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://example.test/embed", cfg.Embeddings.ServiceURL)
	assert.Equal(t, "test-model", cfg.Embeddings.Model)
	assert.Equal(t, 7, cfg.Performance.MaxWorkers)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Storage.PreferProjectStorage)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty include", func(c *Config) { c.Paths.Include = nil }},
		{"blank glob", func(c *Config) { c.Paths.Exclude = []string{"  "} }},
		{"zero k1", func(c *Config) { c.Search.BM25K1 = 0 }},
		{"b out of range", func(c *Config) { c.Search.BM25B = 1.5 }},
		{"min over max batch", func(c *Config) { c.Embeddings.MinBatch = 500 }},
		{"initial outside bounds", func(c *Config) { c.Embeddings.InitialBatch = 1 }},
		{"zero workers", func(c *Config) { c.Performance.MaxWorkers = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
