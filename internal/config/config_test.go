// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-dev/mnemo/internal/config"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8787", cfg.Server.Listen)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "sqlite-vec", cfg.Index.Backend)
	assert.Equal(t, 32, cfg.Index.CacheSize)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.Equal(t, 30*time.Second, cfg.Embedding.Timeout)
	assert.Equal(t, 50, cfg.Indexer.BatchSize)
	assert.Equal(t, 1000, cfg.Indexer.MaxBatches)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "mnemo.yaml")

	content := `
server:
  listen: "0.0.0.0:9999"
index:
  backend: chromem
  cache_size: 8
embedding:
  api_key: "test-key"
indexer:
  interval: 30s
`
	err := os.WriteFile(cfgPath, []byte(content), 0o644)
	require.NoError(t, err)

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9999", cfg.Server.Listen)
	assert.Equal(t, "chromem", cfg.Index.Backend)
	assert.Equal(t, 8, cfg.Index.CacheSize)
	assert.Equal(t, "test-key", cfg.Embedding.APIKey)
	assert.Equal(t, 30*time.Second, cfg.Indexer.Interval)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("MNEMO_SERVER_LISTEN", "10.0.0.1:8080")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:8080", cfg.Server.Listen)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoad_ValidationCalledAtLoadTime(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "mnemo.yaml")

	content := `
server:
  listen: "not-an-address"
`
	err := os.WriteFile(cfgPath, []byte(content), 0o644)
	require.NoError(t, err)

	_, err = config.Load(cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.listen")
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &config.Config{
		Server:    config.ServerConfig{Listen: ""},
		Storage:   config.StorageConfig{Backend: "postgres"},
		Index:     config.IndexConfig{Backend: "faiss", CacheSize: 0},
		Embedding: config.EmbeddingConfig{Provider: "cohere"},
		Indexer:   config.IndexerConfig{BatchSize: 0, MaxBatches: 0},
	}

	errs := cfg.Validate()
	assert.Len(t, errs, 7)
}

func TestValidate_PortRange(t *testing.T) {
	cfg := &config.Config{
		Server:    config.ServerConfig{Listen: "127.0.0.1:99999"},
		Storage:   config.StorageConfig{Backend: "sqlite"},
		Index:     config.IndexConfig{Backend: "sqlite-vec", CacheSize: 32},
		Embedding: config.EmbeddingConfig{Provider: "openai"},
		Indexer:   config.IndexerConfig{BatchSize: 50, MaxBatches: 1000},
	}

	errs := cfg.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "between 1 and 65535")
}

func TestValidate_DisabledBackendsAreValid(t *testing.T) {
	cfg := &config.Config{
		Server:    config.ServerConfig{Listen: "127.0.0.1:8787"},
		Storage:   config.StorageConfig{Backend: "sqlite"},
		Index:     config.IndexConfig{Backend: "disabled", CacheSize: 1},
		Embedding: config.EmbeddingConfig{Provider: "disabled"},
		Indexer:   config.IndexerConfig{BatchSize: 1, MaxBatches: 1},
	}

	assert.Empty(t, cfg.Validate())
}
