// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

// Package config loads and validates Mnemo configuration from file,
// environment, and defaults.
package config

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

// Config is the top-level Mnemo configuration.
type Config struct {
	DataDir   string          `mapstructure:"data_dir"`
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Index     IndexConfig     `mapstructure:"index"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Indexer   IndexerConfig   `mapstructure:"indexer"`
}

// ServerConfig controls how Mnemo listens for connections.
type ServerConfig struct {
	Listen      string   `mapstructure:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// StorageConfig selects the chunk store backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// IndexConfig selects the snapshot backend and bounds the snapshot cache.
type IndexConfig struct {
	Backend   string `mapstructure:"backend"`
	Dir       string `mapstructure:"dir"`
	CacheSize int    `mapstructure:"cache_size"`
}

// EmbeddingConfig holds credentials and endpoint for the embedding provider.
// An empty api_key is valid and selects the disabled embedder.
type EmbeddingConfig struct {
	Provider string        `mapstructure:"provider"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// IndexerConfig controls ingestion runs.
type IndexerConfig struct {
	BatchSize  int           `mapstructure:"batch_size"`
	MaxBatches int           `mapstructure:"max_batches"`
	Interval   time.Duration `mapstructure:"interval"`
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix MNEMO_).
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("data_dir", "")
	v.SetDefault("server.listen", "127.0.0.1:8787")
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("index.backend", "sqlite-vec")
	v.SetDefault("index.cache_size", 32)
	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.timeout", "30s")
	v.SetDefault("indexer.batch_size", 50)
	v.SetDefault("indexer.max_batches", 1000)
	v.SetDefault("indexer.interval", "0s")

	// Environment
	v.SetEnvPrefix("MNEMO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// File
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, mnemoerr.Errorf(mnemoerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors. It returns a slice of
// all validation errors found, collecting all issues rather than stopping at
// the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateIndex()...)
	errs = append(errs, c.validateEmbedding()...)
	errs = append(errs, c.validateIndexer()...)

	return errs
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue, "config: server.listen must not be empty"))
		return errs
	}

	_, portStr, err := net.SplitHostPort(c.Server.Listen)
	if err != nil {
		errs = append(errs, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue,
			"config: server.listen must be a valid host:port address, got %q: %w",
			c.Server.Listen, err,
		))
		return errs
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		errs = append(errs, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue,
			"config: server.listen port must be a number, got %q",
			portStr,
		))
	} else if port < 1 || port > 65535 {
		errs = append(errs, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue,
			"config: server.listen port must be between 1 and 65535, got %d",
			port,
		))
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	validBackends := map[string]bool{"sqlite": true}
	if !validBackends[c.Storage.Backend] {
		errs = append(errs, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue,
			"config: storage.backend must be one of [sqlite], got %q",
			c.Storage.Backend,
		))
	}

	return errs
}

func (c *Config) validateIndex() []error {
	var errs []error

	validBackends := map[string]bool{"sqlite-vec": true, "chromem": true, "disabled": true}
	if !validBackends[c.Index.Backend] {
		errs = append(errs, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue,
			"config: index.backend must be one of [sqlite-vec, chromem, disabled], got %q",
			c.Index.Backend,
		))
	}

	if c.Index.CacheSize < 1 {
		errs = append(errs, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue,
			"config: index.cache_size must be at least 1, got %d",
			c.Index.CacheSize,
		))
	}

	return errs
}

func (c *Config) validateEmbedding() []error {
	var errs []error

	validProviders := map[string]bool{"openai": true, "disabled": true}
	if !validProviders[c.Embedding.Provider] {
		errs = append(errs, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue,
			"config: embedding.provider must be one of [openai, disabled], got %q",
			c.Embedding.Provider,
		))
	}

	if c.Embedding.Timeout < 0 {
		errs = append(errs, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue,
			"config: embedding.timeout must not be negative, got %s",
			c.Embedding.Timeout,
		))
	}

	return errs
}

func (c *Config) validateIndexer() []error {
	var errs []error

	if c.Indexer.BatchSize < 1 {
		errs = append(errs, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue,
			"config: indexer.batch_size must be at least 1, got %d",
			c.Indexer.BatchSize,
		))
	}

	if c.Indexer.MaxBatches < 1 {
		errs = append(errs, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue,
			"config: indexer.max_batches must be at least 1, got %d",
			c.Indexer.MaxBatches,
		))
	}

	if c.Indexer.Interval < 0 {
		errs = append(errs, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue,
			"config: indexer.interval must not be negative, got %s",
			c.Indexer.Interval,
		))
	}

	return errs
}
