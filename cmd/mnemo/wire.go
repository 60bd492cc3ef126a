// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mnemo-dev/mnemo/internal/config"
	"github.com/mnemo-dev/mnemo/internal/embed"
	"github.com/mnemo-dev/mnemo/internal/index"
	_ "github.com/mnemo-dev/mnemo/internal/index/chromem"   // register chromem backend
	_ "github.com/mnemo-dev/mnemo/internal/index/sqlitevec" // register sqlite-vec backend
	"github.com/mnemo-dev/mnemo/internal/memory"
	"github.com/mnemo-dev/mnemo/internal/store"
	_ "github.com/mnemo-dev/mnemo/internal/store/sqlite" // register sqlite backend
	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

// App holds all wired subsystems and manages their lifecycle.
type App struct {
	Config   *config.Config
	Chunks   store.ChunkStore
	Embedder embed.Embedder
	Backend  index.Backend
	Cache    *index.Cache
	Indexer  *memory.Indexer
	Searcher *memory.Searcher
}

// WireApp creates all subsystems and wires them together. cfg.DataDir is the
// root directory for all persistent state.
func WireApp(cfg *config.Config) (*App, error) {
	// Ensure the data directory exists.
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, mnemoerr.Errorf(mnemoerr.CodeCLISetupFailure, "creating data directory: %w", err)
	}

	// 1. Chunk store.
	storePath := cfg.Storage.Path
	if storePath == "" {
		storePath = filepath.Join(cfg.DataDir, "mnemo.db")
	}
	chunks, err := store.New(&store.Config{Backend: cfg.Storage.Backend, Path: storePath})
	if err != nil {
		return nil, mnemoerr.Errorf(mnemoerr.CodeCLISetupFailure, "creating chunk store: %w", err)
	}

	// 2. Embedding provider. A missing API key degrades to the disabled
	// embedder instead of failing startup: searches return nothing and
	// indexing runs are skipped until a key is configured.
	embedder := wireEmbedder(cfg)

	// 3. Snapshot backend and cache.
	indexDir := cfg.Index.Dir
	if indexDir == "" {
		indexDir = filepath.Join(cfg.DataDir, "snapshots")
	}
	backend, err := index.New(&index.Config{Backend: cfg.Index.Backend, Dir: indexDir})
	if err != nil {
		_ = chunks.Close()
		return nil, mnemoerr.Errorf(mnemoerr.CodeCLISetupFailure, "creating index backend: %w", err)
	}

	cache, err := index.NewCache(backend, cfg.Index.CacheSize, nil)
	if err != nil {
		_ = chunks.Close()
		return nil, mnemoerr.Errorf(mnemoerr.CodeCLISetupFailure, "creating snapshot cache: %w", err)
	}

	// 4. Memory services.
	indexer := memory.NewIndexer(chunks, embedder, backend, cache, memory.IndexerOptions{
		MaxBatches: cfg.Indexer.MaxBatches,
	})
	searcher := memory.NewSearcher(embedder, cache, nil)

	return &App{
		Config:   cfg,
		Chunks:   chunks,
		Embedder: embedder,
		Backend:  backend,
		Cache:    cache,
		Indexer:  indexer,
		Searcher: searcher,
	}, nil
}

func wireEmbedder(cfg *config.Config) embed.Embedder {
	if cfg.Embedding.Provider == "disabled" {
		return embed.Disabled{}
	}

	if cfg.Embedding.APIKey == "" {
		slog.Warn("no embedding API key configured; indexing and search are disabled until one is set")
		return embed.Disabled{}
	}

	embedder, err := embed.NewOpenAI(embed.OpenAIConfig{
		APIKey:  cfg.Embedding.APIKey,
		Model:   cfg.Embedding.Model,
		BaseURL: cfg.Embedding.BaseURL,
		Timeout: cfg.Embedding.Timeout,
	})
	if err != nil {
		slog.Warn("embedding provider unavailable; falling back to disabled", "error", err)
		return embed.Disabled{}
	}
	return embedder
}

// Close releases all resources held by the app.
func (a *App) Close() error {
	a.Cache.Purge()
	return a.Chunks.Close()
}
