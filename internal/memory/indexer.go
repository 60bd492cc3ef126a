// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

// Package memory drives the personal-memory pipeline: draining pending
// chunks into embeddings, rebuilding per-user snapshots, and answering
// similarity searches over them.
package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mnemo-dev/mnemo/internal/embed"
	"github.com/mnemo-dev/mnemo/internal/index"
	"github.com/mnemo-dev/mnemo/internal/store"
	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

const (
	// DefaultBatchSize is how many pending chunks one batch embeds.
	DefaultBatchSize = 50

	// DefaultMaxBatches bounds a single ProcessPending run. The loop
	// normally terminates because no pending chunks remain; the bound keeps
	// one run finite under a sustained ingest flood so a supervising
	// scheduler can reason about its duration.
	DefaultMaxBatches = 1000
)

// IndexerOptions tune a ProcessPending run.
type IndexerOptions struct {
	MaxBatches int
	Logger     *slog.Logger
}

// Indexer drains pending chunks in batches: embed, store, rebuild snapshots,
// invalidate cache entries. Batches run strictly sequentially within one
// invocation, and invocations are serialized in-process since two concurrent
// rebuilds of the same user's snapshot could interleave writes.
type Indexer struct {
	chunks   store.ChunkStore
	embedder embed.Embedder
	backend  index.Backend
	cache    *index.Cache
	logger   *slog.Logger

	maxBatches int
	runMu      sync.Mutex
}

// NewIndexer wires an Indexer over its collaborators.
func NewIndexer(chunks store.ChunkStore, embedder embed.Embedder, backend index.Backend, cache *index.Cache, opts IndexerOptions) *Indexer {
	maxBatches := opts.MaxBatches
	if maxBatches <= 0 {
		maxBatches = DefaultMaxBatches
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Indexer{
		chunks:     chunks,
		embedder:   embedder,
		backend:    backend,
		cache:      cache,
		logger:     logger,
		maxBatches: maxBatches,
	}
}

// ProcessPending embeds pending memory chunks, stores their vectors, and
// rebuilds the snapshot of every user touched. It returns the number of
// chunks processed. The loop terminates when no pending chunks remain (or
// the max-batches bound is hit, leaving the rest for the next run).
//
// A failed embedding call aborts its batch with no partial writes, so those
// chunks stay pending and are retried wholesale by a later run. A failed
// snapshot rebuild leaves the user in the reindex queue; the next run
// retries the rebuild before draining new chunks.
func (ix *Indexer) ProcessPending(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	if !ix.embedder.Enabled() {
		ix.logger.Warn("embedding provider is not configured; skipping memory indexing")
		return 0, nil
	}

	ix.runMu.Lock()
	defer ix.runMu.Unlock()

	if err := ix.retryQueuedRebuilds(ctx); err != nil {
		return 0, err
	}

	processed := 0
	for batches := 0; batches < ix.maxBatches; batches++ {
		chunks, err := ix.chunks.FetchPending(ctx, batchSize)
		if err != nil {
			return processed, err
		}
		if len(chunks) == 0 {
			return processed, nil
		}

		texts := make([]string, len(chunks))
		for i, chunk := range chunks {
			texts[i] = chunk.Content
		}

		vectors, err := ix.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return processed, mnemoerr.Wrapf(err, mnemoerr.CodeEmbedUpstreamFailure,
				"embedding batch of %d chunks", len(chunks))
		}

		if err := ix.chunks.StoreEmbeddings(ctx, chunks, vectors); err != nil {
			return processed, err
		}
		processed += len(chunks)

		users := distinctUsers(chunks)
		if err := ix.chunks.EnqueueReindex(ctx, users); err != nil {
			return processed, err
		}
		for _, userID := range users {
			if err := ix.rebuild(ctx, userID); err != nil {
				// Embeddings are committed; the user stays queued so the
				// next run retries the rebuild.
				return processed, err
			}
		}

		ix.logger.Info("indexed memory chunks", "batch", len(chunks), "total", processed)
	}

	ix.logger.Warn("max batches reached; remaining pending chunks deferred to next run",
		"max_batches", ix.maxBatches,
		"processed", processed,
	)
	return processed, nil
}

// retryQueuedRebuilds rebuilds snapshots for users left in the reindex queue
// by a previous run that stored embeddings but failed before rebuilding.
func (ix *Indexer) retryQueuedRebuilds(ctx context.Context) error {
	users, err := ix.chunks.PendingReindex(ctx)
	if err != nil {
		return err
	}

	for _, userID := range users {
		ix.logger.Info("retrying queued snapshot rebuild", "user_id", userID)
		if err := ix.rebuild(ctx, userID); err != nil {
			return err
		}
	}
	return nil
}

// rebuild replaces the user's snapshot with a full rebuild from every stored
// embedding, drops the stale cache entry, and clears the reindex marker.
func (ix *Indexer) rebuild(ctx context.Context, userID string) error {
	records, err := ix.chunks.FetchEmbeddings(ctx, userID)
	if err != nil {
		return err
	}

	if err := ix.backend.Write(ctx, userID, records); err != nil {
		return err
	}

	ix.cache.Invalidate(userID)

	return ix.chunks.DequeueReindex(ctx, userID)
}

// distinctUsers returns the batch's user IDs in first-appearance order.
func distinctUsers(chunks []*store.MemoryChunk) []string {
	seen := make(map[string]bool, len(chunks))
	var users []string
	for _, chunk := range chunks {
		if !seen[chunk.UserID] {
			seen[chunk.UserID] = true
			users = append(users, chunk.UserID)
		}
	}
	return users
}
