// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package store

import "context"

// ChunkStore manages raw memory chunks, their embeddings, and the reindex
// queue used to recover snapshots whose rebuild failed after the embeddings
// had already committed.
type ChunkStore interface {
	// InsertChunk persists a new chunk. Used by dev seeding and tests;
	// production chunks arrive through upstream ingestion.
	InsertChunk(ctx context.Context, chunk *MemoryChunk) error

	// FetchPending returns up to limit chunks that have no embedding yet,
	// oldest created first.
	FetchPending(ctx context.Context, limit int) ([]*MemoryChunk, error)

	// StoreEmbeddings persists (chunk, vector) pairs in a single transaction.
	// Inserts are keyed by chunk ID and skip rows that already exist, so
	// retries after a partial failure never duplicate embeddings.
	StoreEmbeddings(ctx context.Context, chunks []*MemoryChunk, vectors [][]float32) error

	// FetchEmbeddings returns every embedding record for a user, ordered by
	// chunk creation time ascending.
	FetchEmbeddings(ctx context.Context, userID string) ([]*EmbeddingRecord, error)

	// EnqueueReindex marks users whose snapshot must be rebuilt.
	EnqueueReindex(ctx context.Context, userIDs []string) error

	// DequeueReindex clears a user's reindex marker after a successful rebuild.
	DequeueReindex(ctx context.Context, userID string) error

	// PendingReindex lists users still awaiting a snapshot rebuild.
	PendingReindex(ctx context.Context) ([]string, error)

	Close() error
}
