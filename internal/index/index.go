// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

// Package index defines the per-user snapshot capability: a similarity index
// over all of one user's embeddings, rebuilt from scratch on every write and
// paired with position-aligned chunk metadata.
package index

import (
	"context"

	"github.com/mnemo-dev/mnemo/internal/store"
)

// Hit is a single ranked search result from a snapshot.
type Hit struct {
	ChunkID  string
	Source   string
	FilePath string
	Content  string
	// Score is cosine similarity; higher is more similar.
	Score float64
}

// Snapshot is a loaded per-user similarity index. Search may be called
// concurrently; Close releases the loaded resources.
type Snapshot interface {
	// Search returns up to k hits ordered by descending similarity. The query
	// vector must be L2-normalized. Asking for more hits than the snapshot
	// holds returns everything.
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)

	// Len reports how many vectors the snapshot holds.
	Len() int

	Close() error
}

// Backend builds and loads per-user snapshots. Implementations are selected
// once at startup; call sites depend only on this interface and never check
// for backend availability themselves.
type Backend interface {
	Name() string

	// Enabled reports whether writes and loads do real work. The disabled
	// backend returns false and degrades every operation to a no-op.
	Enabled() bool

	// Write rebuilds the user's snapshot from the full record set. An empty
	// record set deletes any existing snapshot instead of persisting an empty
	// index. Vectors of mixed dimensionality are rejected before anything is
	// persisted. Readers never observe a half-written snapshot.
	Write(ctx context.Context, userID string, records []*store.EmbeddingRecord) error

	// Open loads the user's snapshot. A missing snapshot returns (nil, nil);
	// an unreadable or half-broken one returns an error, which callers treat
	// as "no snapshot".
	Open(ctx context.Context, userID string) (Snapshot, error)
}
