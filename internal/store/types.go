// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package store

import "time"

// MemoryChunk is a unit of raw text content eligible for embedding.
// Chunks are produced by upstream ingestion and are read-only here apart
// from test/dev seeding.
type MemoryChunk struct {
	ID        string
	UserID    string
	Source    string
	FilePath  string
	Content   string
	CreatedAt time.Time
}

// EmbeddingRecord pairs a chunk's descriptive fields with its stored vector.
// Records for one user are returned in chunk creation order; snapshot
// metadata alignment depends on that order.
type EmbeddingRecord struct {
	ChunkID  string
	UserID   string
	Source   string
	FilePath string
	Content  string
	Vector   []float32
}
