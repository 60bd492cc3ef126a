// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-dev/mnemo/internal/store"
	"github.com/mnemo-dev/mnemo/internal/store/sqlite"
)

// testChunkStore opens a ChunkStore on a temp database.
func testChunkStore(t *testing.T) *sqlite.ChunkStore {
	t.Helper()
	cs, err := sqlite.NewChunkStore(filepath.Join(t.TempDir(), "chunks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

// seedChunk inserts a chunk with a deterministic creation time offset so
// ordering assertions are stable.
func seedChunk(t *testing.T, cs *sqlite.ChunkStore, userID, content string, offset time.Duration) *store.MemoryChunk {
	t.Helper()
	chunk := &store.MemoryChunk{
		ID:        uuid.NewString(),
		UserID:    userID,
		Source:    "note",
		FilePath:  "notes/" + userID + ".md",
		Content:   content,
		CreatedAt: time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC).Add(offset),
	}
	require.NoError(t, cs.InsertChunk(context.Background(), chunk))
	return chunk
}
