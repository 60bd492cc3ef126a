// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-dev/mnemo/internal/embed"
	"github.com/mnemo-dev/mnemo/internal/index/sqlitevec"
	"github.com/mnemo-dev/mnemo/internal/memory"
)

func TestSearcher_UserWithoutSnapshot(t *testing.T) {
	e := newEnv(t, nil)

	snippets := e.searcher.Search(context.Background(), "nobody", "anything", 5)
	assert.Empty(t, snippets)
}

func TestSearcher_DisabledEmbedder(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	e.seed(t, "alice", "buy milk")
	_, err := e.indexer.ProcessPending(ctx, 50)
	require.NoError(t, err)

	searcher := memory.NewSearcher(embed.Disabled{}, e.cache, nil)
	assert.Empty(t, searcher.Search(ctx, "alice", "buy milk", 5))
}

func TestSearcher_DefaultK(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	for _, content := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		e.seed(t, "alice", content)
	}
	_, err := e.indexer.ProcessPending(ctx, 50)
	require.NoError(t, err)

	// k <= 0 falls back to the default result count.
	snippets := e.searcher.Search(ctx, "alice", "a", 0)
	assert.Len(t, snippets, memory.DefaultSearchK)
}

func TestSearcher_RecoversAfterSnapshotInvalidation(t *testing.T) {
	backend, err := sqlitevec.NewBackend(t.TempDir())
	require.NoError(t, err)
	e := newEnv(t, backend)
	ctx := context.Background()

	e.seed(t, "alice", "buy milk")
	_, err = e.indexer.ProcessPending(ctx, 50)
	require.NoError(t, err)

	// A search in flight during a rebuild can hold a handle that the
	// invalidation closes under it.
	snap, err := e.cache.Get(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, snap)

	e.cache.Invalidate("alice")

	// The stale handle reports an error, never a partial result; the
	// search path maps that to no memories.
	_, err = snap.Search(ctx, make([]float32, fakeDims), 1)
	require.Error(t, err)

	// The next search loads a fresh snapshot and succeeds.
	snippets := e.searcher.Search(ctx, "alice", "buy milk", 5)
	require.Len(t, snippets, 1)
	assert.Equal(t, "buy milk", snippets[0].Content)
}

func TestSearcher_KLargerThanSnapshot(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	e.seed(t, "alice", "buy milk")
	e.seed(t, "alice", "call mom")
	_, err := e.indexer.ProcessPending(ctx, 50)
	require.NoError(t, err)

	snippets := e.searcher.Search(ctx, "alice", "buy milk", 100)
	assert.Len(t, snippets, 2)
}
