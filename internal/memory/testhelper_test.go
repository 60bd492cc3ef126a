// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package memory_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-dev/mnemo/internal/embed"
	"github.com/mnemo-dev/mnemo/internal/index"
	"github.com/mnemo-dev/mnemo/internal/index/chromem"
	"github.com/mnemo-dev/mnemo/internal/memory"
	"github.com/mnemo-dev/mnemo/internal/store"
	"github.com/mnemo-dev/mnemo/internal/store/sqlite"
	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

const fakeDims = 32

// fakeEmbedder assigns each distinct text its own orthogonal axis, so
// identical texts embed identically and different texts have zero similarity.
// That makes nearest-neighbor assertions exact.
type fakeEmbedder struct {
	mu          sync.Mutex
	axes        map[string]int
	next        int
	failBatches int
	batchCalls  int
}

var _ embed.Embedder = (*fakeEmbedder)(nil)

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{axes: make(map[string]int)}
}

func (f *fakeEmbedder) Enabled() bool { return true }

func (f *fakeEmbedder) vector(text string) []float32 {
	axis, ok := f.axes[text]
	if !ok {
		if f.next >= fakeDims {
			panic(fmt.Sprintf("fake embedder ran out of axes for %q", text))
		}
		axis = f.next
		f.axes[text] = axis
		f.next++
	}

	vec := make([]float32, fakeDims)
	vec[axis] = 1
	return vec
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.batchCalls++
	if f.failBatches > 0 {
		f.failBatches--
		return nil, mnemoerr.New(mnemoerr.CodeEmbedUpstreamFailure, "embedding provider unavailable")
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = f.vector(text)
	}
	return vectors, nil
}

func (f *fakeEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.vector(text), nil
}

// flakyBackend wraps a real backend and fails the first failWrites calls to
// Write, simulating a rebuild that dies after embeddings were committed.
type flakyBackend struct {
	index.Backend

	mu         sync.Mutex
	failWrites int
	writes     int
}

func (b *flakyBackend) Write(ctx context.Context, userID string, records []*store.EmbeddingRecord) error {
	b.mu.Lock()
	fail := b.failWrites > 0
	if fail {
		b.failWrites--
	} else {
		b.writes++
	}
	b.mu.Unlock()

	if fail {
		return mnemoerr.New(mnemoerr.CodeIndexWriteFailure, "snapshot write failed")
	}
	return b.Backend.Write(ctx, userID, records)
}

type env struct {
	chunks   store.ChunkStore
	embedder *fakeEmbedder
	backend  index.Backend
	cache    *index.Cache
	indexer  *memory.Indexer
	searcher *memory.Searcher

	seeded int
}

// newEnv wires a full memory pipeline over a real chunk store and, unless a
// backend override is given, a real chromem snapshot backend.
func newEnv(t *testing.T, backend index.Backend) *env {
	t.Helper()

	chunks, err := sqlite.NewChunkStore(filepath.Join(t.TempDir(), "mnemo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = chunks.Close() })

	if backend == nil {
		b, err := chromem.NewBackend(t.TempDir())
		require.NoError(t, err)
		backend = b
	}

	cache, err := index.NewCache(backend, 8, nil)
	require.NoError(t, err)
	t.Cleanup(cache.Purge)

	embedder := newFakeEmbedder()

	return &env{
		chunks:   chunks,
		embedder: embedder,
		backend:  backend,
		cache:    cache,
		indexer:  memory.NewIndexer(chunks, embedder, backend, cache, memory.IndexerOptions{}),
		searcher: memory.NewSearcher(embedder, cache, nil),
	}
}

// seed inserts a pending chunk with a creation time later than all previous
// seeds, so batch order is deterministic.
func (e *env) seed(t *testing.T, userID, content string) *store.MemoryChunk {
	t.Helper()

	base := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	chunk := &store.MemoryChunk{
		ID:        uuid.NewString(),
		UserID:    userID,
		Source:    "journal",
		FilePath:  "2026/01/02.md",
		Content:   content,
		CreatedAt: base.Add(time.Duration(e.seeded) * time.Minute),
	}
	e.seeded++

	require.NoError(t, e.chunks.InsertChunk(context.Background(), chunk))
	return chunk
}
