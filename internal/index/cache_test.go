// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package index_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-dev/mnemo/internal/index"
	"github.com/mnemo-dev/mnemo/internal/store"
	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

// fakeSnapshot counts closes so eviction behavior is observable.
type fakeSnapshot struct {
	userID string
	closed bool
}

func (s *fakeSnapshot) Search(_ context.Context, _ []float32, _ int) ([]index.Hit, error) {
	return nil, nil
}

func (s *fakeSnapshot) Len() int { return 1 }

func (s *fakeSnapshot) Close() error {
	s.closed = true
	return nil
}

// fakeBackend serves canned snapshots and records how often each user's
// snapshot was opened.
type fakeBackend struct {
	snapshots map[string]*fakeSnapshot
	opens     map[string]int
	openErr   error
}

var _ index.Backend = (*fakeBackend)(nil)

func newFakeBackend(users ...string) *fakeBackend {
	b := &fakeBackend{
		snapshots: make(map[string]*fakeSnapshot),
		opens:     make(map[string]int),
	}
	for _, u := range users {
		b.snapshots[u] = &fakeSnapshot{userID: u}
	}
	return b
}

func (b *fakeBackend) Name() string  { return "fake" }
func (b *fakeBackend) Enabled() bool { return true }

func (b *fakeBackend) Write(_ context.Context, userID string, records []*store.EmbeddingRecord) error {
	if len(records) == 0 {
		delete(b.snapshots, userID)
		return nil
	}
	b.snapshots[userID] = &fakeSnapshot{userID: userID}
	return nil
}

func (b *fakeBackend) Open(_ context.Context, userID string) (index.Snapshot, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}
	b.opens[userID]++
	snap, ok := b.snapshots[userID]
	if !ok {
		return nil, nil
	}
	return snap, nil
}

func TestCache_LazyLoad(t *testing.T) {
	backend := newFakeBackend("alice")
	cache, err := index.NewCache(backend, 4, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, cache.Len())

	snap, err := cache.Get(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 1, cache.Len())

	// Second access is served from the cache.
	again, err := cache.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.Same(t, snap, again)
	assert.Equal(t, 1, backend.opens["alice"])
}

func TestCache_MissingNotCached(t *testing.T) {
	backend := newFakeBackend()
	cache, err := index.NewCache(backend, 4, nil)
	require.NoError(t, err)

	snap, err := cache.Get(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.Equal(t, 0, cache.Len())

	// The backend is consulted again on the next access, so a snapshot
	// written in the meantime becomes visible.
	_, err = cache.Get(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Equal(t, 2, backend.opens["ghost"])
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	backend := newFakeBackend("alice", "bob", "carol")
	cache, err := index.NewCache(backend, 2, nil)
	require.NoError(t, err)

	aliceSnap, err := cache.Get(context.Background(), "alice")
	require.NoError(t, err)
	_, err = cache.Get(context.Background(), "bob")
	require.NoError(t, err)

	// Loading a third user evicts alice, the least recently used, and
	// closes her snapshot.
	_, err = cache.Get(context.Background(), "carol")
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Len())
	assert.True(t, aliceSnap.(*fakeSnapshot).closed)

	// Alice reloads from the backend on the next access.
	_, err = cache.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, backend.opens["alice"])
}

func TestCache_Invalidate(t *testing.T) {
	backend := newFakeBackend("alice")
	cache, err := index.NewCache(backend, 4, nil)
	require.NoError(t, err)

	stale, err := cache.Get(context.Background(), "alice")
	require.NoError(t, err)

	// Simulate a snapshot rewrite followed by invalidation.
	require.NoError(t, backend.Write(context.Background(), "alice", []*store.EmbeddingRecord{
		{ChunkID: "c1", UserID: "alice", Vector: []float32{1}},
	}))
	cache.Invalidate("alice")
	assert.True(t, stale.(*fakeSnapshot).closed)

	fresh, err := cache.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.NotSame(t, stale, fresh)
}

func TestCache_Purge(t *testing.T) {
	backend := newFakeBackend("alice", "bob")
	cache, err := index.NewCache(backend, 4, nil)
	require.NoError(t, err)

	_, err = cache.Get(context.Background(), "alice")
	require.NoError(t, err)
	_, err = cache.Get(context.Background(), "bob")
	require.NoError(t, err)
	require.Equal(t, 2, cache.Len())

	cache.Purge()
	assert.Equal(t, 0, cache.Len())
	for _, snap := range backend.snapshots {
		assert.True(t, snap.closed)
	}
}

func TestCache_OpenError(t *testing.T) {
	backend := newFakeBackend("alice")
	backend.openErr = mnemoerr.New(mnemoerr.CodeIndexSnapshotMalformed, "snapshot unreadable")
	cache, err := index.NewCache(backend, 4, nil)
	require.NoError(t, err)

	_, err = cache.Get(context.Background(), "alice")
	require.Error(t, err)
	assert.True(t, mnemoerr.HasCode(err, mnemoerr.CodeIndexSnapshotMalformed))
	assert.Equal(t, 0, cache.Len())
}
