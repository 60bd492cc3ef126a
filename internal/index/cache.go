// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package index

import (
	"context"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

// DefaultCacheSize bounds how many users' snapshots stay loaded at once.
const DefaultCacheSize = 32

// Cache is a bounded, least-recently-used holder of loaded snapshots keyed by
// user. It holds no authority over persisted state: entries are lazily loaded
// from the backend on first access and are always safe to drop and reload.
// Mutation (load-on-miss, eviction, invalidation) is serialized; Snapshot
// reads may proceed concurrently.
type Cache struct {
	backend Backend
	logger  *slog.Logger

	mu  sync.Mutex
	lru *lru.Cache[string, Snapshot]
}

// NewCache creates a Cache bounded to size entries. Evicted snapshots are
// closed as they leave the cache.
func NewCache(backend Backend, size int, logger *slog.Logger) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	inner, err := lru.NewWithEvict[string, Snapshot](size, func(userID string, snap Snapshot) {
		if err := snap.Close(); err != nil {
			logger.Warn("closing evicted snapshot", "user_id", userID, "error", err)
		}
	})
	if err != nil {
		return nil, mnemoerr.Wrap(err, mnemoerr.CodeServerInternalFailure, "creating snapshot cache")
	}

	return &Cache{backend: backend, logger: logger, lru: inner}, nil
}

// Get returns the user's loaded snapshot, loading it from the backend on the
// first access. A missing snapshot returns (nil, nil) and is not cached, so
// the next access checks the backend again.
func (c *Cache) Get(ctx context.Context, userID string) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if snap, ok := c.lru.Get(userID); ok {
		return snap, nil
	}

	snap, err := c.backend.Open(ctx, userID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, nil
	}

	c.lru.Add(userID, snap)
	return snap, nil
}

// Invalidate drops (and closes) the cached snapshot for one user. Called
// after every snapshot rewrite so the next search reloads fresh state.
// A search still holding the evicted handle may observe it closed mid-read;
// the search path treats that as an empty result, and the next Get loads the
// rewritten snapshot.
func (c *Cache) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(userID)
}

// Purge drops every cached snapshot.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// Len reports how many snapshots are currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
