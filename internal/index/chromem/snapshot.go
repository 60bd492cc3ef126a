// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

// Package chromem persists per-user snapshots as chromem-go collections, one
// persistent database directory per user. chromem-go is a pure Go embedded
// vector database, so this backend needs no cgo.
package chromem

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	chromemgo "github.com/philippgille/chromem-go"

	"github.com/mnemo-dev/mnemo/internal/index"
	"github.com/mnemo-dev/mnemo/internal/store"
	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

// collectionName is the single collection held by each user's snapshot.
const collectionName = "memory"

func init() {
	index.RegisterBackend("chromem", func(cfg *index.Config) (index.Backend, error) {
		return NewBackend(cfg.Dir)
	})
}

// Compile-time interface check.
var _ index.Backend = (*Backend)(nil)

// Backend writes and loads chromem snapshot directories under dir.
type Backend struct {
	dir    string
	logger *slog.Logger
}

// NewBackend creates a chromem snapshot backend rooted at dir.
func NewBackend(dir string) (*Backend, error) {
	if dir == "" {
		return nil, mnemoerr.New(mnemoerr.CodeIndexBackendUnsupported, "chromem backend requires a snapshot directory")
	}
	return &Backend{dir: dir, logger: slog.Default()}, nil
}

func (b *Backend) Name() string { return "chromem" }

func (b *Backend) Enabled() bool { return true }

// snapshotDir maps a user ID to its snapshot directory. The ID is
// path-escaped so it cannot traverse outside the snapshot root. Every live
// directory carries the ".snap" suffix while work directories end in
// ".snap.tmp" or ".snap.old", so no escaped user ID can name another user's
// staging or retired directory.
func (b *Backend) snapshotDir(userID string) string {
	return filepath.Join(b.dir, url.PathEscape(userID)+".snap")
}

// Write rebuilds the user's snapshot from scratch in a staging directory and
// swaps it into place, so readers never load a half-built collection.
func (b *Backend) Write(ctx context.Context, userID string, records []*store.EmbeddingRecord) error {
	dir := b.snapshotDir(userID)

	if len(records) == 0 {
		b.logger.Info("no embeddings for user; removing stale snapshot if any", "user_id", userID)
		if err := os.RemoveAll(dir); err != nil {
			return mnemoerr.Errorf(mnemoerr.CodeIndexWriteFailure, "removing snapshot for user %s: %w", userID, err)
		}
		return nil
	}

	if _, err := index.CheckDimensions(records); err != nil {
		return err
	}

	staging := dir + ".tmp"
	if err := os.RemoveAll(staging); err != nil {
		return mnemoerr.Errorf(mnemoerr.CodeIndexWriteFailure, "clearing snapshot staging for user %s: %w", userID, err)
	}

	if err := b.build(ctx, staging, records); err != nil {
		_ = os.RemoveAll(staging)
		return err
	}

	// Swap staging into place. The previous snapshot is moved aside first
	// because rename cannot replace a non-empty directory.
	old := dir + ".old"
	_ = os.RemoveAll(old)
	if _, err := os.Stat(dir); err == nil {
		if err := os.Rename(dir, old); err != nil {
			_ = os.RemoveAll(staging)
			return mnemoerr.Errorf(mnemoerr.CodeIndexWriteFailure, "retiring old snapshot for user %s: %w", userID, err)
		}
	}
	if err := os.Rename(staging, dir); err != nil {
		_ = os.RemoveAll(staging)
		return mnemoerr.Errorf(mnemoerr.CodeIndexWriteFailure, "activating snapshot for user %s: %w", userID, err)
	}
	_ = os.RemoveAll(old)

	b.logger.Info("rebuilt snapshot", "user_id", userID, "vectors", len(records))
	return nil
}

func (b *Backend) build(ctx context.Context, dir string, records []*store.EmbeddingRecord) error {
	db, err := chromemgo.NewPersistentDB(dir, false)
	if err != nil {
		return mnemoerr.Errorf(mnemoerr.CodeIndexWriteFailure, "creating snapshot db: %w", err)
	}

	// Embeddings are provided directly, so no embedding func is configured.
	col, err := db.CreateCollection(collectionName, nil, nil)
	if err != nil {
		return mnemoerr.Errorf(mnemoerr.CodeIndexWriteFailure, "creating snapshot collection: %w", err)
	}

	for _, rec := range records {
		doc := chromemgo.Document{
			ID:        rec.ChunkID,
			Content:   rec.Content,
			Embedding: index.NormalizeL2(rec.Vector),
			Metadata: map[string]string{
				"source":    rec.Source,
				"file_path": rec.FilePath,
			},
		}
		if err := col.AddDocument(ctx, doc); err != nil {
			return mnemoerr.Wrapf(err, mnemoerr.CodeIndexWriteFailure, "adding document for chunk %s", rec.ChunkID)
		}
	}

	return nil
}

// Open loads the user's snapshot directory. A missing directory means
// "nothing indexed yet"; a directory without the memory collection is
// malformed.
func (b *Backend) Open(_ context.Context, userID string) (index.Snapshot, error) {
	dir := b.snapshotDir(userID)

	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, mnemoerr.Errorf(mnemoerr.CodeIndexSnapshotMalformed, "statting snapshot for user %s: %w", userID, err)
	}

	db, err := chromemgo.NewPersistentDB(dir, false)
	if err != nil {
		return nil, mnemoerr.Errorf(mnemoerr.CodeIndexSnapshotMalformed, "loading snapshot for user %s: %w", userID, err)
	}

	col := db.GetCollection(collectionName, nil)
	if col == nil {
		return nil, mnemoerr.Errorf(mnemoerr.CodeIndexSnapshotMalformed, "snapshot for user %s has no memory collection", userID)
	}

	return &Snapshot{col: col}, nil
}

// Compile-time interface check.
var _ index.Snapshot = (*Snapshot)(nil)

// Snapshot is a loaded chromem collection.
type Snapshot struct {
	col *chromemgo.Collection
}

// Search runs a top-k cosine-similarity lookup. chromem rejects asking for
// more results than the collection holds, so k is clamped to the size.
func (s *Snapshot) Search(ctx context.Context, query []float32, k int) ([]index.Hit, error) {
	count := s.col.Count()
	if k > count {
		k = count
	}
	if k <= 0 {
		return nil, nil
	}

	results, err := s.col.QueryEmbedding(ctx, query, k, nil, nil)
	if err != nil {
		return nil, mnemoerr.Errorf(mnemoerr.CodeIndexSnapshotMalformed, "querying snapshot: %w", err)
	}

	hits := make([]index.Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, index.Hit{
			ChunkID:  r.ID,
			Source:   r.Metadata["source"],
			FilePath: r.Metadata["file_path"],
			Content:  r.Content,
			Score:    float64(r.Similarity),
		})
	}

	return hits, nil
}

// Len reports how many vectors the snapshot holds.
func (s *Snapshot) Len() int { return s.col.Count() }

// Close is a no-op; chromem collections hold no OS resources once loaded.
func (s *Snapshot) Close() error { return nil }
