// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

// Package sqlitevec persists per-user snapshots as standalone SQLite files
// holding a vec0 virtual table plus a position-aligned metadata table.
package sqlitevec

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mnemo-dev/mnemo/internal/index"
	"github.com/mnemo-dev/mnemo/internal/store"
	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

func init() {
	sqlite_vec.Auto()

	index.RegisterBackend("sqlite-vec", func(cfg *index.Config) (index.Backend, error) {
		return NewBackend(cfg.Dir)
	})
}

// Compile-time interface check.
var _ index.Backend = (*Backend)(nil)

// Backend writes and loads snapshot files under dir, one file per user.
// The snapshot and its metadata live in a single artifact, so readers can
// never observe an index without its sidecar.
type Backend struct {
	dir    string
	logger *slog.Logger
}

// NewBackend creates a sqlite-vec snapshot backend rooted at dir.
func NewBackend(dir string) (*Backend, error) {
	if dir == "" {
		return nil, mnemoerr.New(mnemoerr.CodeIndexBackendUnsupported, "sqlite-vec backend requires a snapshot directory")
	}
	return &Backend{dir: dir, logger: slog.Default()}, nil
}

func (b *Backend) Name() string { return "sqlite-vec" }

func (b *Backend) Enabled() bool { return true }

// snapshotPath maps a user ID to its snapshot file. The ID is path-escaped so
// it cannot traverse outside the snapshot directory.
func (b *Backend) snapshotPath(userID string) string {
	return filepath.Join(b.dir, url.PathEscape(userID)+".snap.db")
}

// Write rebuilds the user's snapshot from scratch. The new snapshot is built
// at a temporary path and renamed into place, so concurrent readers keep
// seeing the previous complete snapshot until the rename lands.
func (b *Backend) Write(ctx context.Context, userID string, records []*store.EmbeddingRecord) error {
	path := b.snapshotPath(userID)

	if len(records) == 0 {
		b.logger.Info("no embeddings for user; removing stale snapshot if any", "user_id", userID)
		return b.remove(path)
	}

	dims, err := index.CheckDimensions(records)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return mnemoerr.Errorf(mnemoerr.CodeIndexWriteFailure, "creating snapshot directory: %w", err)
	}

	tmp := path + ".tmp"
	_ = os.Remove(tmp)

	if err := b.build(ctx, tmp, dims, records); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return mnemoerr.Errorf(mnemoerr.CodeIndexWriteFailure, "renaming snapshot for user %s: %w", userID, err)
	}

	b.logger.Info("rebuilt snapshot", "user_id", userID, "vectors", len(records), "dimensions", dims)
	return nil
}

func (b *Backend) remove(path string) error {
	for _, p := range []string{path, path + ".tmp"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return mnemoerr.Errorf(mnemoerr.CodeIndexWriteFailure, "removing snapshot %s: %w", p, err)
		}
	}
	return nil
}

// build writes a complete snapshot database at path. Row i of the vec0 table
// and row i of snapshot_meta describe the same chunk.
func (b *Backend) build(ctx context.Context, path string, dims int, records []*store.EmbeddingRecord) error {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=MEMORY&_busy_timeout=5000")
	if err != nil {
		return mnemoerr.Errorf(mnemoerr.CodeIndexWriteFailure, "opening snapshot db: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := migrateSnapshot(db, dims); err != nil {
		return mnemoerr.Errorf(mnemoerr.CodeIndexWriteFailure, "creating snapshot tables: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return mnemoerr.Errorf(mnemoerr.CodeIndexWriteFailure, "beginning snapshot transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const vecQ = `INSERT INTO snapshot_vectors(rowid, embedding) VALUES (?, ?)`
	const metaQ = `INSERT INTO snapshot_meta(pos, chunk_id, source, file_path, content) VALUES (?, ?, ?, ?, ?)`

	for i, rec := range records {
		blob, err := sqlite_vec.SerializeFloat32(index.NormalizeL2(rec.Vector))
		if err != nil {
			return mnemoerr.Wrapf(err, mnemoerr.CodeIndexWriteFailure, "serializing vector for chunk %s", rec.ChunkID)
		}

		pos := i + 1 // vec0 rowids start at 1
		if _, err := tx.ExecContext(ctx, vecQ, pos, blob); err != nil {
			return mnemoerr.Wrapf(err, mnemoerr.CodeIndexWriteFailure, "inserting vector for chunk %s", rec.ChunkID)
		}
		if _, err := tx.ExecContext(ctx, metaQ, pos, rec.ChunkID, rec.Source, rec.FilePath, rec.Content); err != nil {
			return mnemoerr.Wrapf(err, mnemoerr.CodeIndexWriteFailure, "inserting metadata for chunk %s", rec.ChunkID)
		}
	}

	if err := tx.Commit(); err != nil {
		return mnemoerr.Errorf(mnemoerr.CodeIndexWriteFailure, "committing snapshot: %w", err)
	}
	return nil
}

func migrateSnapshot(db *sql.DB, dims int) error {
	vecDDL := fmt.Sprintf(`CREATE VIRTUAL TABLE snapshot_vectors USING vec0(embedding float[%d])`, dims)
	if _, err := db.Exec(vecDDL); err != nil {
		return err
	}

	const metaDDL = `
CREATE TABLE snapshot_meta (
	pos       INTEGER PRIMARY KEY,
	chunk_id  TEXT NOT NULL,
	source    TEXT NOT NULL,
	file_path TEXT NOT NULL,
	content   TEXT NOT NULL
)`
	_, err := db.Exec(metaDDL)
	return err
}

// readOnlyDSN builds a read-only SQLite URI for the snapshot at path. SQLite
// percent-decodes URI filenames, so the path (which contains a path-escaped
// user ID) must be escaped again or the open would target the decoded name
// instead of the file Write created.
func readOnlyDSN(path string) string {
	p := strings.ReplaceAll(path, "%", "%25")
	p = strings.ReplaceAll(p, "?", "%3F")
	p = strings.ReplaceAll(p, "#", "%23")
	return "file:" + p + "?mode=ro&_busy_timeout=5000"
}

// Open loads the user's snapshot file. Missing file means "nothing indexed
// yet"; a file that cannot be read or queried is malformed.
func (b *Backend) Open(_ context.Context, userID string) (index.Snapshot, error) {
	path := b.snapshotPath(userID)

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, mnemoerr.Errorf(mnemoerr.CodeIndexSnapshotMalformed, "statting snapshot for user %s: %w", userID, err)
	}

	db, err := sql.Open("sqlite3", readOnlyDSN(path))
	if err != nil {
		return nil, mnemoerr.Errorf(mnemoerr.CodeIndexSnapshotMalformed, "opening snapshot for user %s: %w", userID, err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM snapshot_meta`).Scan(&count); err != nil {
		_ = db.Close()
		return nil, mnemoerr.Errorf(mnemoerr.CodeIndexSnapshotMalformed, "reading snapshot for user %s: %w", userID, err)
	}

	return &Snapshot{db: db, count: count}, nil
}

// Compile-time interface check.
var _ index.Snapshot = (*Snapshot)(nil)

// Snapshot is a loaded sqlite-vec snapshot file.
type Snapshot struct {
	db    *sql.DB
	count int
}

// Search runs a top-k nearest-neighbor lookup and maps each hit back to its
// position-aligned metadata row. Positions without a metadata row are
// discarded. vec0 distance is L2; on unit vectors cosine = 1 - d²/2, so the
// ascending-distance order is exactly descending cosine similarity.
func (s *Snapshot) Search(ctx context.Context, query []float32, k int) ([]index.Hit, error) {
	if k <= 0 || s.count == 0 {
		return nil, nil
	}

	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, mnemoerr.Errorf(mnemoerr.CodeIndexSnapshotMalformed, "serializing query vector: %w", err)
	}

	const q = `SELECT v.distance, m.chunk_id, m.source, m.file_path, m.content
FROM snapshot_vectors v
LEFT JOIN snapshot_meta m ON m.pos = v.rowid
WHERE v.embedding MATCH ? AND k = ?
ORDER BY v.distance`

	rows, err := s.db.QueryContext(ctx, q, blob, k)
	if err != nil {
		return nil, mnemoerr.Errorf(mnemoerr.CodeIndexSnapshotMalformed, "searching snapshot: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []index.Hit
	for rows.Next() {
		var (
			distance                           float64
			chunkID, source, filePath, content sql.NullString
		)
		if err := rows.Scan(&distance, &chunkID, &source, &filePath, &content); err != nil {
			return nil, mnemoerr.Errorf(mnemoerr.CodeIndexSnapshotMalformed, "scanning snapshot hit: %w", err)
		}

		if !chunkID.Valid {
			continue // position has no metadata row
		}

		hits = append(hits, index.Hit{
			ChunkID:  chunkID.String,
			Source:   source.String,
			FilePath: filePath.String,
			Content:  content.String,
			Score:    1 - distance*distance/2,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, mnemoerr.Errorf(mnemoerr.CodeIndexSnapshotMalformed, "iterating snapshot hits: %w", err)
	}

	return hits, nil
}

// Len reports how many vectors the snapshot holds.
func (s *Snapshot) Len() int { return s.count }

// Close closes the underlying database handle.
func (s *Snapshot) Close() error { return s.db.Close() }
