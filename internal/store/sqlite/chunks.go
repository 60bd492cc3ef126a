// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"log/slog"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mnemo-dev/mnemo/internal/store"
	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

// Compile-time interface check.
var _ store.ChunkStore = (*ChunkStore)(nil)

// ChunkStore implements store.ChunkStore backed by SQLite.
type ChunkStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewChunkStore opens (or creates) a SQLite database at dbPath and
// initialises the chunk, embedding, and reindex-queue tables.
func NewChunkStore(dbPath string) (*ChunkStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, mnemoerr.Errorf(mnemoerr.CodeStoreDatabaseFailure, "opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, mnemoerr.Errorf(mnemoerr.CodeStoreDatabaseFailure, "pinging sqlite db: %w", err)
	}

	if err := migrateChunks(db); err != nil {
		_ = db.Close()
		return nil, mnemoerr.Errorf(mnemoerr.CodeStoreDatabaseFailure, "migrating chunk tables: %w", err)
	}

	return &ChunkStore{db: db, logger: slog.Default()}, nil
}

func migrateChunks(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS memory_chunks (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	source     TEXT NOT NULL DEFAULT '',
	file_path  TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_user_created ON memory_chunks(user_id, created_at);

CREATE TABLE IF NOT EXISTS memory_chunk_embeddings (
	chunk_id  TEXT PRIMARY KEY REFERENCES memory_chunks(id),
	user_id   TEXT NOT NULL,
	source    TEXT NOT NULL DEFAULT '',
	embedding BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_embeddings_user ON memory_chunk_embeddings(user_id);

CREATE TABLE IF NOT EXISTS reindex_queue (
	user_id   TEXT PRIMARY KEY,
	queued_at TEXT NOT NULL
);
`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying database connection.
func (c *ChunkStore) Close() error {
	return c.db.Close()
}

// InsertChunk persists a new memory chunk.
func (c *ChunkStore) InsertChunk(ctx context.Context, chunk *store.MemoryChunk) error {
	if chunk.ID == "" || chunk.UserID == "" {
		return mnemoerr.New(mnemoerr.CodeStoreInvalidInput, "chunk id and user id are required")
	}

	createdAt := chunk.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	const q = `INSERT INTO memory_chunks (id, user_id, source, file_path, content, created_at)
VALUES (?, ?, ?, ?, ?, ?)`

	_, err := c.db.ExecContext(ctx, q,
		chunk.ID, chunk.UserID, chunk.Source, chunk.FilePath, chunk.Content, formatTime(createdAt),
	)
	if err != nil {
		return mnemoerr.Wrapf(err, mnemoerr.CodeStoreDatabaseFailure, "inserting chunk %s", chunk.ID)
	}
	return nil
}

// FetchPending returns up to limit chunks with no embedding row, oldest
// created first. The chunk ID breaks ties so repeated runs see a stable order.
func (c *ChunkStore) FetchPending(ctx context.Context, limit int) ([]*store.MemoryChunk, error) {
	const q = `SELECT mc.id, mc.user_id, mc.source, mc.file_path, mc.content, mc.created_at
FROM memory_chunks mc
LEFT JOIN memory_chunk_embeddings me ON me.chunk_id = mc.id
WHERE me.chunk_id IS NULL
ORDER BY mc.created_at, mc.id
LIMIT ?`

	rows, err := c.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, mnemoerr.Errorf(mnemoerr.CodeStoreDatabaseFailure, "fetching pending chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var chunks []*store.MemoryChunk
	for rows.Next() {
		var (
			chunk   store.MemoryChunk
			created string
		)
		if err := rows.Scan(&chunk.ID, &chunk.UserID, &chunk.Source, &chunk.FilePath, &chunk.Content, &created); err != nil {
			return nil, mnemoerr.Errorf(mnemoerr.CodeStoreDatabaseFailure, "scanning pending chunk: %w", err)
		}
		chunk.CreatedAt, err = parseTime(created)
		if err != nil {
			return nil, mnemoerr.Errorf(mnemoerr.CodeStoreDatabaseFailure, "parsing chunk %s created_at: %w", chunk.ID, err)
		}
		chunks = append(chunks, &chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, mnemoerr.Errorf(mnemoerr.CodeStoreDatabaseFailure, "iterating pending chunks: %w", err)
	}

	return chunks, nil
}

// StoreEmbeddings persists (chunk, vector) pairs in one transaction.
// Inserts use ON CONFLICT(chunk_id) DO NOTHING, so a chunk embedded by an
// earlier run is silently skipped rather than duplicated.
func (c *ChunkStore) StoreEmbeddings(ctx context.Context, chunks []*store.MemoryChunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return mnemoerr.Errorf(mnemoerr.CodeStoreInvalidInput,
			"rows and vectors length mismatch: %d chunks, %d vectors", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return mnemoerr.Errorf(mnemoerr.CodeStoreDatabaseFailure, "beginning embedding transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			c.logger.ErrorContext(ctx, "StoreEmbeddings rollback failed",
				"chunk_count", len(chunks),
				"error", rbErr,
			)
		}
	}()

	const q = `INSERT INTO memory_chunk_embeddings (chunk_id, user_id, source, embedding)
VALUES (?, ?, ?, ?)
ON CONFLICT(chunk_id) DO NOTHING`

	for i, chunk := range chunks {
		if _, err := tx.ExecContext(ctx, q,
			chunk.ID, chunk.UserID, chunk.Source, encodeVector(vectors[i]),
		); err != nil {
			return mnemoerr.Wrapf(err, mnemoerr.CodeStoreDatabaseFailure, "inserting embedding for chunk %s", chunk.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return mnemoerr.Errorf(mnemoerr.CodeStoreDatabaseFailure, "committing embedding transaction: %w", err)
	}
	return nil
}

// FetchEmbeddings returns every embedding record for a user, ordered by chunk
// creation time ascending. Snapshot metadata alignment relies on this order.
func (c *ChunkStore) FetchEmbeddings(ctx context.Context, userID string) ([]*store.EmbeddingRecord, error) {
	const q = `SELECT mc.id, mc.user_id, mc.source, mc.file_path, mc.content, me.embedding
FROM memory_chunk_embeddings me
JOIN memory_chunks mc ON mc.id = me.chunk_id
WHERE mc.user_id = ?
ORDER BY mc.created_at, mc.id`

	rows, err := c.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, mnemoerr.Errorf(mnemoerr.CodeStoreDatabaseFailure, "fetching embeddings for user %s: %w", userID, err)
	}
	defer func() { _ = rows.Close() }()

	var records []*store.EmbeddingRecord
	for rows.Next() {
		var (
			rec  store.EmbeddingRecord
			blob []byte
		)
		if err := rows.Scan(&rec.ChunkID, &rec.UserID, &rec.Source, &rec.FilePath, &rec.Content, &blob); err != nil {
			return nil, mnemoerr.Errorf(mnemoerr.CodeStoreDatabaseFailure, "scanning embedding record: %w", err)
		}
		rec.Vector, err = decodeVector(blob)
		if err != nil {
			return nil, mnemoerr.Wrapf(err, mnemoerr.CodeStoreDatabaseFailure, "decoding embedding for chunk %s", rec.ChunkID)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mnemoerr.Errorf(mnemoerr.CodeStoreDatabaseFailure, "iterating embedding records: %w", err)
	}

	return records, nil
}

// EnqueueReindex marks users as needing a snapshot rebuild. Already-queued
// users keep their original queue position.
func (c *ChunkStore) EnqueueReindex(ctx context.Context, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return mnemoerr.Errorf(mnemoerr.CodeStoreDatabaseFailure, "beginning reindex transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `INSERT INTO reindex_queue (user_id, queued_at) VALUES (?, ?)
ON CONFLICT(user_id) DO NOTHING`

	now := formatTime(time.Now().UTC())
	for _, userID := range userIDs {
		if _, err := tx.ExecContext(ctx, q, userID, now); err != nil {
			return mnemoerr.Wrapf(err, mnemoerr.CodeStoreDatabaseFailure, "enqueueing reindex for user %s", userID)
		}
	}

	if err := tx.Commit(); err != nil {
		return mnemoerr.Errorf(mnemoerr.CodeStoreDatabaseFailure, "committing reindex transaction: %w", err)
	}
	return nil
}

// DequeueReindex clears a user's reindex marker.
func (c *ChunkStore) DequeueReindex(ctx context.Context, userID string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM reindex_queue WHERE user_id = ?`, userID); err != nil {
		return mnemoerr.Wrapf(err, mnemoerr.CodeStoreDatabaseFailure, "dequeueing reindex for user %s", userID)
	}
	return nil
}

// PendingReindex lists users still awaiting a snapshot rebuild, oldest first.
func (c *ChunkStore) PendingReindex(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT user_id FROM reindex_queue ORDER BY queued_at, user_id`)
	if err != nil {
		return nil, mnemoerr.Errorf(mnemoerr.CodeStoreDatabaseFailure, "listing reindex queue: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, mnemoerr.Errorf(mnemoerr.CodeStoreDatabaseFailure, "scanning reindex queue: %w", err)
		}
		users = append(users, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, mnemoerr.Errorf(mnemoerr.CodeStoreDatabaseFailure, "iterating reindex queue: %w", err)
	}

	return users, nil
}

// encodeVector packs a float32 vector into the little-endian blob layout
// shared with the vec0 snapshot tables.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, mnemoerr.Errorf(mnemoerr.CodeStoreDatabaseFailure, "embedding blob length %d is not a multiple of 4", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
