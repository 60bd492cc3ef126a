// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package index

import (
	"context"
	"log/slog"

	"github.com/mnemo-dev/mnemo/internal/store"
)

func init() {
	RegisterBackend("disabled", func(_ *Config) (Backend, error) {
		return &DisabledBackend{logger: slog.Default()}, nil
	})
}

// DisabledBackend is the no-op snapshot backend selected when no similarity
// index is configured. Ingestion must never fail solely because the index
// backend is absent: writes are skipped with a warning and searches find no
// snapshot, so only search quality degrades.
type DisabledBackend struct {
	logger *slog.Logger
}

func (d *DisabledBackend) Name() string { return "disabled" }

func (d *DisabledBackend) Enabled() bool { return false }

func (d *DisabledBackend) Write(_ context.Context, userID string, records []*store.EmbeddingRecord) error {
	d.logger.Warn("index backend disabled; skipping snapshot write",
		"user_id", userID,
		"record_count", len(records),
	)
	return nil
}

func (d *DisabledBackend) Open(_ context.Context, _ string) (Snapshot, error) {
	return nil, nil
}
