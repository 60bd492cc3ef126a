// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package sqlite

import (
	"github.com/mnemo-dev/mnemo/internal/store"
)

func init() {
	store.RegisterBackend("sqlite", func(cfg *store.Config) (store.ChunkStore, error) {
		return NewChunkStore(cfg.Path)
	})
}
