// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package memory

import (
	"context"
	"log/slog"

	"github.com/mnemo-dev/mnemo/internal/embed"
	"github.com/mnemo-dev/mnemo/internal/index"
)

// DefaultSearchK is the result count used when a caller asks for none.
const DefaultSearchK = 5

// Snippet is one retrieved memory, shaped for prompt assembly.
type Snippet struct {
	Content  string `json:"content"`
	FilePath string `json:"file_path,omitempty"`
	Source   string `json:"source,omitempty"`
}

// Searcher answers similarity queries over per-user snapshots. Search never
// returns an error: retrieval is an enrichment step, so every failure mode
// degrades to "no memories" with a logged warning.
type Searcher struct {
	embedder embed.Embedder
	cache    *index.Cache
	logger   *slog.Logger
}

// NewSearcher wires a Searcher over the embedder and snapshot cache.
func NewSearcher(embedder embed.Embedder, cache *index.Cache, logger *slog.Logger) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{
		embedder: embedder,
		cache:    cache,
		logger:   logger,
	}
}

// Search returns up to k memories for the user ranked by similarity to the
// query, best first. Users without a snapshot, a disabled embedder, and any
// load or query failure all yield an empty result.
func (s *Searcher) Search(ctx context.Context, userID, query string, k int) []Snippet {
	if k <= 0 {
		k = DefaultSearchK
	}

	if !s.embedder.Enabled() {
		s.logger.Debug("embedding provider is not configured; returning no memories", "user_id", userID)
		return nil
	}

	snap, err := s.cache.Get(ctx, userID)
	if err != nil {
		s.logger.Warn("loading memory snapshot failed; returning no memories",
			"user_id", userID, "error", err)
		return nil
	}
	if snap == nil {
		return nil
	}

	vector, err := s.embedder.EmbedOne(ctx, query)
	if err != nil {
		s.logger.Warn("embedding memory query failed; returning no memories",
			"user_id", userID, "error", err)
		return nil
	}

	hits, err := snap.Search(ctx, index.NormalizeL2(vector), k)
	if err != nil {
		s.logger.Warn("memory snapshot search failed; returning no memories",
			"user_id", userID, "error", err)
		return nil
	}

	snippets := make([]Snippet, 0, len(hits))
	for _, hit := range hits {
		snippets = append(snippets, Snippet{
			Content:  hit.Content,
			FilePath: hit.FilePath,
			Source:   hit.Source,
		})
	}
	return snippets
}
