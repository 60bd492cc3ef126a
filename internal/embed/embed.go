// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

// Package embed converts text to fixed-length vectors through a remote
// embedding provider. Vectors need not be bit-reproducible across calls,
// only similarity-preserving.
package embed

import "context"

// Embedder is the embedding generator capability. The disabled
// implementation is selected at wiring time when no provider is configured;
// call sites check Enabled instead of probing configuration themselves.
type Embedder interface {
	// Enabled reports whether the provider is configured and usable.
	Enabled() bool

	// EmbedBatch embeds every text in one provider call. All-or-nothing: a
	// failure yields no vectors at all, never a partial set.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedOne embeds a single query text.
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}
