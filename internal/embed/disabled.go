// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package embed

import (
	"context"

	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

// Compile-time interface check.
var _ Embedder = (*Disabled)(nil)

// Disabled is the no-op embedder selected when no provider is configured.
// Callers are expected to check Enabled first; the embed methods only error
// as a backstop.
type Disabled struct{}

func (Disabled) Enabled() bool { return false }

func (Disabled) EmbedBatch(_ context.Context, _ []string) ([][]float32, error) {
	return nil, mnemoerr.New(mnemoerr.CodeEmbedProviderDisabled, "embedding provider is not configured")
}

func (Disabled) EmbedOne(_ context.Context, _ string) ([]float32, error) {
	return nil, mnemoerr.New(mnemoerr.CodeEmbedProviderDisabled, "embedding provider is not configured")
}
