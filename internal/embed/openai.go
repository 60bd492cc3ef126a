// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package embed

import (
	"context"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "text-embedding-3-small"

// OpenAIConfig holds OpenAI embedder configuration.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string // optional, useful for testing against a mock server
	Timeout time.Duration
}

// Compile-time interface check.
var _ Embedder = (*OpenAI)(nil)

// OpenAI implements Embedder using the OpenAI Embeddings API.
type OpenAI struct {
	client  openaisdk.Client
	model   string
	timeout time.Duration
}

// NewOpenAI creates an OpenAI embedder. Returns an error if the API key is
// missing; wiring falls back to the Disabled embedder in that case.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, mnemoerr.New(mnemoerr.CodeEmbedProviderDisabled, "openai: missing api_key in config")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &OpenAI{
		client:  openaisdk.NewClient(opts...),
		model:   model,
		timeout: cfg.Timeout,
	}, nil
}

func (o *OpenAI) Enabled() bool { return true }

// EmbedBatch embeds all texts in a single API call.
func (o *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	resp, err := o.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openaisdk.EmbeddingModel(o.model),
	})
	if err != nil {
		return nil, mnemoerr.Wrapf(err, mnemoerr.CodeEmbedUpstreamFailure, "embedding batch of %d texts", len(texts))
	}

	if len(resp.Data) != len(texts) {
		return nil, mnemoerr.Errorf(mnemoerr.CodeEmbedResponseInvalid,
			"embedding response has %d vectors for %d texts", len(resp.Data), len(texts))
	}

	// The API may return data out of order; place each vector by its index.
	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(texts) {
			return nil, mnemoerr.Errorf(mnemoerr.CodeEmbedResponseInvalid, "embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = toFloat32(d.Embedding)
	}
	for i, vec := range vectors {
		if vec == nil {
			return nil, mnemoerr.Errorf(mnemoerr.CodeEmbedResponseInvalid, "embedding response missing vector for text %d", i)
		}
	}

	return vectors, nil
}

// EmbedOne embeds a single query text.
func (o *OpenAI) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func toFloat32(vec []float64) []float32 {
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(v)
	}
	return out
}
