// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package index

import (
	"math"

	"github.com/mnemo-dev/mnemo/internal/store"
	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

// NormalizeL2 returns a unit-length copy of vec so that inner-product
// similarity equals cosine similarity. Zero vectors are returned unchanged.
func NormalizeL2(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}

	out := make([]float32, len(vec))
	if sum == 0 {
		copy(out, vec)
		return out
	}

	norm := math.Sqrt(sum)
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

// CheckDimensions verifies that every record carries a vector of the same
// non-zero length and returns that length. Mixing dimensionalities within one
// snapshot is invalid and must fail before anything is persisted.
func CheckDimensions(records []*store.EmbeddingRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	dims := len(records[0].Vector)
	if dims == 0 {
		return 0, mnemoerr.New(mnemoerr.CodeIndexDimensionMismatch, "empty embedding vector",
			mnemoerr.FieldChunkID(records[0].ChunkID))
	}

	for _, rec := range records[1:] {
		if len(rec.Vector) != dims {
			return 0, mnemoerr.Errorf(mnemoerr.CodeIndexDimensionMismatch,
				"chunk %s has %d dimensions, expected %d", rec.ChunkID, len(rec.Vector), dims)
		}
	}

	return dims, nil
}
