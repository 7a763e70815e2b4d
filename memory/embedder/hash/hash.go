// Package hash provides a deterministic, dependency-free embedder.
//
// Vectors are derived from a hash of the input text, so identical texts
// always embed identically. There is no semantic signal; recall quality
// is limited to exact and near-exact matches. Use it for tests and
// offline demos, and the onnx embedder for real similarity search.
package hash

import (
	"context"
	"hash/fnv"
	"math"
)

// Embedder generates deterministic embeddings from text hashes.
type Embedder struct {
	dimensions int
}

// New creates a hash embedder.
func New() *Embedder {
	return &Embedder{
		dimensions: 384, // Match all-MiniLM-L6-v2 dimensions
	}
}

// Embed creates a deterministic embedding from text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))

	embedding := make([]float32, e.dimensions)

	// Expand the hash with an LCG so every dimension gets a value.
	seed := h.Sum64()
	for i := 0; i < e.dimensions; i++ {
		seed = seed*6364136223846793005 + 1442695040888963407
		embedding[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}

	normalize(embedding)

	return embedding, nil
}

// Dimensions returns the embedding size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// normalize scales vec to unit length in place.
func normalize(vec []float32) {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}

	if norm == 0 {
		return
	}

	norm = float32(math.Sqrt(float64(norm)))
	for i, v := range vec {
		vec[i] = v / norm
	}
}
