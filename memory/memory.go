package memory

import "context"

// Embedder converts text to vector embeddings for the episodic tier.
// Implementations: hash.Embedder (deterministic, offline), onnx.Embedder
// (all-MiniLM-L6-v2, build tag "onnx").
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}
