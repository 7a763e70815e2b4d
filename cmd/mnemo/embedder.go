//go:build !onnx

package main

import (
	"github.com/mnemoworks/mnemo/memory"
	"github.com/mnemoworks/mnemo/memory/embedder/hash"
)

// newEmbedder returns the deterministic hash embedder. Build with
// -tags onnx for real sentence-transformer embeddings.
func newEmbedder() (memory.Embedder, func(), error) {
	return hash.New(), func() {}, nil
}
