//go:build onnx

package main

import (
	"os"
	"path/filepath"

	"github.com/mnemoworks/mnemo/memory"
	"github.com/mnemoworks/mnemo/memory/embedder/onnx"
)

// newEmbedder loads the MiniLM ONNX embedder. Model files default to
// models/all-MiniLM-L6-v2/ and can be overridden through the
// MNEMO_ONNX_MODEL and MNEMO_ONNX_TOKENIZER environment variables.
func newEmbedder() (memory.Embedder, func(), error) {
	emb, err := onnx.New(onnx.Config{
		ModelPath:     envOr("MNEMO_ONNX_MODEL", filepath.Join("models", "all-MiniLM-L6-v2", "model.onnx")),
		TokenizerPath: envOr("MNEMO_ONNX_TOKENIZER", filepath.Join("models", "all-MiniLM-L6-v2", "tokenizer.json")),
	})
	if err != nil {
		return nil, nil, err
	}
	return emb, func() { _ = emb.Close() }, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
