// Package embedding provides text embedding via ONNX and caching.
package embedding

import (
	"context"
	"fmt"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// NewEmbedder creates an embedder by provider name. "mock" produces
// deterministic hash-based embeddings and needs no model file.
func NewEmbedder(provider, modelPath string, dimensions, maxTokens, cacheSize int) (Embedder, error) {
	switch provider {
	case "", "mock":
		return NewMockEmbedder(dimensions), nil
	case "onnx":
		return NewONNXEmbedder(modelPath, dimensions, maxTokens, cacheSize)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q (supported: mock, onnx)", provider)
	}
}
