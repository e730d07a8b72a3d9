//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"errors"
)

// errONNXUnavailable is what every entry point of the CGO-less build
// returns. The provider factory surfaces it and callers fall back to the
// mock embedder.
var errONNXUnavailable = errors.New("onnx embedder needs CGO_ENABLED=1 and the onnxruntime library")

// ONNXEmbedder satisfies Embedder in builds without CGO so the provider
// factory compiles either way. Constructing one always fails.
type ONNXEmbedder struct{}

// NewONNXEmbedder always fails without CGO.
func NewONNXEmbedder(modelPath string, dimensions, maxTokens, cacheSize int) (*ONNXEmbedder, error) {
	return nil, errONNXUnavailable
}

func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errONNXUnavailable
}

func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errONNXUnavailable
}

func (e *ONNXEmbedder) Dimensions() int { return 0 }

func (e *ONNXEmbedder) Close() error { return nil }
