// Package embedding turns node content and search queries into vectors.
package embedding

import (
	"context"
	"errors"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Close() error
}

// ErrEmptyInput is returned for text that is empty after normalization.
var ErrEmptyInput = errors.New("embedding input is empty")
