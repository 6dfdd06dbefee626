package embedding

import (
	"context"
	"fmt"
	"sync"
)

// StaticEmbedder returns preset vectors for known texts. Unknown texts fall back to Fallback
// when set and fail otherwise. It is used to reproduce exact similarity scenarios.
type StaticEmbedder struct {
	mu       sync.RWMutex
	vectors  map[string][]float32
	dims     int
	calls    int
	Fallback Embedder
	// Err, when set, is returned by every Embed call.
	Err error
}

// NewStaticEmbedder creates an embedder from a text → vector table. All vectors must share
// the same length.
func NewStaticEmbedder(dimensions int, vectors map[string][]float32) *StaticEmbedder {
	table := make(map[string][]float32, len(vectors))
	for k, v := range vectors {
		table[k] = append([]float32(nil), v...)
	}
	return &StaticEmbedder{vectors: table, dims: dimensions}
}

// Set adds or replaces the vector for text.
func (e *StaticEmbedder) Set(text string, v []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vectors[text] = append([]float32(nil), v...)
}

// Embed looks text up in the table.
func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	v, ok := e.vectors[text]
	err := e.Err
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if ok {
		return append([]float32(nil), v...), nil
	}
	if e.Fallback != nil {
		return e.Fallback.Embed(ctx, text)
	}
	return nil, fmt.Errorf("no static embedding for %q", text)
}

// Calls returns how many times Embed was invoked.
func (e *StaticEmbedder) Calls() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.calls
}

// Dimensions returns the configured dimension.
func (e *StaticEmbedder) Dimensions() int {
	return e.dims
}

// Close is a no-op.
func (e *StaticEmbedder) Close() error {
	return nil
}
