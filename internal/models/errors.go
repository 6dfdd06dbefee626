package models

import "errors"

// Error taxonomy shared by the engine, repositories and the HTTP layer.
// Callers wrap these with context and match them with errors.Is.
var (
	// ErrValidation: bad input, rejected before any embedding call.
	ErrValidation = errors.New("validation error")
	// ErrEmbedding: the embedding provider could not produce a vector.
	ErrEmbedding = errors.New("embedding failure")
	// ErrDimensionMismatch: two vectors (or a vector and the configured dimension) differ in length.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrNotFound: referenced node id is absent.
	ErrNotFound = errors.New("not found")
	// ErrRepository: underlying storage failed.
	ErrRepository = errors.New("repository failure")
)
