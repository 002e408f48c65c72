package store

import "errors"

// Sentinel errors for store operations, checked with errors.Is().
var (
	// ErrReferentialIntegrity indicates a write referenced a nonexistent
	// parent row (e.g. a document under an unknown collection). This is a
	// programming or data error and is never retried.
	ErrReferentialIntegrity = errors.New("referential integrity violation")

	// ErrDimensionMismatch indicates an embedding vector whose length does
	// not match VectorDimension. The write is rejected for that item only.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
