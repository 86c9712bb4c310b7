package domain

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the embedding, indexing and retrieval stages.
// Callers match them with errors.Is; lower layers wrap them with %w.
var (
	ErrModelUnavailable  = errors.New("embedding model unavailable")
	ErrEncoding          = errors.New("text could not be encoded")
	ErrMalformedChunk    = errors.New("malformed chunk")
	ErrShapeMismatch     = errors.New("column lengths differ")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrStoreUnavailable  = errors.New("vector store unavailable")
	ErrRetrievalFailed   = errors.New("retrieval failed")
	ErrInvalidK          = errors.New("k must be positive")
)

// RetrievalError is returned by the retrieval service for every failed query.
// The adapter or store error that caused it is kept for diagnostics.
type RetrievalError struct {
	Query string
	Err   error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed for %q: %v", e.Query, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

func (e *RetrievalError) Is(target error) bool {
	return target == ErrRetrievalFailed
}

// IsStructural reports whether err means the input would corrupt the index.
// Batch runs stop on these.
func IsStructural(err error) bool {
	return errors.Is(err, ErrShapeMismatch) || errors.Is(err, ErrDimensionMismatch)
}
