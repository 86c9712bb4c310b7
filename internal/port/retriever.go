package port

import "papersearch/internal/domain"

// Retriever answers free-text queries with ranked hits.
type Retriever interface {
	// Retrieve returns at most topK hits ordered by ascending distance.
	Retrieve(query string, topK int) ([]domain.Hit, error)
}
