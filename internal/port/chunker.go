package port

import "papersearch/internal/domain"

type Chunker interface {
	Chunk(papers []domain.Paper) []domain.Chunk
}
