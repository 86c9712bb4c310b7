package port

import (
	"context"

	"papersearch/internal/domain"
)

type PaperFetcher interface {
	Fetch(ctx context.Context, categories []string, maxResults int) ([]domain.Paper, error)
}
