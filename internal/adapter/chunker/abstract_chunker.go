package chunker

import (
	"strings"

	"papersearch/internal/domain"
	"papersearch/internal/port"
)

// AbstractChunker turns paper abstracts into chunks. With maxTokens 0 every
// paper becomes exactly one chunk; otherwise the abstract is cut into word
// windows of maxTokens that share overlap words with their predecessor.
type AbstractChunker struct {
	maxTokens int
	overlap   int
}

var _ port.Chunker = (*AbstractChunker)(nil)

func NewAbstractChunker(maxTokens, overlap int) *AbstractChunker {
	if overlap < 0 || (maxTokens > 0 && overlap >= maxTokens) {
		overlap = 0
	}
	return &AbstractChunker{
		maxTokens: maxTokens,
		overlap:   overlap,
	}
}

func (c *AbstractChunker) Chunk(papers []domain.Paper) []domain.Chunk {
	chunks := make([]domain.Chunk, 0, len(papers))
	for _, p := range papers {
		for i, text := range c.windows(p.Abstract) {
			chunks = append(chunks, domain.Chunk{
				PaperID:    p.ID,
				Title:      p.Title,
				ChunkIndex: i,
				Text:       text,
			})
		}
	}
	return chunks
}

func (c *AbstractChunker) windows(text string) []string {
	if c.maxTokens <= 0 {
		return []string{text}
	}

	words := strings.Fields(text)
	if len(words) <= c.maxTokens {
		return []string{strings.Join(words, " ")}
	}

	step := c.maxTokens - c.overlap
	var out []string
	for start := 0; start < len(words); start += step {
		end := start + c.maxTokens
		if end > len(words) {
			end = len(words)
		}
		out = append(out, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return out
}
