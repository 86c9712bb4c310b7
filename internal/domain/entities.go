package domain

import (
	"strconv"
	"time"
)

type Paper struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Authors    []string  `json:"authors"`
	Abstract   string    `json:"abstract"`
	Published  time.Time `json:"published"`
	Categories []string  `json:"categories"`
}

// Chunk is a unit of paper text handed from the chunker to the embedding stage.
// ChunkIndex is unique per PaperID and gives the ordinal position in the paper.
type Chunk struct {
	PaperID    string `json:"paper_id"`
	Title      string `json:"title"`
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`
}

// EmbeddingRecord pairs a chunk with its vector. All records of one run share
// the same embedding length.
type EmbeddingRecord struct {
	PaperID    string    `json:"paper_id"`
	Title      string    `json:"title"`
	ChunkIndex int       `json:"chunk_index"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"embedding"`
}

type ChunkMetadata struct {
	PaperID    string `json:"paper_id"`
	Title      string `json:"title"`
	ChunkIndex int    `json:"chunk_index"`
}

// IndexEntry is the persisted form of a record. ID is the store's primary key.
type IndexEntry struct {
	ID        string        `json:"id"`
	Embedding []float32     `json:"embedding"`
	Metadata  ChunkMetadata `json:"metadata"`
	Document  string        `json:"document"`
}

type ScoredEntry struct {
	Entry    IndexEntry
	Distance float64
}

// Hit is a ranked retrieval result. Score is a distance: lower means more similar.
type Hit struct {
	PaperID    string  `json:"paper_id"`
	Title      string  `json:"title"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

// EntryID builds the composite primary key "<paper_id>_<chunk_index>".
func EntryID(paperID string, chunkIndex int) string {
	return paperID + "_" + strconv.Itoa(chunkIndex)
}

// NewIndexEntry converts an embedding record into its persisted form.
func NewIndexEntry(rec EmbeddingRecord) IndexEntry {
	return IndexEntry{
		ID:        EntryID(rec.PaperID, rec.ChunkIndex),
		Embedding: rec.Embedding,
		Metadata: ChunkMetadata{
			PaperID:    rec.PaperID,
			Title:      rec.Title,
			ChunkIndex: rec.ChunkIndex,
		},
		Document: rec.Text,
	}
}

func (s ScoredEntry) Hit() Hit {
	return Hit{
		PaperID:    s.Entry.Metadata.PaperID,
		Title:      s.Entry.Metadata.Title,
		ChunkIndex: s.Entry.Metadata.ChunkIndex,
		Text:       s.Entry.Document,
		Score:      s.Distance,
	}
}

type Stats struct {
	Collection string `json:"collection"`
	Entries    int    `json:"entries"`
	Dimension  int    `json:"dimension"`
	Metric     string `json:"metric"`
	Backend    string `json:"backend"`
}
