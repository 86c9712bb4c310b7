//go:build js && wasm

package main

import (
	"encoding/json"
	"syscall/js"

	"papersearch/internal/adapter/chunker"
	"papersearch/internal/adapter/embedding"
	"papersearch/internal/adapter/memstore"
	"papersearch/internal/adapter/store"
	"papersearch/internal/domain"
	"papersearch/internal/usecase"
)

const dimension = 256

var (
	index     *memstore.MemoryStore
	model     *embedding.Adapter
	chk       *chunker.AbstractChunker
	retriever *usecase.RetrieveUseCase
)

func init() {
	model = embedding.NewAdapter(embedding.NewHashEmbedder(dimension), embedding.AdapterOptions{BatchSize: 64})
	chk = chunker.NewAbstractChunker(0, 0)
	reset()
}

func reset() {
	index = memstore.NewMemoryStore(store.Cosine)
	retriever = usecase.NewRetrieveUseCase(model, index, nil, nil)
}

func main() {
	c := make(chan struct{})

	js.Global().Set("papersearchIndex", js.FuncOf(indexPapers))
	js.Global().Set("papersearchQuery", js.FuncOf(queryPapers))
	js.Global().Set("papersearchClear", js.FuncOf(clearIndex))
	js.Global().Set("papersearchStats", js.FuncOf(getStats))

	<-c
}

// indexPapers takes a JSON array of papers in metadata.json format.
func indexPapers(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("usage: papersearchIndex(papersJSON)")
	}

	var papers []domain.Paper
	if err := json.Unmarshal([]byte(args[0].String()), &papers); err != nil {
		return makeError("invalid papers JSON: " + err.Error())
	}

	records, err := usecase.NewProducer(model, 64, nil).Produce(chk.Chunk(papers))
	if err != nil {
		return makeError("embedding failed: " + err.Error())
	}

	entries := make([]domain.IndexEntry, len(records))
	for i, rec := range records {
		entries[i] = domain.NewIndexEntry(rec)
	}
	if err := index.Upsert(entries); err != nil {
		return makeError("indexing failed: " + err.Error())
	}

	return makeResult(map[string]interface{}{
		"success": true,
		"chunks":  len(entries),
	})
}

func queryPapers(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("usage: papersearchQuery(query, [topK])")
	}

	query := args[0].String()
	topK := 5
	if len(args) > 1 {
		topK = args[1].Int()
	}

	hits, err := retriever.Retrieve(query, topK)
	if err != nil {
		return makeError(err.Error())
	}

	return makeResult(map[string]interface{}{
		"query": query,
		"score": "distance, lower is more similar",
		"hits":  hits,
	})
}

func clearIndex(this js.Value, args []js.Value) interface{} {
	reset()
	return makeResult(map[string]interface{}{
		"success": true,
	})
}

func getStats(this js.Value, args []js.Value) interface{} {
	n, _ := index.Count()
	return makeResult(map[string]interface{}{
		"entries":   n,
		"dimension": index.Dimension(),
		"metric":    string(store.Cosine),
		"model":     model.ModelName(),
	})
}

func makeError(msg string) interface{} {
	result, _ := json.Marshal(map[string]interface{}{
		"error": msg,
	})
	return string(result)
}

func makeResult(data map[string]interface{}) interface{} {
	result, _ := json.Marshal(data)
	return string(result)
}
