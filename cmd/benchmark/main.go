package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"papersearch/config"
	"papersearch/internal/adapter/embedding"
	"papersearch/internal/adapter/store"
	"papersearch/internal/usecase"
)

func main() {
	dir := flag.String("dir", ".", "Directory holding papersearch.yaml and the index")
	queries := flag.String("q", "", "Queries to test, separated by ';'")
	topK := flag.Int("k", 5, "Number of results")
	runs := flag.Int("n", 10, "Repetitions per query for latency")
	flag.Parse()

	if *queries == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -dir ./data -q \"graph neural networks;protein folding\"")
		fmt.Println("\nReports per query:")
		fmt.Println("  1. Retrieval latency (p50, max) including query embedding")
		fmt.Println("  2. Top-1 distance and the spread of the top-k distances")
		os.Exit(1)
	}
	if err := checkFlags(*topK, *runs); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	cfg.ResolvePaths(*dir)

	st, err := store.Open(cfg.Store, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening index: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	model, err := embedding.New(cfg.Embedding, embedding.AdapterOptions{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedder init failed: %v\n", err)
		os.Exit(1)
	}

	stats := st.Stats()
	if stats.Entries == 0 {
		fmt.Fprintln(os.Stderr, "Index is empty - run 'papersearch pipeline' first")
		os.Exit(1)
	}

	fmt.Println("RETRIEVAL BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Entries indexed: %d\n", stats.Entries)
	fmt.Printf("Model: %s (%s)\n", cfg.Embedding.Model, cfg.Embedding.Provider)
	fmt.Printf("Dimension: %d, metric: %s (lower distance = more similar)\n", stats.Dimension, stats.Metric)
	fmt.Println()

	retriever := usecase.NewRetrieveUseCase(model, st, nil, nil)

	for _, q := range strings.Split(*queries, ";") {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		fmt.Printf("Query: %q\n", q)
		fmt.Println(strings.Repeat("-", 70))

		var latencies []time.Duration
		var last []float64
		for i := 0; i < *runs; i++ {
			start := time.Now()
			hits, err := retriever.Retrieve(q, *topK)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
				os.Exit(1)
			}
			latencies = append(latencies, time.Since(start))
			last = last[:0]
			for _, h := range hits {
				last = append(last, h.Score)
			}
			if i == 0 {
				for j, h := range hits {
					fmt.Printf("%d. [%.4f] %s\n", j+1, h.Score, h.Title)
				}
			}
		}

		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		fmt.Printf("\n  Latency p50: %s  max: %s\n", latencies[len(latencies)/2], latencies[len(latencies)-1])
		if len(last) > 0 {
			fmt.Printf("  Top-1 distance: %.4f  spread: %.4f\n\n", last[0], last[len(last)-1]-last[0])
		}
	}
}

func checkFlags(topK, runs int) error {
	if topK <= 0 {
		return fmt.Errorf("-k must be positive, got %d", topK)
	}
	if runs <= 0 {
		return fmt.Errorf("-n must be positive, got %d", runs)
	}
	return nil
}
