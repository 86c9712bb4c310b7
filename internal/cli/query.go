package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"papersearch/internal/domain"
)

var (
	queryText string
	queryTopK int
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search the index once",
	Long: `Embed a query with the indexing model and print the nearest chunks.
Scores are distances: lower means more similar.

Examples:
  papersearch query -q "graph neural networks"
  papersearch query -q "protein folding" -k 10 --json`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.MarkFlagRequired("query")
}

// queryOutput is the --json document.
type queryOutput struct {
	Query  string       `json:"query"`
	Metric string       `json:"metric"`
	Score  string       `json:"score"`
	Hits   []domain.Hit `json:"hits"`
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	st, err := openIndex(cfg, true)
	if err != nil {
		return err
	}
	defer st.Close()

	retriever, err := newRetriever(cfg, st, nil)
	if err != nil {
		return err
	}

	topK := cfg.Retrieve.TopK
	if queryTopK > 0 {
		topK = queryTopK
	}

	hits, err := retriever.Retrieve(queryText, topK)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if queryJSON {
		data, err := json.MarshalIndent(queryOutput{
			Query:  queryText,
			Metric: st.Stats().Metric,
			Score:  "distance, lower is more similar",
			Hits:   hits,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	printHits(out, hits, cfg.Retrieve.SnippetChars)
	return nil
}

func printHits(out io.Writer, hits []domain.Hit, snippetChars int) {
	if len(hits) == 0 {
		fmt.Fprintln(out, "No results found.")
		return
	}
	fmt.Fprintf(out, "Top %d results (score = distance, lower is more similar):\n\n", len(hits))
	for i, h := range hits {
		fmt.Fprintf(out, "%d. %s (ID: %s, chunk %d)\n", i+1, titleStyle(h.Title), h.PaperID, h.ChunkIndex)
		fmt.Fprintf(out, "   Score:     %s\n", scoreStyle(fmt.Sprintf("%.4f", h.Score)))
		fmt.Fprintf(out, "   Snippet:   %s\n\n", snippet(h.Text, snippetChars))
	}
}
