package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"papersearch/config"
	"papersearch/internal/adapter/artifact"
	"papersearch/internal/adapter/store"
	"papersearch/internal/usecase"
)

var (
	indexEmbeddings []string
	indexRebuild    bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Load embedding records into the vector index",
	Long: `Upsert embedding records into the configured collection. Entries are keyed by
"<paper_id>_<chunk_index>", so re-running with the same records is a no-op.
The collection is cleared first when the embedding model or metric changed.

Examples:
  papersearch index
  papersearch index --rebuild
  papersearch index --embeddings 'runs/**/embeddings.json'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIndex(GetConfig(), indexEmbeddings, indexRebuild, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().StringSliceVar(&indexEmbeddings, "embeddings", nil, "embedding files or ** glob patterns (default from config)")
	indexCmd.Flags().BoolVar(&indexRebuild, "rebuild", false, "clear the collection before indexing")
}

func runIndex(cfg *config.Config, patterns []string, rebuild bool, out, progress io.Writer) error {
	if len(patterns) == 0 {
		patterns = []string{cfg.Paths.Embeddings}
	}
	files, err := artifact.ExpandGlobs(GetRootDir(), patterns)
	if err != nil {
		return err
	}

	records, err := artifact.LoadRecords(files...)
	if err != nil {
		return fmt.Errorf("failed to read embeddings: %w", err)
	}

	st, err := openIndex(cfg, false)
	if err != nil {
		return err
	}
	defer st.Close()

	indexUC := usecase.NewIndexUseCase(st, store.ComputeConfigHash(cfg), logger, nil).
		WithProgress(newProgress(progress, "Indexing"))

	result, err := indexUC.Index(records, rebuild)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	stats := st.Stats()
	fmt.Fprintf(out, "\nIndexing complete:\n")
	if result.Rebuilt {
		fmt.Fprintf(out, "  Rebuilt:     yes (%s)\n", result.Reason)
	}
	fmt.Fprintf(out, "  Upserted:    %d\n", result.Upserted)
	fmt.Fprintf(out, "  Entries:     %d\n", result.Total)
	fmt.Fprintf(out, "  Collection:  %s (%s, dimension %d, metric %s)\n",
		stats.Collection, stats.Backend, stats.Dimension, stats.Metric)
	fmt.Fprintf(out, "\nIndex stored at: %s\n", config.IndexDBPath(cfg.Store.Path, cfg.Store.Backend))
	return nil
}
