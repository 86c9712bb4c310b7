package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"papersearch/config"
	"papersearch/internal/adapter/artifact"
	"papersearch/internal/usecase"
)

var embedChunks []string

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Compute embeddings for chunks",
	Long: `Embed every chunk with the configured model and write the records to the
embeddings file (default embeddings.json). The run is all-or-nothing: a malformed
chunk or a model failure writes nothing.

Examples:
  papersearch embed
  papersearch embed --chunks 'shards/**/*.json'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEmbed(GetConfig(), embedChunks, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.AddCommand(embedCmd)
	embedCmd.Flags().StringSliceVar(&embedChunks, "chunks", nil, "chunk files or ** glob patterns (default from config)")
}

func runEmbed(cfg *config.Config, patterns []string, out, progress io.Writer) error {
	if len(patterns) == 0 {
		patterns = []string{cfg.Paths.Chunks}
	}
	files, err := artifact.ExpandGlobs(GetRootDir(), patterns)
	if err != nil {
		return err
	}

	chunks, err := artifact.LoadChunks(files...)
	if err != nil {
		return fmt.Errorf("failed to read chunks: %w", err)
	}

	model, err := newEmbedder(cfg, nil)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Embedding %d chunks with %s/%s (dimension %d)\n",
		len(chunks), cfg.Embedding.Provider, model.ModelName(), model.Dimension())

	producer := usecase.NewProducer(model, cfg.Embedding.BatchSize, logger).
		WithProgress(newProgress(progress, "Embedding"))
	records, err := producer.Produce(chunks)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}

	if err := artifact.SaveRecords(cfg.Paths.Embeddings, records); err != nil {
		return fmt.Errorf("failed to write embeddings: %w", err)
	}

	fmt.Fprintf(out, "Generated embeddings for %d chunks into %s\n", len(records), cfg.Paths.Embeddings)
	return nil
}
