package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"papersearch/config"
	"papersearch/internal/adapter/artifact"
	"papersearch/internal/adapter/chunker"
)

var chunkCmd = &cobra.Command{
	Use:   "chunk",
	Short: "Split paper abstracts into chunks",
	Long: `Read the metadata file and write one chunk per abstract, or token windows when
chunk.max_tokens is set, to the chunks file (default chunks.json).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChunk(GetConfig(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(chunkCmd)
}

func runChunk(cfg *config.Config, out io.Writer) error {
	papers, err := artifact.LoadPapers(cfg.Paths.Metadata)
	if err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}

	chunks := chunker.NewAbstractChunker(cfg.Chunk.MaxTokens, cfg.Chunk.Overlap).Chunk(papers)
	if err := artifact.SaveChunks(cfg.Paths.Chunks, chunks); err != nil {
		return fmt.Errorf("failed to write chunks: %w", err)
	}

	fmt.Fprintf(out, "Generated %d chunks from %d papers into %s\n", len(chunks), len(papers), cfg.Paths.Chunks)
	return nil
}
