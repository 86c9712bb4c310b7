package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"papersearch/config"
	"papersearch/internal/adapter/arxiv"
	"papersearch/internal/adapter/artifact"
)

var (
	fetchMaxResults int
	fetchCategories []string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download recent paper metadata from arXiv",
	Long: `Fetch the most recently submitted papers in the configured arXiv categories
and write them to the metadata file (default metadata.json).

Examples:
  papersearch fetch
  papersearch fetch --categories cs.CL,cs.LG --max-results 50`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if len(fetchCategories) > 0 {
			cfg.Fetch.Categories = fetchCategories
		}
		if fetchMaxResults > 0 {
			cfg.Fetch.MaxResults = fetchMaxResults
		}
		return runFetch(cmd.Context(), cfg, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().IntVarP(&fetchMaxResults, "max-results", "n", 0, "number of papers to fetch (default from config)")
	fetchCmd.Flags().StringSliceVar(&fetchCategories, "categories", nil, "arXiv categories (default from config)")
}

func runFetch(ctx context.Context, cfg *config.Config, out io.Writer) error {
	client := arxiv.NewClient(arxiv.Options{
		BaseURL:   cfg.Fetch.BaseURL,
		PageSize:  cfg.Fetch.PageSize,
		PageDelay: cfg.Fetch.PageDelay,
		Timeout:   cfg.Fetch.Timeout,
		Logger:    logger,
	})

	papers, err := client.Fetch(ctx, cfg.Fetch.Categories, cfg.Fetch.MaxResults)
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}
	if err := artifact.SavePapers(cfg.Paths.Metadata, papers); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	fmt.Fprintf(out, "Fetched metadata for %d papers from categories %v into %s\n",
		len(papers), cfg.Fetch.Categories, cfg.Paths.Metadata)
	return nil
}
