package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"papersearch/internal/usecase"
)

var (
	pipelineSkipFetch bool
	pipelineRebuild   bool
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run fetch, chunk, embed and index in order",
	Long: `Run every step of the ingestion pipeline sequentially. The first failing step
stops the run and later steps are not started.

Examples:
  papersearch pipeline
  papersearch pipeline --skip-fetch   # reuse the existing metadata file`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		out, progress := cmd.OutOrStdout(), cmd.ErrOrStderr()

		var steps []usecase.Step
		if !pipelineSkipFetch {
			steps = append(steps, usecase.Step{Name: "fetch", Run: func(ctx context.Context) error {
				return runFetch(ctx, cfg, out)
			}})
		}
		steps = append(steps,
			usecase.Step{Name: "chunk", Run: func(context.Context) error {
				return runChunk(cfg, out)
			}},
			usecase.Step{Name: "embed", Run: func(context.Context) error {
				return runEmbed(cfg, nil, out, progress)
			}},
			usecase.Step{Name: "index", Run: func(context.Context) error {
				return runIndex(cfg, nil, pipelineRebuild, out, progress)
			}},
		)

		result, err := usecase.NewPipeline(logger, steps...).Run(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nAll %d steps completed successfully (run %s, %s)\n",
			len(result.Completed), result.RunID, formatDuration(result.Duration))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pipelineCmd)
	pipelineCmd.Flags().BoolVar(&pipelineSkipFetch, "skip-fetch", false, "start from the existing metadata file")
	pipelineCmd.Flags().BoolVar(&pipelineRebuild, "rebuild", false, "clear the collection before indexing")
}
