package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"papersearch/config"
)

var (
	cfgFile  string
	cfg      *config.Config
	rootDir  string
	logLevel string
	logger   = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "papersearch",
	Short: "Semantic search over arXiv paper abstracts",
	Long: `papersearch fetches arXiv metadata, splits abstracts into chunks, embeds them
and stores the vectors in a local index that answers natural-language queries.

Scores are distances: lower means more similar.

Example usage:
  papersearch pipeline                    # fetch, chunk, embed and index
  papersearch query -q "graph neural nets" # one-shot search
  papersearch search                       # interactive console`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}
		// artifact patterns are matched under rootDir after the config paths
		// were resolved against it, so it must not stay relative
		rootDir, err = filepath.Abs(rootDir)
		if err != nil {
			return fmt.Errorf("failed to resolve --dir: %w", err)
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg.ResolvePaths(rootDir)

		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		logger = setupLogger(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./papersearch.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "working directory for artifacts and the index (default is current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}
