package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"papersearch/internal/adapter/store"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		st, err := openIndex(cfg, true)
		if err != nil {
			return err
		}
		defer st.Close()

		stats := st.Stats()
		info, err := st.SchemaInfo()
		if err != nil {
			return err
		}
		current := info.ConfigHash == store.ComputeConfigHash(cfg)

		out := cmd.OutOrStdout()
		if statsJSON {
			data, err := json.MarshalIndent(struct {
				Stats         any    `json:"stats"`
				SchemaVersion int    `json:"schema_version"`
				ConfigHash    string `json:"config_hash"`
				ConfigCurrent bool   `json:"config_current"`
			}{stats, info.Version, info.ConfigHash, current}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(data))
			return nil
		}

		fmt.Fprintf(out, "Collection:      %s\n", stats.Collection)
		fmt.Fprintf(out, "Backend:         %s\n", stats.Backend)
		fmt.Fprintf(out, "Entries:         %d\n", stats.Entries)
		fmt.Fprintf(out, "Dimension:       %d\n", stats.Dimension)
		fmt.Fprintf(out, "Metric:          %s\n", stats.Metric)
		fmt.Fprintf(out, "Schema version:  %d\n", info.Version)
		if current {
			fmt.Fprintf(out, "Embedding config: matches (%s)\n", info.ConfigHash)
		} else {
			fmt.Fprintf(out, "Embedding config: differs from index (%s), re-run 'papersearch index'\n", info.ConfigHash)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output as JSON")
}
