package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"papersearch/internal/metric"
	"papersearch/internal/port"
)

var (
	searchTopK        int
	searchMetricsAddr string
)

var (
	titleStyle  = color.New(color.Bold).SprintFunc()
	scoreStyle  = color.New(color.FgCyan).SprintFunc()
	promptStyle = color.New(color.FgGreen).SprintFunc()
	errorStyle  = color.New(color.FgRed).SprintFunc()
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Interactive search console",
	Long: `Read queries from the terminal and print the nearest chunks for each.
An empty line is ignored; type "exit" or "quit" to leave.

Examples:
  papersearch search
  papersearch search --metrics-addr :9090`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default from config)")
	searchCmd.Flags().StringVar(&searchMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (default from config)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	reg, m, err := metric.NewRegistry()
	if err != nil {
		return err
	}

	st, err := openIndex(cfg, true)
	if err != nil {
		return err
	}
	defer st.Close()

	retriever, err := newRetriever(cfg, st, m)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	addr := cfg.Metrics.Addr
	if searchMetricsAddr != "" {
		addr = searchMetricsAddr
	}
	if addr != "" {
		go func() {
			if err := metric.Serve(ctx, addr, reg); err != nil {
				logger.Error("Metrics server stopped", "addr", addr, "error", err)
			}
		}()
		logger.Info("Serving metrics", "addr", addr)
	}

	topK := cfg.Retrieve.TopK
	if searchTopK > 0 {
		topK = searchTopK
	}

	return console(cmd.InOrStdin(), cmd.OutOrStdout(), retriever, topK, cfg.Retrieve.SnippetChars)
}

// console runs the read-query-print loop until exit, quit or end of input.
// Retrieval errors are printed and the loop continues.
func console(in io.Reader, out io.Writer, r port.Retriever, topK, snippetChars int) error {
	fmt.Fprintln(out, "ArXiv Semantic Search")
	fmt.Fprintln(out, "Type your query (or 'exit' to quit):")
	fmt.Fprintln(out)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, promptStyle("> "))
		if !scanner.Scan() {
			break
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		switch strings.ToLower(query) {
		case "exit", "quit":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}

		hits, err := r.Retrieve(query, topK)
		if err != nil {
			fmt.Fprintf(out, "%s %v\n\n", errorStyle("Error during retrieval:"), err)
			continue
		}
		fmt.Fprintln(out)
		printHits(out, hits, snippetChars)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Goodbye!")
	return scanner.Err()
}
