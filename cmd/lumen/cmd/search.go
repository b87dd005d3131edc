package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lumenary/lumen/internal/output"
	"github.com/lumenary/lumen/internal/pipeline"
)

func newSearchCmd() *cobra.Command {
	var k int
	var hybrid bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search the index",
		Long: `Search the index for chunks relevant to QUERY.

By default this searches the dense vector index only. Pass --hybrid to
additionally score matches with SQLite FTS5 BM25 and combine both
rankings by reciprocal rank fusion.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pl, err := openPipeline(ctx, cfg)
			if err != nil {
				return err
			}

			results, err := runSearch(ctx, pl, args[0], k, hybrid)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			return printSearchResults(cmd, results)
		},
	}

	cmd.Flags().IntVar(&k, "k", 10, "Number of results to return")
	cmd.Flags().BoolVar(&hybrid, "hybrid", false, "Combine dense search with BM25 via reciprocal rank fusion")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	return cmd
}

func runSearch(ctx context.Context, pl *pipeline.Pipeline, query string, k int, hybrid bool) ([]pipeline.SearchResult, error) {
	if hybrid {
		return pl.SearchHybrid(ctx, query, k)
	}
	return pl.Search(ctx, query, k)
}

func printSearchResults(cmd *cobra.Command, results []pipeline.SearchResult) error {
	if len(results) == 0 {
		output.New(cmd.OutOrStdout()).Warning("no results")
		return nil
	}
	w := cmd.OutOrStdout()
	for i, r := range results {
		if _, err := fmt.Fprintf(w, "%d. %s:%d (distance=%.4f)\n", i+1, r.FilePath, r.ChunkIndex, r.Distance); err != nil {
			return err
		}
		if r.Symbols != "" {
			if _, err := fmt.Fprintf(w, "   symbols: %s\n", r.Symbols); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "   %s\n", truncate(r.Text, 200)); err != nil {
			return err
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
