package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the pipeline's current operating state",
		Long:  `Display the current mode, OOM protection status, and index size.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pl, err := openPipeline(ctx, cfg)
			if err != nil {
				return err
			}

			stats := pl.Stats()

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "mode:            %s\n", stats.Mode)
			fmt.Fprintf(w, "auto-detected:   %t\n", stats.AutoDetected)
			fmt.Fprintf(w, "mode switched:   %t\n", stats.ModeSwitched)
			fmt.Fprintf(w, "oom protection:  %t\n", stats.OOMProtection)
			fmt.Fprintf(w, "using binary:    %t\n", stats.UsingBinary)
			fmt.Fprintf(w, "embedder model:  %s\n", stats.EmbedderModel)
			fmt.Fprintf(w, "files indexed:   %d\n", stats.FilesIndexed)
			fmt.Fprintf(w, "chunks indexed:  %d\n", stats.ChunksIndexed)
			fmt.Fprintf(w, "index total:     %d\n", stats.IndexNTotal)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
