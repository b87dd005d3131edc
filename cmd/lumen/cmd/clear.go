package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newClearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all indexed data",
		Long:  `Delete every chunk from the vector index and metadata store, leaving an empty index in place.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear without --yes")
			}

			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pl, err := openPipeline(ctx, cfg)
			if err != nil {
				return err
			}

			if err := pl.ClearAll(ctx); err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), "index cleared")
			return err
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the destructive clear operation")
	return cmd
}
