package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lumenary/lumen/internal/output"
)

func newIndexCmd() *cobra.Command {
	var recursive bool
	var extensions []string

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index a file or directory",
		Long: `Index a file or directory into the local vector + metadata store.

Files are hashed, skipped if already indexed, chunked, embedded, and
inserted into both the vector index and the metadata database.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			path := "."
			if len(args) > 0 {
				path = args[0]
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pl, err := openPipeline(ctx, cfg)
			if err != nil {
				return err
			}

			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("failed to stat %s: %w", path, err)
			}

			w := output.New(cmd.OutOrStdout())

			if !info.IsDir() {
				result, err := pl.IndexFile(ctx, path)
				if err != nil {
					w.Errorf("indexing failed: %v", err)
					return err
				}
				if result.Success {
					w.Success(result.String())
				} else {
					w.Warning(result.String())
				}
				return nil
			}

			result, err := pl.IndexDirectory(ctx, path, recursive, extensions)
			if err != nil {
				w.Errorf("indexing failed: %v", err)
				return err
			}
			if result.Success {
				w.Success(result.String())
			} else {
				w.Warning(result.String())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&recursive, "recursive", true, "Descend into subdirectories")
	cmd.Flags().StringSliceVar(&extensions, "ext", nil, "Restrict to these extensions (default: all supported)")

	return cmd
}
