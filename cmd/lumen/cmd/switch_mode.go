package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lumenary/lumen/internal/hardware"
)

func newSwitchModeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "switch-mode MODE",
		Short: "Switch the operating mode (eco, balanced, performance)",
		Long: `Switch the pipeline to a different operating mode.

The current index is persisted, then a new embedder, chunker, and
vector index are constructed for the target mode at the same path. A
binary-quantized index converts to float (or vice versa) implicitly:
the old snapshot is simply incompatible and the new index starts
empty, to be rebuilt by re-indexing.

Example:
  lumen switch-mode eco`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := hardware.Mode(args[0])
			if !isKnownMode(mode) {
				return fmt.Errorf("unknown mode %q: must be eco, balanced, or performance", args[0])
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

			result, err := pl.SwitchMode(ctx, mode)
			if err != nil {
				return err
			}

			if result.IndexConverted {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s (index representation converted: %s -> %s)\n",
					result.Message, result.PreviousMode, result.NewMode)
			} else {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), result.Message)
			}
			return err
		},
	}
}

func isKnownMode(m hardware.Mode) bool {
	switch m {
	case hardware.ModeEco, hardware.ModeBalanced, hardware.ModePerformance:
		return true
	default:
		return false
	}
}

func newAutoModeCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "auto-mode",
		Short: "Re-detect hardware and switch mode if it no longer matches",
		Long: `Re-run hardware detection and, if the recommended mode differs
from the one currently running, switch to it.`,
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

			result, err := pl.AutoDetectMode(ctx)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "detected mode:  %s\n", result.DetectedMode)
			fmt.Fprintf(w, "current mode:   %s\n", result.CurrentMode)
			fmt.Fprintf(w, "switched:       %t\n", result.Switched)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newModeSettingsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "mode-settings",
		Short: "Show the settings table entry for the current mode",
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

			settings := pl.GetModeSettings()

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(settings)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "mode:           %s\n", settings.Mode)
			fmt.Fprintf(w, "batch size:     %d\n", settings.BatchSize)
			fmt.Fprintf(w, "embedding dim:  %d\n", settings.EmbeddingDim)
			fmt.Fprintf(w, "quantization:   %s\n", settings.Quantization)
			fmt.Fprintf(w, "max chunk size: %d\n", settings.MaxChunkSize)
			fmt.Fprintf(w, "overlap:        %d\n", settings.Overlap)
			fmt.Fprintf(w, "ram target mb:  %d\n", settings.RAMTargetMB)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
