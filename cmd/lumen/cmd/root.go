// Package cmd provides the CLI commands for lumen.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lumenary/lumen/internal/config"
	"github.com/lumenary/lumen/internal/embed"
	"github.com/lumenary/lumen/internal/hardware"
	"github.com/lumenary/lumen/internal/logging"
	"github.com/lumenary/lumen/internal/pipeline"
	"github.com/lumenary/lumen/internal/profiling"
	"github.com/lumenary/lumen/pkg/version"
)

// Profiling flags, mirroring the teacher's F23 profiling hooks.
var (
	profileCPU   string
	profileMem   string
	profileTrace string
	profiler     = profiling.NewProfiler()
	cpuCleanup   func()
	traceCleanup func()
)

// Debug logging flag.
var (
	debugMode      bool
	loggingCleanup func()
)

// cacheDirFlag overrides config.Config.CacheDir for this invocation.
var cacheDirFlag string

// embedBackendFlag overrides config.Config.Embed.Backend for this invocation.
var embedBackendFlag string

// NewRootCmd creates the root command for the lumen CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lumen",
		Short: "On-device hybrid document search engine",
		Long: `lumen indexes documents into a local vector + full-text index and
serves hybrid dense/BM25 search entirely on-device, with zero external
services required.`,
		Version: version.Version,
	}

	cmd.SetVersionTemplate("lumen version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&cacheDirFlag, "cache-dir", "", "Override the index cache directory")
	cmd.PersistentFlags().StringVar(&embedBackendFlag, "embed-backend", "", "Override the embedding backend (onnx, static)")
	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileTrace, "profile-trace", "", "Write execution trace to file")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.lumen/logs/")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newSwitchModeCmd())
	cmd.AddCommand(newAutoModeCmd())
	cmd.AddCommand(newModeSettingsCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newClearCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	var err error

	if debugMode {
		logger, cleanup, err := logging.Setup(logging.DebugConfig())
		if err != nil {
			return fmt.Errorf("failed to setup debug logging: %w", err)
		}
		loggingCleanup = cleanup
		slog.SetDefault(logger)
		slog.Info("debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))
	}

	if profileCPU != "" {
		cpuCleanup, err = profiler.StartCPU(profileCPU)
		if err != nil {
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
	}

	if profileTrace != "" {
		traceCleanup, err = profiler.StartTrace(profileTrace)
		if err != nil {
			if cpuCleanup != nil {
				cpuCleanup()
			}
			return fmt.Errorf("failed to start trace: %w", err)
		}
	}

	return nil
}

func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	if cpuCleanup != nil {
		cpuCleanup()
		cpuCleanup = nil
	}
	if traceCleanup != nil {
		traceCleanup()
		traceCleanup = nil
	}
	if profileMem != "" {
		if err := profiler.WriteHeap(profileMem); err != nil {
			return fmt.Errorf("failed to write memory profile: %w", err)
		}
	}
	if loggingCleanup != nil {
		slog.Info("debug logging stopped")
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// loadConfig resolves the effective configuration for the current directory,
// applying --cache-dir last so it always wins over file and env sources.
func loadConfig() (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to determine working directory: %w", err)
	}
	cfg, err := config.Load(cwd)
	if err != nil {
		return nil, err
	}
	if cacheDirFlag != "" {
		cfg.CacheDir = cacheDirFlag
	}
	if embedBackendFlag != "" {
		cfg.Embed.Backend = embedBackendFlag
	}
	return cfg, nil
}

// openPipeline resolves configuration and opens the process-wide pipeline
// singleton over it. Subcommands share one Pipeline per process so repeated
// invocations within a daemonized or scripted session reuse the same lock.
func openPipeline(ctx context.Context, cfg *config.Config) (*pipeline.Pipeline, error) {
	backend := embed.Backend(cfg.Embed.Backend)
	if embedBackendFlag == "" && backend == embed.BackendONNX {
		// A configured "onnx" is not an explicit request: leaving it unset
		// lets the factory fall back to static when no model is available.
		backend = ""
	}
	return pipeline.Global(ctx, pipeline.ProcessorConfig{
		Mode:          hardware.Mode(cfg.Mode),
		CacheDir:      cfg.CacheDir,
		EmbedBackend:  backend,
		ModelPath:     cfg.Embed.ModelPath,
		TokenizerPath: cfg.Embed.TokenizerPath,
	})
}
