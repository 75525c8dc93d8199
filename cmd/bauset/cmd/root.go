package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/oshokin/bauset/internal/logger"
	"github.com/oshokin/bauset/internal/service/pipeline"
	"github.com/oshokin/bauset/internal/version"
)

var (
	// pipelineOptions collects the flags shared by the root and watch commands.
	pipelineOptions pipeline.Options
	// recursive is copied into pipelineOptions only when the flag is set explicitly.
	recursive bool

	// rootCmd represents the base command that stages and packages a source tree.
	rootCmd = &cobra.Command{
		Use:   "bauset",
		Short: "Stage, package and optionally install an npm package.",
		Long: `Stage a source tree into a clean directory and build an npm package from it.

Reads name and version from PROJECT.txt, renders var/in.package.json into the
staging directory, copies the package assets, runs "npm pack" and moves the
result into ./pkg next to a <name>-latest alias. The package can then be
installed locally or globally and its test/test.js run.

Settings are read from --config, <source>/bauset.yaml, the user config
directory, or built-in defaults, in that order.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return pipeline.Run(ctx, resolveOptions(ctx, cmd))
		},
	}
)

// Execute runs the bauset CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.ErrorKV(context.Background(), "Command failed", "error", err)
		os.Exit(1)
	}
}

// resolveOptions finalizes the shared flags and logs program info in verbose mode.
func resolveOptions(ctx context.Context, cmd *cobra.Command) *pipeline.Options {
	opts := pipelineOptions

	if cmd.Flags().Changed("recursive") {
		opts.Recursive = &recursive
	}

	if opts.Verbose {
		logger.SetLevel(zapcore.DebugLevel)
		logger.DebugKV(ctx, "Program info", "version", version.Full(), "args", os.Args)
	}

	return &opts
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.PersistentFlags()

	flags.StringVarP(&pipelineOptions.ConfigPath, "config", "c", "", "path to settings file")
	flags.StringVarP(&pipelineOptions.SourceRoot, "source", "s", "", "source directory (default: current directory)")
	flags.StringVarP(&pipelineOptions.DestRoot, "dest", "o", "", "staging directory (default: <source>/dist)")
	flags.BoolVarP(&pipelineOptions.Install, "install", "i", false, "install the package after building it")
	flags.BoolVarP(&pipelineOptions.Global, "global", "g", false, "install the package globally")
	flags.BoolVarP(&pipelineOptions.Test, "test", "t", false, "run test/test.js after install")
	flags.BoolVarP(&recursive, "recursive", "r", true, "copy asset subdirectories")
	flags.BoolVarP(&pipelineOptions.Docs, "docs", "d", false, "render Markdown documentation into <source>/dox")
	flags.BoolVarP(&pipelineOptions.Verbose, "verbose", "V", false, "enable debug logging")
	flags.BoolVarP(&pipelineOptions.Quiet, "quiet", "q", false, "hide progress output")
	flags.StringVar(&pipelineOptions.MetricsFile, "metrics-file", "", "write run metrics in Prometheus text format to this file")

	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
}
