package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/bauset/internal/service/pipeline"
)

// watchCmd rebuilds the package whenever the source tree changes.
//
//nolint:gochecknoglobals // Cobra commands are package-level by convention.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rebuild the package on every change of the source tree.",
	Long: `Run the pipeline once, then watch the source tree and run it again after
changes settle. The staging, output and documentation directories and
dot-entries are not watched. A failed run is logged and watching continues.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		return pipeline.Watch(ctx, resolveOptions(ctx, cmd))
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(watchCmd)
}
