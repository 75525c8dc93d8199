package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/bauset/internal/service/pipeline"
)

var (
	// force allows init to overwrite existing settings.
	force bool

	// initCmd writes the default settings into the source tree.
	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Write default settings to <source>/bauset.yaml.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := pipeline.Init(cmd.Context(), pipelineOptions.SourceRoot, force)
			return err
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing settings")

	rootCmd.AddCommand(initCmd)
}
