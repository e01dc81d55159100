package commands

import (
	"github.com/spf13/cobra"
)

func newConvertCommand() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "convert <solution>",
		Short: "Resolve contexts and emit all artifacts including legacy exports",
		Long: `Run the configure pipeline and additionally emit the legacy single-file
project export for every successfully resolved context.

With --export, a suffix-qualified export variant without pinned pack versions
is written alongside each export.`,
		Example: `  # Convert every context
  smith convert demo.solution.yml

  # Convert one context with an unpinned export variant
  smith convert demo.solution.yml -c app.debug+board -e .open`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, cleanup, err := buildPipeline(cmd.Context(), cmd, flags.options(args[0]), flags.policyPaths)
			if err != nil {
				return err
			}
			defer cleanup()
			return p.finishRun(p.orch.Convert(cmd.Context()))
		},
	}

	addRunFlags(cmd, &flags)
	cmd.Flags().StringVarP(&flags.exportSuffix, "export", "e", "", "suffix for the additional unpinned export variant")
	return cmd
}
