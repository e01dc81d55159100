package commands

import (
	"github.com/spf13/cobra"
)

func newConfigureCommand() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "configure <solution>",
		Short: "Resolve contexts and emit the configuration artifacts",
		Long: `Resolve the selected build contexts of a solution and emit the
configuration artifact family: the pack-lock snapshot, the context index, the
context set and one build record per attempted context.

A failing context never stops the run; every remaining context is still
processed and every producible artifact is still emitted before the run
reports the failure.`,
		Example: `  # Configure every context
  smith configure demo.solution.yml

  # Configure one build type across all target types
  smith configure demo.solution.yml -c .debug

  # Reuse the persisted context set
  smith configure demo.solution.yml -S`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, cleanup, err := buildPipeline(cmd.Context(), cmd, flags.options(args[0]), flags.policyPaths)
			if err != nil {
				return err
			}
			defer cleanup()
			return p.finishRun(p.orch.Configure(cmd.Context()))
		},
	}

	addRunFlags(cmd, &flags)
	return cmd
}
