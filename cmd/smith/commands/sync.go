package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/buildsmith/buildsmith/pkg/solution"
)

func newSyncCommand() *cobra.Command {
	var (
		flags runFlags
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "sync <solution>",
		Short: "Regenerate component configuration files",
		Long: `Resolve the selected contexts and regenerate their component configuration
files, without a full emission pass.

With --watch, the solution, project and defaults files are observed and the
configuration files are regenerated on every change until interrupted.`,
		Example: `  # Regenerate configuration files once
  smith sync demo.solution.yml

  # Keep them in sync while editing
  smith sync demo.solution.yml --watch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sol, defaultsPath, err := runSyncOnce(cmd, &flags, args[0])
			if !watch || sol == nil {
				return err
			}

			tel, telErr := newTelemetry(cmd.Root().Version)
			if telErr != nil {
				return telErr
			}
			w, werr := solution.NewWatcher(tel.Logger)
			if werr != nil {
				return werr
			}
			return w.Watch(cmd.Context(), sol, defaultsPath, func(ctx context.Context) error {
				_, _, err := runSyncOnce(cmd, &flags, args[0])
				return err
			})
		},
	}

	addRunFlags(cmd, &flags)
	cmd.Flags().BoolVar(&watch, "watch", false, "watch the configuration files and resync on change")
	return cmd
}

// runSyncOnce builds a fresh pipeline and runs one sync pass. The parsed
// solution and defaults path are returned for the watcher's file set.
func runSyncOnce(cmd *cobra.Command, flags *runFlags, path string) (*solution.Solution, string, error) {
	p, cleanup, err := buildPipeline(cmd.Context(), cmd, flags.options(path), flags.policyPaths)
	if err != nil {
		return nil, "", err
	}
	defer cleanup()

	runErr := p.finishRun(p.orch.SyncConfigs(cmd.Context()))

	var defaultsPath string
	if d := p.parser.Defaults(); d != nil {
		defaultsPath = d.FilePath
	}
	return p.orch.Solution(), defaultsPath, runErr
}
