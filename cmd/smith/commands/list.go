package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/buildsmith/buildsmith/pkg/packs"
)

// listFilter is the shared substring filter of the list subcommands.
var listFilter string

func matchesFilter(s string) bool {
	return listFilter == "" || strings.Contains(s, listFilter)
}

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List contexts, catalog contents and resolved dependencies",
	}
	cmd.PersistentFlags().StringVarP(&listFilter, "filter", "f", "", "only list entries containing this substring")

	cmd.AddCommand(newListContextsCommand())
	cmd.AddCommand(newListPacksCommand())
	cmd.AddCommand(newListDevicesCommand())
	cmd.AddCommand(newListBoardsCommand())
	cmd.AddCommand(newListComponentsCommand())
	cmd.AddCommand(newListToolchainsCommand())
	cmd.AddCommand(newListConfigsCommand())
	cmd.AddCommand(newListDependenciesCommand())
	cmd.AddCommand(newListEnvironmentCommand())

	return cmd
}

func newListContextsCommand() *cobra.Command {
	var (
		flags     runFlags
		declOrder bool
	)

	cmd := &cobra.Command{
		Use:   "contexts <solution>",
		Short: "List the contexts derived from a solution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, cleanup, err := buildPipeline(cmd.Context(), cmd, flags.options(args[0]), nil)
			if err != nil {
				return err
			}
			defer cleanup()

			reg, err := p.orch.Discover(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range reg.OrderedNames(declOrder) {
				if matchesFilter(name) {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
			}
			return nil
		},
	}

	addRunFlags(cmd, &flags)
	cmd.Flags().BoolVar(&declOrder, "decl-order", false, "list in declaration order instead of sorted")
	return cmd
}

func newListPacksCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "packs",
		Short: "List the packs in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, catalog, cleanup, err := openCatalog(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			list, err := catalog.ListPacks(cmd.Context())
			if err != nil {
				return err
			}
			for _, p := range list {
				if matchesFilter(p.ID()) {
					fmt.Fprintln(cmd.OutOrStdout(), p.ID())
				}
			}
			return nil
		},
	}
}

func newListDevicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List the devices in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, catalog, cleanup, err := openCatalog(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			list, err := catalog.ListDevices(cmd.Context())
			if err != nil {
				return err
			}
			for _, d := range list {
				if matchesFilter(d.Name) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", d.Name, d.PackID)
				}
			}
			return nil
		},
	}
}

func newListBoardsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "boards",
		Short: "List the boards in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, catalog, cleanup, err := openCatalog(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			list, err := catalog.ListBoards(cmd.Context())
			if err != nil {
				return err
			}
			for _, b := range list {
				if matchesFilter(b.Name) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", b.Name, b.PackID)
				}
			}
			return nil
		},
	}
}

func newListComponentsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "components",
		Short: "List the components in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, catalog, cleanup, err := openCatalog(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			list, err := catalog.ListComponents(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range list {
				if matchesFilter(c.ID()) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s@%s (%s)\n", c.ID(), c.Version, c.PackID)
				}
			}
			return nil
		},
	}
}

func newListToolchainsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "toolchains",
		Short: "List the registered toolchains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, catalog, cleanup, err := openCatalog(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			list, err := catalog.ListToolchains(cmd.Context())
			if err != nil {
				return err
			}
			for _, tc := range list {
				if !matchesFilter(tc.ID()) {
					continue
				}
				if tc.Root != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", tc.ID(), tc.Root)
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), tc.ID())
			}
			return nil
		},
	}
}

func newListConfigsCommand() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "configs <solution>",
		Short: "List the configuration files of the selected contexts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := flags.options(args[0])
			opts.DryRun = true

			p, cleanup, err := buildPipeline(cmd.Context(), cmd, opts, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := p.orch.SyncConfigs(cmd.Context()); err != nil {
				return &ExitError{Code: 1, Err: err}
			}
			for _, bc := range p.orch.State().Attempted {
				if bc.Failed() {
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s:\n", bc.Name)
				for _, c := range bc.Components {
					for _, file := range c.ConfigFiles {
						fmt.Fprintf(cmd.OutOrStdout(), "  %s (%s)\n", file, c.ID())
					}
				}
				if bc.Active != nil {
					paths, err := bc.Active.SyncConfigFiles(cmd.Context(), true)
					if err != nil {
						return err
					}
					for _, path := range paths {
						fmt.Fprintf(cmd.OutOrStdout(), "  %s (generated)\n", path)
					}
				}
			}
			return nil
		},
	}

	addRunFlags(cmd, &flags)
	return cmd
}

func newListDependenciesCommand() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "dependencies <solution>",
		Short: "List the resolved packs and components of the selected contexts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := flags.options(args[0])
			opts.DryRun = true

			p, cleanup, err := buildPipeline(cmd.Context(), cmd, opts, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := p.orch.SyncConfigs(cmd.Context()); err != nil {
				return &ExitError{Code: 1, Err: err}
			}
			for _, bc := range p.orch.State().Attempted {
				if bc.Failed() {
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s:\n", bc.Name)
				for _, pk := range bc.Packs {
					fmt.Fprintf(cmd.OutOrStdout(), "  pack %s\n", pk.ID())
				}
				for _, c := range bc.Components {
					fmt.Fprintf(cmd.OutOrStdout(), "  component %s (%s)\n", c.ID(), c.PackID)
				}
			}
			return nil
		},
	}

	addRunFlags(cmd, &flags)
	return cmd
}

func newListEnvironmentCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "environment",
		Short: "Show the pack root and catalog locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := packs.Root()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pack-root: %s\n", root)
			fmt.Fprintf(cmd.OutOrStdout(), "pack-index: %s\n", packs.IndexPath(root))
			fmt.Fprintf(cmd.OutOrStdout(), "catalog: %s\n", packs.CatalogPath(root))
			if compilerRoot := os.Getenv("SMITH_COMPILER_ROOT"); compilerRoot != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "compiler-root: %s\n", compilerRoot)
			}
			return nil
		},
	}
}
