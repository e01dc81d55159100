package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/buildsmith/buildsmith/pkg/emitter"
	"github.com/buildsmith/buildsmith/pkg/engine"
	"github.com/buildsmith/buildsmith/pkg/fsutil"
	"github.com/buildsmith/buildsmith/pkg/packs"
	"github.com/buildsmith/buildsmith/pkg/policy"
	"github.com/buildsmith/buildsmith/pkg/resolver"
	"github.com/buildsmith/buildsmith/pkg/solution"
	"github.com/buildsmith/buildsmith/pkg/telemetry"
)

// runFlags are the flags shared by the configure, convert and sync commands.
type runFlags struct {
	contexts      []string
	useContextSet bool
	loadPolicy    string
	toolchain     string
	outputDir     string
	exportSuffix  string
	noCheckSchema bool
	noSyncConfigs bool
	frozenPacks   bool
	enforcePolicy bool
	dryRun        bool
	policyPaths   []string
}

func addRunFlags(cmd *cobra.Command, f *runFlags) {
	cmd.Flags().StringArrayVarP(&f.contexts, "context", "c", nil, "context selection pattern [project][.build-type][+target-type]")
	cmd.Flags().BoolVarP(&f.useContextSet, "context-set", "S", false, "use the persisted context set when no contexts are given")
	cmd.Flags().StringVarP(&f.loadPolicy, "load", "l", "", "pack load policy (default, latest, all, required)")
	cmd.Flags().StringVarP(&f.toolchain, "toolchain", "t", "", "explicit toolchain in name[@version] form")
	cmd.Flags().StringVarP(&f.outputDir, "output", "o", "", "override the solution's output directory")
	cmd.Flags().BoolVarP(&f.noCheckSchema, "no-check-schema", "n", false, "skip schema validation of input files")
	cmd.Flags().BoolVarP(&f.noSyncConfigs, "no-sync-configs", "N", false, "skip configuration-file updates during emission")
	cmd.Flags().BoolVar(&f.frozenPacks, "frozen-packs", false, "fail if the pack snapshot differs from the committed lock")
	cmd.Flags().BoolVar(&f.enforcePolicy, "enforce-policy", false, "treat pack policy violations as failures")
	cmd.Flags().BoolVarP(&f.dryRun, "dry-run", "D", false, "perform every check without writing files")
	cmd.Flags().StringArrayVar(&f.policyPaths, "policy", nil, "additional policy file or directory")
}

func (f *runFlags) options(solutionPath string) engine.Options {
	return engine.Options{
		SolutionPath:    solutionPath,
		ContextPatterns: f.contexts,
		UseContextSet:   f.useContextSet,
		LoadPolicy:      f.loadPolicy,
		Toolchain:       f.toolchain,
		ExportSuffix:    f.exportSuffix,
		OutputDir:       f.outputDir,
		CheckSchema:     !f.noCheckSchema,
		SyncConfigs:     !f.noSyncConfigs,
		FrozenPacks:     f.frozenPacks,
		EnforcePolicy:   f.enforcePolicy,
		DryRun:          f.dryRun,
		Verbose:         verbose,
	}
}

// pipeline holds the wired collaborators of one CLI invocation.
type pipeline struct {
	tel     *telemetry.Telemetry
	catalog *packs.Catalog
	parser  *solution.Parser
	orch    *engine.Orchestrator
}

// buildPipeline wires telemetry, the pack catalog, the resolver, the policy
// engine and the emitter into an orchestrator. The returned cleanup closes the
// catalog and flushes telemetry.
func buildPipeline(ctx context.Context, cmd *cobra.Command, opts engine.Options, policyPaths []string) (*pipeline, func(), error) {
	tel, catalog, cleanup, err := openCatalog(ctx, cmd)
	if err != nil {
		return nil, nil, err
	}

	parser := solution.NewParser()
	res := resolver.NewEngine(catalog, parser.Defaults, tel)

	pol, err := policy.NewEngine(tel)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if len(policyPaths) > 0 {
		if err := pol.LoadPolicies(ctx, policyPaths); err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	emit := emitter.New(tel)
	orch := engine.NewOrchestrator(opts, engine.Dependencies{
		Parser:    parser,
		Resolver:  res,
		Emitter:   emit,
		Selection: emit,
		Policy:    pol,
		Telemetry: tel,
	})

	return &pipeline{tel: tel, catalog: catalog, parser: parser, orch: orch}, cleanup, nil
}

// openCatalog opens the pack catalog under the pack root, migrating the schema
// and syncing the pack index into it when one exists.
func openCatalog(ctx context.Context, cmd *cobra.Command) (*telemetry.Telemetry, *packs.Catalog, func(), error) {
	tel, err := newTelemetry(cmd.Root().Version)
	if err != nil {
		return nil, nil, nil, err
	}
	log := tel.Logger.NewComponentLogger("cli")

	root, err := packs.Root()
	if err != nil {
		return nil, nil, nil, err
	}
	if err := fsutil.EnsureDir(root); err != nil {
		return nil, nil, nil, err
	}

	catalog, err := packs.NewCatalog(packs.Config{Path: packs.CatalogPath(root)})
	if err != nil {
		return nil, nil, nil, err
	}
	if err := catalog.Init(ctx); err != nil {
		return nil, nil, nil, err
	}
	cleanup := func() {
		if err := catalog.Close(); err != nil {
			log.WithError(err).Warn("failed to close pack catalog")
		}
		if err := tel.Shutdown(context.Background()); err != nil {
			log.WithError(err).Warn("telemetry shutdown failed")
		}
	}
	if err := catalog.Migrate(ctx); err != nil {
		cleanup()
		return nil, nil, nil, err
	}

	indexPath := packs.IndexPath(root)
	if fsutil.Exists(indexPath) {
		idx, err := packs.LoadIndex(indexPath)
		if err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		if err := catalog.Sync(ctx, idx); err != nil {
			cleanup()
			return nil, nil, nil, err
		}
	} else {
		log.Warnf("no pack index found at %s, catalog may be empty", indexPath)
	}

	return tel, catalog, cleanup, nil
}

// finishRun maps the run outcome to the process exit contract: operation
// errors exit 1, a clean run with unresolved build variables exits 2.
func (p *pipeline) finishRun(err error) error {
	if err != nil {
		p.tel.Logger.WithError(err).Error("run failed")
		return &ExitError{Code: 1, Err: err}
	}
	if p.orch.HasUnresolvedVariables() {
		p.tel.Logger.Warn("run completed with unresolved build variables")
		return &ExitError{Code: 2}
	}
	return nil
}
