package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/buildsmith/buildsmith/pkg/solution"
	"github.com/buildsmith/buildsmith/pkg/telemetry"
)

// Options gathers every run-wide toggle into one explicit value threaded
// through the pipeline entry point. Each stage's behavior is a pure function
// of its inputs; there is no hidden global state.
type Options struct {
	// SolutionPath is the solution file to operate on.
	SolutionPath string

	// ContextPatterns are the user's [project][.build-type][+target-type]
	// selection patterns. Empty means all contexts, unless UseContextSet
	// requests the persisted selection set instead.
	ContextPatterns []string

	// UseContextSet restores the selection from the persisted selection-set
	// file when no patterns are given, and persists the selection after the
	// run.
	UseContextSet bool

	// LoadPolicy is the raw pack load policy token.
	LoadPolicy string

	// Toolchain is an explicit toolchain request in name[@version] form.
	Toolchain string

	// ExportSuffix requests the suffix-qualified unpinned export variant
	// during convert.
	ExportSuffix string

	// OutputDir overrides the solution's declared output directory.
	OutputDir string

	// CheckSchema enables CUE schema validation of the input files.
	CheckSchema bool

	// SyncConfigs enables the config-file sync step during emission.
	SyncConfigs bool

	// FrozenPacks fails the run if the computed pack snapshot differs from
	// the committed one.
	FrozenPacks bool

	// EnforcePolicy turns pack policy violations into failures.
	EnforcePolicy bool

	// DryRun performs resolution and every emission check but suppresses
	// all file writes.
	DryRun bool

	// Verbose reports per-component configuration files.
	Verbose bool
}

// Dependencies are the orchestrator's collaborators.
type Dependencies struct {
	Parser    SolutionParser
	Resolver  Resolver
	Emitter   Emitter
	Selection SelectionStore
	Policy    PolicyChecker
	Telemetry *telemetry.Telemetry
}

// Orchestrator wires the registry, processor and emitter into the user-facing
// operations.
type Orchestrator struct {
	opts Options
	deps Dependencies
	log  *telemetry.Logger

	runID string
	state *RunState
	reg   *Registry
	sol   *solution.Solution
}

// NewOrchestrator creates an orchestrator for one run.
func NewOrchestrator(opts Options, deps Dependencies) *Orchestrator {
	return &Orchestrator{
		opts:  opts,
		deps:  deps,
		log:   deps.Telemetry.Logger.NewComponentLogger("orchestrator"),
		runID: uuid.NewString(),
	}
}

// RunID returns this run's identifier.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// State returns the run state accumulated by the last operation, or nil.
func (o *Orchestrator) State() *RunState {
	return o.state
}

// Registry returns the context registry of the last operation, or nil.
func (o *Orchestrator) Registry() *Registry {
	return o.reg
}

// Solution returns the parsed solution of the last operation, or nil.
func (o *Orchestrator) Solution() *solution.Solution {
	return o.sol
}

// HasUnresolvedVariables reports whether the last operation left build
// variables unresolved. Surfaced alongside, not instead of, the operation's
// error so callers can map it to a distinct exit code.
func (o *Orchestrator) HasUnresolvedVariables() bool {
	return o.state != nil && o.state.HasUnresolvedVariables()
}

// Configure resolves and validates the selected contexts and emits the
// configuration artifacts, without the legacy export step.
func (o *Orchestrator) Configure(ctx context.Context) error {
	return o.run(ctx, "configure", false)
}

// Convert runs Configure's pipeline and additionally emits the legacy
// single-file project exports.
func (o *Orchestrator) Convert(ctx context.Context) error {
	return o.run(ctx, "convert", true)
}

// SyncConfigs is the dedicated configuration-update operation: it resolves
// the selected contexts and regenerates their configuration files,
// regardless of the sync toggle.
func (o *Orchestrator) SyncConfigs(ctx context.Context) error {
	prep, err := o.prepare(ctx)
	if err != nil {
		return err
	}

	ctx, span := o.deps.Telemetry.Tracer.StartRunSpan(ctx, o.runID, "sync")
	defer span.End()

	state := o.process(ctx, prep)
	if err := o.deps.Emitter.SyncConfigs(ctx, state.Attempted, o.opts.DryRun); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	if state.HasFailures() {
		err := o.failureError(state)
		telemetry.RecordError(span, err)
		return err
	}
	telemetry.RecordSuccess(span)
	return nil
}

// Discover parses the solution and materializes the registry without
// processing anything, for listing queries.
func (o *Orchestrator) Discover(ctx context.Context) (*Registry, error) {
	if _, err := o.prepare(ctx); err != nil {
		return nil, err
	}
	return o.reg, nil
}

// preparation carries the prepared inputs of one run.
type preparation struct {
	policy            LoadPolicy
	deferredWarnings  []string
	explicitSelection bool
}

// prepare validates configuration, parses the inputs and computes the
// selection. Configuration errors surface here, before any processing.
func (o *Orchestrator) prepare(ctx context.Context) (*preparation, error) {
	prep := &preparation{explicitSelection: len(o.opts.ContextPatterns) > 0}

	// The policy token is validated before any file I/O.
	policy, err := ParseLoadPolicy(o.opts.LoadPolicy)
	if err != nil {
		return nil, err
	}
	prep.policy = policy

	sol, err := o.deps.Parser.ParseSolution(o.opts.SolutionPath, o.opts.CheckSchema, o.opts.FrozenPacks)
	if err != nil {
		return nil, NewConfigError("failed to parse solution", err).WithFile(o.opts.SolutionPath)
	}
	o.sol = sol

	warnings, err := solution.ValidateProjectLayout(sol)
	if err != nil {
		return nil, NewStructuralError("invalid project layout", err).WithFile(sol.FilePath)
	}
	for _, w := range warnings {
		o.log.Warn(w)
	}

	if sol.UseDefaults {
		if err := o.loadDefaults(sol); err != nil {
			return nil, err
		}
	}

	reg := NewRegistry()
	if err := reg.Materialize(sol, func(path string) (*solution.Project, error) {
		return o.deps.Parser.ParseProject(path, o.opts.CheckSchema)
	}); err != nil {
		return nil, err
	}
	o.reg = reg

	if err := o.computeSelection(ctx, prep, reg, sol); err != nil {
		return nil, err
	}
	return prep, nil
}

func (o *Orchestrator) loadDefaults(sol *solution.Solution) error {
	searchDirs := []string{sol.Directory}
	if root := os.Getenv("SMITH_COMPILER_ROOT"); root != "" {
		searchDirs = append(searchDirs, root)
	}
	path, err := solution.FindDefaults(searchDirs)
	if err != nil {
		return NewConfigError("defaults discovery failed", err)
	}
	if path == "" {
		return nil
	}
	if _, err := o.deps.Parser.ParseDefaults(path, o.opts.CheckSchema); err != nil {
		return NewConfigError("failed to parse defaults", err).WithFile(path)
	}
	o.log.Debugf("using defaults from %s", path)
	return nil
}

func (o *Orchestrator) computeSelection(ctx context.Context, prep *preparation, reg *Registry, sol *solution.Solution) error {
	if len(o.opts.ContextPatterns) == 0 && o.opts.UseContextSet {
		set, err := o.deps.Selection.LoadSelectionSet(ctx, sol, o.opts.OutputDir)
		if err != nil {
			return NewConfigError("failed to load context set", err)
		}
		if set == nil {
			// Not an error: the run proceeds with an empty selection and
			// the index still covers every discovered context.
			prep.deferredWarnings = append(prep.deferredWarnings,
				"no context-set file found and no contexts specified, nothing selected")
			return nil
		}
		for _, missing := range reg.SelectNames(set.Contexts) {
			prep.deferredWarnings = append(prep.deferredWarnings,
				fmt.Sprintf("context %s from context set no longer exists in the solution", missing))
		}
		return nil
	}

	unmatched, err := reg.Select(o.opts.ContextPatterns)
	if err != nil {
		return err
	}
	for _, pattern := range unmatched {
		prep.deferredWarnings = append(prep.deferredWarnings,
			fmt.Sprintf("context pattern %q did not match any context", pattern))
	}
	return nil
}

func (o *Orchestrator) process(ctx context.Context, prep *preparation) *RunState {
	processor := NewProcessor(o.deps.Resolver, o.deps.Policy, o.deps.Telemetry)
	state := processor.Run(ctx, o.reg, o.reg.OrderedNames(true), ProcessOptions{
		Policy:             prep.policy,
		RequestedToolchain: o.opts.Toolchain,
		EnforcePolicy:      o.opts.EnforcePolicy,
		DeferredWarnings:   prep.deferredWarnings,
		Verbose:            o.opts.Verbose,
	})
	o.state = state
	return state
}

func (o *Orchestrator) run(ctx context.Context, operation string, convert bool) error {
	prep, err := o.prepare(ctx)
	if err != nil {
		return err
	}

	ctx, span := o.deps.Telemetry.Tracer.StartRunSpan(ctx, o.runID, operation)
	defer span.End()

	state := o.process(ctx, prep)

	// Emission runs even when contexts failed: every artifact that can be
	// produced still is, so downstream tooling and the user see the full
	// picture before the run reports failure.
	if err := o.deps.Emitter.Emit(ctx, &EmitRequest{
		Solution: o.sol,
		State:    state,
		Options: EmitOptions{
			Convert:           convert,
			ExportSuffix:      o.opts.ExportSuffix,
			ExplicitSelection: prep.explicitSelection,
			UseContextSet:     o.opts.UseContextSet,
			SyncConfigs:       o.opts.SyncConfigs,
			FrozenPacks:       o.sol.FrozenPacks,
			DryRun:            o.opts.DryRun,
			OutputDir:         o.opts.OutputDir,
		},
	}); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	if state.HasFailures() {
		err := o.failureError(state)
		telemetry.RecordError(span, err)
		return err
	}
	telemetry.RecordSuccess(span)
	return nil
}

func (o *Orchestrator) failureError(state *RunState) error {
	return NewResolutionError(
		fmt.Sprintf("%d of %d contexts failed to process", len(state.Failed), len(state.Attempted)), nil)
}
