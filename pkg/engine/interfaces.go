package engine

import (
	"context"

	"github.com/buildsmith/buildsmith/pkg/solution"
)

// Resolver resolves a single context: device and board lookup, pack
// selection under the given load policy, component matching, toolchain and
// output directory computation, variable substitution. It writes its results
// into the context in place. A returned error marks the context failed; the
// engine isolates it and continues with the next context.
type Resolver interface {
	Resolve(ctx context.Context, bc *Context, policy LoadPolicy) error
}

// ActiveProject is the per-context handle the resolver attaches to a
// successfully processed context. SyncConfigFiles regenerates the component
// configuration files in the project directory and returns the paths it
// produced (or would produce under dry-run).
type ActiveProject interface {
	SyncConfigFiles(ctx context.Context, dryRun bool) ([]string, error)
}

// ProjectParser resolves and parses one project file during materialization.
type ProjectParser func(path string) (*solution.Project, error)

// SolutionParser is the descriptor parser the orchestrator consumes. All
// methods fail with an error identifying the offending file.
type SolutionParser interface {
	ParseSolution(path string, checkSchema, frozenPacks bool) (*solution.Solution, error)
	ParseProject(path string, checkSchema bool) (*solution.Project, error)
	ParseDefaults(path string, checkSchema bool) (*solution.Defaults, error)
}

// Emitter sequences artifact emission over the aggregate run state.
type Emitter interface {
	// Emit writes the artifact family in its contractual order. Dry-run is
	// honored uniformly by every step.
	Emit(ctx context.Context, req *EmitRequest) error

	// SyncConfigs regenerates configuration files for the given contexts,
	// independent of a full emission pass.
	SyncConfigs(ctx context.Context, contexts []*Context, dryRun bool) error
}

// EmitRequest is the emitter's input: the solution, the aggregate run state
// and the options governing which steps apply.
type EmitRequest struct {
	Solution *solution.Solution
	State    *RunState
	Options  EmitOptions
}

// EmitOptions control the emission pass.
type EmitOptions struct {
	// Convert enables the legacy single-file project export step.
	Convert bool

	// ExportSuffix requests an additional suffix-qualified export variant
	// without pinned pack versions.
	ExportSuffix string

	// ExplicitSelection records whether the user named contexts explicitly
	// on this run, which scopes the pack snapshot to attempted contexts.
	ExplicitSelection bool

	// UseContextSet enables selection-set persistence.
	UseContextSet bool

	// SyncConfigs enables the config-file sync step of the emission pass.
	SyncConfigs bool

	// FrozenPacks fails the emission if the computed pack snapshot differs
	// from the committed one.
	FrozenPacks bool

	// DryRun suppresses all file writes while still performing every check.
	DryRun bool

	// OutputDir overrides the solution's output directory when non-empty.
	OutputDir string
}

// SelectionSet is the persisted record of one run's selection, enabling
// exact reproduction without re-specifying contexts.
type SelectionSet struct {
	Contexts  []string `yaml:"contexts"`
	Toolchain string   `yaml:"toolchain,omitempty"`
}

// SelectionStore loads a previously persisted selection set for a solution.
// A nil set with a nil error means no set has been persisted.
type SelectionStore interface {
	LoadSelectionSet(ctx context.Context, sol *solution.Solution, outputDir string) (*SelectionSet, error)
}

// PolicyChecker evaluates pack policy over a resolved context and returns the
// violation messages, if any.
type PolicyChecker interface {
	CheckContext(ctx context.Context, bc *Context) ([]string, error)
}
