package engine

import (
	"github.com/buildsmith/buildsmith/pkg/solution"
)

// Directories is the output directory layout of one context.
type Directories struct {
	// Output is the context's artifact directory, <outdir>/<context name>.
	Output string `json:"output" yaml:"output"`

	// Intermediate is the context's scratch directory for generated files.
	Intermediate string `json:"intermediate,omitempty" yaml:"intermediate,omitempty"`
}

// ResolvedToolchain is the toolchain selected for a context or a run.
type ResolvedToolchain struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
	Root    string `json:"root,omitempty" yaml:"root,omitempty"`
}

// ID returns the toolchain in name@version form, or just the name when no
// version was resolved.
func (t ResolvedToolchain) ID() string {
	if t.Version == "" {
		return t.Name
	}
	return t.Name + "@" + t.Version
}

// ResolvedPack is one pack version selected for a context.
type ResolvedPack struct {
	Vendor  string `json:"vendor" yaml:"vendor"`
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`

	// Pinned records whether the requirement named this exact version.
	// Unpinned packs are re-resolvable by downstream consumers.
	Pinned bool `json:"pinned,omitempty" yaml:"pinned,omitempty"`
}

// ID returns the pack in vendor::name@version form.
func (p ResolvedPack) ID() string {
	return p.Vendor + "::" + p.Name + "@" + p.Version
}

// UnpinnedID returns the pack in vendor::name form, dropping the resolved
// version.
func (p ResolvedPack) UnpinnedID() string {
	return p.Vendor + "::" + p.Name
}

// ResolvedComponent is one component selected for a context, with the
// configuration files it contributes.
type ResolvedComponent struct {
	Class       string   `json:"class" yaml:"class"`
	Group       string   `json:"group" yaml:"group"`
	Sub         string   `json:"sub,omitempty" yaml:"sub,omitempty"`
	Version     string   `json:"version" yaml:"version"`
	PackID      string   `json:"pack" yaml:"pack"`
	ConfigFiles []string `json:"config-files,omitempty" yaml:"config-files,omitempty"`
}

// ID returns the component in class:group[:sub]@version form.
func (c ResolvedComponent) ID() string {
	id := c.Class + ":" + c.Group
	if c.Sub != "" {
		id += ":" + c.Sub
	}
	return id + "@" + c.Version
}

// Context is the materialized, mutable result of resolving one descriptor.
// It is owned by the Registry; every other component holds a non-owning
// reference. A context is created during materialization, mutated in place
// during processing, and read-only from then through emission.
type Context struct {
	// Name is <project>.<build-type>+<target-type>.
	Name string

	// Descriptor is the context's origin in the solution file.
	Descriptor solution.ContextDescriptor

	// ProjectFile is the canonical path of the project file.
	ProjectFile string

	// Project is the parsed project, shared between contexts of the same
	// project.
	Project *solution.Project

	// Solution points back to the owning solution descriptor.
	Solution *solution.Solution

	// BuildTypeEntry and TargetTypeEntry are the type declarations this
	// context was derived from.
	BuildTypeEntry  solution.TypeEntry
	TargetTypeEntry solution.TypeEntry

	// Selected records whether the user's selection includes this context.
	Selected bool

	// Processed reports whether the resolver was invoked for this context.
	Processed bool

	// Err holds the resolution failure, if any.
	Err error

	// Resolution results, populated by the resolver.
	Directories Directories
	Toolchain   *ResolvedToolchain
	Device      string
	Board       string
	Packs       []ResolvedPack
	Components  []ResolvedComponent
	Variables   map[string]string

	// UnresolvedVariables lists ${VAR} references the resolver could not
	// substitute. Distinct from failure; surfaced as a separate flag.
	UnresolvedVariables []string

	// Active is the handle used for config-file synchronization, set by the
	// resolver for successfully processed contexts.
	Active ActiveProject
}

// Failed reports whether this context's resolution failed.
func (c *Context) Failed() bool {
	return c.Err != nil
}

// RunState carries the three derived collections the emitter depends on,
// accumulated across one processing pass.
type RunState struct {
	// All holds every materialized context, selected or not, in declaration
	// order.
	All []*Context

	// Attempted holds every context the processor actually tried, in
	// declaration order. Unselected contexts are never attempted.
	Attempted []*Context

	// Failed holds the names of attempted contexts whose resolution failed.
	Failed map[string]bool

	// Toolchain is the single run-wide toolchain value, when one could be
	// determined from the aggregate outcome.
	Toolchain *ResolvedToolchain
}

// NewRunState creates an empty run state.
func NewRunState() *RunState {
	return &RunState{Failed: make(map[string]bool)}
}

// HasFailures reports whether any attempted context failed.
func (s *RunState) HasFailures() bool {
	return len(s.Failed) > 0
}

// IsFailed reports whether the named context failed.
func (s *RunState) IsFailed(name string) bool {
	return s.Failed[name]
}

// HasUnresolvedVariables reports whether any attempted context carries
// unresolved build variables.
func (s *RunState) HasUnresolvedVariables() bool {
	for _, c := range s.Attempted {
		if len(c.UnresolvedVariables) > 0 {
			return true
		}
	}
	return false
}
