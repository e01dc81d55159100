package engine

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/buildsmith/buildsmith/pkg/fsutil"
	"github.com/buildsmith/buildsmith/pkg/solution"
)

// Registry owns the mapping from context name to context state. It is
// append-only during materialization and sealed read-only afterwards; Seal is
// called by Materialize, and any later mutation attempt is a programming
// error surfaced as a structural error.
type Registry struct {
	contexts map[string]*Context
	ordered  []string
	sealed   bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{contexts: make(map[string]*Context)}
}

// Materialize creates one Context per descriptor of the solution, resolving
// each descriptor's project file to a canonical path and parsing it through
// the callback. Materialization seals the registry on success.
//
// Layout validation (duplicate project file names) must have run before this
// is called.
func (r *Registry) Materialize(sol *solution.Solution, parse ProjectParser) error {
	if r.sealed {
		return NewStructuralError("registry is sealed, materialization already completed", nil)
	}

	buildEntries := make(map[string]solution.TypeEntry)
	for _, e := range sol.BuildTypes {
		buildEntries[e.Name] = e
	}
	targetEntries := make(map[string]solution.TypeEntry)
	for _, e := range sol.TargetTypes {
		targetEntries[e.Name] = e
	}

	for _, d := range sol.Contexts {
		path := d.ProjectFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(sol.Directory, path)
		}
		canonical, err := fsutil.Canonical(path)
		if err != nil {
			return NewStructuralError("failed to resolve project file path", err).WithFile(d.ProjectFile)
		}
		if !fsutil.Exists(canonical) {
			return NewStructuralError("project file not found", nil).WithFile(canonical)
		}

		prj, err := parse(canonical)
		if err != nil {
			return NewStructuralError("failed to parse project file", err).WithFile(canonical)
		}

		name := d.ContextName()
		if _, dup := r.contexts[name]; dup {
			return NewStructuralError(fmt.Sprintf("duplicate context %s", name), nil).WithFile(sol.FilePath)
		}

		r.contexts[name] = &Context{
			Name:            name,
			Descriptor:      d,
			ProjectFile:     canonical,
			Project:         prj,
			Solution:        sol,
			BuildTypeEntry:  buildEntries[d.BuildType],
			TargetTypeEntry: targetEntries[d.TargetType],
		}
		r.ordered = append(r.ordered, name)
	}

	r.sealed = true
	return nil
}

// Len returns the number of materialized contexts.
func (r *Registry) Len() int {
	return len(r.ordered)
}

// Get returns the named context.
func (r *Registry) Get(name string) (*Context, bool) {
	c, ok := r.contexts[name]
	return c, ok
}

// OrderedNames returns the context names either in solution-declaration
// order or in canonical (sorted) order. Declaration order matters for
// artifacts that must stay diffable against the solution file across reruns.
func (r *Registry) OrderedNames(declarationOrder bool) []string {
	names := make([]string, len(r.ordered))
	copy(names, r.ordered)
	if !declarationOrder {
		sort.Strings(names)
	}
	return names
}

// ContextTypes returns the distinct build-type and target-type tokens
// present across all materialized contexts, in declaration order.
func (r *Registry) ContextTypes() (buildTypes, targetTypes []string) {
	seenBuild := make(map[string]bool)
	seenTarget := make(map[string]bool)
	for _, name := range r.ordered {
		d := r.contexts[name].Descriptor
		if !seenBuild[d.BuildType] {
			seenBuild[d.BuildType] = true
			buildTypes = append(buildTypes, d.BuildType)
		}
		if !seenTarget[d.TargetType] {
			seenTarget[d.TargetType] = true
			targetTypes = append(targetTypes, d.TargetType)
		}
	}
	return buildTypes, targetTypes
}

// IsSelected reports whether the named context is in the current selection.
func (r *Registry) IsSelected(name string) bool {
	c, ok := r.contexts[name]
	return ok && c.Selected
}

// SelectedCount returns the number of selected contexts.
func (r *Registry) SelectedCount() int {
	n := 0
	for _, name := range r.ordered {
		if r.contexts[name].Selected {
			n++
		}
	}
	return n
}

// Select computes the selected subset from zero or more
// [project][.build-type][+target-type] patterns. No patterns selects every
// context. Patterns that match nothing are returned for deferred warning,
// not raised as errors.
func (r *Registry) Select(patterns []string) (unmatched []string, err error) {
	if !r.sealed {
		return nil, NewStructuralError("selection before materialization", nil)
	}

	if len(patterns) == 0 {
		for _, name := range r.ordered {
			r.contexts[name].Selected = true
		}
		return nil, nil
	}

	parsed := make([]selectionPattern, 0, len(patterns))
	for _, raw := range patterns {
		p, err := parseSelectionPattern(raw)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, p)
	}

	for i, p := range parsed {
		hit := false
		for _, name := range r.ordered {
			c := r.contexts[name]
			ok, err := p.matches(c.Descriptor)
			if err != nil {
				return nil, NewConfigError(fmt.Sprintf("invalid context pattern %q", patterns[i]), err)
			}
			if ok {
				c.Selected = true
				hit = true
			}
		}
		if !hit {
			unmatched = append(unmatched, patterns[i])
		}
	}
	return unmatched, nil
}

// SelectNames selects contexts by exact name, used when restoring a
// persisted selection set. Names no longer present in the solution are
// returned for deferred warning.
func (r *Registry) SelectNames(names []string) (missing []string) {
	for _, name := range names {
		if c, ok := r.contexts[name]; ok {
			c.Selected = true
		} else {
			missing = append(missing, name)
		}
	}
	return missing
}
