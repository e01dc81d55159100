package resolver

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/buildsmith/buildsmith/pkg/engine"
	"github.com/buildsmith/buildsmith/pkg/packs"
	"github.com/buildsmith/buildsmith/pkg/solution"
	"github.com/buildsmith/buildsmith/pkg/telemetry"
)

// Engine resolves contexts against the pack catalog.
type Engine struct {
	catalog  *packs.Catalog
	defaults func() *solution.Defaults
	log      *telemetry.Logger
}

// NewEngine creates a resolver. defaults returns the parsed shared defaults
// file, or nil; it is queried per context because the defaults file is only
// discovered after the resolver is constructed.
func NewEngine(catalog *packs.Catalog, defaults func() *solution.Defaults, tel *telemetry.Telemetry) *Engine {
	if defaults == nil {
		defaults = func() *solution.Defaults { return nil }
	}
	return &Engine{
		catalog:  catalog,
		defaults: defaults,
		log:      tel.Logger.NewComponentLogger("resolver"),
	}
}

// Resolve materializes one context in place.
func (e *Engine) Resolve(ctx context.Context, bc *engine.Context, policy engine.LoadPolicy) error {
	vars := e.collectVariables(bc)
	bc.Variables = vars

	var unresolved []string
	track := func(s string) string {
		out, missing := substitute(s, vars)
		unresolved = append(unresolved, missing...)
		return out
	}

	hardwarePacks, err := e.resolveHardware(ctx, bc, track)
	if err != nil {
		return err
	}
	if err := e.resolvePacks(ctx, bc, policy, hardwarePacks); err != nil {
		return err
	}
	if err := e.resolveComponents(ctx, bc); err != nil {
		return err
	}
	if err := e.resolveToolchain(ctx, bc, track); err != nil {
		return err
	}
	e.resolveDirectories(bc, track)

	// Unresolved variables are surfaced as a flag, not a failure.
	bc.UnresolvedVariables = uniqueSorted(unresolved)

	bc.Active = newActiveProject(bc)
	return nil
}

// collectVariables layers the variable sources: shared defaults, then the
// project, then the build-type, then the target-type.
func (e *Engine) collectVariables(bc *engine.Context) map[string]string {
	var defaultVars map[string]string
	if d := e.defaults(); d != nil {
		defaultVars = d.Vars
	}
	return mergeVariables(defaultVars, bc.Project.Vars, bc.BuildTypeEntry.Vars, bc.TargetTypeEntry.Vars)
}

// resolveHardware determines the context's device and board, returning the
// pack IDs that contribute them. The target-type declaration wins over the
// project's own; a board implies its device when no device is named
// explicitly.
func (e *Engine) resolveHardware(ctx context.Context, bc *engine.Context, track func(string) string) ([]string, error) {
	device := bc.TargetTypeEntry.Device
	if device == "" {
		device = bc.Project.Device
	}
	board := bc.TargetTypeEntry.Board
	if board == "" {
		board = bc.Project.Board
	}
	device = track(device)
	board = track(board)

	var hardwarePacks []string
	if board != "" {
		b, err := e.catalog.FindBoard(ctx, board)
		if err != nil {
			return nil, engine.NewResolutionError("board lookup failed", err).WithBuildContext(bc.Name)
		}
		bc.Board = b.Name
		hardwarePacks = append(hardwarePacks, b.PackID)
		if device == "" {
			device = b.Device
		}
	}
	if device == "" {
		return nil, engine.NewResolutionError("no device or board declared", nil).
			WithBuildContext(bc.Name).WithFile(bc.ProjectFile)
	}

	d, err := e.catalog.FindDevice(ctx, device)
	if err != nil {
		return nil, engine.NewResolutionError("device lookup failed", err).WithBuildContext(bc.Name)
	}
	bc.Device = d.Name
	hardwarePacks = append(hardwarePacks, d.PackID)
	return hardwarePacks, nil
}

// resolvePacks selects the pack set for the context under the load policy:
// the solution- and project-level requirements, the packs contributing the
// resolved hardware, and under the all/required policies the catalog's wider
// baseline.
func (e *Engine) resolvePacks(ctx context.Context, bc *engine.Context, policy engine.LoadPolicy, hardwarePacks []string) error {
	requirements := append([]solution.PackRequirement{}, bc.Solution.Packs...)
	requirements = append(requirements, bc.Project.Packs...)

	selected := make(map[string]engine.ResolvedPack)

	for _, id := range hardwarePacks {
		req, err := solution.ParsePackID(id)
		if err != nil {
			return engine.NewResolutionError("invalid hardware pack identifier", err).WithBuildContext(bc.Name)
		}
		p := engine.ResolvedPack{Vendor: req.Vendor, Name: req.Name, Version: req.Version}
		selected[p.ID()] = p
	}

	for _, req := range requirements {
		p, err := e.resolvePackRequirement(ctx, req, policy)
		if err != nil {
			return engine.NewResolutionError("pack resolution failed", err).WithBuildContext(bc.Name)
		}
		selected[p.ID()] = *p
	}

	switch policy {
	case engine.LoadPolicyAll:
		all, err := e.catalog.ListPacks(ctx)
		if err != nil {
			return engine.NewResolutionError("failed to enumerate packs", err).WithBuildContext(bc.Name)
		}
		for _, p := range all {
			addUnlessPresent(selected, p)
		}
	case engine.LoadPolicyRequired:
		baseline, err := e.catalog.RequiredPacks(ctx)
		if err != nil {
			return engine.NewResolutionError("failed to enumerate required packs", err).WithBuildContext(bc.Name)
		}
		for _, p := range baseline {
			addUnlessPresent(selected, p)
		}
	}

	bc.Packs = nil
	for _, name := range sortedKeys(selected) {
		bc.Packs = append(bc.Packs, selected[name])
	}
	if len(bc.Packs) == 0 {
		return engine.NewResolutionError("no packs resolved for context", nil).WithBuildContext(bc.Name)
	}
	return nil
}

func (e *Engine) resolvePackRequirement(ctx context.Context, req solution.PackRequirement, policy engine.LoadPolicy) (*engine.ResolvedPack, error) {
	versions, err := e.catalog.PackVersions(ctx, req.Vendor, req.Name)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("pack not installed: %s", req.Vendor+"::"+req.Name)
	}

	// The latest policy ignores pins; otherwise a pinned requirement must
	// match an installed version exactly.
	if req.Pinned() && policy != engine.LoadPolicyLatest {
		for _, v := range versions {
			if v.Version == req.Version {
				return &engine.ResolvedPack{
					Vendor: v.Vendor, Name: v.Name, Version: v.Version, Pinned: true,
				}, nil
			}
		}
		return nil, fmt.Errorf("pack version not installed: %s", req.ID())
	}

	newest := versions[0]
	return &engine.ResolvedPack{
		Vendor: newest.Vendor, Name: newest.Name, Version: newest.Version,
		Pinned: req.Pinned() && policy != engine.LoadPolicyLatest,
	}, nil
}

// resolveComponents matches each declared component requirement within the
// resolved pack set.
func (e *Engine) resolveComponents(ctx context.Context, bc *engine.Context) error {
	packIDs := make([]string, 0, len(bc.Packs))
	for _, p := range bc.Packs {
		packIDs = append(packIDs, p.ID())
	}

	bc.Components = nil
	for _, req := range bc.Project.Components {
		candidates, err := e.catalog.FindComponents(ctx, packIDs, req.Class, req.Group, req.Sub)
		if err != nil {
			return engine.NewResolutionError("component lookup failed", err).WithBuildContext(bc.Name)
		}
		match := pickComponent(candidates, req.Version)
		if match == nil {
			return engine.NewResolutionError(
				fmt.Sprintf("component not satisfied by resolved packs: %s", req.ID()), nil,
			).WithBuildContext(bc.Name).WithFile(bc.ProjectFile)
		}
		bc.Components = append(bc.Components, engine.ResolvedComponent{
			Class:   match.Class,
			Group:   match.Group,
			Sub:     match.Sub,
			Version: match.Version,
			PackID:  match.PackID,
		})
	}
	return nil
}

// pickComponent selects the candidate with the highest version, or the exact
// requested version when one is pinned.
func pickComponent(candidates []*packs.Component, version string) *packs.Component {
	var best *packs.Component
	for _, c := range candidates {
		if version != "" {
			if c.Version == version {
				return c
			}
			continue
		}
		if best == nil || packs.CompareVersions(c.Version, best.Version) > 0 {
			best = c
		}
	}
	return best
}

// resolveToolchain selects the context's toolchain: target-type over
// build-type over project over shared defaults.
func (e *Engine) resolveToolchain(ctx context.Context, bc *engine.Context, track func(string) string) error {
	declared := bc.TargetTypeEntry.Toolchain
	if declared == "" {
		declared = bc.BuildTypeEntry.Toolchain
	}
	if declared == "" {
		declared = bc.Project.Toolchain
	}
	if declared == "" {
		if d := e.defaults(); d != nil {
			declared = d.Toolchain
		}
	}
	declared = track(declared)
	if declared == "" {
		return engine.NewResolutionError("no toolchain declared for context", nil).
			WithBuildContext(bc.Name).WithFile(bc.ProjectFile)
	}

	name, version := splitToolchain(declared)
	tc, err := e.catalog.FindToolchain(ctx, name, version)
	if err != nil {
		return engine.NewResolutionError("toolchain lookup failed", err).WithBuildContext(bc.Name)
	}
	bc.Toolchain = &engine.ResolvedToolchain{Name: tc.Name, Version: tc.Version, Root: tc.Root}
	return nil
}

func (e *Engine) resolveDirectories(bc *engine.Context, track func(string) string) {
	base := track(bc.Solution.OutputDir)
	if !filepath.IsAbs(base) {
		base = filepath.Join(bc.Solution.Directory, base)
	}
	out := filepath.Join(base, bc.Name)
	bc.Directories = engine.Directories{
		Output:       filepath.ToSlash(out),
		Intermediate: filepath.ToSlash(filepath.Join(out, "tmp")),
	}
}

func splitToolchain(token string) (name, version string) {
	for i := len(token) - 1; i > 0; i-- {
		if token[i] == '@' {
			return token[:i], token[i+1:]
		}
	}
	return token, ""
}

func addUnlessPresent(selected map[string]engine.ResolvedPack, p *packs.Pack) {
	r := engine.ResolvedPack{Vendor: p.Vendor, Name: p.Name, Version: p.Version}
	if _, ok := selected[r.ID()]; !ok {
		selected[r.ID()] = r
	}
}

func sortedKeys(m map[string]engine.ResolvedPack) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return uniqueSorted(keys)
}
