package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/buildsmith/buildsmith/pkg/telemetry"
)

func newTestTelemetry(t *testing.T) *telemetry.Telemetry {
	t.Helper()
	cfg := telemetry.DefaultConfig()
	cfg.Logging.Level = "error"
	cfg.Logging.Format = "json"
	cfg.Metrics.Enabled = false
	tel, err := telemetry.New(cfg)
	if err != nil {
		t.Fatalf("telemetry.New failed: %v", err)
	}
	return tel
}

// mockResolver resolves contexts in order, failing the names in fail and
// recording the visit order.
type mockResolver struct {
	fail       map[string]bool
	unresolved map[string][]string
	toolchains map[string]string
	visited    []string
}

func (m *mockResolver) Resolve(_ context.Context, bc *Context, _ LoadPolicy) error {
	m.visited = append(m.visited, bc.Name)
	if m.fail[bc.Name] {
		return NewResolutionError("mock failure", errors.New("boom")).WithBuildContext(bc.Name)
	}
	bc.Toolchain = &ResolvedToolchain{Name: "gcc", Version: "12.2.0"}
	if name, ok := m.toolchains[bc.Name]; ok {
		bc.Toolchain = &ResolvedToolchain{Name: name}
	}
	bc.Packs = []ResolvedPack{{Vendor: "ARM", Name: "CMSIS", Version: "5.9.0"}}
	bc.UnresolvedVariables = m.unresolved[bc.Name]
	return nil
}

func materializedRegistry(t *testing.T, selectPatterns []string) *Registry {
	t.Helper()
	sol := testSolution(t)
	reg := NewRegistry()
	if err := reg.Materialize(sol, parseProjects(t)); err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}
	if _, err := reg.Select(selectPatterns); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	return reg
}

func TestRunAccumulatesCollections(t *testing.T) {
	// 4 discovered, 2 selected, 1 of those fails.
	reg := materializedRegistry(t, []string{"core"})
	resolver := &mockResolver{fail: map[string]bool{"core.release+board": true}}
	p := NewProcessor(resolver, nil, newTestTelemetry(t))

	state := p.Run(context.Background(), reg, reg.OrderedNames(true), ProcessOptions{Policy: LoadPolicyDefault})

	if len(state.All) != 4 {
		t.Errorf("All has %d entries, want 4", len(state.All))
	}
	if len(state.Attempted) != 2 {
		t.Errorf("Attempted has %d entries, want 2", len(state.Attempted))
	}
	if len(state.Failed) != 1 || !state.IsFailed("core.release+board") {
		t.Errorf("Failed = %v, want exactly core.release+board", state.Failed)
	}

	// Failed contexts stay inside the attempted set.
	for name := range state.Failed {
		found := false
		for _, c := range state.Attempted {
			if c.Name == name {
				found = true
			}
		}
		if !found {
			t.Errorf("failed context %s not in attempted set", name)
		}
	}

	// Unselected contexts were never handed to the resolver.
	if len(resolver.visited) != 2 {
		t.Errorf("resolver visited %v, want only the selected contexts", resolver.visited)
	}
}

func TestRunNoEarlyTermination(t *testing.T) {
	reg := materializedRegistry(t, nil)
	resolver := &mockResolver{fail: map[string]bool{"core.debug+board": true}}
	p := NewProcessor(resolver, nil, newTestTelemetry(t))

	state := p.Run(context.Background(), reg, reg.OrderedNames(true), ProcessOptions{Policy: LoadPolicyDefault})

	// The first context fails; all four are still attempted in order.
	want := []string{"core.debug+board", "core.release+board", "app.debug+board", "app.release+board"}
	if len(resolver.visited) != len(want) {
		t.Fatalf("resolver visited %v, want %v", resolver.visited, want)
	}
	for i, name := range want {
		if resolver.visited[i] != name {
			t.Errorf("visit[%d] = %s, want %s", i, resolver.visited[i], name)
		}
	}
	if len(state.Failed) != 1 {
		t.Errorf("Failed = %v, want exactly the first context", state.Failed)
	}
}

func TestRunToolchainResolution(t *testing.T) {
	t.Run("explicit request wins", func(t *testing.T) {
		reg := materializedRegistry(t, nil)
		p := NewProcessor(&mockResolver{}, nil, newTestTelemetry(t))
		state := p.Run(context.Background(), reg, reg.OrderedNames(true), ProcessOptions{
			Policy:             LoadPolicyDefault,
			RequestedToolchain: "clang@17.0.1",
		})
		if state.Toolchain == nil || state.Toolchain.Name != "clang" || state.Toolchain.Version != "17.0.1" {
			t.Errorf("Toolchain = %+v", state.Toolchain)
		}
	})

	t.Run("common outcome", func(t *testing.T) {
		reg := materializedRegistry(t, nil)
		p := NewProcessor(&mockResolver{}, nil, newTestTelemetry(t))
		state := p.Run(context.Background(), reg, reg.OrderedNames(true), ProcessOptions{Policy: LoadPolicyDefault})
		if state.Toolchain == nil || state.Toolchain.ID() != "gcc@12.2.0" {
			t.Errorf("Toolchain = %+v", state.Toolchain)
		}
	})

	t.Run("divergent outcomes yield none", func(t *testing.T) {
		reg := materializedRegistry(t, nil)
		resolver := &mockResolver{toolchains: map[string]string{"app.debug+board": "iar"}}
		p := NewProcessor(resolver, nil, newTestTelemetry(t))
		state := p.Run(context.Background(), reg, reg.OrderedNames(true), ProcessOptions{Policy: LoadPolicyDefault})
		if state.Toolchain != nil {
			t.Errorf("Toolchain = %+v, want nil for divergent outcomes", state.Toolchain)
		}
	})
}

func TestRunUnresolvedVariables(t *testing.T) {
	reg := materializedRegistry(t, nil)
	resolver := &mockResolver{unresolved: map[string][]string{
		"app.debug+board": {"LINKER_SCRIPT"},
	}}
	p := NewProcessor(resolver, nil, newTestTelemetry(t))

	state := p.Run(context.Background(), reg, reg.OrderedNames(true), ProcessOptions{Policy: LoadPolicyDefault})

	if !state.HasUnresolvedVariables() {
		t.Error("unresolved variables not surfaced")
	}
	// Unresolved variables are a flag, not a failure.
	if state.HasFailures() {
		t.Error("unresolved variables misreported as failure")
	}
}

// mockPolicy flags every context with one violation.
type mockPolicy struct {
	violations []string
	err        error
}

func (m *mockPolicy) CheckContext(context.Context, *Context) ([]string, error) {
	return m.violations, m.err
}

func TestRunPolicyEnforcement(t *testing.T) {
	t.Run("advisory warns only", func(t *testing.T) {
		reg := materializedRegistry(t, nil)
		p := NewProcessor(&mockResolver{}, &mockPolicy{violations: []string{"pack ARM::CMSIS is deny-listed"}}, newTestTelemetry(t))
		state := p.Run(context.Background(), reg, reg.OrderedNames(true), ProcessOptions{Policy: LoadPolicyDefault})
		if state.HasFailures() {
			t.Errorf("advisory policy failed contexts: %v", state.Failed)
		}
	})

	t.Run("enforcing fails the context", func(t *testing.T) {
		reg := materializedRegistry(t, nil)
		p := NewProcessor(&mockResolver{}, &mockPolicy{violations: []string{"pack ARM::CMSIS is deny-listed"}}, newTestTelemetry(t))
		state := p.Run(context.Background(), reg, reg.OrderedNames(true), ProcessOptions{
			Policy:        LoadPolicyDefault,
			EnforcePolicy: true,
		})
		if len(state.Failed) != 4 {
			t.Errorf("Failed = %v, want all contexts", state.Failed)
		}
		// Enforced violations still do not abort the loop.
		if len(state.Attempted) != 4 {
			t.Errorf("Attempted has %d entries, want 4", len(state.Attempted))
		}
	})
}
