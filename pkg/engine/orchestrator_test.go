package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/buildsmith/buildsmith/pkg/solution"
)

// writeSolutionTree writes a two-project solution with four contexts to a
// temp directory and returns the solution file path.
func writeSolutionTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	solDoc := `
solution:
  name: demo
  projects:
    - project: core/core.project.yml
    - project: app/app.project.yml
  build-types:
    - name: debug
    - name: release
  target-types:
    - name: board
      device: STM32F407
`
	solPath := filepath.Join(dir, "demo.solution.yml")
	if err := os.WriteFile(solPath, []byte(solDoc), 0o644); err != nil {
		t.Fatalf("write solution failed: %v", err)
	}
	for _, prj := range []string{"core", "app"} {
		path := filepath.Join(dir, prj, prj+".project.yml")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir failed: %v", err)
		}
		if err := os.WriteFile(path, []byte("project:\n  toolchain: gcc\n"), 0o644); err != nil {
			t.Fatalf("write project failed: %v", err)
		}
	}
	return solPath
}

// mockEmitter records the emission request.
type mockEmitter struct {
	req       *EmitRequest
	syncCalls int
	emitErr   error
}

func (m *mockEmitter) Emit(_ context.Context, req *EmitRequest) error {
	m.req = req
	return m.emitErr
}

func (m *mockEmitter) SyncConfigs(_ context.Context, _ []*Context, _ bool) error {
	m.syncCalls++
	return nil
}

// mockStore serves a fixed persisted selection set.
type mockStore struct {
	set *SelectionSet
}

func (m *mockStore) LoadSelectionSet(context.Context, *solution.Solution, string) (*SelectionSet, error) {
	return m.set, nil
}

func newTestOrchestrator(t *testing.T, opts Options, resolver Resolver, emitter Emitter, store SelectionStore) *Orchestrator {
	t.Helper()
	if resolver == nil {
		resolver = &mockResolver{}
	}
	if emitter == nil {
		emitter = &mockEmitter{}
	}
	if store == nil {
		store = &mockStore{}
	}
	return NewOrchestrator(opts, Dependencies{
		Parser:    solution.NewParser(),
		Resolver:  resolver,
		Emitter:   emitter,
		Selection: store,
		Telemetry: newTestTelemetry(t),
	})
}

func TestConfigure(t *testing.T) {
	emitter := &mockEmitter{}
	o := newTestOrchestrator(t, Options{
		SolutionPath: writeSolutionTree(t),
		CheckSchema:  true,
		SyncConfigs:  true,
	}, nil, emitter, nil)

	if err := o.Configure(context.Background()); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	if emitter.req == nil {
		t.Fatal("emitter not invoked")
	}
	if emitter.req.Options.Convert {
		t.Error("configure requested the legacy export step")
	}
	if len(emitter.req.State.All) != 4 || len(emitter.req.State.Attempted) != 4 {
		t.Errorf("state All=%d Attempted=%d, want 4/4",
			len(emitter.req.State.All), len(emitter.req.State.Attempted))
	}
}

func TestConvertSelectsSubset(t *testing.T) {
	emitter := &mockEmitter{}
	o := newTestOrchestrator(t, Options{
		SolutionPath:    writeSolutionTree(t),
		ContextPatterns: []string{"app.debug"},
		CheckSchema:     true,
	}, nil, emitter, nil)

	if err := o.Convert(context.Background()); err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	req := emitter.req
	if !req.Options.Convert {
		t.Error("convert did not request the legacy export step")
	}
	if !req.Options.ExplicitSelection {
		t.Error("explicit selection not recorded")
	}
	// The index still covers all discovered contexts; only the explicit
	// selection was attempted.
	if len(req.State.All) != 4 {
		t.Errorf("All has %d entries, want 4", len(req.State.All))
	}
	if len(req.State.Attempted) != 1 || req.State.Attempted[0].Name != "app.debug+board" {
		t.Errorf("Attempted = %v", req.State.Attempted)
	}
}

func TestConvertFailsAfterEmission(t *testing.T) {
	emitter := &mockEmitter{}
	resolver := &mockResolver{fail: map[string]bool{"core.debug+board": true}}
	o := newTestOrchestrator(t, Options{
		SolutionPath: writeSolutionTree(t),
	}, resolver, emitter, nil)

	err := o.Convert(context.Background())
	if err == nil {
		t.Fatal("Convert succeeded despite a failed context")
	}
	if !IsResolution(err) {
		t.Errorf("error not classified as resolution: %v", err)
	}
	// Emission still happened, with the failure recorded.
	if emitter.req == nil {
		t.Fatal("emitter not invoked after processing failure")
	}
	if !emitter.req.State.IsFailed("core.debug+board") {
		t.Error("failed context not recorded in emitted state")
	}
}

func TestEmissionErrorIsFatal(t *testing.T) {
	emitter := &mockEmitter{emitErr: NewEmissionError("pack snapshot drift", nil)}
	o := newTestOrchestrator(t, Options{
		SolutionPath: writeSolutionTree(t),
	}, nil, emitter, nil)

	err := o.Convert(context.Background())
	if !IsEmission(err) {
		t.Errorf("emission error not propagated: %v", err)
	}
}

func TestInvalidLoadPolicyFailsFast(t *testing.T) {
	o := newTestOrchestrator(t, Options{
		SolutionPath: filepath.Join(t.TempDir(), "missing.solution.yml"),
		LoadPolicy:   "newest",
	}, nil, nil, nil)

	// The policy token is rejected before the (missing) solution file is
	// ever touched.
	err := o.Configure(context.Background())
	if !IsConfig(err) {
		t.Errorf("expected config error for bad policy token, got %v", err)
	}
}

func TestContextSetRestoresSelection(t *testing.T) {
	store := &mockStore{set: &SelectionSet{
		Contexts:  []string{"core.release+board", "app.release+board"},
		Toolchain: "gcc@12.2.0",
	}}
	emitter := &mockEmitter{}
	o := newTestOrchestrator(t, Options{
		SolutionPath:  writeSolutionTree(t),
		UseContextSet: true,
	}, nil, emitter, store)

	if err := o.Convert(context.Background()); err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	attempted := emitter.req.State.Attempted
	if len(attempted) != 2 {
		t.Fatalf("Attempted has %d entries, want 2", len(attempted))
	}
	if attempted[0].Name != "core.release+board" || attempted[1].Name != "app.release+board" {
		t.Errorf("Attempted = %v, %v", attempted[0].Name, attempted[1].Name)
	}
}

func TestContextSetAbsentSelectsNothing(t *testing.T) {
	emitter := &mockEmitter{}
	o := newTestOrchestrator(t, Options{
		SolutionPath:  writeSolutionTree(t),
		UseContextSet: true,
	}, nil, emitter, &mockStore{set: nil})

	if err := o.Convert(context.Background()); err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	// Nothing attempted, but the run proceeds and the index still covers
	// every discovered context.
	if len(emitter.req.State.Attempted) != 0 {
		t.Errorf("Attempted = %v, want empty", emitter.req.State.Attempted)
	}
	if len(emitter.req.State.All) != 4 {
		t.Errorf("All has %d entries, want 4", len(emitter.req.State.All))
	}
}

func TestSyncConfigsOperation(t *testing.T) {
	emitter := &mockEmitter{}
	o := newTestOrchestrator(t, Options{
		SolutionPath: writeSolutionTree(t),
		SyncConfigs:  false, // the dedicated operation ignores the toggle
	}, nil, emitter, nil)

	if err := o.SyncConfigs(context.Background()); err != nil {
		t.Fatalf("SyncConfigs failed: %v", err)
	}
	if emitter.syncCalls != 1 {
		t.Errorf("sync called %d times, want 1", emitter.syncCalls)
	}
	if emitter.req != nil {
		t.Error("dedicated sync operation ran a full emission pass")
	}
}

func TestHasUnresolvedVariables(t *testing.T) {
	resolver := &mockResolver{unresolved: map[string][]string{
		"app.debug+board": {"LINKER_SCRIPT"},
	}}
	o := newTestOrchestrator(t, Options{
		SolutionPath: writeSolutionTree(t),
	}, resolver, nil, nil)

	if err := o.Configure(context.Background()); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if !o.HasUnresolvedVariables() {
		t.Error("unresolved variables flag not surfaced")
	}
}

func TestDiscover(t *testing.T) {
	o := newTestOrchestrator(t, Options{
		SolutionPath: writeSolutionTree(t),
	}, nil, nil, nil)

	reg, err := o.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if reg.Len() != 4 {
		t.Errorf("discovered %d contexts, want 4", reg.Len())
	}
	if o.State() != nil {
		t.Error("Discover ran processing")
	}
}
