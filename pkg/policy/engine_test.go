package policy

import (
	"context"
	"testing"

	"github.com/buildsmith/buildsmith/pkg/engine"
	"github.com/buildsmith/buildsmith/pkg/solution"
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

func newResolvedContext(frozen bool) *engine.Context {
	return &engine.Context{
		Name:     "app.debug+board",
		Solution: &solution.Solution{Name: "demo", FrozenPacks: frozen},
		Toolchain: &engine.ResolvedToolchain{
			Name: "gcc", Version: "12.2.0", Root: "/opt/gcc",
		},
		Packs: []engine.ResolvedPack{
			{Vendor: "ARM", Name: "CMSIS", Version: "5.9.0", Pinned: true},
		},
		Components: []engine.ResolvedComponent{
			{Class: "CMSIS", Group: "CORE", Version: "5.9.0", PackID: "ARM::CMSIS@5.9.0"},
		},
	}
}

func TestNewEngineLoadsBuiltins(t *testing.T) {
	e, err := NewEngine(newTestTelemetry(t))
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	policies := e.ListPolicies()
	if len(policies) != len(GetBuiltinPolicies()) {
		t.Fatalf("expected %d built-in policies, got %d", len(GetBuiltinPolicies()), len(policies))
	}
	names := make(map[string]bool)
	for _, p := range policies {
		names[p.Name] = true
	}
	if !names["frozen-unpinned-packs"] {
		t.Error("frozen-unpinned-packs policy not loaded")
	}
}

func TestCheckContextCleanPasses(t *testing.T) {
	e, err := NewEngine(newTestTelemetry(t))
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	blocking, err := e.CheckContext(context.Background(), newResolvedContext(true))
	if err != nil {
		t.Fatalf("CheckContext failed: %v", err)
	}
	if len(blocking) != 0 {
		t.Errorf("expected no blocking violations, got %v", blocking)
	}
}

func TestCheckContextFrozenUnpinnedDenied(t *testing.T) {
	e, err := NewEngine(newTestTelemetry(t))
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	bc := newResolvedContext(true)
	bc.Packs = append(bc.Packs, engine.ResolvedPack{
		Vendor: "Keil", Name: "STM32F4_DFP", Version: "2.16.0",
	})

	blocking, err := e.CheckContext(context.Background(), bc)
	if err != nil {
		t.Fatalf("CheckContext failed: %v", err)
	}
	if len(blocking) != 1 {
		t.Fatalf("expected 1 blocking violation, got %d: %v", len(blocking), blocking)
	}
}

func TestCheckContextUnfrozenUnpinnedAllowed(t *testing.T) {
	e, err := NewEngine(newTestTelemetry(t))
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	bc := newResolvedContext(false)
	bc.Packs[0].Pinned = false

	blocking, err := e.CheckContext(context.Background(), bc)
	if err != nil {
		t.Fatalf("CheckContext failed: %v", err)
	}
	if len(blocking) != 0 {
		t.Errorf("unfrozen solution should not block on unpinned packs, got %v", blocking)
	}
}

func TestCheckContextWarningsDoNotBlock(t *testing.T) {
	e, err := NewEngine(newTestTelemetry(t))
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	// Trips the warning-severity toolchain-without-root policy.
	bc := newResolvedContext(true)
	bc.Toolchain.Root = ""

	blocking, err := e.CheckContext(context.Background(), bc)
	if err != nil {
		t.Fatalf("CheckContext failed: %v", err)
	}
	if len(blocking) != 0 {
		t.Errorf("warning severity must not block, got %v", blocking)
	}
}

func TestAddPolicyRejectsInvalidRego(t *testing.T) {
	e, err := NewEngine(newTestTelemetry(t))
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	bad := &Policy{
		Name:    "broken",
		Rego:    "package broken\n\nimport rego.v1\n\ndeny contains msg if {",
		Enabled: true,
	}
	if err := e.addPolicy(bad); err == nil {
		t.Error("expected compile error for invalid Rego")
	}
}

func TestExtractPackageName(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"package buildsmith.packs\n\nimport rego.v1\n\ndeny contains msg if { msg := \"x\" }", "buildsmith.packs"},
		{"# comment\npackage custom\n", "custom"},
		{"no package line", "buildsmith.policies"},
	}
	for _, tt := range tests {
		if got := extractPackageName(tt.code); got != tt.want {
			t.Errorf("extractPackageName(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
}
