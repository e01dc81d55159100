package policy

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/open-policy-agent/opa/rego"

	"github.com/buildsmith/buildsmith/pkg/engine"
	"github.com/buildsmith/buildsmith/pkg/telemetry"
)

// Engine evaluates pack policies over resolved contexts. It implements the
// engine.PolicyChecker interface.
type Engine struct {
	mu       sync.RWMutex
	policies map[string]*Policy
	log      *telemetry.Logger
}

// NewEngine creates a policy engine with the built-in policies loaded.
func NewEngine(tel *telemetry.Telemetry) (*Engine, error) {
	e := &Engine{
		policies: make(map[string]*Policy),
		log:      tel.Logger.NewComponentLogger("policy"),
	}

	for _, p := range GetBuiltinPolicies() {
		p := p
		if err := e.addPolicy(&p); err != nil {
			return nil, fmt.Errorf("failed to load built-in policy %s: %w", p.Name, err)
		}
	}
	return e, nil
}

// LoadPolicies loads additional policy files from the given paths.
func (e *Engine) LoadPolicies(ctx context.Context, paths []string) error {
	loader := NewLoader(e.log)
	policies, err := loader.LoadFromPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range policies {
		if err := e.addPolicyLocked(&policies[i]); err != nil {
			return fmt.Errorf("failed to load policy %s: %w", policies[i].Name, err)
		}
	}
	e.log.Debugf("loaded %d policies from %d paths", len(policies), len(paths))
	return nil
}

// ListPolicies returns all loaded policies.
func (e *Engine) ListPolicies() []Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Policy, 0, len(e.policies))
	for _, p := range e.policies {
		out = append(out, *p)
	}
	return out
}

// CheckContext evaluates every enabled policy against the resolved context.
// Error-severity violations are returned; warning- and info-severity findings
// are logged and do not affect the result.
func (e *Engine) CheckContext(ctx context.Context, bc *engine.Context) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	input := buildInput(bc)

	var blocking []string
	for _, p := range e.policies {
		if !p.Enabled {
			continue
		}
		violations, err := e.evaluatePolicy(ctx, p, bc.Name, input)
		if err != nil {
			return nil, fmt.Errorf("policy %s evaluation failed: %w", p.Name, err)
		}
		for _, v := range violations {
			if v.Severity == SeverityError {
				blocking = append(blocking, v.Message)
				continue
			}
			e.log.WithBuildContext(bc.Name).Warnf("policy %s: %s", v.Policy, v.Message)
		}
	}
	return blocking, nil
}

// evaluatePolicy queries the policy's deny set for the given input.
func (e *Engine) evaluatePolicy(ctx context.Context, p *Policy, contextName string, input *Input) ([]Violation, error) {
	query := fmt.Sprintf("data.%s.deny", extractPackageName(p.Rego))

	r := rego.New(
		rego.Module(p.Name, p.Rego),
		rego.Query(query),
		rego.Input(input),
	)
	results, err := r.Eval(ctx)
	if err != nil {
		return nil, fmt.Errorf("policy evaluation error: %w", err)
	}

	var violations []Violation
	for _, result := range results {
		for _, expr := range result.Expressions {
			denySet, ok := expr.Value.([]interface{})
			if !ok {
				continue
			}
			for _, d := range denySet {
				violations = append(violations, makeViolation(p, contextName, d))
			}
		}
	}
	return violations, nil
}

// makeViolation converts one deny result into a Violation. String results
// carry just the message; object results may override severity.
func makeViolation(p *Policy, contextName string, result interface{}) Violation {
	v := Violation{
		Policy:   p.Name,
		Context:  contextName,
		Severity: p.Severity,
	}
	switch r := result.(type) {
	case string:
		v.Message = r
	case map[string]interface{}:
		if msg, ok := r["message"].(string); ok {
			v.Message = msg
		}
		if sev, ok := r["severity"].(string); ok {
			v.Severity = Severity(sev)
		}
	default:
		v.Message = fmt.Sprintf("%v", result)
	}
	return v
}

func (e *Engine) addPolicy(p *Policy) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addPolicyLocked(p)
}

// addPolicyLocked validates the policy by compiling it once before storing.
func (e *Engine) addPolicyLocked(p *Policy) error {
	r := rego.New(
		rego.Module(p.Name, p.Rego),
		rego.Query("data"),
	)
	if _, err := r.PrepareForEval(context.Background()); err != nil {
		return fmt.Errorf("failed to compile policy: %w", err)
	}
	e.policies[p.Name] = p
	return nil
}

// extractPackageName extracts the package name from Rego code.
func extractPackageName(code string) string {
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "package ") {
			parts := strings.Fields(trimmed)
			if len(parts) >= 2 {
				return parts[1]
			}
		}
	}
	return "buildsmith.policies"
}

// buildInput projects a resolved context into the policy input document.
func buildInput(bc *engine.Context) *Input {
	in := &Input{
		Context: InputContext{Name: bc.Name, Device: bc.Device, Board: bc.Board},
	}
	if bc.Solution != nil {
		in.Solution = InputSolution{Name: bc.Solution.Name, Frozen: bc.Solution.FrozenPacks}
	}
	if bc.Toolchain != nil {
		in.Toolchain = InputToolchain{
			Name: bc.Toolchain.Name, Version: bc.Toolchain.Version, Root: bc.Toolchain.Root,
		}
	}
	for _, p := range bc.Packs {
		in.Packs = append(in.Packs, InputPack{
			Vendor: p.Vendor, Name: p.Name, Version: p.Version, Pinned: p.Pinned,
		})
	}
	for _, c := range bc.Components {
		in.Components = append(in.Components, InputComponent{
			Class: c.Class, Group: c.Group, Sub: c.Sub, Version: c.Version, Pack: c.PackID,
		})
	}
	return in
}
