package solution

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleSolution = `
solution:
  name: demo
  output-dir: build
  projects:
    - project: core/core.project.yml
    - project: app/app.project.yml
  build-types:
    - name: debug
      vars:
        OPT: "0"
    - name: release
  target-types:
    - name: evalboard
      device: STM32F407
      toolchain: gcc@12
  packs:
    - pack: ARM::CMSIS@5.9.0
    - pack: Keil::STM32F4_DFP
`

const sampleProject = `
project:
  toolchain: gcc
  components:
    - component: Device:Startup
    - component: RTOS:Kernel:Core@2.1.0
  packs:
    - pack: ARM::RTOS
  vars:
    HEAP: "0x400"
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	return path
}

func TestParseSolution(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "demo.solution.yml", sampleSolution)

	p := NewParser()
	sol, err := p.ParseSolution(path, true, false)
	if err != nil {
		t.Fatalf("ParseSolution failed: %v", err)
	}

	if sol.Name != "demo" {
		t.Errorf("Name = %q, want demo", sol.Name)
	}
	if sol.OutputDir != "build" {
		t.Errorf("OutputDir = %q, want build", sol.OutputDir)
	}
	if len(sol.Packs) != 2 || sol.Packs[0].Version != "5.9.0" || sol.Packs[1].Pinned() {
		t.Errorf("unexpected packs: %+v", sol.Packs)
	}

	// 2 projects x 2 build-types x 1 target-type, declaration order.
	want := []string{
		"core.debug+evalboard",
		"core.release+evalboard",
		"app.debug+evalboard",
		"app.release+evalboard",
	}
	if len(sol.Contexts) != len(want) {
		t.Fatalf("got %d contexts, want %d", len(sol.Contexts), len(want))
	}
	for i, w := range want {
		if got := sol.Contexts[i].ContextName(); got != w {
			t.Errorf("context[%d] = %q, want %q", i, got, w)
		}
	}
}

func TestParseSolutionNameFromFile(t *testing.T) {
	dir := t.TempDir()
	doc := strings.Replace(sampleSolution, "  name: demo\n", "", 1)
	path := writeFile(t, dir, "gadget.solution.yml", doc)

	sol, err := NewParser().ParseSolution(path, true, false)
	if err != nil {
		t.Fatalf("ParseSolution failed: %v", err)
	}
	if sol.Name != "gadget" {
		t.Errorf("Name = %q, want gadget", sol.Name)
	}
}

func TestParseSolutionFrozenPacksFlag(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "demo.solution.yml", sampleSolution)

	sol, err := NewParser().ParseSolution(path, true, true)
	if err != nil {
		t.Fatalf("ParseSolution failed: %v", err)
	}
	if !sol.FrozenPacks {
		t.Error("FrozenPacks not forced by flag")
	}
}

func TestParseSolutionSchemaViolation(t *testing.T) {
	dir := t.TempDir()
	bad := strings.Replace(sampleSolution, "name: demo", "name: \"bad name!\"", 1)
	path := writeFile(t, dir, "bad.solution.yml", bad)

	if _, err := NewParser().ParseSolution(path, true, false); err == nil {
		t.Fatal("expected schema error for invalid solution name")
	}

	// The same document passes with the schema check disabled; struct
	// validation does not constrain the name format.
	if _, err := NewParser().ParseSolution(path, false, false); err != nil {
		t.Fatalf("ParseSolution without schema check failed: %v", err)
	}
}

func TestParseSolutionMissingProjects(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "empty.solution.yml", `
solution:
  build-types:
    - name: debug
  target-types:
    - name: board
  projects: []
`)
	if _, err := NewParser().ParseSolution(path, false, false); err == nil {
		t.Fatal("expected error for solution without projects")
	}
}

func TestParseProject(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "core/core.project.yml", sampleProject)

	p := NewParser()
	prj, err := p.ParseProject(path, true)
	if err != nil {
		t.Fatalf("ParseProject failed: %v", err)
	}
	if prj.Name != "core" {
		t.Errorf("Name = %q, want core", prj.Name)
	}
	if len(prj.Components) != 2 {
		t.Fatalf("got %d components, want 2", len(prj.Components))
	}
	if id := prj.Components[1].ID(); id != "RTOS:Kernel:Core@2.1.0" {
		t.Errorf("component ID = %q", id)
	}
	if prj.Vars["HEAP"] != "0x400" {
		t.Errorf("vars not parsed: %+v", prj.Vars)
	}

	// Second parse returns the cached instance.
	again, err := p.ParseProject(path, true)
	if err != nil {
		t.Fatalf("second ParseProject failed: %v", err)
	}
	if again != prj {
		t.Error("project not cached by canonical path")
	}
}

func TestParseDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "defaults.yml", `
defaults:
  toolchain: clang@17
  vars:
    OPT: "2"
`)
	p := NewParser()
	def, err := p.ParseDefaults(path, true)
	if err != nil {
		t.Fatalf("ParseDefaults failed: %v", err)
	}
	if def.Toolchain != "clang@17" || def.Vars["OPT"] != "2" {
		t.Errorf("unexpected defaults: %+v", def)
	}
	if p.Defaults() != def {
		t.Error("Defaults() does not return the parsed file")
	}
}

func TestValidateProjectLayout(t *testing.T) {
	tests := []struct {
		name         string
		projects     []string
		wantErr      bool
		wantWarnings int
	}{
		{"single project", []string{"core/core.project.yml"}, false, 0},
		{"separate dirs", []string{"core/core.project.yml", "app/app.project.yml"}, false, 0},
		{"shared dir warns", []string{"src/core.project.yml", "src/app.project.yml"}, false, 1},
		{"duplicate base name fails", []string{"a/app.project.yml", "b/app.project.yml"}, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sol := &Solution{FilePath: "demo.solution.yml", Projects: tt.projects}
			warnings, err := ValidateProjectLayout(sol)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(warnings) != tt.wantWarnings {
				t.Errorf("got %d warnings, want %d: %v", len(warnings), tt.wantWarnings, warnings)
			}
		})
	}
}

func TestFindDefaults(t *testing.T) {
	solDir := t.TempDir()
	rootDir := t.TempDir()

	// No file anywhere: not an error, just absent.
	path, err := FindDefaults([]string{solDir, rootDir})
	if err != nil || path != "" {
		t.Fatalf("FindDefaults = (%q, %v), want empty", path, err)
	}

	writeFile(t, solDir, "defaults.yml", "defaults:\n  toolchain: gcc\n")
	path, err = FindDefaults([]string{solDir, rootDir})
	if err != nil || path == "" {
		t.Fatalf("FindDefaults = (%q, %v), want hit", path, err)
	}

	// Two candidates are ambiguous.
	writeFile(t, rootDir, "defaults.yml", "defaults:\n  toolchain: clang\n")
	if _, err := FindDefaults([]string{solDir, rootDir}); err == nil {
		t.Fatal("expected error for multiple defaults files")
	}
}

func TestParsePackID(t *testing.T) {
	tests := []struct {
		id      string
		want    PackRequirement
		wantErr bool
	}{
		{"ARM::CMSIS", PackRequirement{Vendor: "ARM", Name: "CMSIS"}, false},
		{"ARM::CMSIS@5.9.0", PackRequirement{Vendor: "ARM", Name: "CMSIS", Version: "5.9.0"}, false},
		{"CMSIS", PackRequirement{}, true},
		{"::CMSIS", PackRequirement{}, true},
		{"ARM::", PackRequirement{}, true},
	}
	for _, tt := range tests {
		got, err := ParsePackID(tt.id)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePackID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParsePackID(%q) = %+v, want %+v", tt.id, got, tt.want)
		}
	}
}

func TestParseComponentID(t *testing.T) {
	tests := []struct {
		id      string
		want    ComponentRequirement
		wantErr bool
	}{
		{"Device:Startup", ComponentRequirement{Class: "Device", Group: "Startup"}, false},
		{"RTOS:Kernel:Core@2.1.0", ComponentRequirement{Class: "RTOS", Group: "Kernel", Sub: "Core", Version: "2.1.0"}, false},
		{"Device", ComponentRequirement{}, true},
		{":Startup", ComponentRequirement{}, true},
		{"a:b:c:d", ComponentRequirement{}, true},
	}
	for _, tt := range tests {
		got, err := ParseComponentID(tt.id)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseComponentID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseComponentID(%q) = %+v, want %+v", tt.id, got, tt.want)
		}
	}
}
