package solution

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/buildsmith/buildsmith/pkg/fsutil"
)

// Parser reads and validates solution, project and defaults files. Parsed
// projects are cached by canonical path so that a project referenced by many
// contexts is read once.
type Parser struct {
	validate *validator.Validate
	schemas  *SchemaRegistry

	solution *Solution
	defaults *Defaults
	projects map[string]*Project
}

// NewParser creates a parser with the built-in schemas.
func NewParser() *Parser {
	return &Parser{
		validate: validator.New(),
		schemas:  NewSchemaRegistry(),
		projects: make(map[string]*Project),
	}
}

// Solution returns the last parsed solution, or nil.
func (p *Parser) Solution() *Solution {
	return p.solution
}

// Defaults returns the parsed defaults file, or nil when none was parsed.
func (p *Parser) Defaults() *Defaults {
	return p.defaults
}

// Project returns a previously parsed project by canonical file path.
func (p *Parser) Project(path string) (*Project, bool) {
	prj, ok := p.projects[path]
	return prj, ok
}

// YAML document shapes. Mapping into descriptor types happens after schema
// and field validation.

type solutionDoc struct {
	Solution struct {
		Name        string            `yaml:"name"`
		Description string            `yaml:"description"`
		OutputDir   string            `yaml:"output-dir"`
		UseDefaults bool              `yaml:"use-defaults"`
		FrozenPacks bool              `yaml:"frozen-packs"`
		Projects    []projectRefDoc   `yaml:"projects"`
		BuildTypes  []typeDoc         `yaml:"build-types"`
		TargetTypes []typeDoc         `yaml:"target-types"`
		Packs       []packRefDoc      `yaml:"packs"`
	} `yaml:"solution"`
}

type projectRefDoc struct {
	Project string `yaml:"project"`
}

type packRefDoc struct {
	Pack string `yaml:"pack"`
}

type typeDoc struct {
	Name      string            `yaml:"name"`
	Device    string            `yaml:"device"`
	Board     string            `yaml:"board"`
	Toolchain string            `yaml:"toolchain"`
	Vars      map[string]string `yaml:"vars"`
}

type projectDoc struct {
	Project struct {
		Name        string            `yaml:"name"`
		Description string            `yaml:"description"`
		Toolchain   string            `yaml:"toolchain"`
		Device      string            `yaml:"device"`
		Board       string            `yaml:"board"`
		Components  []componentRefDoc `yaml:"components"`
		Packs       []packRefDoc      `yaml:"packs"`
		Vars        map[string]string `yaml:"vars"`
	} `yaml:"project"`
}

type componentRefDoc struct {
	Component string `yaml:"component"`
}

type defaultsDoc struct {
	Defaults struct {
		Toolchain string            `yaml:"toolchain"`
		Vars      map[string]string `yaml:"vars"`
	} `yaml:"defaults"`
}

// readDocument loads a YAML file, optionally schema-checks it, and decodes it
// into out.
func (p *Parser) readDocument(path, schemaName string, checkSchema bool, out interface{}) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%s: failed to read file: %w", path, err)
	}

	if checkSchema {
		var generic map[string]interface{}
		if err := yaml.Unmarshal(raw, &generic); err != nil {
			return fmt.Errorf("%s: invalid YAML: %w", path, err)
		}
		if err := p.schemas.Validate(schemaName, generic); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: invalid YAML: %w", path, err)
	}
	return nil
}

// ParseSolution parses a solution file into an immutable Solution descriptor,
// deriving one ContextDescriptor per project x build-type x target-type
// combination in declaration order. frozenPacks forces the frozen-pack flag
// regardless of the file's own setting.
func (p *Parser) ParseSolution(path string, checkSchema, frozenPacks bool) (*Solution, error) {
	canonical, err := fsutil.Canonical(path)
	if err != nil {
		return nil, err
	}

	var doc solutionDoc
	if err := p.readDocument(canonical, "solution", checkSchema, &doc); err != nil {
		return nil, err
	}

	name := doc.Solution.Name
	if name == "" {
		name = baseNameWithout(canonical, ".solution")
	}

	sol := &Solution{
		Name:        name,
		FilePath:    canonical,
		Directory:   filepath.ToSlash(filepath.Dir(canonical)),
		OutputDir:   doc.Solution.OutputDir,
		UseDefaults: doc.Solution.UseDefaults,
		FrozenPacks: doc.Solution.FrozenPacks || frozenPacks,
	}
	if sol.OutputDir == "" {
		sol.OutputDir = "out"
	}

	for _, ref := range doc.Solution.Projects {
		if ref.Project == "" {
			return nil, fmt.Errorf("%s: project reference without a path", canonical)
		}
		sol.Projects = append(sol.Projects, ref.Project)
	}
	for _, bt := range doc.Solution.BuildTypes {
		sol.BuildTypes = append(sol.BuildTypes, TypeEntry(bt))
	}
	for _, tt := range doc.Solution.TargetTypes {
		sol.TargetTypes = append(sol.TargetTypes, TypeEntry(tt))
	}
	for _, ref := range doc.Solution.Packs {
		req, err := ParsePackID(ref.Pack)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", canonical, err)
		}
		sol.Packs = append(sol.Packs, req)
	}

	// Derive the context matrix in declaration order: projects outermost,
	// then build-types, then target-types. Artifact diffability depends on
	// this order being stable across reruns.
	for _, prj := range sol.Projects {
		projectName := baseNameWithout(prj, ".project")
		for _, bt := range sol.BuildTypes {
			for _, tt := range sol.TargetTypes {
				sol.Contexts = append(sol.Contexts, ContextDescriptor{
					Project:     projectName,
					ProjectFile: prj,
					BuildType:   bt.Name,
					TargetType:  tt.Name,
				})
			}
		}
	}

	if err := p.validate.Struct(sol); err != nil {
		return nil, fmt.Errorf("%s: invalid solution: %w", canonical, err)
	}

	p.solution = sol
	return sol, nil
}

// ParseProject parses a project file, caching the result by canonical path.
func (p *Parser) ParseProject(path string, checkSchema bool) (*Project, error) {
	canonical, err := fsutil.Canonical(path)
	if err != nil {
		return nil, err
	}
	if prj, ok := p.projects[canonical]; ok {
		return prj, nil
	}

	var doc projectDoc
	if err := p.readDocument(canonical, "project", checkSchema, &doc); err != nil {
		return nil, err
	}

	name := doc.Project.Name
	if name == "" {
		name = baseNameWithout(canonical, ".project")
	}

	prj := &Project{
		Name:      name,
		FilePath:  canonical,
		Directory: filepath.ToSlash(filepath.Dir(canonical)),
		Toolchain: doc.Project.Toolchain,
		Device:    doc.Project.Device,
		Board:     doc.Project.Board,
		Vars:      doc.Project.Vars,
	}
	for _, ref := range doc.Project.Components {
		req, err := ParseComponentID(ref.Component)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", canonical, err)
		}
		prj.Components = append(prj.Components, req)
	}
	for _, ref := range doc.Project.Packs {
		req, err := ParsePackID(ref.Pack)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", canonical, err)
		}
		prj.Packs = append(prj.Packs, req)
	}

	if err := p.validate.Struct(prj); err != nil {
		return nil, fmt.Errorf("%s: invalid project: %w", canonical, err)
	}

	p.projects[canonical] = prj
	return prj, nil
}

// ParseDefaults parses the shared defaults file.
func (p *Parser) ParseDefaults(path string, checkSchema bool) (*Defaults, error) {
	canonical, err := fsutil.Canonical(path)
	if err != nil {
		return nil, err
	}

	var doc defaultsDoc
	if err := p.readDocument(canonical, "defaults", checkSchema, &doc); err != nil {
		return nil, err
	}

	p.defaults = &Defaults{
		FilePath:  canonical,
		Toolchain: doc.Defaults.Toolchain,
		Vars:      doc.Defaults.Vars,
	}
	return p.defaults, nil
}

// FindDefaults locates the shared defaults.yml in the given search
// directories. Zero matches return ("", nil); more than one is an error.
func FindDefaults(searchDirs []string) (string, error) {
	return fsutil.FindFile(searchDirs, "defaults.yml")
}

// ValidateProjectLayout enforces the structural rules across the solution's
// project references: duplicate project file base names are a hard error,
// projects sharing a directory only produce a warning.
func ValidateProjectLayout(sol *Solution) ([]string, error) {
	if len(sol.Projects) < 2 {
		return nil, nil
	}

	names := make(map[string]string)
	dirs := make(map[string]string)
	var warnings []string

	for _, prj := range sol.Projects {
		base := filepath.Base(prj)
		if prev, dup := names[base]; dup {
			return nil, fmt.Errorf("%s: project file names must be unique: %s conflicts with %s", sol.FilePath, prj, prev)
		}
		names[base] = prj

		dir := filepath.ToSlash(filepath.Dir(prj))
		if prev, shared := dirs[dir]; shared {
			warnings = append(warnings,
				fmt.Sprintf("project files should be placed in separate sub-directories: %s and %s share %s", prev, prj, dir))
		} else {
			dirs[dir] = prj
		}
	}
	return warnings, nil
}

// baseNameWithout strips the directory, the YAML extension and the given
// qualifier suffix from a file path: "core/app.project.yml" -> "app".
func baseNameWithout(path, qualifier string) string {
	base := filepath.Base(filepath.ToSlash(path))
	base = strings.TrimSuffix(base, ".yaml")
	base = strings.TrimSuffix(base, ".yml")
	base = strings.TrimSuffix(base, qualifier)
	return base
}
