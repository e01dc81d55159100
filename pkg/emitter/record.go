package emitter

import (
	"context"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/buildsmith/buildsmith/pkg/engine"
)

type recordDoc struct {
	Build recordBody `yaml:"build"`
}

type recordBody struct {
	GeneratedBy string `yaml:"generated-by"`
	Context     string `yaml:"context"`
	Solution    string `yaml:"solution"`
	Project     string `yaml:"project"`
	BuildType   string `yaml:"build-type"`
	TargetType  string `yaml:"target-type"`

	Device    string                    `yaml:"device,omitempty"`
	Board     string                    `yaml:"board,omitempty"`
	Toolchain *engine.ResolvedToolchain `yaml:"toolchain,omitempty"`

	Output engine.Directories `yaml:"output"`

	Packs      []string `yaml:"packs,omitempty"`
	Components []string `yaml:"components,omitempty"`

	Variables           map[string]string `yaml:"variables,omitempty"`
	UnresolvedVariables []string          `yaml:"unresolved-variables,omitempty"`

	// Errors tags the record of a failed context so downstream consumers can
	// tell a stale record from a fresh failed one.
	Errors []string `yaml:"errors,omitempty"`
}

// recordPath returns <outdir>/<context>/<context>.build.yml.
func recordPath(contextName, outDir string) string {
	return filepath.Join(outDir, contextName, contextName+".build.yml")
}

// emitBuildRecord writes the per-context build record. Failed contexts still
// get a record carrying the resolution error.
func (e *Emitter) emitBuildRecord(ctx context.Context, req *engine.EmitRequest, bc *engine.Context, outDir string) error {
	body := recordBody{
		GeneratedBy: "buildsmith",
		Context:     bc.Name,
		Solution:    req.Solution.FilePath,
		Project:     bc.ProjectFile,
		BuildType:   bc.Descriptor.BuildType,
		TargetType:  bc.Descriptor.TargetType,
		Device:      bc.Device,
		Board:       bc.Board,
		Toolchain:   bc.Toolchain,
		Output:      bc.Directories,
		Variables:   bc.Variables,

		UnresolvedVariables: bc.UnresolvedVariables,
	}
	for _, p := range bc.Packs {
		body.Packs = append(body.Packs, p.ID())
	}
	for _, c := range bc.Components {
		body.Components = append(body.Components, c.ID())
	}
	if bc.Failed() {
		body.Errors = []string{bc.Err.Error()}
	}

	data, err := yaml.Marshal(&recordDoc{Build: body})
	if err != nil {
		return engine.NewEmissionError("failed to encode build record", err).
			WithArtifact("build-record").WithBuildContext(bc.Name)
	}
	return e.writeArtifact(ctx, "build-record", recordPath(bc.Name, outDir), data, req.Options.DryRun)
}
