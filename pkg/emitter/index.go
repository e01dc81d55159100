package emitter

import (
	"context"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/buildsmith/buildsmith/pkg/engine"
)

type indexDoc struct {
	BuildIdx indexBody `yaml:"build-idx"`
}

type indexBody struct {
	GeneratedBy string       `yaml:"generated-by"`
	Solution    string       `yaml:"solution"`
	Contexts    []indexEntry `yaml:"contexts"`
}

type indexEntry struct {
	Context     string `yaml:"context"`
	ProjectFile string `yaml:"project-file"`
	Selected    bool   `yaml:"selected"`
	Processed   bool   `yaml:"processed,omitempty"`
	Failed      bool   `yaml:"failed,omitempty"`
}

// indexPath returns <outdir>/<solution>.build-idx.yml.
func indexPath(name, outDir string) string {
	return filepath.Join(outDir, name+".build-idx.yml")
}

// emitIndex writes the context index over every discovered context in
// declaration order, independent of selection.
func (e *Emitter) emitIndex(ctx context.Context, req *engine.EmitRequest, outDir string) error {
	body := indexBody{
		GeneratedBy: "buildsmith",
		Solution:    req.Solution.FilePath,
	}
	for _, bc := range req.State.All {
		body.Contexts = append(body.Contexts, indexEntry{
			Context:     bc.Name,
			ProjectFile: bc.ProjectFile,
			Selected:    bc.Selected,
			Processed:   bc.Processed,
			Failed:      bc.Failed(),
		})
	}

	data, err := yaml.Marshal(&indexDoc{BuildIdx: body})
	if err != nil {
		return engine.NewEmissionError("failed to encode context index", err).WithArtifact("index")
	}
	return e.writeArtifact(ctx, "index", indexPath(req.Solution.Name, outDir), data, req.Options.DryRun)
}
