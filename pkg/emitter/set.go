package emitter

import (
	"context"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/buildsmith/buildsmith/pkg/engine"
	"github.com/buildsmith/buildsmith/pkg/fsutil"
	"github.com/buildsmith/buildsmith/pkg/solution"
)

type setDoc struct {
	BuildSet setBody `yaml:"build-set"`
}

type setBody struct {
	Contexts  []string `yaml:"contexts"`
	Toolchain string   `yaml:"toolchain,omitempty"`
}

// selectionSetPath returns <outdir>/<solution>.build-set.yml.
func selectionSetPath(name, outDir string) string {
	return filepath.Join(outDir, name+".build-set.yml")
}

// emitSelectionSet persists the selection so a later run can reproduce it.
// The set is written for an explicit selection and rewritten when a prior set
// was restored, keeping the persisted toolchain current; only when neither
// applies is there nothing to persist, and the step warns.
func (e *Emitter) emitSelectionSet(ctx context.Context, req *engine.EmitRequest, outDir string) error {
	path := selectionSetPath(req.Solution.Name, outDir)

	if !req.Options.ExplicitSelection && !fsutil.Exists(path) {
		e.log.Warn("no contexts specified and no context set exists, selection not persisted")
		return nil
	}

	body := setBody{}
	for _, bc := range req.State.Attempted {
		body.Contexts = append(body.Contexts, bc.Name)
	}
	if req.State.Toolchain != nil {
		body.Toolchain = req.State.Toolchain.ID()
	}

	data, err := yaml.Marshal(&setDoc{BuildSet: body})
	if err != nil {
		return engine.NewEmissionError("failed to encode context set", err).WithArtifact("selection-set")
	}
	return e.writeArtifact(ctx, "selection-set", path, data, req.Options.DryRun)
}

// LoadSelectionSet reads a previously persisted selection set. A missing file
// is not an error: it returns a nil set.
func (e *Emitter) LoadSelectionSet(_ context.Context, sol *solution.Solution, outputDir string) (*engine.SelectionSet, error) {
	path := selectionSetPath(sol.Name, resolveOutputDir(sol, outputDir))
	if !fsutil.Exists(path) {
		return nil, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, engine.NewEmissionError("failed to read context set", err).WithFile(path)
	}
	var doc setDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, engine.NewEmissionError("invalid context set", err).WithFile(path)
	}

	return &engine.SelectionSet{
		Contexts:  doc.BuildSet.Contexts,
		Toolchain: doc.BuildSet.Toolchain,
	}, nil
}
