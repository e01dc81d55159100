package emitter

import (
	"context"
	"path/filepath"

	"github.com/buildsmith/buildsmith/pkg/engine"
	"github.com/buildsmith/buildsmith/pkg/fsutil"
	"github.com/buildsmith/buildsmith/pkg/solution"
	"github.com/buildsmith/buildsmith/pkg/telemetry"
)

// Emitter writes the artifact family. It implements engine.Emitter and
// engine.SelectionStore.
type Emitter struct {
	tel *telemetry.Telemetry
	log *telemetry.Logger
}

// New creates an emitter.
func New(tel *telemetry.Telemetry) *Emitter {
	return &Emitter{
		tel: tel,
		log: tel.Logger.NewComponentLogger("emitter"),
	}
}

// Emit writes the artifact family in order. Any step's error aborts the pass
// and is fatal to the operation; earlier artifacts remain on disk.
func (e *Emitter) Emit(ctx context.Context, req *engine.EmitRequest) error {
	outDir := resolveOutputDir(req.Solution, req.Options.OutputDir)

	if err := e.emitPackLock(ctx, req, outDir); err != nil {
		return err
	}

	if req.Options.SyncConfigs {
		if err := e.SyncConfigs(ctx, req.State.Attempted, req.Options.DryRun); err != nil {
			return engine.NewEmissionError("configuration sync failed", err)
		}
	}

	// The index covers every discovered context, selected or not, so it is
	// emitted whenever at least one context was materialized.
	if len(req.State.All) > 0 {
		if err := e.emitIndex(ctx, req, outDir); err != nil {
			return err
		}
	}

	if req.Options.UseContextSet {
		if err := e.emitSelectionSet(ctx, req, outDir); err != nil {
			return err
		}
	}

	for _, bc := range req.State.Attempted {
		if err := e.emitBuildRecord(ctx, req, bc, outDir); err != nil {
			return err
		}
	}

	// Exports mirror the build records: one per attempted context, failed
	// included.
	if req.Options.Convert {
		for _, bc := range req.State.Attempted {
			if err := e.emitLegacyExport(ctx, req, bc, outDir); err != nil {
				return err
			}
		}
	}
	return nil
}

// SyncConfigs regenerates the configuration files of every successfully
// resolved context in the given set.
func (e *Emitter) SyncConfigs(ctx context.Context, contexts []*engine.Context, dryRun bool) error {
	for _, bc := range contexts {
		if bc.Failed() || bc.Active == nil {
			continue
		}
		paths, err := bc.Active.SyncConfigFiles(ctx, dryRun)
		if err != nil {
			return engine.NewEmissionError("failed to sync configuration files", err).WithBuildContext(bc.Name)
		}
		for _, path := range paths {
			if dryRun {
				e.log.WithBuildContext(bc.Name).Infof("dry-run: would update %s", path)
				continue
			}
			e.log.WithBuildContext(bc.Name).Debugf("updated %s", path)
		}
	}
	return nil
}

// resolveOutputDir computes the artifact base directory: the override wins
// over the solution's declared directory, relative paths anchor at the
// solution directory.
func resolveOutputDir(sol *solution.Solution, override string) string {
	dir := sol.OutputDir
	if override != "" {
		dir = override
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(sol.Directory, dir)
	}
	return dir
}

// writeArtifact is the single write path for every artifact: span, dry-run
// gate, atomic write, metrics.
func (e *Emitter) writeArtifact(ctx context.Context, kind, path string, data []byte, dryRun bool) error {
	_, span := e.tel.Tracer.StartArtifactSpan(ctx, kind, path)
	defer span.End()

	if dryRun {
		e.log.WithArtifact(kind, path).Info("dry-run: artifact not written")
		telemetry.RecordSuccess(span)
		return nil
	}

	if err := fsutil.EnsureDir(filepath.Dir(path)); err != nil {
		telemetry.RecordError(span, err)
		return engine.NewEmissionError("failed to create artifact directory", err).WithArtifact(kind).WithFile(path)
	}
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		telemetry.RecordError(span, err)
		return engine.NewEmissionError("failed to write artifact", err).WithArtifact(kind).WithFile(path)
	}

	e.tel.Metrics.RecordArtifactWritten(kind)
	e.log.WithArtifact(kind, path).Debug("artifact written")
	telemetry.RecordSuccess(span)
	return nil
}
