package emitter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/buildsmith/buildsmith/pkg/engine"
	"github.com/buildsmith/buildsmith/pkg/fsutil"
)

type packLockDoc struct {
	PackLock packLockBody `yaml:"pack-lock"`
}

type packLockBody struct {
	Solution string          `yaml:"solution"`
	Packs    []packLockEntry `yaml:"packs"`
}

type packLockEntry struct {
	Pack   string `yaml:"pack"`
	Pinned bool   `yaml:"pinned,omitempty"`
}

// packLockPath returns <outdir>/<solution>.pack-lock.yml.
func packLockPath(name, outDir string) string {
	return filepath.Join(outDir, name+".pack-lock.yml")
}

// emitPackLock computes the pack snapshot and either verifies it against the
// committed lock file (frozen) or writes it. Verification runs before any
// other artifact so drift fails the run without touching the output tree.
func (e *Emitter) emitPackLock(ctx context.Context, req *engine.EmitRequest, outDir string) error {
	snapshot := computePackSnapshot(req)
	path := packLockPath(req.Solution.Name, outDir)

	if req.Options.FrozenPacks {
		return e.verifyFrozenSnapshot(snapshot, path)
	}

	if len(snapshot) == 0 {
		return nil
	}
	doc := packLockDoc{PackLock: packLockBody{Solution: req.Solution.Name, Packs: snapshot}}
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return engine.NewEmissionError("failed to encode pack lock", err).WithArtifact("pack-lock")
	}
	return e.writeArtifact(ctx, "pack-lock", path, data, req.Options.DryRun)
}

// computePackSnapshot collects the union of resolved packs. An explicit
// selection scopes the snapshot to the attempted contexts; otherwise the
// snapshot covers the whole solution: every successfully processed context
// plus the solution-level pack requirements no context happened to resolve.
func computePackSnapshot(req *engine.EmitRequest) []packLockEntry {
	contexts := req.State.All
	if req.Options.ExplicitSelection {
		contexts = req.State.Attempted
	}

	seen := make(map[string]bool)
	covered := make(map[string]bool)
	var entries []packLockEntry
	for _, bc := range contexts {
		if !bc.Processed || bc.Failed() {
			continue
		}
		for _, p := range bc.Packs {
			id := p.ID()
			if seen[id] {
				continue
			}
			seen[id] = true
			covered[p.Vendor+"::"+p.Name] = true
			entries = append(entries, packLockEntry{Pack: id, Pinned: p.Pinned})
		}
	}
	if !req.Options.ExplicitSelection {
		for _, p := range req.Solution.Packs {
			if covered[p.Vendor+"::"+p.Name] || seen[p.ID()] {
				continue
			}
			seen[p.ID()] = true
			entries = append(entries, packLockEntry{Pack: p.ID(), Pinned: p.Pinned()})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Pack < entries[j].Pack })
	return entries
}

// verifyFrozenSnapshot compares the computed snapshot against the committed
// lock file. Any difference is an emission error; the lock file is never
// rewritten while frozen.
func (e *Emitter) verifyFrozenSnapshot(snapshot []packLockEntry, path string) error {
	if !fsutil.Exists(path) {
		return engine.NewEmissionError(
			"pack set is frozen but no committed pack lock exists", nil).WithArtifact("pack-lock").WithFile(path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return engine.NewEmissionError("failed to read committed pack lock", err).WithArtifact("pack-lock").WithFile(path)
	}
	var committed packLockDoc
	if err := yaml.Unmarshal(raw, &committed); err != nil {
		return engine.NewEmissionError("invalid committed pack lock", err).WithArtifact("pack-lock").WithFile(path)
	}

	if diff := snapshotDiff(committed.PackLock.Packs, snapshot); diff != "" {
		return engine.NewEmissionError(
			fmt.Sprintf("pack snapshot differs from the committed pack lock: %s", diff), nil).
			WithArtifact("pack-lock").WithFile(path)
	}
	e.log.Debugf("frozen pack snapshot matches %s", path)
	return nil
}

// snapshotDiff reports the pack IDs present in only one of the two snapshots,
// or "" when they match.
func snapshotDiff(committed, computed []packLockEntry) string {
	ids := func(entries []packLockEntry) map[string]bool {
		m := make(map[string]bool, len(entries))
		for _, entry := range entries {
			m[entry.Pack] = true
		}
		return m
	}
	have, want := ids(committed), ids(computed)

	var missing, extra []string
	for id := range want {
		if !have[id] {
			extra = append(extra, id)
		}
	}
	for id := range have {
		if !want[id] {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)

	var parts []string
	if len(extra) > 0 {
		parts = append(parts, "not committed: "+strings.Join(extra, ", "))
	}
	if len(missing) > 0 {
		parts = append(parts, "no longer resolved: "+strings.Join(missing, ", "))
	}
	return strings.Join(parts, "; ")
}
