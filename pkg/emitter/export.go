package emitter

import (
	"context"
	"encoding/xml"
	"path/filepath"

	"github.com/buildsmith/buildsmith/pkg/engine"
)

// Legacy single-file project export, consumed by older IDE tooling that
// predates the YAML artifact family.

type legacyProject struct {
	XMLName xml.Name `xml:"project"`
	Name    string   `xml:"name,attr"`
	Context string   `xml:"context,attr"`

	Device    string           `xml:"device,omitempty"`
	Board     string           `xml:"board,omitempty"`
	Toolchain *legacyToolchain `xml:"toolchain,omitempty"`
	Output    string           `xml:"output,omitempty"`

	Packs      []legacyPack      `xml:"packs>pack"`
	Components []legacyComponent `xml:"components>component"`
}

type legacyToolchain struct {
	Name    string `xml:"name,attr"`
	Version string `xml:"version,attr,omitempty"`
}

type legacyPack struct {
	Vendor  string `xml:"vendor,attr"`
	Name    string `xml:"name,attr"`
	Version string `xml:"version,attr,omitempty"`
}

type legacyComponent struct {
	Class   string `xml:"class,attr"`
	Group   string `xml:"group,attr"`
	Sub     string `xml:"sub,attr,omitempty"`
	Version string `xml:"version,attr,omitempty"`
	Pack    string `xml:"pack,attr,omitempty"`
}

// exportPath returns <outdir>/<context>/<context><suffix>.bprj.
func exportPath(contextName, suffix, outDir string) string {
	return filepath.Join(outDir, contextName, contextName+suffix+".bprj")
}

// emitLegacyExport writes the single-file export for one resolved context,
// plus the suffix-qualified unpinned variant when requested. Export write
// failures are immediately fatal.
func (e *Emitter) emitLegacyExport(ctx context.Context, req *engine.EmitRequest, bc *engine.Context, outDir string) error {
	path := exportPath(bc.Name, "", outDir)
	if err := e.writeLegacyProject(ctx, bc, path, true, req.Options.DryRun); err != nil {
		return err
	}

	if suffix := req.Options.ExportSuffix; suffix != "" {
		path := exportPath(bc.Name, suffix, outDir)
		if err := e.writeLegacyProject(ctx, bc, path, false, req.Options.DryRun); err != nil {
			return err
		}
	}
	return nil
}

func (e *Emitter) writeLegacyProject(ctx context.Context, bc *engine.Context, path string, pinned, dryRun bool) error {
	doc := buildLegacyProject(bc, pinned)
	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return engine.NewEmissionError("failed to encode legacy export", err).
			WithArtifact("legacy-project").WithBuildContext(bc.Name)
	}
	data = append([]byte(xml.Header), data...)
	data = append(data, '\n')
	return e.writeArtifact(ctx, "legacy-project", path, data, dryRun)
}

// buildLegacyProject projects a resolved context into the export document.
// The unpinned variant drops pack and component versions so downstream
// consumers re-resolve them.
func buildLegacyProject(bc *engine.Context, pinned bool) *legacyProject {
	doc := &legacyProject{
		Name:    bc.Descriptor.Project,
		Context: bc.Name,
		Device:  bc.Device,
		Board:   bc.Board,
		Output:  bc.Directories.Output,
	}
	if bc.Toolchain != nil {
		doc.Toolchain = &legacyToolchain{Name: bc.Toolchain.Name, Version: bc.Toolchain.Version}
	}
	for _, p := range bc.Packs {
		entry := legacyPack{Vendor: p.Vendor, Name: p.Name}
		if pinned {
			entry.Version = p.Version
		}
		doc.Packs = append(doc.Packs, entry)
	}
	for _, c := range bc.Components {
		entry := legacyComponent{Class: c.Class, Group: c.Group, Sub: c.Sub, Pack: c.PackID}
		if pinned {
			entry.Version = c.Version
		} else {
			entry.Pack = ""
		}
		doc.Components = append(doc.Components, entry)
	}
	return doc
}
