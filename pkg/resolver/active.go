package resolver

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/buildsmith/buildsmith/pkg/engine"
	"github.com/buildsmith/buildsmith/pkg/fsutil"
)

// activeProject is the per-context handle for config-file synchronization.
// It regenerates the generated component header for its context under
// <project dir>/cfg/<context name>/.
type activeProject struct {
	contextName string
	projectDir  string
	components  []engine.ResolvedComponent
}

func newActiveProject(bc *engine.Context) *activeProject {
	return &activeProject{
		contextName: bc.Name,
		projectDir:  bc.Project.Directory,
		components:  bc.Components,
	}
}

// SyncConfigFiles writes the component header and returns the paths it
// produced. Under dry-run the paths are computed and returned without
// touching the filesystem.
func (a *activeProject) SyncConfigFiles(_ context.Context, dryRun bool) ([]string, error) {
	dir := filepath.Join(a.projectDir, "cfg", a.contextName)
	header := filepath.Join(dir, "components.h")
	paths := []string{filepath.ToSlash(header)}

	if dryRun {
		return paths, nil
	}

	if err := fsutil.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := fsutil.WriteFileAtomic(header, []byte(a.renderHeader()), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write component header: %w", err)
	}
	return paths, nil
}

// renderHeader produces the generated header content: one define per
// resolved component, in stable order.
func (a *activeProject) renderHeader() string {
	guard := "COMPONENTS_" + sanitize(a.contextName) + "_H"

	var b strings.Builder
	b.WriteString("/* Generated file, do not edit. */\n")
	fmt.Fprintf(&b, "#ifndef %s\n#define %s\n\n", guard, guard)

	defines := make([]string, 0, len(a.components))
	for _, c := range a.components {
		defines = append(defines, fmt.Sprintf("#define COMPONENT_%s /* %s from %s */",
			sanitize(c.ID()), c.ID(), c.PackID))
	}
	sort.Strings(defines)
	for _, d := range defines {
		b.WriteString(d + "\n")
	}

	fmt.Fprintf(&b, "\n#endif /* %s */\n", guard)
	return b.String()
}

func sanitize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range strings.ToUpper(s) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
