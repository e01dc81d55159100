package solution

import (
	"fmt"
	"strings"
)

// Solution is the root input descriptor of a run, produced once by parsing
// and immutable afterwards.
type Solution struct {
	// Name identifies the solution; artifact files are named after it.
	Name string `validate:"required"`

	// FilePath is the canonical path of the solution file.
	FilePath string `validate:"required"`

	// Directory is the directory containing the solution file.
	Directory string `validate:"required"`

	// OutputDir is the base directory for emitted artifacts, relative to
	// Directory unless absolute.
	OutputDir string

	// Projects lists the project file references as declared.
	Projects []string `validate:"required,min=1"`

	// BuildTypes and TargetTypes span the context matrix.
	BuildTypes  []TypeEntry `validate:"required,min=1,dive"`
	TargetTypes []TypeEntry `validate:"required,min=1,dive"`

	// Contexts holds one descriptor per project x build-type x target-type
	// combination, in declaration order.
	Contexts []ContextDescriptor

	// Packs are solution-level pack requirements shared by every context.
	Packs []PackRequirement

	// UseDefaults indicates whether a shared defaults.yml file is honored.
	UseDefaults bool

	// FrozenPacks freezes the pack snapshot: emission fails if the freshly
	// computed snapshot differs from the committed pack-lock file.
	FrozenPacks bool
}

// TypeEntry describes one build-type or target-type.
type TypeEntry struct {
	// Name is the type token used in context names.
	Name string `validate:"required"`

	// Device and Board select hardware for target-types; unused on
	// build-types.
	Device string
	Board  string

	// Toolchain optionally overrides the toolchain for this type.
	Toolchain string

	// Vars are substitution variables contributed by this type.
	Vars map[string]string
}

// ContextDescriptor identifies one desired project + build-type + target-type
// combination and the project file it originates from.
type ContextDescriptor struct {
	// Project is the project name (project file base name).
	Project string

	// ProjectFile is the project file reference as declared in the solution.
	ProjectFile string

	// BuildType and TargetType name the variant.
	BuildType  string
	TargetType string
}

// ContextName derives the canonical context name
// <project>.<build-type>+<target-type>.
func (d ContextDescriptor) ContextName() string {
	return d.Project + "." + d.BuildType + "+" + d.TargetType
}

// Project is a parsed project file.
type Project struct {
	// Name is the project name (defaults to the file base name).
	Name string `validate:"required"`

	// FilePath is the canonical path of the project file.
	FilePath string `validate:"required"`

	// Directory is the directory containing the project file.
	Directory string

	// Toolchain is the requested toolchain, "name" or "name@version".
	Toolchain string

	// Device or Board select the hardware when the target-type does not.
	Device string
	Board  string

	// Components are the component requirements of the project.
	Components []ComponentRequirement

	// Packs are project-level pack requirements.
	Packs []PackRequirement

	// Vars are project-level substitution variables.
	Vars map[string]string
}

// Defaults is the parsed shared defaults file.
type Defaults struct {
	// FilePath is the canonical path of the defaults file.
	FilePath string

	// Toolchain applies when neither project nor type declares one.
	Toolchain string

	// Vars are solution-wide substitution variables.
	Vars map[string]string
}

// PackRequirement identifies a pack, optionally pinned to a version.
type PackRequirement struct {
	Vendor  string `validate:"required"`
	Name    string `validate:"required"`
	Version string
}

// Pinned reports whether the requirement names an exact version.
func (p PackRequirement) Pinned() bool {
	return p.Version != ""
}

// ID returns the requirement in vendor::name[@version] form.
func (p PackRequirement) ID() string {
	if p.Version == "" {
		return p.Vendor + "::" + p.Name
	}
	return p.Vendor + "::" + p.Name + "@" + p.Version
}

// ParsePackID parses a vendor::name[@version] pack identifier.
func ParsePackID(id string) (PackRequirement, error) {
	var req PackRequirement
	body := id
	if at := strings.LastIndex(body, "@"); at >= 0 {
		req.Version = body[at+1:]
		body = body[:at]
	}
	parts := strings.SplitN(body, "::", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return PackRequirement{}, fmt.Errorf("invalid pack identifier %q, expected vendor::name[@version]", id)
	}
	req.Vendor = parts[0]
	req.Name = parts[1]
	return req, nil
}

// ComponentRequirement identifies a component by class:group[:sub][@version].
type ComponentRequirement struct {
	Class   string `validate:"required"`
	Group   string `validate:"required"`
	Sub     string
	Version string
}

// ID returns the requirement in class:group[:sub][@version] form.
func (c ComponentRequirement) ID() string {
	id := c.Class + ":" + c.Group
	if c.Sub != "" {
		id += ":" + c.Sub
	}
	if c.Version != "" {
		id += "@" + c.Version
	}
	return id
}

// ParseComponentID parses a class:group[:sub][@version] component identifier.
func ParseComponentID(id string) (ComponentRequirement, error) {
	var req ComponentRequirement
	body := id
	if at := strings.LastIndex(body, "@"); at >= 0 {
		req.Version = body[at+1:]
		body = body[:at]
	}
	parts := strings.Split(body, ":")
	switch len(parts) {
	case 2:
		req.Class, req.Group = parts[0], parts[1]
	case 3:
		req.Class, req.Group, req.Sub = parts[0], parts[1], parts[2]
	default:
		return ComponentRequirement{}, fmt.Errorf("invalid component identifier %q, expected class:group[:sub][@version]", id)
	}
	if req.Class == "" || req.Group == "" {
		return ComponentRequirement{}, fmt.Errorf("invalid component identifier %q, expected class:group[:sub][@version]", id)
	}
	return req, nil
}
