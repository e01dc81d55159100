package packs

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Pack is one installed pack version.
type Pack struct {
	Vendor      string `json:"vendor" yaml:"vendor"`
	Name        string `json:"name" yaml:"name"`
	Version     string `json:"version" yaml:"version"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool   `json:"required,omitempty" yaml:"required,omitempty"`
}

// ID returns the pack in vendor::name@version form.
func (p Pack) ID() string {
	return p.Vendor + "::" + p.Name + "@" + p.Version
}

// Device is a device definition contributed by a pack.
type Device struct {
	Name      string `json:"name" yaml:"name"`
	Vendor    string `json:"vendor,omitempty" yaml:"vendor,omitempty"`
	Processor string `json:"processor,omitempty" yaml:"processor,omitempty"`
	PackID    string `json:"pack" yaml:"-"`
}

// Board is a board definition contributed by a pack.
type Board struct {
	Name   string `json:"name" yaml:"name"`
	Vendor string `json:"vendor,omitempty" yaml:"vendor,omitempty"`
	Device string `json:"device,omitempty" yaml:"device,omitempty"`
	PackID string `json:"pack" yaml:"-"`
}

// Component is a component definition contributed by a pack.
type Component struct {
	Class       string `json:"class" yaml:"class"`
	Group       string `json:"group" yaml:"group"`
	Sub         string `json:"sub,omitempty" yaml:"sub,omitempty"`
	Version     string `json:"version" yaml:"version"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	PackID      string `json:"pack" yaml:"-"`
}

// ID returns the component in class:group[:sub] form, without version.
func (c Component) ID() string {
	id := c.Class + ":" + c.Group
	if c.Sub != "" {
		id += ":" + c.Sub
	}
	return id
}

// Toolchain is an available toolchain registration.
type Toolchain struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
	Root    string `json:"root,omitempty" yaml:"root,omitempty"`
}

// ID returns the toolchain in name@version form.
func (t Toolchain) ID() string {
	return t.Name + "@" + t.Version
}

// Index is the pack root's index document. Syncing it into the catalog makes
// its contents queryable.
type Index struct {
	Packs      []IndexPack `yaml:"packs"`
	Toolchains []Toolchain `yaml:"toolchains"`
}

// IndexPack is one pack entry in the index, with its contributed definitions
// inline.
type IndexPack struct {
	Pack       `yaml:",inline"`
	Devices    []Device    `yaml:"devices"`
	Boards     []Board     `yaml:"boards"`
	Components []Component `yaml:"components"`
}

// LoadIndex reads and parses the index file at path.
func LoadIndex(path string) (*Index, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pack index: %w", err)
	}
	var idx Index
	if err := yaml.Unmarshal(raw, &idx); err != nil {
		return nil, fmt.Errorf("%s: invalid pack index: %w", path, err)
	}
	for i, p := range idx.Packs {
		if p.Vendor == "" || p.Name == "" || p.Version == "" {
			return nil, fmt.Errorf("%s: pack entry %d is missing vendor, name or version", path, i)
		}
	}
	return &idx, nil
}

// Root returns the pack root directory: $SMITH_PACK_ROOT when set, otherwise
// ~/.smith/packs.
func Root() (string, error) {
	if root := os.Getenv("SMITH_PACK_ROOT"); root != "" {
		return root, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine pack root: %w", err)
	}
	return filepath.Join(home, ".smith", "packs"), nil
}

// IndexPath returns the index file location under the given pack root.
func IndexPath(root string) string {
	return filepath.Join(root, "index.yml")
}

// CatalogPath returns the catalog database location under the given pack root.
func CatalogPath(root string) string {
	return filepath.Join(root, "catalog.db")
}
