package engine

import "fmt"

// LoadPolicy controls how version ambiguity in pack requirements is resolved.
// The engine hands the value opaquely to the resolver.
type LoadPolicy string

const (
	// LoadPolicyDefault resolves pinned requirements exactly and unpinned
	// requirements to the newest installed version.
	LoadPolicyDefault LoadPolicy = "default"

	// LoadPolicyLatest resolves every requirement to the newest installed
	// version, ignoring pins.
	LoadPolicyLatest LoadPolicy = "latest"

	// LoadPolicyAll loads every installed pack, not just the required ones.
	LoadPolicyAll LoadPolicy = "all"

	// LoadPolicyRequired restricts loading to the catalog's required
	// baseline plus explicitly declared packs.
	LoadPolicyRequired LoadPolicy = "required"
)

// ParseLoadPolicy maps a user token to a LoadPolicy. The empty token maps to
// LoadPolicyDefault; anything else unrecognized is a configuration error,
// reported before any file I/O begins.
func ParseLoadPolicy(token string) (LoadPolicy, error) {
	switch token {
	case "":
		return LoadPolicyDefault, nil
	case string(LoadPolicyDefault), string(LoadPolicyLatest), string(LoadPolicyAll), string(LoadPolicyRequired):
		return LoadPolicy(token), nil
	default:
		return "", NewConfigError(fmt.Sprintf("invalid load policy %q, expected default, latest, all or required", token), nil)
	}
}
