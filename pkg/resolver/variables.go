package resolver

import (
	"regexp"
	"sort"
)

var variableRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// mergeVariables layers variable maps, later maps winning.
func mergeVariables(layers ...map[string]string) map[string]string {
	merged := make(map[string]string)
	for _, layer := range layers {
		for k, v := range layer {
			merged[k] = v
		}
	}
	return merged
}

// substitute replaces ${VAR} references in s. References without a binding
// are left verbatim and returned as unresolved names.
func substitute(s string, vars map[string]string) (string, []string) {
	var unresolved []string
	out := variableRef.ReplaceAllStringFunc(s, func(ref string) string {
		name := variableRef.FindStringSubmatch(ref)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		unresolved = append(unresolved, name)
		return ref
	})
	return out, unresolved
}

// uniqueSorted deduplicates and sorts a name list.
func uniqueSorted(names []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}
