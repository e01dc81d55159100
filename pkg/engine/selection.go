package engine

import (
	"path"
	"strings"

	"github.com/buildsmith/buildsmith/pkg/solution"
)

// selectionPattern is one parsed [project][.build-type][+target-type]
// selection pattern. Omitted segments match anything; explicit segments
// support glob wildcards.
type selectionPattern struct {
	project    string
	buildType  string
	targetType string
}

// parseSelectionPattern splits a raw pattern into its three segments. The
// target-type segment follows the first '+', the build-type segment follows
// the first '.' before it.
func parseSelectionPattern(raw string) (selectionPattern, error) {
	p := selectionPattern{project: "*", buildType: "*", targetType: "*"}

	body := raw
	if plus := strings.Index(body, "+"); plus >= 0 {
		if t := body[plus+1:]; t != "" {
			p.targetType = t
		}
		body = body[:plus]
	}
	if dot := strings.Index(body, "."); dot >= 0 {
		if b := body[dot+1:]; b != "" {
			p.buildType = b
		}
		body = body[:dot]
	}
	if body != "" {
		p.project = body
	}

	if raw == "" {
		return p, NewConfigError("empty context pattern", nil)
	}
	return p, nil
}

func (p selectionPattern) matches(d solution.ContextDescriptor) (bool, error) {
	for _, seg := range []struct{ pattern, value string }{
		{p.project, d.Project},
		{p.buildType, d.BuildType},
		{p.targetType, d.TargetType},
	} {
		ok, err := path.Match(seg.pattern, seg.value)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
