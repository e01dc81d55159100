package policy

// GetBuiltinPolicies returns the policies that ship with the binary.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		{
			Name:        "frozen-unpinned-packs",
			Description: "A solution with a frozen pack set must pin every declared pack to an exact version.",
			Severity:    SeverityError,
			Enabled:     true,
			Rego: `package buildsmith.packs

import rego.v1

# A frozen pack set with unpinned members cannot be reproduced.
deny contains msg if {
	input.solution.frozen
	some pack in input.packs
	not pack.pinned
	msg := sprintf("pack %s::%s is resolved to %s but not pinned while the pack set is frozen", [pack.vendor, pack.name, pack.version])
}
`,
		},
		{
			Name:        "toolchain-without-root",
			Description: "The resolved toolchain should have a registered installation root.",
			Severity:    SeverityWarning,
			Enabled:     true,
			Rego: `package buildsmith.toolchain

import rego.v1

deny contains msg if {
	input.toolchain.root == ""
	msg := sprintf("toolchain %s has no registered installation root", [input.toolchain.name])
}
`,
		},
	}
}
