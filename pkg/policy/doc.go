// Package policy evaluates Rego pack policies over resolved build contexts.
// Policies inspect the packs, components and toolchain a context resolved to
// and can flag or block configurations that violate organizational rules,
// such as unpinned packs in a frozen solution.
//
// Built-in policies ship with the binary; additional .rego or .json policy
// files are loaded from user-supplied paths.
package policy
