// Package solution parses the declarative input files of a buildsmith run:
// the solution file (*.solution.yml), the project files it references
// (*.project.yml) and the optional shared defaults file (defaults.yml).
//
// Parsing produces immutable descriptor values. A ContextDescriptor is derived
// for every project x build-type x target-type combination the solution
// declares; materializing those descriptors into build contexts is the
// engine's job, not this package's.
//
// Every document passes two validation layers: a CUE schema check (skippable
// with --no-check-schema) and struct-level validation of required fields.
// Structural rules that span files, such as project file name uniqueness,
// live in ValidateProjectLayout.
package solution
