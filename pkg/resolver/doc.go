// Package resolver materializes one build context at a time against the
// local pack catalog: device and board lookup, pack selection under the run's
// load policy, component matching, toolchain selection, variable substitution
// and output directory layout.
//
// The resolver writes its results into the context in place and returns an
// error for the engine to isolate; it never touches any other context.
package resolver
