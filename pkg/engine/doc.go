// Package engine drives the build-context lifecycle: materializing contexts
// from a parsed solution, filtering them by user selection, processing each
// selected context through the resolver while isolating per-context failures,
// and handing the aggregate run state to the artifact emitter.
//
// The engine is deliberately single-threaded. Several artifacts are computed
// from aggregate state (all discovered contexts, attempted contexts, failed
// names) that is only complete after every context has been visited in
// declaration order; sequential processing keeps both the artifacts and the
// diagnostics deterministic.
//
// The Registry owns every Context for the lifetime of the run. It is
// append-only during materialization and read-only afterwards, enforced by an
// explicit seal. All other components hold non-owning references by name or
// pointer into the registry.
package engine
