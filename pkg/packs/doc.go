// Package packs manages the local pack catalog: a SQLite database under the
// pack root that indexes installed packs, their devices, boards, components
// and the available toolchains. The resolver queries the catalog; the catalog
// is populated by syncing the pack root's index file into it.
package packs
