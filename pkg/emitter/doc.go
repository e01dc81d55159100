// Package emitter writes the build-configuration artifact family for one run:
// the pack-lock snapshot, the context index over every discovered context, the
// persisted selection set, one build record per attempted context and, on
// convert, the legacy single-file project exports.
//
// Emission order is contractual: the pack snapshot is verified or written
// first, then configuration files are synchronized, then the index, the
// selection set, the per-context records and finally the legacy exports. Every
// step honors dry-run uniformly, performing its checks without writing.
package emitter
