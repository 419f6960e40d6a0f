// Package generate turns resolved Buck manifests into Cargo.toml files and
// their companion sources.
//
// # Overview
//
// Generation starts from the [Registry]: the third-party registry manifest
// decoded once per run, the authority on every vendored crate and on the
// [patch] entries manifests may copy.
//
// Rules are grouped by the manifest directory they map into and wrapped in
// a [Unit]: at most one library, any number of binaries and unit tests, at
// most one rule carrying the manifest-level config. The unit's dependency
// edges are consolidated across members, split per table, and converted
// entry by entry: third-party edges resolve through the registry, internal
// edges become path or git dependencies depending on where the two ends
// publish.
//
// [Generator.Generate] assembles one manifest per unit, an OSS twin when
// the owning project publishes, build-script sources for thrift units, and
// a workspace manifest per project that asks for one. Every output path
// must have exactly one producer; collisions are errors, not overwrites.
//
// [Write] reconciles the assembled outputs with the working tree, touching
// only files whose content actually changed.
package generate
