// Package buck talks to Buck and turns its answers into resolved Rust
// manifests.
//
// # Overview
//
// Rust rules in the monorepo carry a companion genrule that materializes a
// JSON description of the rule (its sources, dependency lists, and the
// user-authored cargo extension block). buckcargo never parses build files
// itself; it asks Buck for those manifest rules, builds them, and decodes
// the artifacts. Buck is the single oracle for both questions:
//
//   - which manifest rules exist under a set of directories ([Oracle.QueryManifestRules])
//   - where each built artifact landed on disk ([Oracle.BuildArtifacts])
//
// [Loader] composes the two into decoded [RawManifest] values. [Resolver]
// then classifies every dependency edge (third-party crate, internal rule,
// or dropped) and resolves internal edges to their target manifests,
// fetching at most one extra round of manifests for rules referenced from
// outside the requested directories.
//
// Nothing in this package caches across runs. Every invocation rebuilds its
// view of the graph from a clean slate.
package buck
