// Package cargo models the Cargo manifest surface buckcargo generates and
// renders it as deterministic TOML.
//
// # Overview
//
// The model covers the manifest sections a generated crate needs: package
// metadata, products (lib, bins, examples, tests, benches), the three
// dependency tables with per-platform target blocks, features, patches,
// profiles, workspace membership, and lints.
//
// [Encode] is the single rendering entry point. Its output is byte-stable:
// the same manifest value always renders to the same bytes, with fixed
// section order and sorted keys and arrays. Generated files are diffed
// against their previous content to decide whether anything changed, so
// stability is load-bearing, not cosmetic.
//
// # Override fields
//
// User-authored overrides distinguish "leave the inherited value alone",
// "erase it", and "replace it". [Field] captures those three states
// explicitly; absence in the wire form decodes to the inherit state.
package cargo
