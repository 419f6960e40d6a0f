// Package project loads the project catalog and decides which slices of
// the repository a run touches.
//
// # Overview
//
// A project is a named set of path globs plus the defaults its generated
// manifests inherit. The catalog is a directory of TOML files, one project
// each, validated as a whole at load: unique names, resolvable dependency
// edges, lock dirs covered by their own project.
//
// Selection works in two directions. Changed paths select the projects
// covering them and everything that transitively depends on those, so a
// library edit regenerates its dependents. Explicitly named projects pull
// in their own transitive dependencies instead, so a selected project can
// always resolve its internal edges.
//
// [Discover] then glob-searches the repository for each selected project's
// manifests, build files, and previously generated companion sources. A
// file covered by two projects is an error: coverage is ownership, and two
// owners would make generation order-dependent.
package project
