// Package repo locates the monorepo root and provides the path value types
// used throughout buckcargo.
//
// All generated files, build files, and rule directories are addressed as
// [Path] values: slash-separated paths relative to the repository [Root].
// Working with root-relative paths keeps manifest output independent of
// where the repository happens to be checked out.
package repo
