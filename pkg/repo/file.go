package repo

import (
	"fmt"
)

// buildFileNames are the file names Buck recognizes as build files, in the
// order Buck itself prefers them.
var buildFileNames = []string{"TARGETS", "BUCK", "TARGETS.v2", "BUCK.v2"}

// BuildFileNames returns the file names Buck recognizes as build files.
func BuildFileNames() []string {
	names := make([]string, len(buildFileNames))
	copy(names, buildFileNames)
	return names
}

// IsBuildFileName reports whether name is a Buck build file name.
func IsBuildFileName(name string) bool {
	for _, n := range buildFileNames {
		if name == n {
			return true
		}
	}
	return false
}

// ManifestFileName is the Cargo manifest file name.
const ManifestFileName = "Cargo.toml"

// Names of the Rust sources generated next to a thrift unit's manifest.
const (
	ThriftBuildFileName = "thrift_build.rs"
	ThriftLibFileName   = "thrift_lib.rs"
)

// GeneratedFileNames returns the names of the companion files generation
// may emit besides the manifest itself.
func GeneratedFileNames() []string {
	return []string{ThriftBuildFileName, ThriftLibFileName}
}

// TargetsPath identifies the Buck package of one directory. Buck accepts
// several build file names for the same package, so identity is the
// directory alone.
type TargetsPath struct {
	dir Path
}

// NewTargetsPath builds a TargetsPath from the path of a build file. The
// final path element must be one of Buck's build file names.
func NewTargetsPath(file Path) (TargetsPath, error) {
	if !IsBuildFileName(file.Base()) {
		return TargetsPath{}, fmt.Errorf("%s is not a Buck build file", file)
	}
	return TargetsPath{dir: file.Dir()}, nil
}

// TargetsPathForDir builds the TargetsPath of the package rooted at dir.
func TargetsPathForDir(dir Path) TargetsPath {
	return TargetsPath{dir: dir}
}

// Dir returns the package directory.
func (t TargetsPath) Dir() Path { return t.dir }

// BuildFile returns the path of a BUCK file in the package directory. The
// package may use any accepted build file name on disk; this canonical form
// exists for matching against path globs.
func (t TargetsPath) BuildFile() Path {
	if t.dir == "" {
		return "BUCK"
	}
	return t.dir + "/BUCK"
}

func (t TargetsPath) String() string { return string(t.dir) }

// ManifestPath locates a Cargo.toml file by its directory.
type ManifestPath struct {
	dir Path
}

// NewManifestPath builds a ManifestPath from the path of a manifest file,
// which must end in Cargo.toml.
func NewManifestPath(file Path) (ManifestPath, error) {
	if file.Base() != ManifestFileName {
		return ManifestPath{}, fmt.Errorf("%s is not a %s file", file, ManifestFileName)
	}
	return ManifestPath{dir: file.Dir()}, nil
}

// ManifestPathForDir builds the ManifestPath of the manifest in dir.
func ManifestPathForDir(dir Path) ManifestPath {
	return ManifestPath{dir: dir}
}

// Dir returns the directory holding the manifest.
func (m ManifestPath) Dir() Path { return m.dir }

// File returns the root-relative path of the manifest file itself.
func (m ManifestPath) File() Path {
	if m.dir == "" {
		return Path(ManifestFileName)
	}
	return Path(string(m.dir) + "/" + ManifestFileName)
}

func (m ManifestPath) String() string { return string(m.File()) }
