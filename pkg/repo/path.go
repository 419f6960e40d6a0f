package repo

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Path is a slash-separated path relative to the repository [Root]. The
// empty Path is the root itself.
type Path string

// NewPath normalizes s into a root-relative Path. Absolute paths and paths
// escaping the root are rejected.
func NewPath(s string) (Path, error) {
	clean := path.Clean(filepath.ToSlash(s))
	if clean == "." {
		return "", nil
	}
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("path %q escapes the repository root", s)
	}
	return Path(clean), nil
}

// MustPath is NewPath for compile-time constants; it panics on invalid input.
func MustPath(s string) Path {
	p, err := NewPath(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Path) String() string { return string(p) }

// Join resolves rel against p, folding . and .. segments lexically. It fails
// when the result would escape the repository root.
func (p Path) Join(rel string) (Path, error) {
	joined, err := NewPath(path.Join(string(p), filepath.ToSlash(rel)))
	if err != nil {
		return "", fmt.Errorf("joining %q to %q: %w", rel, p, err)
	}
	return joined, nil
}

// Dir returns the parent directory of p, or the root for top-level paths.
func (p Path) Dir() Path {
	d := path.Dir(string(p))
	if d == "." {
		return ""
	}
	return Path(d)
}

// Base returns the final element of p.
func (p Path) Base() string { return path.Base(string(p)) }

// Under reports whether p equals dir or lies beneath it.
func (p Path) Under(dir Path) bool {
	if dir == "" {
		return true
	}
	return p == dir || strings.HasPrefix(string(p), string(dir)+"/")
}

// Rel returns the relative path from directory from to target to, using ..
// segments where needed. Both arguments are treated as directories.
func Rel(from, to Path) string {
	if from == to {
		return "."
	}
	fromParts := segments(from)
	toParts := segments(to)
	common := 0
	for common < len(fromParts) && common < len(toParts) && fromParts[common] == toParts[common] {
		common++
	}
	parts := make([]string, 0, len(fromParts)-common+len(toParts)-common)
	for range fromParts[common:] {
		parts = append(parts, "..")
	}
	parts = append(parts, toParts[common:]...)
	if len(parts) == 0 {
		return "."
	}
	return strings.Join(parts, "/")
}

func segments(p Path) []string {
	if p == "" {
		return nil
	}
	return strings.Split(string(p), "/")
}
