package repo

import (
	"fmt"
	"os"
	"path/filepath"
)

// rootMarker is the file that identifies the top of a Buck monorepo.
const rootMarker = ".buckconfig"

// Root is the absolute filesystem path of the monorepo root, the directory
// holding the top-level .buckconfig.
type Root string

// FindRoot walks upward from dir and returns the nearest ancestor directory
// containing a .buckconfig file.
func FindRoot(dir string) (Root, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", dir, err)
	}
	for cur := abs; ; {
		info, err := os.Stat(filepath.Join(cur, rootMarker))
		if err == nil && !info.IsDir() {
			return Root(cur), nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", fmt.Errorf("no %s found in %s or any parent directory", rootMarker, abs)
		}
		cur = parent
	}
}

// String returns the root as a plain filesystem path.
func (r Root) String() string { return string(r) }

// Abs converts a root-relative path into an absolute filesystem path.
func (r Root) Abs(p Path) string {
	return filepath.Join(string(r), filepath.FromSlash(string(p)))
}

// Rel converts an absolute filesystem path into a root-relative [Path].
// It fails when abs lies outside the repository.
func (r Root) Rel(abs string) (Path, error) {
	rel, err := filepath.Rel(string(r), abs)
	if err != nil {
		return "", fmt.Errorf("relativizing %s against %s: %w", abs, r, err)
	}
	return NewPath(filepath.ToSlash(rel))
}
