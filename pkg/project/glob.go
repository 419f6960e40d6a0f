package project

import (
	"fmt"
	"path"
	"strings"

	"github.com/matzehuels/buckcargo/pkg/repo"
)

// pattern is a compiled path glob, split into elements. Each element
// matches one path element via path.Match, except the literal ** element,
// which matches any run of elements, including none.
type pattern []string

// compilePattern validates and splits a glob. Coverage never crosses the
// repository root, so absolute patterns are rejected.
func compilePattern(s string) (pattern, error) {
	if strings.HasPrefix(s, "/") {
		return nil, fmt.Errorf("glob %q must be relative to the repository root", s)
	}
	elems := strings.Split(s, "/")
	for _, elem := range elems {
		if elem == "" {
			return nil, fmt.Errorf("glob %q has an empty element", s)
		}
		if elem == "**" {
			continue
		}
		if _, err := path.Match(elem, "probe"); err != nil {
			return nil, fmt.Errorf("glob %q: %w", s, err)
		}
	}
	return pattern(elems), nil
}

func compilePatterns(globs []string) ([]pattern, error) {
	pats := make([]pattern, 0, len(globs))
	for _, g := range globs {
		p, err := compilePattern(g)
		if err != nil {
			return nil, err
		}
		pats = append(pats, p)
	}
	return pats, nil
}

// match reports whether the whole pattern matches the whole path.
func (p pattern) match(target repo.Path) bool {
	return matchElems(p, pathElems(target))
}

func matchElems(pat pattern, parts []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			for skip := 0; skip <= len(parts); skip++ {
				if matchElems(pat[1:], parts[skip:]) {
					return true
				}
			}
			return false
		}
		if len(parts) == 0 {
			return false
		}
		// Element syntax was validated at compile time.
		if ok, _ := path.Match(pat[0], parts[0]); !ok {
			return false
		}
		pat, parts = pat[1:], parts[1:]
	}
	return len(parts) == 0
}

func pathElems(p repo.Path) []string {
	if p == "" {
		return nil
	}
	return strings.Split(string(p), "/")
}

// literalPrefix returns the leading glob-free elements as a directory,
// bounding where a filesystem search for this pattern has to start.
func (p pattern) literalPrefix() repo.Path {
	n := 0
	for n < len(p) && !strings.ContainsAny(p[n], `*?[\`) {
		n++
	}
	return repo.Path(strings.Join(p[:n], "/"))
}
