package project

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/buckcargo/pkg/repo"
)

// Catalog holds every project config, validated as a set: names unique,
// declared dependencies present, cargo_locks dirs covered by their own
// project.
type Catalog struct {
	byName map[string]*Config
	sorted []*Config
}

// LoadDir reads every .toml file under dir, recursively, each holding one
// project config, and validates the set.
func LoadDir(dir string) (*Catalog, error) {
	var configs []*Config
	walkErr := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".toml") {
			return nil
		}
		conf, err := readConfig(p)
		if err != nil {
			return fmt.Errorf("while processing config file %s: %w", p, err)
		}
		configs = append(configs, conf)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("while processing config dir %s: %w", dir, walkErr)
	}
	return NewCatalog(configs)
}

func readConfig(path string) (*Config, error) {
	var conf Config
	md, err := toml.DecodeFile(path, &conf)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %q", undecoded[0].String())
	}
	return &conf, nil
}

// NewCatalog compiles and validates the given configs.
func NewCatalog(configs []*Config) (*Catalog, error) {
	byName := make(map[string]*Config, len(configs))
	for _, conf := range configs {
		if err := conf.compile(); err != nil {
			return nil, err
		}
		if _, dup := byName[conf.Name]; dup {
			return nil, fmt.Errorf("the names of projects are not unique, one of the offenders is: %s", conf.Name)
		}
		byName[conf.Name] = conf
	}

	for _, conf := range byName {
		for _, dep := range conf.Dependencies {
			if _, ok := byName[dep]; !ok {
				return nil, fmt.Errorf("dependency %s of project %s does not exist", dep, conf.Name)
			}
		}
		for _, lockDir := range conf.CargoLocks {
			lockFile, err := lockDir.Join("Cargo.lock")
			if err != nil {
				return nil, fmt.Errorf("project %s: %w", conf.Name, err)
			}
			if !conf.Covers(lockFile) {
				return nil, fmt.Errorf("cargo_lock path %q is not contained in project %q (within the include_globs)", lockDir, conf.Name)
			}
		}
	}

	sorted := make([]*Config, 0, len(byName))
	for _, conf := range byName {
		sorted = append(sorted, conf)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return &Catalog{byName: byName, sorted: sorted}, nil
}

// Projects returns every project, sorted by name.
func (c *Catalog) Projects() []*Config {
	out := make([]*Config, len(c.sorted))
	copy(out, c.sorted)
	return out
}

// Get returns the named project.
func (c *Catalog) Get(name string) (*Config, bool) {
	conf, ok := c.byName[name]
	return conf, ok
}

// SelectAll returns a selection of every project.
func (c *Catalog) SelectAll() Selection {
	names := make(map[string]bool, len(c.sorted))
	for name := range c.byName {
		names[name] = true
	}
	return c.selection(names)
}

// Select returns the projects that cover one of the paths or transitively
// depend on one that does, plus the named projects and their transitive
// dependencies. An unknown name is an error.
func (c *Catalog) Select(paths []repo.Path, names []string) (Selection, error) {
	selected := make(map[string]bool)
	for _, conf := range c.sorted {
		for _, p := range paths {
			if conf.Covers(p) {
				selected[conf.Name] = true
				break
			}
		}
	}

	// BFS on the reverse dependency graph: anything depending on a
	// path-selected project is regenerated too.
	frontier := selected
	for len(frontier) > 0 {
		next := make(map[string]bool)
		for _, conf := range c.sorted {
			if selected[conf.Name] {
				continue
			}
			for _, dep := range conf.Dependencies {
				if frontier[dep] {
					next[conf.Name] = true
					break
				}
			}
		}
		for name := range next {
			selected[name] = true
		}
		frontier = next
	}

	// Named projects expand in the forward direction instead: selecting a
	// project pulls in what it needs to build.
	named := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := c.byName[name]; !ok {
			return Selection{}, fmt.Errorf("project %q not recognised", name)
		}
		named[name] = true
	}
	frontier = named
	for len(frontier) > 0 {
		next := make(map[string]bool)
		for name := range frontier {
			for _, dep := range c.byName[name].Dependencies {
				if !named[dep] {
					next[dep] = true
				}
			}
		}
		for name := range next {
			named[name] = true
		}
		frontier = next
	}

	for name := range named {
		selected[name] = true
	}
	return c.selection(selected), nil
}

func (c *Catalog) selection(names map[string]bool) Selection {
	sel := Selection{byName: make(map[string]*Config, len(names))}
	for _, conf := range c.sorted {
		if names[conf.Name] {
			sel.projects = append(sel.projects, conf)
			sel.byName[conf.Name] = conf
		}
	}
	return sel
}

// ResolveForDirs maps each build-file dir to the project covering it,
// probing projects in name order. Dirs no project covers are absent from
// the result.
func (c *Catalog) ResolveForDirs(paths []repo.TargetsPath) map[repo.TargetsPath]*Config {
	out := make(map[repo.TargetsPath]*Config)
	for _, tp := range paths {
		for _, conf := range c.sorted {
			if conf.Covers(tp.BuildFile()) {
				out[tp] = conf
				break
			}
		}
	}
	return out
}

// Selection is an ordered set of projects picked for one run.
type Selection struct {
	projects []*Config
	byName   map[string]*Config
}

// Projects returns the selected projects, sorted by name.
func (s Selection) Projects() []*Config {
	return s.projects
}

// Get returns the named project if it is selected.
func (s Selection) Get(name string) (*Config, bool) {
	conf, ok := s.byName[name]
	return conf, ok
}

// Len returns the number of selected projects.
func (s Selection) Len() int {
	return len(s.projects)
}
