package generate

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/buckcargo/pkg/cargo"
	"github.com/matzehuels/buckcargo/pkg/repo"
)

// RegistryPath is the repo-relative path of the third-party registry
// manifest, the single Cargo.toml listing every vendored crate.
const RegistryPath = "third-party/rust/Cargo.toml"

// Registry is the decoded third-party registry: the vendored crates with
// their default-universe features applied, plus the registry's [patch]
// tables.
type Registry struct {
	deps    cargo.DepsSet
	patches map[string]cargo.DepsSet
}

// LoadRegistry reads and decodes the registry manifest from the repository.
func LoadRegistry(root repo.Root, logger *log.Logger) (*Registry, error) {
	data, err := os.ReadFile(root.Abs(repo.MustPath(RegistryPath)))
	if err != nil {
		return nil, fmt.Errorf("while reading %s: %w", RegistryPath, err)
	}
	reg, err := ParseRegistry(data, logger)
	if err != nil {
		return nil, fmt.Errorf("while processing %s: %w", RegistryPath, err)
	}
	return reg, nil
}

// registryManifest is the slice of the registry manifest generation
// consumes.
type registryManifest struct {
	Dependencies cargo.DepsSet            `toml:"dependencies"`
	Target       map[string]registryDeps  `toml:"target"`
	Features     map[string][]string      `toml:"features"`
	Patch        map[string]cargo.DepsSet `toml:"patch"`
}

type registryDeps struct {
	Dependencies cargo.DepsSet `toml:"dependencies"`
}

// ParseRegistry decodes a registry manifest. Platform-conditional tables
// fold into the main crate set, later tables winning. The registry may
// partition vendored crates into universes; only the default universe is
// supported, so the features its "default" feature names are enabled on
// the matching entries here, and generated manifests inherit them.
func ParseRegistry(data []byte, logger *log.Logger) (*Registry, error) {
	if logger == nil {
		logger = log.Default()
	}
	var manifest registryManifest
	if err := toml.Unmarshal(data, &manifest); err != nil {
		return nil, err
	}

	deps := make(cargo.DepsSet, len(manifest.Dependencies))
	for name, dep := range manifest.Dependencies {
		deps[name] = dep
	}
	for _, key := range slices.Sorted(maps.Keys(manifest.Target)) {
		for name, dep := range manifest.Target[key].Dependencies {
			deps[name] = dep
		}
	}

	for _, feature := range manifest.Features["default"] {
		warn := func(kind string, syntax bool) {
			hint := ""
			if syntax {
				hint = ` Only "<crate>/<feature>" syntax is currently supported.`
			}
			logger.Warnf("The manifest at %s specifies %s in its \"default\" feature: %q.%s",
				RegistryPath, kind, feature, hint)
		}
		if strings.HasPrefix(feature, "dep:") {
			warn("an optional dep", true)
			continue
		}
		crate, feat, ok := strings.Cut(feature, "/")
		if !ok {
			warn("an unexpected feature", true)
			continue
		}
		crate = strings.TrimSuffix(crate, "?")
		dep, ok := deps[crate]
		if !ok {
			warn("a non-dependency crate", false)
			continue
		}
		if feat == "default" {
			dep.DefaultFeatures = nil
		} else if !slices.Contains(dep.Features, feat) {
			dep.Features = append(slices.Clone(dep.Features), feat)
		}
		deps[crate] = dep
	}

	return &Registry{deps: deps, patches: manifest.Patch}, nil
}

// Lookup resolves a vendored crate by its registry key. The returned name
// is the crate's real package name, which differs from the key when the
// registry entry renames the crate. The entry is detached from the
// registry's copy.
func (r *Registry) Lookup(name string) (string, cargo.Dependency, error) {
	dep, ok := r.deps[name]
	if !ok {
		return "", cargo.Dependency{}, fmt.Errorf("missing third-party dependency %s in %s", name, RegistryPath)
	}
	pkg := dep.Package
	if pkg == "" {
		pkg = name
	}
	dep.Features = slices.Clone(dep.Features)
	return pkg, dep, nil
}

// Patches returns the registry's patch table for one source, nil when the
// source has none.
func (r *Registry) Patches(source string) cargo.DepsSet {
	return r.patches[source]
}

// GeneratePatch builds a [patch] table set: the mode seeds it, inputs add
// entries in order, exclusions prune last. A bare-name input entry copies
// the registry's patch for that crate and fails if the registry has none.
func (r *Registry) GeneratePatch(gen cargo.PatchGeneration, inputs ...cargo.PatchInput) (map[string]cargo.DepsSet, error) {
	out := make(map[string]cargo.DepsSet)
	if gen.Mode == cargo.PatchModeThirdPartyFull {
		for source, set := range r.patches {
			out[source] = set.Clone()
		}
	}

	for _, input := range inputs {
		for _, source := range slices.Sorted(maps.Keys(input)) {
			set := out[source]
			if set == nil {
				set = make(cargo.DepsSet)
				out[source] = set
			}
			for _, entry := range input[source] {
				if entry.Dep != nil {
					set[entry.Name] = *entry.Dep
					continue
				}
				dep, ok := r.patches[source][entry.Name]
				if !ok {
					return nil, fmt.Errorf("missing patch for '%s'.%s in %s", source, entry.Name, RegistryPath)
				}
				set[entry.Name] = dep
			}
		}
	}

	for source, names := range gen.Exclude {
		set, ok := out[source]
		if !ok {
			continue
		}
		for _, name := range names {
			delete(set, name)
		}
	}

	return out, nil
}
