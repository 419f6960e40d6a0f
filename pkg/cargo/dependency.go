package cargo

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Dependency is one entry in a dependency table. An entry carrying nothing
// but a version renders in the short string form; anything richer renders as
// an inline table. The Package field holds the real crate name when the
// table key is an alias.
type Dependency struct {
	Package         string
	Version         string
	Registry        string
	RegistryIndex   string
	Path            string
	Git             string
	Branch          string
	Tag             string
	Rev             string
	Features        []string
	Optional        bool
	DefaultFeatures *bool
}

// Simple builds a version-only dependency.
func Simple(version string) Dependency {
	return Dependency{Version: version}
}

// IsSimple reports whether d renders in the short string form: a version,
// default features on, and nothing else.
func (d Dependency) IsSimple() bool {
	return d.Version != "" &&
		d.Package == "" && d.Registry == "" && d.RegistryIndex == "" &&
		d.Path == "" && d.Git == "" && d.Branch == "" && d.Tag == "" && d.Rev == "" &&
		len(d.Features) == 0 && !d.Optional && d.defaultFeaturesOn()
}

func (d Dependency) defaultFeaturesOn() bool {
	return d.DefaultFeatures == nil || *d.DefaultFeatures
}

// Equal reports whether two entries resolve to the same dependency. Entries
// differing only in unset-versus-explicit-true default features are equal,
// matching how they render.
func (d Dependency) Equal(o Dependency) bool {
	return d.Package == o.Package && d.Version == o.Version &&
		d.Registry == o.Registry && d.RegistryIndex == o.RegistryIndex &&
		d.Path == o.Path && d.Git == o.Git && d.Branch == o.Branch &&
		d.Tag == o.Tag && d.Rev == o.Rev &&
		slices.Equal(d.Features, o.Features) &&
		d.Optional == o.Optional &&
		d.defaultFeaturesOn() == o.defaultFeaturesOn()
}

// dependencyObject is the table form shared by the JSON and TOML wires.
type dependencyObject struct {
	Package         string   `json:"package"`
	Version         string   `json:"version"`
	Registry        string   `json:"registry"`
	RegistryIndex   string   `json:"registry_index"`
	Path            string   `json:"path"`
	Git             string   `json:"git"`
	Branch          string   `json:"branch"`
	Tag             string   `json:"tag"`
	Rev             string   `json:"rev"`
	Features        []string `json:"features"`
	Optional        bool     `json:"optional"`
	DefaultFeatures *bool    `json:"default_features"`
}

func (o dependencyObject) dependency() Dependency {
	return Dependency{
		Package:         o.Package,
		Version:         o.Version,
		Registry:        o.Registry,
		RegistryIndex:   o.RegistryIndex,
		Path:            o.Path,
		Git:             o.Git,
		Branch:          o.Branch,
		Tag:             o.Tag,
		Rev:             o.Rev,
		Features:        o.Features,
		Optional:        o.Optional,
		DefaultFeatures: o.DefaultFeatures,
	}
}

// UnmarshalJSON accepts the short string form or the table form.
func (d *Dependency) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var version string
		if err := json.Unmarshal(b, &version); err != nil {
			return err
		}
		*d = Simple(version)
		return nil
	}
	var obj dependencyObject
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*d = obj.dependency()
	return nil
}

// UnmarshalTOML accepts the short string form or the table form, so
// dependency tables of real Cargo.toml files (the third-party registry
// manifest) decode directly into DepsSet values.
func (d *Dependency) UnmarshalTOML(v any) error {
	switch t := v.(type) {
	case string:
		*d = Simple(t)
		return nil
	case map[string]any:
		*d = dependencyFromTable(t)
		return nil
	default:
		return fmt.Errorf("dependency must be a version string or a table, got %T", v)
	}
}

func dependencyFromTable(m map[string]any) Dependency {
	var d Dependency
	str := func(keys ...string) string {
		for _, k := range keys {
			if s, ok := m[k].(string); ok {
				return s
			}
		}
		return ""
	}
	d.Package = str("package")
	d.Version = str("version")
	d.Registry = str("registry")
	d.RegistryIndex = str("registry-index", "registry_index")
	d.Path = str("path")
	d.Git = str("git")
	d.Branch = str("branch")
	d.Tag = str("tag")
	d.Rev = str("rev")
	if raw, ok := m["features"].([]any); ok {
		for _, f := range raw {
			if s, ok := f.(string); ok {
				d.Features = append(d.Features, s)
			}
		}
	}
	if b, ok := m["optional"].(bool); ok {
		d.Optional = b
	}
	for _, k := range []string{"default-features", "default_features"} {
		if b, ok := m[k].(bool); ok {
			v := b
			d.DefaultFeatures = &v
			break
		}
	}
	return d
}

// DepsSet maps manifest keys to dependencies within one table. The key is
// the name dependents use in code unless the entry's Package field renames
// it.
type DepsSet map[string]Dependency

// Clone returns a shallow copy of s.
func (s DepsSet) Clone() DepsSet {
	if s == nil {
		return nil
	}
	out := make(DepsSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Deps groups the three dependency tables of a manifest or of one
// [target.*] block.
type Deps struct {
	Dependencies      DepsSet
	DevDependencies   DepsSet
	BuildDependencies DepsSet
}

// IsEmpty reports whether all three tables are empty.
func (d Deps) IsEmpty() bool {
	return len(d.Dependencies) == 0 && len(d.DevDependencies) == 0 && len(d.BuildDependencies) == 0
}
