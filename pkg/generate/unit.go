package generate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/matzehuels/buckcargo/pkg/buck"
	"github.com/matzehuels/buckcargo/pkg/repo"
)

// Unit is one manifest's worth of rules: every rule of a build file that
// maps into the same manifest directory.
type Unit struct {
	Targets repo.TargetsPath
	// Dir is where the generated Cargo.toml lands: the build file's
	// directory unless the rules redirect it with cargo_toml_dir.
	Dir repo.Path
	// Lib is the unit's library rule, nil for units without one.
	Lib  *buck.Manifest
	Bins []*buck.Manifest
	// Tests are the unit's unittest rules; their dependencies feed the
	// dev-dependencies table.
	Tests []*buck.Manifest
	// Config is the manifest-level config of the one rule allowed to
	// carry it. Never nil; units without a configured rule get an empty
	// config.
	Config *buck.TomlConfig
	// Extra holds the resolved extra_buck_dependencies of the config
	// rule.
	Extra buck.ExtraDepEdits
}

const multiRulePrefix = "when multiple rules map into a single Cargo.toml file"

// newUnit groups the rules of one manifest directory and checks the shape
// a single manifest can express: at most one rule with a manifest config,
// the config on the library when there is one, and at most one library.
func newUnit(targets repo.TargetsPath, dir repo.Path, manifests []*buck.Manifest) (*Unit, error) {
	u, err := groupUnit(manifests)
	if err != nil {
		return nil, fmt.Errorf("%w; one solution might be to map your rules into different Cargo.toml files by setting the cargo.cargo_toml_dir parameter on the rule", err)
	}
	u.Targets = targets
	u.Dir = dir
	return u, nil
}

func groupUnit(manifests []*buck.Manifest) (*Unit, error) {
	var configNames []string
	for _, m := range manifests {
		if m.Raw.Cargo.TomlConfig != nil {
			configNames = append(configNames, m.Raw.Name)
		}
	}
	if len(configNames) > 1 {
		return nil, fmt.Errorf("%s only one of them might define cargo.cargo_toml_config. Rules found with the config: %v",
			multiRulePrefix, configNames)
	}

	var libs, bins, tests []*buck.Manifest
	for _, m := range manifests {
		switch m.Raw.RuleType {
		case buck.RuleTypeLibrary:
			libs = append(libs, m)
		case buck.RuleTypeBinary:
			bins = append(bins, m)
		case buck.RuleTypeTest:
			tests = append(tests, m)
		}
	}

	if len(configNames) == 1 && len(libs) > 0 && libs[0].Raw.Cargo.TomlConfig == nil {
		return nil, fmt.Errorf("%s and one of them is rust_library then only that rule is permitted to define cargo.cargo_toml_config. Rule found with the config: %s the library rule: %s",
			multiRulePrefix, configNames[0], libs[0].Raw.Name)
	}
	if len(libs) > 1 {
		return nil, fmt.Errorf("%s there can be at most one rust_library rule. Library rules found: %v",
			multiRulePrefix, ruleNames(libs))
	}

	u := &Unit{Bins: bins, Tests: tests, Config: &buck.TomlConfig{}}
	if len(libs) == 1 {
		u.Lib = libs[0]
	}
	for _, m := range manifests {
		if m.Raw.Cargo.TomlConfig != nil {
			u.Config = m.Raw.Cargo.TomlConfig
			u.Extra = m.ExtraDeps
			break
		}
	}
	return u, nil
}

// members returns the unit's rules: library first, then binaries, then
// unit tests.
func (u *Unit) members() []*buck.Manifest {
	out := make([]*buck.Manifest, 0, 1+len(u.Bins)+len(u.Tests))
	if u.Lib != nil {
		out = append(out, u.Lib)
	}
	out = append(out, u.Bins...)
	out = append(out, u.Tests...)
	return out
}

// Identifier names the unit's rules for generated-file preambles, in the
// //dir:name form. Units of several rules list all names sorted.
func (u *Unit) Identifier() string {
	names := ruleNames(u.members())
	sort.Strings(names)
	joined := strings.Join(names, ",")
	if len(names) > 1 {
		joined = "[" + joined + "]"
	}
	return fmt.Sprintf("//%s:%s", u.Targets.Dir(), joined)
}

func ruleNames(manifests []*buck.Manifest) []string {
	names := make([]string, 0, len(manifests))
	for _, m := range manifests {
		names = append(names, m.Raw.Name)
	}
	return names
}
