package generate

import (
	"fmt"
	"maps"
	"slices"
	"sort"

	"github.com/matzehuels/buckcargo/pkg/buck"
	"github.com/matzehuels/buckcargo/pkg/cargo"
	"github.com/matzehuels/buckcargo/pkg/project"
	"github.com/matzehuels/buckcargo/pkg/repo"
)

// depTables are the generated dependency sections of one manifest.
type depTables struct {
	Dependencies      cargo.DepsSet
	DevDependencies   cargo.DepsSet
	BuildDependencies cargo.DepsSet
	Target            map[cargo.TargetKey]cargo.Deps
}

// depsBuilder generates the dependency tables of one manifest. For OSS
// manifests oss is the owning project's git config; internal edges then
// carry versions and may turn into git dependencies.
type depsBuilder struct {
	gen  *Generator
	unit *Unit
	// dir is the manifest's directory; path dependencies are relative to
	// it.
	dir repo.Path
	// optional holds every entry the manifest's features may toggle.
	// Dependency keys found in it render optional.
	optional map[string]bool
	oss      *project.OSSGitConfig
}

func (g *Generator) newDepsBuilder(u *Unit, dir repo.Path, features map[string][]string, oss *project.OSSGitConfig) *depsBuilder {
	optional := make(map[string]bool)
	for _, entries := range features {
		for _, e := range entries {
			optional[e] = true
		}
	}
	return &depsBuilder{gen: g, unit: u, dir: dir, optional: optional, oss: oss}
}

// generate builds the three dependency tables and the per-target blocks.
// Regular dependencies may be optional; dev dependencies drop entries the
// regular table already carries; build dependencies exist only through
// extra_buck_dependencies and the thrift compiler.
func (b *depsBuilder) generate(con consolidated) (depTables, error) {
	regular, err := b.compute(b.optional, con.deps, con.namedDeps, b.unit.Extra.Dependencies, b.unit.Config.DepsOverride.Dependencies)
	if err != nil {
		return depTables{}, fmt.Errorf("in dependencies: %w", err)
	}
	dev, err := b.computeDev(regular, con.testDeps, con.testNamedDeps, b.unit.Extra.DevDependencies, b.unit.Config.DepsOverride.DevDependencies)
	if err != nil {
		return depTables{}, fmt.Errorf("in dev_dependencies: %w", err)
	}
	build, err := b.compute(nil, con.buildDeps, namedGroup{}, b.unit.Extra.BuildDependencies, b.unit.Config.DepsOverride.BuildDependencies)
	if err != nil {
		return depTables{}, fmt.Errorf("in build_dependencies: %w", err)
	}
	target, err := b.generateTargets(con)
	if err != nil {
		return depTables{}, err
	}
	return depTables{
		Dependencies:      regular,
		DevDependencies:   dev,
		BuildDependencies: build,
		Target:            target,
	}, nil
}

// computeDev computes a dev table and subtracts entries already present in
// the regular table with the same value. Dev entries cannot be optional,
// so an optional regular entry never shadows its dev counterpart.
func (b *depsBuilder) computeDev(regular cargo.DepsSet, deps depGroup, named namedGroup, extra []buck.DepEdit, overrides map[string]buck.DependencyOverride) (cargo.DepsSet, error) {
	set, err := b.compute(nil, deps, named, extra, overrides)
	if err != nil {
		return nil, err
	}
	out := make(cargo.DepsSet, len(set))
	for key, dep := range set {
		if prev, ok := regular[key]; ok && prev.Equal(dep) {
			continue
		}
		out[key] = dep
	}
	return out, nil
}

// compute turns one table's consolidated edges into manifest entries:
// removals filter the consolidated edges, conversions insert in a fixed
// order with duplicate values collapsing and conflicting ones failing,
// extra additions follow, and per-key overrides apply last. Override keys
// with no generated entry synthesize one from scratch.
func (b *depsBuilder) compute(optional map[string]bool, deps depGroup, named namedGroup, extra []buck.DepEdit, overrides map[string]buck.DependencyOverride) (cargo.DepsSet, error) {
	set := make(cargo.DepsSet)
	add := func(key string, dep cargo.Dependency) error {
		if old, ok := set[key]; ok && !dep.Equal(old) {
			return fmt.Errorf("found duplicate key %s with one value %+v and other %+v", key, dep, old)
		}
		set[key] = dep
		return nil
	}

	removedCrates := make(map[string]bool)
	removedRules := make(map[buck.RuleID]bool)
	for _, edit := range extra {
		if !edit.Remove {
			continue
		}
		if edit.Dep.IsThirdParty() {
			removedCrates[edit.Dep.ThirdParty] = true
		} else {
			removedRules[edit.Dep.Rule] = true
		}
	}

	for _, name := range slices.Sorted(maps.Keys(deps.thirdParty)) {
		if removedCrates[name] {
			continue
		}
		key, dep, err := b.thirdPartyDep(name, "", optional)
		if err != nil {
			return nil, err
		}
		if err := add(key, dep); err != nil {
			return nil, err
		}
	}
	for _, rule := range sortedRules(deps.internal) {
		if removedRules[rule] {
			continue
		}
		key, dep, ok, err := b.internalDep(rule, deps.internal[rule], "", optional)
		if err != nil {
			return nil, err
		}
		if ok {
			if err := add(key, dep); err != nil {
				return nil, err
			}
		}
	}

	for _, nc := range sortedNamedCrates(named.thirdParty) {
		if removedCrates[nc.crate] {
			continue
		}
		key, dep, err := b.thirdPartyDep(nc.crate, nc.alias, optional)
		if err != nil {
			return nil, err
		}
		if err := add(key, dep); err != nil {
			return nil, err
		}
	}
	for _, nr := range sortedNamedRules(named.internal) {
		if removedRules[nr.rule] {
			continue
		}
		key, dep, ok, err := b.internalDep(nr.rule, named.internal[nr], nr.alias, optional)
		if err != nil {
			return nil, err
		}
		if ok {
			if err := add(key, dep); err != nil {
				return nil, err
			}
		}
	}

	for _, edit := range extra {
		if edit.Remove {
			continue
		}
		var (
			key string
			dep cargo.Dependency
			ok  bool
			err error
		)
		if edit.Dep.IsThirdParty() {
			key, dep, err = b.thirdPartyDep(edit.Dep.ThirdParty, edit.Alias, optional)
			ok = true
		} else {
			key, dep, ok, err = b.internalDep(edit.Dep.Rule, edit.Dep.Target, edit.Alias, optional)
		}
		if err != nil {
			return nil, err
		}
		if ok {
			if err := add(key, dep); err != nil {
				return nil, err
			}
		}
	}

	out := make(cargo.DepsSet, len(set)+len(overrides))
	for key, o := range overrides {
		if _, ok := set[key]; !ok {
			out[key] = b.applyOverride(key, cargo.Dependency{}, o)
		}
	}
	for key, dep := range set {
		out[key] = b.applyOverride(key, dep, overrides[key])
	}
	return out, nil
}

// thirdPartyDep converts a vendored-crate edge into a manifest entry. The
// returned key is what the entry inserts under: the alias when one exists,
// the crate's real package name otherwise. The registry key itself may be
// a versioned alias like foo-1, which Cargo must not see as the name.
func (b *depsBuilder) thirdPartyDep(name, alias string, optional map[string]bool) (string, cargo.Dependency, error) {
	pkg, dep, err := b.gen.registry.Lookup(name)
	if err != nil {
		return "", cargo.Dependency{}, err
	}
	dep = finishDep(pkg, dep, alias, optional)
	key := pkg
	if alias != "" {
		key = alias
	}
	return key, dep, nil
}

// internalDep converts an internal edge into a manifest entry: a path
// dependency inside one repository, a git dependency when the two ends
// publish to different remotes. OSS manifests drop edges to targets that
// do not publish at all, so the published crate builds without them.
func (b *depsBuilder) internalDep(rule buck.RuleID, raw *buck.RawManifest, alias string, optional map[string]bool) (string, cargo.Dependency, bool, error) {
	toConf := b.gen.owners[rule.TargetsPath()]

	var toOSS *project.OSSGitConfig
	if b.oss != nil {
		if toConf == nil || toConf.OSSGit == nil {
			return "", cargo.Dependency{}, false, nil
		}
		toOSS = toConf.OSSGit
	}

	// Manifests of manual projects are not generated from the rule graph,
	// so the features buck enables by default must travel on the edge.
	var features []string
	if toConf != nil && toConf.ManualCargoToml {
		if conf := raw.Cargo.TomlConfig; conf != nil && conf.Features != nil {
			features = (*conf.Features)["default"]
		} else {
			features = raw.RustConfig.Features
		}
	}

	var dep cargo.Dependency
	if toOSS != nil {
		// Published crates need versions to later land in a registry.
		dep.Version = dependencyVersion(raw.Cargo.TomlConfig, &toConf.Defaults.Package)
	}
	if toOSS != nil && b.oss.Git != toOSS.Git {
		dep.Git = toOSS.Git
		dep.Branch = toOSS.Branch
		dep.Tag = toOSS.Tag
		dep.Rev = toOSS.Rev
	} else {
		toDir, err := rule.TargetsPath().Dir().Join(raw.Cargo.CargoTomlDir)
		if err != nil {
			return "", cargo.Dependency{}, false, fmt.Errorf("while resolving manifest dir of %s: %w", rule, err)
		}
		dep.Path = repo.Rel(b.dir, toDir)
	}
	dep.Features = features

	pkg := dependencyPackageName(raw)
	dep = finishDep(pkg, dep, alias, optional)
	key := pkg
	if alias != "" {
		key = alias
	}
	return key, dep, true, nil
}

// finishDep derives the optional flag and the package rename of an entry.
// Unnamed entries key on the package name so no rename is needed; aliased
// entries carry one unless the alias already matches.
func finishDep(pkg string, dep cargo.Dependency, alias string, optional map[string]bool) cargo.Dependency {
	if alias != "" {
		dep.Optional = optional[alias]
	} else {
		dep.Optional = optional[pkg]
	}
	dep.Package = ""
	if alias != "" && alias != pkg {
		dep.Package = pkg
	}
	return dep
}

// applyOverride resolves a per-key override against a generated entry.
// cxx-build additionally tracks the registry's cxx version.
func (b *depsBuilder) applyOverride(key string, dep cargo.Dependency, o buck.DependencyOverride) cargo.Dependency {
	dep = o.Apply(dep)
	if key == "cxx-build" {
		if _, cxx, err := b.gen.registry.Lookup("cxx"); err == nil {
			dep.Version = cxx.Version
		}
	}
	return dep
}

// generateTargets builds the [target.*] blocks: one per platform with
// os_deps plus one per key that extra dependencies or overrides mention
// beyond the platforms. Named deps have no platform form, and per-target
// regular deps start from the platform's consolidated edges while build
// deps always start empty.
func (b *depsBuilder) generateTargets(con consolidated) (map[cargo.TargetKey]cargo.Deps, error) {
	type targetSpec struct {
		key   cargo.TargetKey
		os    buck.Platform
		hasOS bool
	}

	platformKeys := make(map[string]bool, len(platforms))
	specs := make([]targetSpec, 0, len(platforms))
	for _, os := range platforms {
		key := os.TargetKey()
		platformKeys[string(key)] = true
		specs = append(specs, targetSpec{key: key, os: os, hasOS: true})
	}

	extraKeys := make(map[string]bool)
	for key := range b.unit.Extra.Target {
		if !platformKeys[string(key)] {
			extraKeys[string(key)] = true
		}
	}
	for key := range b.unit.Config.DepsOverride.Target {
		if !platformKeys[key] {
			extraKeys[key] = true
		}
	}
	for _, s := range slices.Sorted(maps.Keys(extraKeys)) {
		key, err := cargo.NewTargetKey(s)
		if err != nil {
			return nil, fmt.Errorf("in target for %q: %w", s, err)
		}
		specs = append(specs, targetSpec{key: key})
	}

	out := make(map[cargo.TargetKey]cargo.Deps)
	for _, spec := range specs {
		var osDeps, testOsDeps depGroup
		if spec.hasOS {
			osDeps = con.osDeps[spec.os]
			testOsDeps = con.testOsDeps[spec.os]
		}
		extra := b.unit.Extra.Target[spec.key]
		overrides := b.unit.Config.DepsOverride.Target[string(spec.key)]

		deps, err := b.targetDeps(osDeps, testOsDeps, extra, overrides)
		if err != nil {
			return nil, fmt.Errorf("in target for %q: %w", string(spec.key), err)
		}
		if !deps.IsEmpty() {
			out[spec.key] = deps
		}
	}
	return out, nil
}

func (b *depsBuilder) targetDeps(osDeps, testOsDeps depGroup, extra buck.DepEdits, overrides buck.DepOverrideSet) (cargo.Deps, error) {
	regular, err := b.compute(b.optional, osDeps, namedGroup{}, extra.Dependencies, overrides.Dependencies)
	if err != nil {
		return cargo.Deps{}, fmt.Errorf("in dependencies: %w", err)
	}
	dev, err := b.computeDev(regular, testOsDeps, namedGroup{}, extra.DevDependencies, overrides.DevDependencies)
	if err != nil {
		return cargo.Deps{}, fmt.Errorf("in dev_dependencies: %w", err)
	}
	build, err := b.compute(nil, depGroup{}, namedGroup{}, extra.BuildDependencies, overrides.BuildDependencies)
	if err != nil {
		return cargo.Deps{}, fmt.Errorf("in build_dependencies: %w", err)
	}
	return cargo.Deps{
		Dependencies:      regular,
		DevDependencies:   dev,
		BuildDependencies: build,
	}, nil
}

func sortedRules(m map[buck.RuleID]*buck.RawManifest) []buck.RuleID {
	rules := make([]buck.RuleID, 0, len(m))
	for rule := range m {
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].String() < rules[j].String() })
	return rules
}

func sortedNamedCrates(m map[namedCrate]bool) []namedCrate {
	keys := make([]namedCrate, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].alias != keys[j].alias {
			return keys[i].alias < keys[j].alias
		}
		return keys[i].crate < keys[j].crate
	})
	return keys
}

func sortedNamedRules(m map[namedRule]*buck.RawManifest) []namedRule {
	keys := make([]namedRule, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].alias != keys[j].alias {
			return keys[i].alias < keys[j].alias
		}
		return keys[i].rule.String() < keys[j].rule.String()
	})
	return keys
}
