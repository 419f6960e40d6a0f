package generate

import (
	"github.com/matzehuels/buckcargo/pkg/buck"
)

// platforms lists every platform generation can express as a manifest
// target block.
var platforms = []buck.Platform{buck.PlatformLinux, buck.PlatformMacos, buck.PlatformWindows}

// depGroup is one table's worth of consolidated plain edges: third-party
// crate names and internal library rules with their raw manifests.
type depGroup struct {
	thirdParty map[string]bool
	internal   map[buck.RuleID]*buck.RawManifest
}

func newDepGroup() depGroup {
	return depGroup{
		thirdParty: make(map[string]bool),
		internal:   make(map[buck.RuleID]*buck.RawManifest),
	}
}

// namedGroup is one table's worth of consolidated aliased edges.
type namedGroup struct {
	thirdParty map[namedCrate]bool
	internal   map[namedRule]*buck.RawManifest
}

type namedCrate struct {
	alias string
	crate string
}

type namedRule struct {
	alias string
	rule  buck.RuleID
}

func newNamedGroup() namedGroup {
	return namedGroup{
		thirdParty: make(map[namedCrate]bool),
		internal:   make(map[namedRule]*buck.RawManifest),
	}
}

// consolidated condenses a unit's dependency edges per manifest table. Buck
// spreads dependencies over named, test, and platform lists on any number
// of rules; a manifest wants them per package, so everything folds into
// seven groups here before conversion.
type consolidated struct {
	deps          depGroup
	namedDeps     namedGroup
	osDeps        map[buck.Platform]depGroup
	testDeps      depGroup
	testNamedDeps namedGroup
	testOsDeps    map[buck.Platform]depGroup
	// buildDeps has no build-file counterpart; only the thrift compiler
	// lands here.
	buildDeps depGroup
}

// consolidate folds the unit's edges into per-table groups. Edges back into
// the unit's own rules are dropped, as are edges whose target cannot be a
// Cargo dependency. Thrift units additionally get the codegen includer
// injected as a dependency and the thrift compiler as the sole build
// dependency.
func (g *Generator) consolidate(u *Unit) consolidated {
	local := make(map[string]bool)
	for _, m := range u.members() {
		local[m.Raw.Name] = true
	}
	c := consolidator{gen: g, unit: u, local: local}

	libAndBins := make([]*buck.Manifest, 0, 1+len(u.Bins))
	if u.Lib != nil {
		libAndBins = append(libAndBins, u.Lib)
	}
	libAndBins = append(libAndBins, u.Bins...)

	out := consolidated{
		deps:          newDepGroup(),
		namedDeps:     newNamedGroup(),
		osDeps:        make(map[buck.Platform]depGroup, len(platforms)),
		testDeps:      newDepGroup(),
		testNamedDeps: newNamedGroup(),
		testOsDeps:    make(map[buck.Platform]depGroup, len(platforms)),
		buildDeps:     newDepGroup(),
	}

	for _, m := range libAndBins {
		c.addDeps(&out.deps, m.Deps)
		c.addNamedDeps(&out.namedDeps, m.NamedDeps)
		c.addDeps(&out.testDeps, m.TestDeps)
		c.addNamedDeps(&out.testNamedDeps, m.TestNamedDeps)
	}
	for _, m := range u.Tests {
		c.addDeps(&out.testDeps, m.Deps)
		c.addNamedDeps(&out.testNamedDeps, m.NamedDeps)
	}

	for _, os := range platforms {
		osDeps := newDepGroup()
		testOsDeps := newDepGroup()
		for _, m := range libAndBins {
			c.addDeps(&osDeps, m.OsDeps[os])
			c.addDeps(&testOsDeps, m.TestOsDeps[os])
		}
		for _, m := range u.Tests {
			c.addDeps(&testOsDeps, m.OsDeps[os])
		}
		out.osDeps[os] = osDeps
		out.testOsDeps[os] = testOsDeps
	}

	if u.Lib != nil && u.Lib.Thrift != nil {
		thrift := u.Lib.Thrift
		out.deps.internal[thrift.IncluderRule] = thrift.Includer
		out.buildDeps.internal[thrift.CompilerRule] = thrift.Compiler
	}

	return out
}

type consolidator struct {
	gen   *Generator
	unit  *Unit
	local map[string]bool
}

func (c consolidator) addDeps(out *depGroup, deps []buck.Dep) {
	for _, d := range deps {
		if d.IsThirdParty() {
			out.thirdParty[d.ThirdParty] = true
			continue
		}
		if c.skip(d) {
			continue
		}
		out.internal[d.Rule] = d.Target
	}
}

func (c consolidator) addNamedDeps(out *namedGroup, deps map[string]buck.Dep) {
	for alias, d := range deps {
		if d.IsThirdParty() {
			out.thirdParty[namedCrate{alias: alias, crate: d.ThirdParty}] = true
			continue
		}
		if c.skip(d) {
			continue
		}
		out.internal[namedRule{alias: alias, rule: d.Rule}] = d.Target
	}
}

// skip reports whether an internal edge stays out of the consolidated
// groups: edges back into the unit itself (a test depending on its own
// lib), ignored rules, rules of build files no project covers, and rules
// Cargo cannot depend on.
func (c consolidator) skip(d buck.Dep) bool {
	if d.Rule.TargetsPath() == c.unit.Targets && c.local[d.Rule.Name] {
		return true
	}
	return !c.gen.accept(d.Rule, d.Target)
}

// accept filters an internal dependency edge. Ignored rules and rules of
// uncovered build files drop silently; non-library rules drop with a trace
// since depending on them is a build-file-only concept.
func (g *Generator) accept(rule buck.RuleID, raw *buck.RawManifest) bool {
	if raw.Cargo.IgnoreRule {
		return false
	}
	if _, ok := g.owners[rule.TargetsPath()]; !ok {
		return false
	}
	if !raw.RuleType.IsLibrary() {
		g.logger.Debugf("Rule %s from %s was listed as a dependency, but it is not a rust_library rule. In Cargo you cannot depend on a non-library, so ignoring it.",
			raw.Name, rule.TargetsPath())
		return false
	}
	return true
}
