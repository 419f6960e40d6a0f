package buck

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/buckcargo/pkg/cargo"
	"github.com/matzehuels/buckcargo/pkg/repo"
)

// Dep is one resolved dependency edge: a third-party crate named by the
// remainder of its rule, or an internal rule together with its target's
// raw manifest.
type Dep struct {
	ThirdParty string
	Rule       RuleID
	Target     *RawManifest
}

// IsThirdParty reports whether the edge points outside the repo at a
// vendored crate.
func (d Dep) IsThirdParty() bool { return d.ThirdParty != "" }

// DepEdit is one resolved extra_buck_dependencies entry: an added edge, an
// added edge under an alias, or a removal.
type DepEdit struct {
	Dep    Dep
	Alias  string
	Remove bool
}

// DepEdits groups dependency edits per manifest table.
type DepEdits struct {
	Dependencies      []DepEdit
	DevDependencies   []DepEdit
	BuildDependencies []DepEdit
}

// ExtraDepEdits is the resolved form of a rule's extra_buck_dependencies:
// default-table edits plus per-platform edits under validated target keys.
type ExtraDepEdits struct {
	DepEdits
	Target map[cargo.TargetKey]DepEdits
}

// ThriftInfo carries what generation needs for a thrift crate: the content
// of the library's cratemap and the manifests of the two injected
// pseudo-dependencies.
type ThriftInfo struct {
	Cratemap     string
	CompilerRule RuleID
	Compiler     *RawManifest
	IncluderRule RuleID
	Includer     *RawManifest
}

// Manifest is one fully resolved rule: its raw manifest plus every
// dependency edge resolved against the loaded graph. Edges whose target
// turned out not to be a Rust rule are gone by the time a Manifest exists.
type Manifest struct {
	Rule RuleID
	Raw  *RawManifest

	Deps          []Dep
	NamedDeps     map[string]Dep
	OsDeps        map[Platform][]Dep
	Tests         []Dep
	TestDeps      []Dep
	TestNamedDeps map[string]Dep
	TestOsDeps    map[Platform][]Dep
	ExtraDeps     ExtraDepEdits
	Thrift        *ThriftInfo
}

// ProcessOutput is the result of resolving a set of build files.
type ProcessOutput struct {
	// Manifests holds the processed manifests grouped by build file, each
	// group sorted by rule name.
	Manifests map[repo.TargetsPath][]*Manifest
	// Unprocessed lists build files that contributed raw manifests as
	// dependency metadata but produced no processed manifest of their
	// own. Generation still needs to attribute them to projects when
	// deciding dependency coverage.
	Unprocessed []repo.TargetsPath
}

// Resolver turns raw manifests into resolved ones. Loading happens in two
// rounds: the requested build files first, then exactly one extra round
// for internal rules referenced from outside them. References still
// unresolved after the extra round are dropped as non-Rust.
type Resolver struct {
	Loader      *Loader
	Cratemaps   *CratemapLoader
	Conventions Conventions
	Logger      *log.Logger

	compilerRule RuleID
	includerRule RuleID
}

// NewResolver returns a resolver over the given loaders. Conventions are
// validated and filled with defaults; a nil logger uses the default
// logger.
func NewResolver(loader *Loader, cratemaps *CratemapLoader, conv Conventions, logger *log.Logger) (*Resolver, error) {
	if err := conv.Validate(); err != nil {
		return nil, err
	}
	compiler, err := ParseInternalRuleID(conv.ThriftCompilerRule)
	if err != nil {
		return nil, err
	}
	includer, err := ParseInternalRuleID(conv.CodegenIncluderRule)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Resolver{
		Loader:       loader,
		Cratemaps:    cratemaps,
		Conventions:  conv,
		Logger:       logger,
		compilerRule: compiler,
		includerRule: includer,
	}, nil
}

// Process loads and resolves every manifest declared in the given build
// files.
func (r *Resolver) Process(ctx context.Context, paths []repo.TargetsPath) (*ProcessOutput, error) {
	rules, err := r.Loader.Discover(ctx, paths)
	if err != nil {
		return nil, err
	}
	raw, err := r.Loader.Load(ctx, rules)
	if err != nil {
		return nil, err
	}

	builders := make(map[RuleID]*manifestBuilder, len(raw))
	for rule, m := range raw {
		if !m.RuleType.Supported() {
			r.Logger.Debugf("Build file at %s: rule type %s of %s is not supported", rule.Dir, m.RuleType, m.Name)
			continue
		}
		b, err := r.newBuilder(rule, m)
		if err != nil {
			return nil, err
		}
		builders[rule] = b
	}

	missing := r.missingRules(builders)

	var extra map[RuleID]*RawManifest
	var cratemaps map[RuleID]string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		extraRules, err := r.Loader.DiscoverForRules(gctx, missing)
		if err != nil {
			return err
		}
		extra, err = r.Loader.Load(gctx, extraRules)
		return err
	})
	g.Go(func() error {
		var libs []RuleID
		for rule, b := range builders {
			if NeedsCratemap(b.raw) {
				libs = append(libs, rule)
			}
		}
		var err error
		cratemaps, err = r.Cratemaps.Load(gctx, libs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := make(map[RuleID]*RawManifest, len(builders)+len(extra))
	for rule, b := range builders {
		all[rule] = b.raw
	}
	for rule, m := range extra {
		all[rule] = m
	}

	manifests := make(map[repo.TargetsPath][]*Manifest)
	for rule, b := range builders {
		m, err := r.stitch(b, all, cratemaps)
		if err != nil {
			return nil, err
		}
		path := rule.TargetsPath()
		manifests[path] = append(manifests[path], m)
	}
	for _, group := range manifests {
		sort.Slice(group, func(i, j int) bool { return group[i].Rule.Name < group[j].Rule.Name })
	}

	var unprocessed []repo.TargetsPath
	seen := make(map[repo.TargetsPath]bool)
	for rule := range all {
		path := rule.TargetsPath()
		if _, ok := manifests[path]; !ok && !seen[path] {
			seen[path] = true
			unprocessed = append(unprocessed, path)
		}
	}
	sort.Slice(unprocessed, func(i, j int) bool { return unprocessed[i].Dir() < unprocessed[j].Dir() })

	return &ProcessOutput{Manifests: manifests, Unprocessed: unprocessed}, nil
}

// pendingDep is a classified but not yet resolved dependency edge.
type pendingDep struct {
	thirdParty string
	rule       RuleID
}

func (d pendingDep) internal() bool { return d.thirdParty == "" }

type pendingEdit struct {
	dep    pendingDep
	alias  string
	remove bool
}

type pendingEditSet struct {
	deps  []pendingEdit
	dev   []pendingEdit
	build []pendingEdit
}

// manifestBuilder holds one rule's classified edges between the initial
// load and resolution against the full graph.
type manifestBuilder struct {
	rule RuleID
	raw  *RawManifest

	deps          []pendingDep
	namedDeps     map[string]pendingDep
	osDeps        map[Platform][]pendingDep
	tests         []pendingDep
	testDeps      []pendingDep
	testNamedDeps map[string]pendingDep
	testOsDeps    map[Platform][]pendingDep
	extra         pendingEditSet
	extraTarget   map[cargo.TargetKey]pendingEditSet
}

func (r *Resolver) newBuilder(rule RuleID, raw *RawManifest) (*manifestBuilder, error) {
	b := &manifestBuilder{rule: rule, raw: raw}
	d := &raw.Dependencies

	b.deps = r.classifyAll(rule.Dir, d.Deps)
	b.namedDeps = r.classifyNamed(rule.Dir, d.NamedDeps)
	b.osDeps = r.classifyOs(rule, d.OsDeps)
	b.tests = r.classifyAll(rule.Dir, d.Tests)
	b.testDeps = r.classifyAll(rule.Dir, d.TestDeps)
	b.testNamedDeps = r.classifyNamed(rule.Dir, d.TestNamedDeps)
	b.testOsDeps = r.classifyOs(rule, d.TestOsDeps)

	if conf := raw.Cargo.TomlConfig; conf != nil {
		b.extra = r.classifyEdits(rule.Dir, conf.ExtraDeps.DepChangeSet)
		for rawKey, set := range conf.ExtraDeps.Target {
			key, err := cargo.NewTargetKey(rawKey)
			if err != nil {
				return nil, fmt.Errorf("rule %s: extra_buck_dependencies: %w", rule, err)
			}
			if b.extraTarget == nil {
				b.extraTarget = make(map[cargo.TargetKey]pendingEditSet)
			}
			b.extraTarget[key] = r.classifyEdits(rule.Dir, set)
		}
	}
	return b, nil
}

// classify sorts one rule reference into a third-party or internal edge,
// or drops it with a trace when this tool cannot express it.
func (r *Resolver) classify(dir repo.Path, ruleStr string) (pendingDep, bool) {
	if name, ok := strings.CutPrefix(ruleStr, r.Conventions.ThirdPartyPrefix); ok {
		return pendingDep{thirdParty: name}, true
	}
	if strings.HasPrefix(ruleStr, ":") {
		name, subtarget, err := parseBareRule(ruleStr)
		if err != nil {
			r.Logger.Debugf("Build file at %s: unsupported dependency %q", dir, ruleStr)
			return pendingDep{}, false
		}
		if subtarget != "" {
			r.Logger.Debugf("Build file at %s: dependency %q has a subtarget, dropping it", dir, ruleStr)
			return pendingDep{}, false
		}
		return pendingDep{rule: RuleID{Cell: RootCell, Dir: dir, Name: name}}, true
	}
	if rid, err := ParseInternalRuleID(ruleStr); err == nil {
		return pendingDep{rule: rid}, true
	}
	r.Logger.Debugf("Build file at %s: unsupported dependency %q", dir, ruleStr)
	return pendingDep{}, false
}

func (r *Resolver) classifyAll(dir repo.Path, rules []string) []pendingDep {
	var out []pendingDep
	for _, s := range rules {
		if dep, ok := r.classify(dir, s); ok {
			out = append(out, dep)
		}
	}
	return out
}

func (r *Resolver) classifyNamed(dir repo.Path, rules map[string]string) map[string]pendingDep {
	out := make(map[string]pendingDep, len(rules))
	for alias, s := range rules {
		if dep, ok := r.classify(dir, s); ok {
			out[alias] = dep
		}
	}
	return out
}

// classifyOs flattens os_deps groups into a per-platform map, concatenating
// repeated platforms and dropping unknown ones with a trace.
func (r *Resolver) classifyOs(rule RuleID, groups []OsDeps) map[Platform][]pendingDep {
	out := make(map[Platform][]pendingDep)
	for _, group := range groups {
		if group.Platform == PlatformUnknown {
			r.Logger.Debugf("Build file at %s: unsupported os platform in os_deps of %s", rule.Dir, rule.Name)
			continue
		}
		out[group.Platform] = append(out[group.Platform], r.classifyAll(rule.Dir, group.Rules)...)
	}
	return out
}

func (r *Resolver) classifyEdits(dir repo.Path, set DepChangeSet) pendingEditSet {
	one := func(changes []DepChange) []pendingEdit {
		var out []pendingEdit
		for _, c := range changes {
			if dep, ok := r.classify(dir, c.Rule); ok {
				out = append(out, pendingEdit{dep: dep, alias: c.Alias, remove: c.Remove})
			}
		}
		return out
	}
	return pendingEditSet{
		deps:  one(set.Dependencies),
		dev:   one(set.DevDependencies),
		build: one(set.BuildDependencies),
	}
}

// missingRules collects internal rules referenced by the builders that are
// not among them, the input of the one extra load round. Thrift rules also
// pull in their pseudo-dependency rules.
func (r *Resolver) missingRules(builders map[RuleID]*manifestBuilder) []RuleID {
	referenced := make(map[RuleID]bool)
	addDep := func(d pendingDep) {
		if d.internal() {
			referenced[d.rule] = true
		}
	}
	addAll := func(deps []pendingDep) {
		for _, d := range deps {
			addDep(d)
		}
	}
	addEdits := func(set pendingEditSet) {
		for _, edits := range [][]pendingEdit{set.deps, set.dev, set.build} {
			for _, e := range edits {
				addDep(e.dep)
			}
		}
	}

	for _, b := range builders {
		addAll(b.deps)
		addAll(b.tests)
		addAll(b.testDeps)
		for _, d := range b.namedDeps {
			addDep(d)
		}
		for _, d := range b.testNamedDeps {
			addDep(d)
		}
		for _, deps := range b.osDeps {
			addAll(deps)
		}
		for _, deps := range b.testOsDeps {
			addAll(deps)
		}
		addEdits(b.extra)
		for _, set := range b.extraTarget {
			addEdits(set)
		}
		if b.raw.Cargo.Thrift != nil {
			referenced[r.compilerRule] = true
			referenced[r.includerRule] = true
		}
	}

	var missing []RuleID
	for rule := range referenced {
		if _, ok := builders[rule]; !ok {
			missing = append(missing, rule)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i].String() < missing[j].String() })
	return missing
}

// stitch resolves one builder's pending edges against the full graph.
func (r *Resolver) stitch(b *manifestBuilder, all map[RuleID]*RawManifest, cratemaps map[RuleID]string) (*Manifest, error) {
	m := &Manifest{
		Rule:          b.rule,
		Raw:           b.raw,
		Deps:          r.resolveAll(b.deps, all),
		NamedDeps:     r.resolveNamed(b.namedDeps, all),
		OsDeps:        r.resolveOs(b.osDeps, all),
		Tests:         r.resolveAll(b.tests, all),
		TestDeps:      r.resolveAll(b.testDeps, all),
		TestNamedDeps: r.resolveNamed(b.testNamedDeps, all),
		TestOsDeps:    r.resolveOs(b.testOsDeps, all),
	}

	m.ExtraDeps.DepEdits = r.resolveEdits(b.extra, all)
	if len(b.extraTarget) > 0 {
		m.ExtraDeps.Target = make(map[cargo.TargetKey]DepEdits, len(b.extraTarget))
		for key, set := range b.extraTarget {
			m.ExtraDeps.Target[key] = r.resolveEdits(set, all)
		}
	}

	if t := b.raw.Cargo.Thrift; t != nil {
		lib := RuleID{Cell: b.rule.Cell, Dir: b.rule.Dir, Name: t.UnsuffixedName}
		if content, ok := cratemaps[lib]; ok {
			compiler, includer := all[r.compilerRule], all[r.includerRule]
			if compiler == nil {
				return nil, fmt.Errorf("thrift rule %s: no manifest for %s", b.rule, r.compilerRule)
			}
			if includer == nil {
				return nil, fmt.Errorf("thrift rule %s: no manifest for %s", b.rule, r.includerRule)
			}
			m.Thrift = &ThriftInfo{
				Cratemap:     content,
				CompilerRule: r.compilerRule,
				Compiler:     compiler,
				IncluderRule: r.includerRule,
				Includer:     includer,
			}
		}
	}
	return m, nil
}

// resolve turns a classified edge into a resolved one. Internal edges
// whose rule has no manifest are non-Rust and dropped with a trace.
func (r *Resolver) resolve(d pendingDep, all map[RuleID]*RawManifest) (Dep, bool) {
	if !d.internal() {
		return Dep{ThirdParty: d.thirdParty}, true
	}
	target, ok := all[d.rule]
	if !ok {
		r.Logger.Debugf("Rule %s is not a Rust rule: it has no manifest", d.rule)
		return Dep{}, false
	}
	return Dep{Rule: d.rule, Target: target}, true
}

func (r *Resolver) resolveAll(deps []pendingDep, all map[RuleID]*RawManifest) []Dep {
	var out []Dep
	for _, d := range deps {
		if dep, ok := r.resolve(d, all); ok {
			out = append(out, dep)
		}
	}
	return out
}

func (r *Resolver) resolveNamed(deps map[string]pendingDep, all map[RuleID]*RawManifest) map[string]Dep {
	if len(deps) == 0 {
		return nil
	}
	out := make(map[string]Dep, len(deps))
	for alias, d := range deps {
		if dep, ok := r.resolve(d, all); ok {
			out[alias] = dep
		}
	}
	return out
}

func (r *Resolver) resolveOs(deps map[Platform][]pendingDep, all map[RuleID]*RawManifest) map[Platform][]Dep {
	if len(deps) == 0 {
		return nil
	}
	out := make(map[Platform][]Dep, len(deps))
	for platform, group := range deps {
		resolved := r.resolveAll(group, all)
		if len(resolved) > 0 {
			out[platform] = resolved
		}
	}
	return out
}

func (r *Resolver) resolveEdits(set pendingEditSet, all map[RuleID]*RawManifest) DepEdits {
	one := func(edits []pendingEdit) []DepEdit {
		var out []DepEdit
		for _, e := range edits {
			if dep, ok := r.resolve(e.dep, all); ok {
				out = append(out, DepEdit{Dep: dep, Alias: e.alias, Remove: e.remove})
			}
		}
		return out
	}
	return DepEdits{
		Dependencies:      one(set.deps),
		DevDependencies:   one(set.dev),
		BuildDependencies: one(set.build),
	}
}
