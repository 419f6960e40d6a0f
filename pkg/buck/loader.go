package buck

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/matzehuels/buckcargo/pkg/repo"
)

// Loader discovers, builds, and parses manifest artifacts through an
// oracle. It holds no cache: every call asks Buck again, so a run always
// sees the current state of the build graph.
type Loader struct {
	Oracle Oracle
	// Parallelism bounds how many artifacts are read and decoded at once.
	Parallelism int64
	Logger      *log.Logger
}

// NewLoader returns a loader over the given oracle. Parallelism defaults to
// the number of CPUs; a nil logger uses the default logger.
func NewLoader(oracle Oracle, logger *log.Logger) *Loader {
	if logger == nil {
		logger = log.Default()
	}
	return &Loader{
		Oracle:      oracle,
		Parallelism: int64(runtime.NumCPU()),
		Logger:      logger,
	}
}

// Discover returns the manifest rules declared in the given packages. The
// query is a single oracle round no matter how many packages are asked for.
func (l *Loader) Discover(ctx context.Context, paths []repo.TargetsPath) ([]string, error) {
	dirs := make([]repo.Path, 0, len(paths))
	for _, p := range paths {
		dirs = append(dirs, p.Dir())
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i] < dirs[j] })
	return l.Oracle.QueryManifestRules(ctx, dirs)
}

// DiscoverForRules returns the manifest rules of the given rules, for when
// dependency references name rules that may or may not be Rust. Querying a
// nonexistent rule directly is an error in Buck, so this queries the rules'
// packages and keeps only the manifest rules the inputs hypothesize.
func (l *Loader) DiscoverForRules(ctx context.Context, rules []RuleID) ([]string, error) {
	want := make(map[RuleID]bool, len(rules))
	dirs := make(map[repo.TargetsPath]bool)
	for _, rule := range rules {
		want[rule.ManifestRule()] = true
		dirs[rule.TargetsPath()] = true
	}
	paths := make([]repo.TargetsPath, 0, len(dirs))
	for dir := range dirs {
		paths = append(paths, dir)
	}

	discovered, err := l.Discover(ctx, paths)
	if err != nil {
		return nil, err
	}
	var kept []string
	for _, s := range discovered {
		rid, err := ParseInternalRuleID(s)
		if err != nil {
			return nil, fmt.Errorf("parsing output of 'buck2 query manifests': %w", err)
		}
		if want[rid] {
			kept = append(kept, s)
		}
	}
	return kept, nil
}

// Load builds the given manifest rules and parses every artifact. The
// result is keyed by the owning rule, derived by stripping the manifest
// suffix; a manifest whose name field disagrees with its rule fails the
// whole batch.
func (l *Loader) Load(ctx context.Context, rules []string) (map[RuleID]*RawManifest, error) {
	if len(rules) == 0 {
		return map[RuleID]*RawManifest{}, nil
	}
	artifacts, err := l.Oracle.BuildArtifacts(ctx, rules)
	if err != nil {
		return nil, err
	}

	parallelism := l.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(parallelism)
	var mu sync.Mutex
	out := make(map[RuleID]*RawManifest, len(artifacts))

	for ruleStr, artifact := range artifacts {
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			owner, m, err := readManifestArtifact(ruleStr, artifact)
			if err != nil {
				return err
			}
			mu.Lock()
			out[owner] = m
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// readManifestArtifact decodes one built manifest artifact and returns the
// owning rule it describes.
func readManifestArtifact(ruleStr, artifact string) (RuleID, *RawManifest, error) {
	rid, err := ParseInternalRuleID(ruleStr)
	if err != nil {
		return RuleID{}, nil, fmt.Errorf("parsing output of 'buck2 build rules': %w", err)
	}
	name, ok := strings.CutSuffix(rid.Name, ManifestRuleSuffix)
	if !ok {
		return RuleID{}, nil, fmt.Errorf("built rule %s does not end in %s", rid, ManifestRuleSuffix)
	}
	owner := RuleID{Cell: rid.Cell, Dir: rid.Dir, Name: name}

	data, err := os.ReadFile(artifact)
	if err != nil {
		return RuleID{}, nil, fmt.Errorf("reading manifest of %s: %w", owner, err)
	}
	var m RawManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return RuleID{}, nil, fmt.Errorf("parsing manifest %s of %s: %w", artifact, owner, err)
	}
	if m.Name != owner.Name {
		return RuleID{}, nil, fmt.Errorf("manifest %s declares name %q, expected %q", artifact, m.Name, owner.Name)
	}
	return owner, &m, nil
}

// LoadForPaths discovers and loads every manifest of the given packages,
// grouped by package with each group sorted by rule name. Packages without
// manifest rules are absent from the result.
func (l *Loader) LoadForPaths(ctx context.Context, paths []repo.TargetsPath) (map[repo.TargetsPath][]*RawManifest, error) {
	rules, err := l.Discover(ctx, paths)
	if err != nil {
		return nil, err
	}
	manifests, err := l.Load(ctx, rules)
	if err != nil {
		return nil, err
	}
	grouped := make(map[repo.TargetsPath][]*RawManifest)
	for rule, m := range manifests {
		path := rule.TargetsPath()
		grouped[path] = append(grouped[path], m)
	}
	for _, group := range grouped {
		sort.Slice(group, func(i, j int) bool { return group[i].Name < group[j].Name })
	}
	return grouped, nil
}
