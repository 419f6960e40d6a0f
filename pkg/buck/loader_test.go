package buck

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/buckcargo/pkg/procutil"
	"github.com/matzehuels/buckcargo/pkg/repo"
)

func discardLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

// fakeOracle scripts oracle answers from an in-memory rule graph and
// materializes build artifacts as real files under a temp dir.
type fakeOracle struct {
	t          *testing.T
	dir        string
	rulesByDir map[repo.Path][]string
	artifacts  map[string]string
	queryErr   error
	buildErr   error

	mu      sync.Mutex
	queries [][]repo.Path
	builds  [][]string
	written int
}

func newFakeOracle(t *testing.T) *fakeOracle {
	return &fakeOracle{
		t:          t,
		dir:        t.TempDir(),
		rulesByDir: make(map[repo.Path][]string),
		artifacts:  make(map[string]string),
	}
}

// addManifest declares owner's manifest rule and scripts its artifact.
func (f *fakeOracle) addManifest(owner RuleID, content string) {
	manifest := owner.ManifestRule().String()
	f.rulesByDir[owner.Dir] = append(f.rulesByDir[owner.Dir], manifest)
	f.artifacts[manifest] = content
}

// addCratemap scripts the cratemap artifact of a thrift library rule.
func (f *fakeOracle) addCratemap(lib RuleID, content string) {
	rule := RuleID{Cell: lib.Cell, Dir: lib.Dir, Name: lib.Name + CratemapRuleSuffix}
	f.artifacts[rule.String()] = content
}

func (f *fakeOracle) QueryManifestRules(_ context.Context, dirs []repo.Path) ([]string, error) {
	f.mu.Lock()
	f.queries = append(f.queries, dirs)
	f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	var out []string
	for _, d := range dirs {
		out = append(out, f.rulesByDir[d]...)
	}
	return out, nil
}

func (f *fakeOracle) BuildArtifacts(_ context.Context, rules []string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builds = append(f.builds, rules)
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	out := make(map[string]string, len(rules))
	for _, rule := range rules {
		content, ok := f.artifacts[rule]
		if !ok {
			return nil, fmt.Errorf("no artifact scripted for %s", rule)
		}
		f.written++
		path := filepath.Join(f.dir, fmt.Sprintf("artifact-%d.json", f.written))
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			f.t.Fatal(err)
		}
		out[rule] = path
	}
	return out, nil
}

// testManifest returns a minimal decodable manifest document for the given
// rule; tests mutate it before marshaling.
func testManifest(name, ruleType string) map[string]any {
	return map[string]any{
		"name":      name,
		"rule_type": ruleType,
		"rust_config": map[string]any{
			"edition":   "2021",
			"unittests": true,
		},
		"sources":      map[string]any{"srcs": []string{"src/lib.rs"}},
		"dependencies": map[string]any{},
		"cargo":        map[string]any{},
	}
}

func marshal(t *testing.T, doc map[string]any) string {
	t.Helper()
	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestBuck2OracleQueryManifestRules(t *testing.T) {
	runner := &scriptRunner{stdout: []byte(`["root//a:x-rust-manifest"]`)}
	oracle := NewBuck2Oracle(repo.Root("/repo"), runner, discardLogger())

	rules, err := oracle.QueryManifestRules(context.Background(), []repo.Path{"a", "b/c"})
	if err != nil {
		t.Fatalf("QueryManifestRules: %v", err)
	}
	if len(rules) != 1 || rules[0] != "root//a:x-rust-manifest" {
		t.Errorf("rules = %v", rules)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("runner called %d times, want 1", len(runner.calls))
	}
	c := runner.calls[0]
	if c.Path != "buck2" || c.Dir != "/repo" {
		t.Errorf("command = %s in %s, want buck2 in /repo", c.Path, c.Dir)
	}
	args := strings.Join(c.Args, " ")
	for _, want := range []string{"--isolation-dir=buckcargo", "uquery", "--oncall=buckcargo", "--output-format=json", "@-"} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
	if want := "root//a:\nroot//b/c:\n"; c.Stdin != want {
		t.Errorf("stdin = %q, want %q", c.Stdin, want)
	}
}

func TestBuck2OracleEmptyInput(t *testing.T) {
	runner := &scriptRunner{}
	oracle := NewBuck2Oracle(repo.Root("/repo"), runner, discardLogger())

	if _, err := oracle.QueryManifestRules(context.Background(), nil); err != nil {
		t.Fatalf("QueryManifestRules: %v", err)
	}
	if _, err := oracle.BuildArtifacts(context.Background(), nil); err != nil {
		t.Fatalf("BuildArtifacts: %v", err)
	}
	if len(runner.calls) != 0 {
		t.Errorf("runner called %d times for empty input, want 0", len(runner.calls))
	}
}

func TestBuck2OracleBuildArtifacts(t *testing.T) {
	runner := &scriptRunner{stdout: []byte(`{"root//a:x-rust-manifest": "/out/x.json"}`)}
	oracle := NewBuck2Oracle(repo.Root("/repo"), runner, discardLogger())

	artifacts, err := oracle.BuildArtifacts(context.Background(), []string{"root//a:x-rust-manifest"})
	if err != nil {
		t.Fatalf("BuildArtifacts: %v", err)
	}
	if artifacts["root//a:x-rust-manifest"] != "/out/x.json" {
		t.Errorf("artifacts = %v", artifacts)
	}
	c := runner.calls[0]
	args := strings.Join(c.Args, " ")
	for _, want := range []string{"build", "--show-full-json-output", "@-"} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
	if want := "root//a:x-rust-manifest\n"; c.Stdin != want {
		t.Errorf("stdin = %q, want %q", c.Stdin, want)
	}
}

type scriptRunner struct {
	stdout []byte
	err    error
	calls  []procutil.Cmd
}

func (r *scriptRunner) Run(_ context.Context, c procutil.Cmd) ([]byte, []byte, error) {
	r.calls = append(r.calls, c)
	return r.stdout, nil, r.err
}

func TestLoaderLoad(t *testing.T) {
	oracle := newFakeOracle(t)
	foo := RuleID{Cell: "root", Dir: "a", Name: "foo"}
	bar := RuleID{Cell: "root", Dir: "b", Name: "bar"}
	oracle.addManifest(foo, marshal(t, testManifest("foo", "rust_library")))
	oracle.addManifest(bar, marshal(t, testManifest("bar", "rust_binary")))

	loader := NewLoader(oracle, discardLogger())
	got, err := loader.Load(context.Background(), []string{foo.ManifestRule().String(), bar.ManifestRule().String()})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("loaded %d manifests, want 2", len(got))
	}
	if m := got[foo]; m == nil || m.RuleType != RuleTypeLibrary {
		t.Errorf("manifest of %s = %+v", foo, got[foo])
	}
	if m := got[bar]; m == nil || m.RuleType != RuleTypeBinary {
		t.Errorf("manifest of %s = %+v", bar, got[bar])
	}
}

func TestLoaderLoadEmpty(t *testing.T) {
	oracle := newFakeOracle(t)
	loader := NewLoader(oracle, discardLogger())
	got, err := loader.Load(context.Background(), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("loaded %d manifests, want 0", len(got))
	}
	if len(oracle.builds) != 0 {
		t.Errorf("oracle called %d times for empty input, want 0", len(oracle.builds))
	}
}

func TestLoaderLoadNameMismatch(t *testing.T) {
	oracle := newFakeOracle(t)
	foo := RuleID{Cell: "root", Dir: "a", Name: "foo"}
	oracle.addManifest(foo, marshal(t, testManifest("not-foo", "rust_library")))

	loader := NewLoader(oracle, discardLogger())
	_, err := loader.Load(context.Background(), []string{foo.ManifestRule().String()})
	if err == nil {
		t.Fatal("Load accepted a manifest whose name disagrees with its rule")
	}
	if !strings.Contains(err.Error(), "not-foo") {
		t.Errorf("error %q does not name the offender", err)
	}
}

func TestLoaderLoadBadJSON(t *testing.T) {
	oracle := newFakeOracle(t)
	foo := RuleID{Cell: "root", Dir: "a", Name: "foo"}
	bar := RuleID{Cell: "root", Dir: "b", Name: "bar"}
	oracle.addManifest(foo, marshal(t, testManifest("foo", "rust_library")))
	oracle.addManifest(bar, "{not json")

	loader := NewLoader(oracle, discardLogger())
	_, err := loader.Load(context.Background(), []string{foo.ManifestRule().String(), bar.ManifestRule().String()})
	if err == nil {
		t.Fatal("Load succeeded with a corrupt artifact in the batch")
	}
}

func TestLoaderDiscoverForRules(t *testing.T) {
	oracle := newFakeOracle(t)
	foo := RuleID{Cell: "root", Dir: "a", Name: "foo"}
	oracle.addManifest(foo, marshal(t, testManifest("foo", "rust_library")))
	// A manifest rule in the same package that no input hypothesizes.
	other := RuleID{Cell: "root", Dir: "a", Name: "other"}
	oracle.addManifest(other, marshal(t, testManifest("other", "rust_library")))

	loader := NewLoader(oracle, discardLogger())
	got, err := loader.DiscoverForRules(context.Background(), []RuleID{foo})
	if err != nil {
		t.Fatalf("DiscoverForRules: %v", err)
	}
	if len(got) != 1 || got[0] != foo.ManifestRule().String() {
		t.Errorf("DiscoverForRules = %v, want just %s", got, foo.ManifestRule())
	}
}

func TestLoaderLoadForPaths(t *testing.T) {
	oracle := newFakeOracle(t)
	zeta := RuleID{Cell: "root", Dir: "a", Name: "zeta"}
	alpha := RuleID{Cell: "root", Dir: "a", Name: "alpha"}
	solo := RuleID{Cell: "root", Dir: "b", Name: "solo"}
	oracle.addManifest(zeta, marshal(t, testManifest("zeta", "rust_library")))
	oracle.addManifest(alpha, marshal(t, testManifest("alpha", "rust_binary")))
	oracle.addManifest(solo, marshal(t, testManifest("solo", "rust_library")))

	loader := NewLoader(oracle, discardLogger())
	got, err := loader.LoadForPaths(context.Background(), []repo.TargetsPath{
		repo.TargetsPathForDir("a"),
		repo.TargetsPathForDir("b"),
	})
	if err != nil {
		t.Fatalf("LoadForPaths: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d groups, want 2", len(got))
	}
	groupA := got[repo.TargetsPathForDir("a")]
	if len(groupA) != 2 || groupA[0].Name != "alpha" || groupA[1].Name != "zeta" {
		names := make([]string, len(groupA))
		for i, m := range groupA {
			names[i] = m.Name
		}
		t.Errorf("group a = %v, want [alpha zeta]", names)
	}
}
