package generate

import (
	"strings"
	"testing"

	"github.com/matzehuels/buckcargo/pkg/buck"
	"github.com/matzehuels/buckcargo/pkg/cargo"
	"github.com/matzehuels/buckcargo/pkg/repo"
)

func TestProductName(t *testing.T) {
	tests := []struct {
		name string
		raw  buck.RawManifest
		want string
	}{
		{
			name: "configured name wins verbatim",
			raw: buck.RawManifest{
				Name:  "match",
				Cargo: buck.CargoExtension{TargetConfig: buck.TargetConfig{Name: "match"}},
			},
			want: "match",
		},
		{
			name: "crate attribute",
			raw:  buck.RawManifest{Name: "foo-rust", RustConfig: buck.RustConfig{Crate: "foo"}},
			want: "foo",
		},
		{
			name: "rule name keeps dashes",
			raw:  buck.RawManifest{Name: "my-lib"},
			want: "my-lib",
		},
		{
			name: "keyword gets suffixed",
			raw:  buck.RawManifest{Name: "match"},
			want: "match_",
		},
		{
			name: "sysroot crate names count as keywords",
			raw:  buck.RawManifest{Name: "core"},
			want: "core_",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := productName(&tt.raw); got != tt.want {
				t.Errorf("productName = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFindCrateRoot(t *testing.T) {
	tests := []struct {
		name    string
		kind    buck.RuleType
		srcs    []string
		mapped  map[string]string
		product string
		want    string
		wantErr bool
	}{
		{
			name: "bin main at top level",
			kind: buck.RuleTypeBinary, srcs: []string{"main.rs"}, product: "tool",
			want: "main.rs",
		},
		{
			name: "bin main found in a subdirectory",
			kind: buck.RuleTypeBinary, srcs: []string{"foo/test.rs", "foo/bar/main.rs"}, product: "tool",
			want: "foo/bar/main.rs",
		},
		{
			name: "lib prefers lib.rs",
			kind: buck.RuleTypeLibrary, srcs: []string{"src/other.rs", "src/lib.rs"}, product: "tool",
			want: "src/lib.rs",
		},
		{
			name: "named source as fallback",
			kind: buck.RuleTypeBinary, srcs: []string{"src/tool.rs"}, product: "tool",
			want: "src/tool.rs",
		},
		{
			name: "candidate order beats depth",
			kind: buck.RuleTypeBinary, srcs: []string{"tool.rs", "sub/main.rs"}, product: "tool",
			want: "sub/main.rs",
		},
		{
			name: "depth ties break lexically",
			kind: buck.RuleTypeBinary, srcs: []string{"b/main.rs", "a/main.rs"}, product: "tool",
			want: "a/main.rs",
		},
		{
			name: "test rules accept either entrypoint",
			kind: buck.RuleTypeTest, srcs: []string{"src/lib.rs"}, product: "tool",
			want: "src/lib.rs",
		},
		{
			name: "mapped sources live under src",
			kind: buck.RuleTypeLibrary, mapped: map[string]string{":gen": "lib.rs"}, product: "tool",
			want: "src/lib.rs",
		},
		{
			name: "no candidate matches",
			kind: buck.RuleTypeLibrary, srcs: []string{"src/main.rs"}, product: "tool",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := &buck.RawManifest{Sources: buck.Sources{Srcs: tt.srcs, MappedSrcs: tt.mapped}}
			got, err := findCrateRoot(tt.kind, raw, tt.product)
			if tt.wantErr {
				if err == nil || !strings.Contains(err.Error(), "unable to find any of") {
					t.Fatalf("err = %v, want a crate-root error", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("crate root = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRelativeCrateRoot(t *testing.T) {
	got, err := relativeCrateRoot("src/lib.rs", repo.TargetsPathForDir("proj/foo"), "proj/foo")
	if err != nil || got != "src/lib.rs" {
		t.Errorf("same dir = %q (%v), want src/lib.rs", got, err)
	}

	// A manifest redirected to the parent dir sees the source one level in.
	got, err = relativeCrateRoot("src/lib.rs", repo.TargetsPathForDir("proj/foo"), "proj")
	if err != nil || got != "foo/src/lib.rs" {
		t.Errorf("parent dir = %q (%v), want foo/src/lib.rs", got, err)
	}

	if _, err := relativeCrateRoot("../../../lib.rs", repo.TargetsPathForDir("proj"), "proj"); err == nil {
		t.Error("escaping root accepted, want an error")
	}
}

func TestBuildProductBools(t *testing.T) {
	build := func(m *buck.Manifest, kind buck.RuleType) cargo.Product {
		t.Helper()
		p, err := buildProduct(kind, m.Raw, repo.TargetsPathForDir("mylib"), "mylib", "2021")
		if err != nil {
			t.Fatal(err)
		}
		return p
	}

	plain := testRule("mylib", "my-lib", buck.RuleTypeLibrary)
	p := build(plain, buck.RuleTypeLibrary)
	if p.Name != "my_lib" || p.Path != "src/lib.rs" {
		t.Errorf("lib product = %q %q, want my_lib src/lib.rs", p.Name, p.Path)
	}
	if p.Test != nil || p.Doctest != nil || p.Bench != nil || p.Doc != nil || p.ProcMacro != nil || p.Harness != nil {
		t.Errorf("lib product carries redundant bools: %+v", p)
	}
	if p.Edition != "" {
		t.Errorf("edition = %q, want suppressed when it matches the package", p.Edition)
	}

	noTests := testRule("mylib", "quiet", buck.RuleTypeLibrary)
	noTests.Raw.RustConfig.Unittests = false
	p = build(noTests, buck.RuleTypeLibrary)
	if p.Test == nil || *p.Test || p.Doctest == nil || *p.Doctest {
		t.Errorf("unittests-off lib = test %v doctest %v, want both false", p.Test, p.Doctest)
	}

	macro := testRule("mylib", "derive", buck.RuleTypeLibrary)
	macro.Raw.RustConfig.ProcMacro = true
	p = build(macro, buck.RuleTypeLibrary)
	if p.ProcMacro == nil || !*p.ProcMacro {
		t.Errorf("proc macro flag = %v, want true", p.ProcMacro)
	}
	if p.Test == nil || *p.Test {
		t.Errorf("proc macro test flag = %v, want false", p.Test)
	}

	// An explicit target config wins over the computed suppression.
	forced := testRule("mylib", "forced", buck.RuleTypeLibrary)
	forced.Raw.RustConfig.Unittests = false
	forced.Raw.Cargo.TargetConfig.Test = cargo.SetField(true)
	p = build(forced, buck.RuleTypeLibrary)
	if p.Test != nil {
		t.Errorf("forced test flag = %v, want dropped as cargo's default", p.Test)
	}
	if p.Doctest == nil || *p.Doctest {
		t.Errorf("doctest = %v, want still false", p.Doctest)
	}
}

func TestBuildProductKinds(t *testing.T) {
	build := func(m *buck.Manifest, kind buck.RuleType) cargo.Product {
		t.Helper()
		p, err := buildProduct(kind, m.Raw, repo.TargetsPathForDir("mylib"), "mylib", "2021")
		if err != nil {
			t.Fatal(err)
		}
		return p
	}

	// Bench and doc default off for test products, on for everything else.
	test := testRule("mylib", "sim", buck.RuleTypeTest)
	test.Raw.Cargo.TargetConfig.Bench = newBool(true)
	p := build(test, buck.RuleTypeTest)
	if p.Bench == nil || !*p.Bench || p.Doc != nil {
		t.Errorf("test product = bench %v doc %v, want explicit bench only", p.Bench, p.Doc)
	}

	bin := testRule("mylib", "tool", buck.RuleTypeBinary)
	bin.Raw.Cargo.TargetConfig.Bench = newBool(true)
	bin.Raw.Cargo.TargetConfig.Doc = newBool(false)
	p = build(bin, buck.RuleTypeBinary)
	if p.Bench != nil || p.Doc == nil || *p.Doc {
		t.Errorf("bin product = bench %v doc %v, want doc=false only", p.Bench, p.Doc)
	}

	harness := testRule("mylib", "raw", buck.RuleTypeTest)
	harness.Raw.Cargo.TargetConfig.Harness = newBool(false)
	p = build(harness, buck.RuleTypeTest)
	if p.Harness == nil || *p.Harness {
		t.Errorf("harness = %v, want false", p.Harness)
	}
}

func TestBuildProductPathAndEdition(t *testing.T) {
	thrift := testRule("mylib", "api-rust", buck.RuleTypeLibrary)
	thrift.Raw.Sources = buck.Sources{}
	thrift.Raw.Cargo.Thrift = &buck.ThriftSpec{}
	p, err := buildProduct(buck.RuleTypeLibrary, thrift.Raw, repo.TargetsPathForDir("mylib"), "mylib", "2021")
	if err != nil {
		t.Fatal(err)
	}
	if p.Path != repo.ThriftLibFileName {
		t.Errorf("thrift path = %q, want %q", p.Path, repo.ThriftLibFileName)
	}

	rooted := testRule("mylib", "gen", buck.RuleTypeLibrary)
	rooted.Raw.RustConfig.CrateRoot = "out/lib.rs"
	rooted.Raw.RustConfig.Edition = "2018"
	p, err = buildProduct(buck.RuleTypeLibrary, rooted.Raw, repo.TargetsPathForDir("mylib"), "mylib", "2021")
	if err != nil {
		t.Fatal(err)
	}
	if p.Path != "out/lib.rs" {
		t.Errorf("path = %q, want the declared crate root", p.Path)
	}
	if p.Edition != "2018" {
		t.Errorf("edition = %q, want 2018 since it differs from the package", p.Edition)
	}

	configured := testRule("mylib", "conf", buck.RuleTypeLibrary)
	configured.Raw.Cargo.TargetConfig.Path = "custom/entry.rs"
	configured.Raw.Cargo.TargetConfig.Edition = cargo.SetField("2015")
	p, err = buildProduct(buck.RuleTypeLibrary, configured.Raw, repo.TargetsPathForDir("mylib"), "mylib", "2021")
	if err != nil {
		t.Fatal(err)
	}
	if p.Path != "custom/entry.rs" || p.Edition != "2015" {
		t.Errorf("configured product = %q %q, want custom/entry.rs 2015", p.Path, p.Edition)
	}
}
