package project

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/buckcargo/pkg/repo"
)

func testConfig(name string, includes, deps []string) *Config {
	return &Config{
		Name:         name,
		Oncall:       "oncall_name",
		IncludeGlobs: includes,
		Dependencies: deps,
	}
}

func mustCatalog(t *testing.T, configs ...*Config) *Catalog {
	t.Helper()
	cat, err := NewCatalog(configs)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	return cat
}

func selectionNames(sel Selection) string {
	names := make([]string, 0, sel.Len())
	for _, conf := range sel.Projects() {
		names = append(names, conf.Name)
	}
	return strings.Join(names, " ")
}

func TestSelectAll(t *testing.T) {
	cat := mustCatalog(t,
		testConfig("proj1", nil, nil),
		testConfig("proj3", nil, nil),
		testConfig("proj2", nil, nil),
	)
	if got := selectionNames(cat.SelectAll()); got != "proj1 proj2 proj3" {
		t.Errorf("SelectAll = %q, want sorted names", got)
	}
}

func TestSelectClosures(t *testing.T) {
	cat := mustCatalog(t,
		testConfig("proj1", []string{"a"}, nil),
		testConfig("proj2", []string{"b"}, []string{"proj1"}),
		testConfig("proj3", []string{"c"}, []string{"proj2"}),
		testConfig("proj4", []string{"b"}, nil),
	)
	tests := []struct {
		name  string
		paths []repo.Path
		names []string
		want  string
	}{
		{name: "path a pulls dependents", paths: []repo.Path{"a"}, want: "proj1 proj2 proj3"},
		{name: "path b", paths: []repo.Path{"b"}, want: "proj2 proj3 proj4"},
		{name: "path c", paths: []repo.Path{"c"}, want: "proj3"},
		{name: "both paths", paths: []repo.Path{"a", "b"}, want: "proj1 proj2 proj3 proj4"},
		{name: "leaf by name", names: []string{"proj1"}, want: "proj1"},
		{name: "name pulls dependencies", names: []string{"proj3"}, want: "proj1 proj2 proj3"},
		{name: "mixed", paths: []repo.Path{"b"}, names: []string{"proj2"}, want: "proj1 proj2 proj3 proj4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := cat.Select(tt.paths, tt.names)
			if err != nil {
				t.Fatalf("Select: %v", err)
			}
			if got := selectionNames(sel); got != tt.want {
				t.Errorf("Select = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSelectUnknownName(t *testing.T) {
	cat := mustCatalog(t, testConfig("proj1", nil, nil))
	_, err := cat.Select(nil, []string{"nope"})
	if err == nil || !strings.Contains(err.Error(), "not recognised") {
		t.Fatalf("Select error = %v, want not recognised", err)
	}
}

func TestCatalogValidation(t *testing.T) {
	t.Run("duplicate names", func(t *testing.T) {
		_, err := NewCatalog([]*Config{testConfig("dup", nil, nil), testConfig("dup", nil, nil)})
		if err == nil || !strings.Contains(err.Error(), "not unique") {
			t.Fatalf("error = %v, want duplicate name", err)
		}
	})
	t.Run("missing dependency", func(t *testing.T) {
		_, err := NewCatalog([]*Config{testConfig("p", nil, []string{"ghost"})})
		if err == nil || !strings.Contains(err.Error(), "does not exist") {
			t.Fatalf("error = %v, want missing dependency", err)
		}
	})
	t.Run("uncovered lock dir", func(t *testing.T) {
		conf := testConfig("p", []string{"covered/**"}, nil)
		conf.CargoLocks = []repo.Path{"elsewhere"}
		_, err := NewCatalog([]*Config{conf})
		if err == nil || !strings.Contains(err.Error(), "is not contained in project") {
			t.Fatalf("error = %v, want uncovered lock", err)
		}
	})
	t.Run("covered lock dir", func(t *testing.T) {
		conf := testConfig("p", []string{"covered/**"}, nil)
		conf.CargoLocks = []repo.Path{"covered/cli"}
		if _, err := NewCatalog([]*Config{conf}); err != nil {
			t.Fatalf("NewCatalog: %v", err)
		}
	})
}

func TestResolveForDirs(t *testing.T) {
	alpha := testConfig("alpha", nil, nil)
	alpha.Roots = []repo.Path{"a", "shared"}
	beta := testConfig("beta", []string{"b/**"}, nil)
	beta.Roots = []repo.Path{"shared"}
	cat := mustCatalog(t, beta, alpha)

	dirs := []repo.TargetsPath{
		repo.TargetsPathForDir("a/x"),
		repo.TargetsPathForDir("b"),
		repo.TargetsPathForDir("c"),
		repo.TargetsPathForDir("shared/lib"),
	}
	got := cat.ResolveForDirs(dirs)
	if len(got) != 3 {
		t.Fatalf("resolved %d dirs, want 3: %v", len(got), got)
	}
	if got[repo.TargetsPathForDir("a/x")] != alpha {
		t.Errorf("a/x resolved to %v, want alpha", got[repo.TargetsPathForDir("a/x")])
	}
	if got[repo.TargetsPathForDir("b")] != beta {
		t.Errorf("b resolved to %v, want beta", got[repo.TargetsPathForDir("b")])
	}
	// Both cover shared; name order decides.
	if got[repo.TargetsPathForDir("shared/lib")] != alpha {
		t.Errorf("shared/lib resolved to %v, want alpha", got[repo.TargetsPathForDir("shared/lib")])
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	write := func(rel, content string) {
		t.Helper()
		p := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("one.toml", "name = \"one\"\noncall = \"o\"\n")
	write("nested/two.toml", "name = \"two\"\noncall = \"o\"\ndependencies = [\"one\"]\n")
	write("README.md", "not a config")

	cat, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if got := selectionNames(cat.SelectAll()); got != "one two" {
		t.Errorf("loaded projects = %q, want %q", got, "one two")
	}

	write("bad.toml", "name = \"one\"\noncall = \"o\"\nmystery_knob = 3\n")
	_, err = LoadDir(dir)
	if err == nil || !strings.Contains(err.Error(), "unknown key") {
		t.Fatalf("LoadDir error = %v, want unknown key", err)
	}
	if !strings.Contains(err.Error(), "bad.toml") {
		t.Errorf("LoadDir error %v does not name the offending file", err)
	}
}
