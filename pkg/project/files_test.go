package project

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/buckcargo/pkg/repo"
)

func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, name := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func manifestDirs(files *Files) string {
	dirs := make([]string, 0, len(files.Manifests))
	for _, m := range files.Manifests {
		dirs = append(dirs, string(m.Dir()))
	}
	return strings.Join(dirs, " ")
}

func buildDirs(files *Files) string {
	dirs := make([]string, 0, len(files.BuildFiles))
	for _, tp := range files.BuildFiles {
		dirs = append(dirs, string(tp.Dir()))
	}
	return strings.Join(dirs, " ")
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"proj/Cargo.toml",
		"proj/TARGETS",
		"proj/sub/Cargo.toml",
		"proj/sub/BUCK",
		"proj/skip/Cargo.toml",
		"proj/skip/TARGETS",
		"proj/src/lib.rs",
		"inc/thrift/Cargo.toml",
		"inc/thrift/TARGETS",
		"inc/thrift/thrift_build.rs",
		"inc/thrift/thrift_lib.rs",
		"other/Cargo.toml",
		"other/BUCK",
	)

	scraper := testConfig("scraper", []string{"inc/**"}, nil)
	scraper.Roots = []repo.Path{"proj"}
	scraper.ExcludeGlobs = []string{"proj/skip/**"}
	api := testConfig("api", nil, nil)
	api.Roots = []repo.Path{"other"}
	cat := mustCatalog(t, scraper, api)

	got, err := Discover(context.Background(), repo.Root(root), cat.SelectAll())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("discovered %d projects, want 2", len(got))
	}

	// Selection order is by name: api first.
	if got[0].Project.Name != "api" || got[1].Project.Name != "scraper" {
		t.Fatalf("project order = %s, %s", got[0].Project.Name, got[1].Project.Name)
	}
	if dirs := manifestDirs(got[0]); dirs != "other" {
		t.Errorf("api manifests = %q, want other", dirs)
	}
	if dirs := manifestDirs(got[1]); dirs != "inc/thrift proj proj/sub" {
		t.Errorf("scraper manifests = %q", dirs)
	}
	if dirs := buildDirs(got[1]); dirs != "inc/thrift proj proj/sub" {
		t.Errorf("scraper build files = %q", dirs)
	}
	if len(got[1].Generated) != 2 ||
		got[1].Generated[0] != "inc/thrift/thrift_build.rs" ||
		got[1].Generated[1] != "inc/thrift/thrift_lib.rs" {
		t.Errorf("scraper generated = %v", got[1].Generated)
	}
}

func TestDiscoverMissingRoot(t *testing.T) {
	conf := testConfig("ghost", nil, nil)
	conf.Roots = []repo.Path{"does/not/exist"}
	cat := mustCatalog(t, conf)

	got, err := Discover(context.Background(), repo.Root(t.TempDir()), cat.SelectAll())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(got) != 1 || len(got[0].Manifests) != 0 || len(got[0].BuildFiles) != 0 {
		t.Errorf("Discover of missing root = %+v, want empty", got[0])
	}
}

func TestDiscoverOverlappingPatterns(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a/Cargo.toml")

	conf := testConfig("overlap", []string{"a/**", "**"}, nil)
	conf.Roots = []repo.Path{"a"}
	cat := mustCatalog(t, conf)

	got, err := Discover(context.Background(), repo.Root(root), cat.SelectAll())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(got[0].Manifests) != 1 {
		t.Errorf("manifests = %v, want the file claimed once", got[0].Manifests)
	}
}

func TestCheckUniqueness(t *testing.T) {
	one := testConfig("one", nil, nil)
	two := testConfig("two", nil, nil)

	t.Run("distinct files pass", func(t *testing.T) {
		err := CheckUniqueness([]*Files{
			{Project: one, Manifests: []repo.ManifestPath{repo.ManifestPathForDir("x")}},
			{Project: two, Manifests: []repo.ManifestPath{repo.ManifestPathForDir("y")}},
		})
		if err != nil {
			t.Fatalf("CheckUniqueness: %v", err)
		}
	})
	t.Run("shared manifest fails", func(t *testing.T) {
		err := CheckUniqueness([]*Files{
			{Project: one, Manifests: []repo.ManifestPath{repo.ManifestPathForDir("x")}},
			{Project: two, Manifests: []repo.ManifestPath{repo.ManifestPathForDir("x")}},
		})
		if err == nil || !strings.Contains(err.Error(), "covered by both one and two projects") {
			t.Fatalf("error = %v, want coverage conflict", err)
		}
	})
	t.Run("shared build dir fails", func(t *testing.T) {
		err := CheckUniqueness([]*Files{
			{Project: one, BuildFiles: []repo.TargetsPath{repo.TargetsPathForDir("x")}},
			{Project: two, BuildFiles: []repo.TargetsPath{repo.TargetsPathForDir("x")}},
		})
		if err == nil || !strings.Contains(err.Error(), "covered by both") {
			t.Fatalf("error = %v, want coverage conflict", err)
		}
	})
}

func TestProjectless(t *testing.T) {
	conf := testConfig("p", nil, nil)
	files := []*Files{{
		Project:    conf,
		Manifests:  []repo.ManifestPath{repo.ManifestPathForDir("g")},
		BuildFiles: []repo.TargetsPath{repo.TargetsPathForDir("g")},
		Generated:  []repo.Path{"g/thrift_build.rs"},
	}}

	got := Projectless([]repo.Path{
		"g/Cargo.toml",
		"h/Cargo.toml",
		"g/TARGETS", // same dir as the covered BUCK identity
		"h/BUCK",
		"g/thrift_build.rs",
		"h/thrift_lib.rs",
		"src/main.rs", // not a file buckcargo manages
	}, files)

	want := "h/BUCK h/Cargo.toml h/thrift_lib.rs"
	strs := make([]string, len(got))
	for i, p := range got {
		strs[i] = string(p)
	}
	if joined := strings.Join(strs, " "); joined != want {
		t.Errorf("Projectless = %q, want %q", joined, want)
	}
}
