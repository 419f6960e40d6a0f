package repo

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindRoot(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ".buckconfig"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "common", "rust", "foo")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := FindRoot(nested)
	if err != nil {
		t.Fatalf("FindRoot: %v", err)
	}
	if string(got) != root {
		t.Errorf("FindRoot = %q, want %q", got, root)
	}

	outside := t.TempDir()
	if _, err := FindRoot(outside); err == nil {
		t.Error("FindRoot outside a repo succeeded, want error")
	}
}

func TestNewTargetsPath(t *testing.T) {
	tests := []struct {
		name    string
		file    Path
		wantDir Path
		wantErr bool
	}{
		{name: "TARGETS", file: "common/rust/TARGETS", wantDir: "common/rust"},
		{name: "BUCK", file: "common/rust/BUCK", wantDir: "common/rust"},
		{name: "BUCK.v2", file: "common/rust/BUCK.v2", wantDir: "common/rust"},
		{name: "top level", file: "TARGETS", wantDir: ""},
		{name: "not a build file", file: "common/rust/Cargo.toml", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewTargetsPath(tt.file)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NewTargetsPath(%q) succeeded, want error", tt.file)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewTargetsPath(%q): %v", tt.file, err)
			}
			if got.Dir() != tt.wantDir {
				t.Errorf("Dir() = %q, want %q", got.Dir(), tt.wantDir)
			}
		})
	}
}

func TestTargetsPathIdentity(t *testing.T) {
	a, err := NewTargetsPath("x/y/TARGETS")
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewTargetsPath("x/y/BUCK")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("TargetsPath for TARGETS and BUCK in the same dir differ: %v vs %v", a, b)
	}
	if a != TargetsPathForDir("x/y") {
		t.Errorf("TargetsPathForDir mismatch: %v", a)
	}
}

func TestManifestPath(t *testing.T) {
	m, err := NewManifestPath("common/rust/Cargo.toml")
	if err != nil {
		t.Fatalf("NewManifestPath: %v", err)
	}
	if m.Dir() != "common/rust" {
		t.Errorf("Dir() = %q, want %q", m.Dir(), "common/rust")
	}
	if m.File() != "common/rust/Cargo.toml" {
		t.Errorf("File() = %q, want %q", m.File(), "common/rust/Cargo.toml")
	}
	if _, err := NewManifestPath("common/rust/lib.rs"); err == nil {
		t.Error("NewManifestPath accepted a non-manifest file")
	}

	top := ManifestPathForDir("")
	if top.File() != "Cargo.toml" {
		t.Errorf("top-level File() = %q, want %q", top.File(), "Cargo.toml")
	}
}
