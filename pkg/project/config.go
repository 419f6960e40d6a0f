package project

import (
	"errors"
	"fmt"

	"github.com/matzehuels/buckcargo/pkg/cargo"
	"github.com/matzehuels/buckcargo/pkg/repo"
)

// Config describes one project: a named slice of the repository whose
// Cargo.toml files are generated together.
type Config struct {
	// Name identifies the project in selection, logs, and errors.
	Name string `toml:"name"`
	// Roots are directories the project claims wholesale.
	Roots []repo.Path `toml:"roots"`
	// IncludeGlobs point at directories holding build files and manifests.
	IncludeGlobs []string `toml:"include_globs"`
	// ExcludeGlobs carve files and directories back out of the coverage.
	ExcludeGlobs []string `toml:"exclude_globs"`
	// Oncall owns the project.
	Oncall string `toml:"oncall"`
	// ManualCargoToml marks the project's manifests as human-maintained.
	// Discovery still claims its files so no other project can, but
	// generation writes nothing for it.
	ManualCargoToml bool `toml:"manual_cargo_toml"`
	// Dependencies names projects this one depends on. When one of them
	// changes, this project is regenerated too.
	Dependencies []string `toml:"dependencies"`
	// OSSGit is set for projects shipped to an external git repository.
	OSSGit *OSSGitConfig `toml:"oss_git_config"`
	// Workspace requests a generated [workspace] manifest.
	Workspace *WorkspaceConfig `toml:"workspace_config"`
	// Defaults seed every manifest generated for the project.
	Defaults Defaults `toml:"defaults"`
	// CargoLocks lists directories whose Cargo.lock is regenerated.
	CargoLocks []repo.Path `toml:"cargo_locks"`

	include []pattern
	exclude []pattern
}

// OSSGitConfig configures a project that ships to an external git
// repository.
type OSSGitConfig struct {
	// PublicCargoDir is where the public variants of the project's
	// manifests are written. Their layout inside it mirrors the layout of
	// the internal manifests relative to its parent: for a project at
	// my_project with PublicCargoDir my_project/public_autocargo, the
	// public copy of my_project/foo/Cargo.toml lands at
	// my_project/public_autocargo/foo/Cargo.toml. The directory is
	// regenerated wholesale, so it must not be shared with other projects.
	PublicCargoDir repo.Path `toml:"public_cargo_dir"`
	// Git is the remote URL. Projects sharing a remote keep path
	// dependencies between each other; dependencies across remotes become
	// git dependencies using Branch/Tag/Rev.
	Git    string `toml:"git"`
	Branch string `toml:"branch"`
	Tag    string `toml:"tag"`
	Rev    string `toml:"rev"`
	// DefaultFeaturesToStrip removes features from the "default" list of
	// published manifests. Entries match both the bare name and any
	// crate/name form.
	DefaultFeaturesToStrip []string `toml:"default_features_to_strip"`
}

// WorkspaceConfig requests a root Cargo.toml with an autodiscovered
// [workspace] section plus a [patch] table.
type WorkspaceConfig struct {
	// ScrapeDir is the directory under which every generated manifest
	// becomes a workspace member.
	ScrapeDir repo.Path `toml:"scrape_dir"`
	// PrefixForDir is prepended to each member path, for projects whose
	// sync tooling moves files around on export.
	PrefixForDir string `toml:"prefix_for_dir"`
	// SaveToDir is where the workspace manifest is written; it defaults to
	// ScrapeDir. When a generated manifest already lives there the
	// workspace section is merged into it, otherwise a virtual manifest is
	// created.
	SaveToDir repo.Path `toml:"save_to_dir"`
	// PatchGeneration seeds the [patch] table; it defaults to copying the
	// third-party registry's patch table in full.
	PatchGeneration cargo.PatchGeneration `toml:"patch_generation"`
	// Patch adds explicit [patch] entries on top.
	Patch cargo.PatchInput `toml:"patch"`
}

// Defaults holds the values a project contributes to every generated
// manifest unless a rule overrides them.
type Defaults struct {
	// CargoFeatures is the default cargo-features list.
	CargoFeatures []string `toml:"cargo_features"`
	// Package seeds the [package] section.
	Package PackageDefaults `toml:"package"`
	// PatchGeneration seeds per-manifest [patch] tables; defaults to empty.
	PatchGeneration cargo.PatchGeneration `toml:"patch_generation"`
	// Patch adds explicit per-manifest [patch] entries.
	Patch cargo.PatchInput `toml:"patch"`
	// Profile is the default [profile] table.
	Profile map[string]any `toml:"profile"`
}

// PackageDefaults seeds the [package] section of generated manifests.
// Readme, LicenseFile, and Workspace are repository-relative paths;
// generation relativizes them against each manifest's directory.
type PackageDefaults struct {
	Version       string         `toml:"version"`
	Authors       []string       `toml:"authors"`
	Edition       string         `toml:"edition"`
	RustVersion   string         `toml:"rust_version"`
	Description   string         `toml:"description"`
	Documentation string         `toml:"documentation"`
	Readme        repo.Path      `toml:"readme"`
	Homepage      string         `toml:"homepage"`
	Repository    string         `toml:"repository"`
	License       string         `toml:"license"`
	LicenseFile   repo.Path      `toml:"license_file"`
	Keywords      []string       `toml:"keywords"`
	Categories    []string       `toml:"categories"`
	Workspace     repo.Path      `toml:"workspace"`
	Links         string         `toml:"links"`
	Exclude       []string       `toml:"exclude"`
	Include       []string       `toml:"include"`
	Publish       *bool          `toml:"publish"`
	Metadata      map[string]any `toml:"metadata"`
}

// compile validates a decoded config: globs compiled, paths normalized,
// defaults filled in.
func (c *Config) compile() error {
	if c.Name == "" {
		return errors.New("project config has no name")
	}
	if c.Oncall == "" {
		return fmt.Errorf("project %s has no oncall", c.Name)
	}

	var err error
	if c.include, err = compilePatterns(c.IncludeGlobs); err != nil {
		return fmt.Errorf("project %s: %w", c.Name, err)
	}
	if c.exclude, err = compilePatterns(c.ExcludeGlobs); err != nil {
		return fmt.Errorf("project %s: %w", c.Name, err)
	}

	paths := []*repo.Path{
		&c.Defaults.Package.Readme,
		&c.Defaults.Package.LicenseFile,
		&c.Defaults.Package.Workspace,
	}
	for i := range c.Roots {
		paths = append(paths, &c.Roots[i])
	}
	for i := range c.CargoLocks {
		paths = append(paths, &c.CargoLocks[i])
	}
	if c.OSSGit != nil {
		paths = append(paths, &c.OSSGit.PublicCargoDir)
	}
	if c.Workspace != nil {
		paths = append(paths, &c.Workspace.ScrapeDir, &c.Workspace.SaveToDir)
	}
	for _, p := range paths {
		normalized, err := repo.NewPath(string(*p))
		if err != nil {
			return fmt.Errorf("project %s: %w", c.Name, err)
		}
		*p = normalized
	}

	if c.Defaults.Package.Version == "" {
		c.Defaults.Package.Version = "0.0.0"
	}
	if c.Defaults.Package.Edition == "" {
		c.Defaults.Package.Edition = cargo.Edition2024
	}
	if c.Defaults.PatchGeneration.Mode == "" {
		c.Defaults.PatchGeneration.Mode = cargo.PatchModeEmpty
	}
	if c.Workspace != nil {
		if c.Workspace.PatchGeneration.Mode == "" {
			c.Workspace.PatchGeneration.Mode = cargo.PatchModeThirdPartyFull
		}
		if c.Workspace.SaveToDir == "" {
			c.Workspace.SaveToDir = c.Workspace.ScrapeDir
		}
	}
	return nil
}

// Covers reports whether the project claims path. Exclude globs veto,
// include globs and roots claim, and the public cargo dir claims last.
func (c *Config) Covers(p repo.Path) bool {
	for _, pat := range c.exclude {
		if pat.match(p) {
			return false
		}
	}
	for _, pat := range c.include {
		if pat.match(p) {
			return true
		}
	}
	for _, root := range c.Roots {
		if p.Under(root) {
			return true
		}
	}
	if c.OSSGit != nil && c.OSSGit.PublicCargoDir != "" && p.Under(c.OSSGit.PublicCargoDir) {
		return true
	}
	return false
}

// searchPatterns returns the directory globs file discovery walks for this
// project: the include globs, each root as root/**, and the public cargo
// dir when present. Only valid after compile.
func (c *Config) searchPatterns() []pattern {
	pats := make([]pattern, 0, len(c.include)+len(c.Roots)+1)
	pats = append(pats, c.include...)
	for _, root := range c.Roots {
		pats = append(pats, dirPattern(root))
	}
	if c.OSSGit != nil && c.OSSGit.PublicCargoDir != "" {
		pats = append(pats, dirPattern(c.OSSGit.PublicCargoDir))
	}
	return pats
}

// dirPattern builds the pattern matching everything under dir.
func dirPattern(dir repo.Path) pattern {
	return pattern(append(pathElems(dir), "**"))
}
