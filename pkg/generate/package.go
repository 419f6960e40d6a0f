package generate

import (
	"strings"

	"github.com/matzehuels/buckcargo/pkg/buck"
	"github.com/matzehuels/buckcargo/pkg/cargo"
	"github.com/matzehuels/buckcargo/pkg/project"
	"github.com/matzehuels/buckcargo/pkg/repo"
)

// buildPackage resolves the [package] section of one manifest: config
// fields win over the project's package defaults, and path-valued defaults
// are repository paths relativized against the manifest's directory.
// Thrift crates get the conventional build script unless the config names
// one.
func buildPackage(name string, conf *buck.PackageConfig, defaults *project.PackageDefaults, dir repo.Path, isThrift bool) cargo.Package {
	pkg := cargo.Package{
		Name:          name,
		Version:       fieldOr(conf.Version, defaults.Version),
		Authors:       fieldOr(conf.Authors, defaults.Authors),
		Edition:       fieldOr(conf.Edition, defaults.Edition),
		RustVersion:   stringField(conf.RustVersion, defaults.RustVersion),
		Description:   stringField(conf.Description, defaults.Description),
		Documentation: stringField(conf.Documentation, defaults.Documentation),
		Readme:        pathField(conf.Readme, defaults.Readme, dir),
		Homepage:      stringField(conf.Homepage, defaults.Homepage),
		Repository:    stringField(conf.Repository, defaults.Repository),
		License:       stringField(conf.License, defaults.License),
		LicenseFile:   pathField(conf.LicenseFile, defaults.LicenseFile, dir),
		Keywords:      fieldOr(conf.Keywords, defaults.Keywords),
		Categories:    fieldOr(conf.Categories, defaults.Categories),
		Workspace:     pathField(conf.Workspace, defaults.Workspace, dir),
		Build:         conf.Build,
		Links:         stringField(conf.Links, defaults.Links),
		Exclude:       fieldOr(conf.Exclude, defaults.Exclude),
		Include:       fieldOr(conf.Include, defaults.Include),
		Publish:       conf.Publish,
		Metadata:      conf.Metadata,
	}
	if pkg.Build == nil && isThrift {
		build := repo.ThriftBuildFileName
		pkg.Build = &build
	}
	if pkg.Publish == nil {
		pkg.Publish = defaults.Publish
	}
	if pkg.Metadata == nil {
		pkg.Metadata = defaults.Metadata
	}
	return pkg
}

// fieldOr resolves an optional config field against its default.
func fieldOr[T any](v *T, def T) T {
	if v != nil {
		return *v
	}
	return def
}

// stringField resolves a three-state config field against its default.
func stringField(f cargo.Field[string], def string) string {
	if v := f.Apply(&def); v != nil {
		return *v
	}
	return ""
}

// pathField resolves a three-state path field. Configured values are
// already relative to the manifest dir and pass through verbatim; the
// default is a repository path and gets relativized.
func pathField(f cargo.Field[string], def repo.Path, dir repo.Path) string {
	if v, ok := f.Get(); ok {
		return v
	}
	if f.IsClear() || def == "" {
		return ""
	}
	return repo.Rel(dir, def)
}

// packageName derives the [package] name of a unit: the configured name,
// else the name of the lib, else of the sole bin, else of the sole test
// when there are no bins. A unit with no product to take a name from
// cannot be depended on, but the name must still be unique-ish, so the
// targets dir serves as a fallback.
func (u *Unit) packageName() string {
	if name := u.Config.Package.Name; name != nil {
		return *name
	}
	var raw *buck.RawManifest
	switch {
	case u.Lib != nil:
		raw = u.Lib.Raw
	case len(u.Bins) == 1:
		raw = u.Bins[0].Raw
	case len(u.Bins) == 0 && len(u.Tests) == 1:
		raw = u.Tests[0].Raw
	}
	if raw != nil {
		return productName(raw)
	}
	return strings.ReplaceAll(string(u.Targets.Dir()), "/", "_")
}

// dependencyPackageName is the package name of a dependency edge's target.
// Only libraries can be depended on, so the target's lib name is its
// package name unless the target's config overrides it.
func dependencyPackageName(raw *buck.RawManifest) string {
	if conf := raw.Cargo.TomlConfig; conf != nil && conf.Package.Name != nil {
		return *conf.Package.Name
	}
	return productName(raw)
}

// dependencyVersion is the version a dependency edge carries when the
// target publishes: the target's configured version or its project's
// default.
func dependencyVersion(conf *buck.TomlConfig, defaults *project.PackageDefaults) string {
	if conf != nil && conf.Package.Version != nil {
		return *conf.Package.Version
	}
	return defaults.Version
}
