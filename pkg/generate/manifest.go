package generate

import (
	"fmt"

	"github.com/matzehuels/buckcargo/pkg/buck"
	"github.com/matzehuels/buckcargo/pkg/cargo"
	"github.com/matzehuels/buckcargo/pkg/project"
)

// buildManifest generates the manifest of one unit. For OSS manifests oss
// is the owning project's git config; the default feature set then drops
// stripped features and internal edges resolve against published crates.
func (g *Generator) buildManifest(u *Unit, conf *project.Config, oss *project.OSSGitConfig) (*cargo.Manifest, error) {
	m, err := g.buildManifestImpl(u, conf, oss)
	if err != nil {
		return nil, fmt.Errorf("while generating cargo manifest for %s in dir %s: %w", u.Targets, u.Dir, err)
	}
	return m, nil
}

func (g *Generator) buildManifestImpl(u *Unit, conf *project.Config, oss *project.OSSGitConfig) (*cargo.Manifest, error) {
	tc := u.Config
	defaults := &conf.Defaults

	features := u.features()
	if oss != nil {
		features = stripDefaultFeatures(features, oss.DefaultFeaturesToStrip)
	}

	tables, err := g.newDepsBuilder(u, u.Dir, features, oss).generate(g.consolidate(u))
	if err != nil {
		return nil, fmt.Errorf("in dependencies generation: %w", err)
	}

	isThrift := u.Lib != nil && u.Lib.Thrift != nil
	m := &cargo.Manifest{
		CargoFeatures:     fieldOr(tc.CargoFeatures, defaults.CargoFeatures),
		Package:           buildPackage(u.packageName(), &tc.Package, &defaults.Package, u.Dir, isThrift),
		Dependencies:      tables.Dependencies,
		DevDependencies:   tables.DevDependencies,
		BuildDependencies: tables.BuildDependencies,
		Target:            tables.Target,
		Features:          features,
		Workspace:         tc.Workspace,
		Lints:             tc.Lints,
	}

	pkgEdition := m.Package.Edition
	if u.Lib != nil {
		lib, err := buildProduct(buck.RuleTypeLibrary, u.Lib.Raw, u.Targets, u.Dir, pkgEdition)
		if err != nil {
			return nil, fmt.Errorf("in lib '%s' product generation: %w", u.Lib.Raw.Name, err)
		}
		m.Lib = &lib
	} else if tc.Lib != nil {
		lib := tc.Lib.Product()
		m.Lib = &lib
	}
	for _, b := range u.Bins {
		p, err := buildProduct(buck.RuleTypeBinary, b.Raw, u.Targets, u.Dir, pkgEdition)
		if err != nil {
			return nil, fmt.Errorf("in bin '%s' product generation: %w", b.Raw.Name, err)
		}
		m.Bins = append(m.Bins, p)
	}
	for i := range tc.Bins {
		m.Bins = append(m.Bins, tc.Bins[i].Product())
	}
	for i := range tc.Examples {
		m.Examples = append(m.Examples, tc.Examples[i].Product())
	}
	for _, t := range u.Tests {
		p, err := buildProduct(buck.RuleTypeTest, t.Raw, u.Targets, u.Dir, pkgEdition)
		if err != nil {
			return nil, fmt.Errorf("in test '%s' product generation: %w", t.Raw.Name, err)
		}
		m.Tests = append(m.Tests, p)
	}
	for i := range tc.Tests {
		m.Tests = append(m.Tests, tc.Tests[i].Product())
	}
	for i := range tc.Benches {
		m.Benches = append(m.Benches, tc.Benches[i].Product())
	}

	gen := defaults.PatchGeneration
	if tc.PatchGeneration != nil {
		gen = *tc.PatchGeneration
	}
	if m.Patch, err = g.registry.GeneratePatch(gen, defaults.Patch, tc.Patch); err != nil {
		return nil, fmt.Errorf("in patch generation: %w", err)
	}

	m.Profile = tc.Profile
	if m.Profile == nil {
		m.Profile = defaults.Profile
	}
	return m, nil
}
