package cargo

// Product is one buildable target section of a manifest: [lib], [[bin]],
// [[example]], [[test]], or [[bench]]. Pointer fields distinguish "absent"
// from an explicit false, which for test and doctest are different
// manifests.
type Product struct {
	Name             string
	Path             string
	Test             *bool
	Doctest          *bool
	Bench            *bool
	Doc              *bool
	Plugin           *bool
	ProcMacro        *bool
	Harness          *bool
	Edition          string
	CrateType        []string
	RequiredFeatures []string
}

// Package is the [package] section.
type Package struct {
	Name          string
	Version       string
	Authors       []string
	Edition       string
	RustVersion   string
	Description   string
	Documentation string
	Readme        string
	Homepage      string
	Repository    string
	License       string
	LicenseFile   string
	Keywords      []string
	Categories    []string
	Workspace     string
	Build         *string
	Links         string
	Exclude       []string
	Include       []string
	Publish       *bool
	Metadata      map[string]any
}

// isEmpty reports whether no field of p would render. Workspace-only
// manifests omit the [package] section entirely.
func (p *Package) isEmpty() bool {
	return p.Name == "" && p.Version == "" && len(p.Authors) == 0 && p.Edition == "" &&
		p.RustVersion == "" &&
		p.Description == "" && p.Documentation == "" && p.Readme == "" && p.Homepage == "" &&
		p.Repository == "" && p.License == "" && p.LicenseFile == "" && len(p.Keywords) == 0 &&
		len(p.Categories) == 0 && p.Workspace == "" && p.Build == nil && p.Links == "" &&
		len(p.Exclude) == 0 && len(p.Include) == 0 && p.Publish == nil && len(p.Metadata) == 0
}
