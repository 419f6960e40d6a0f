package cargo

// Edition values buckcargo knows the workspace resolver defaults for.
const (
	Edition2015 = "2015"
	Edition2018 = "2018"
	Edition2021 = "2021"
	Edition2024 = "2024"
)

// DefaultResolver returns the workspace resolver version cargo assumes for
// an edition. Emitting the default would only add noise, so callers suppress
// the resolver field when it matches.
func DefaultResolver(edition string) string {
	switch edition {
	case Edition2015, Edition2018:
		return "1"
	default:
		return "2"
	}
}

// Workspace is the [workspace] section.
type Workspace struct {
	Members  []string
	Resolver string
}

// Manifest is a full generated Cargo.toml. Field order here mirrors section
// order in the emitted file.
type Manifest struct {
	CargoFeatures     []string
	Package           Package
	Lib               *Product
	Bins              []Product
	Examples          []Product
	Tests             []Product
	Benches           []Product
	Dependencies      DepsSet
	DevDependencies   DepsSet
	BuildDependencies DepsSet
	Target            map[TargetKey]Deps
	Features          map[string][]string
	Patch             map[string]DepsSet
	Profile           map[string]any
	Workspace         *Workspace
	Lints             map[string]any
}
