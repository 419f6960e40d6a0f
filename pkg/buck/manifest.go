package buck

import (
	"encoding/json"
	"fmt"

	"github.com/matzehuels/buckcargo/pkg/cargo"
)

// RuleType is the Buck rule kind behind a manifest.
type RuleType int

const (
	// RuleTypeUnknown covers rule kinds this tool does not generate for.
	RuleTypeUnknown RuleType = iota
	RuleTypeBinary
	RuleTypeLibrary
	RuleTypeTest
	RuleTypeBindgenLibrary
)

var ruleTypeNames = map[string]RuleType{
	"rust_binary":          RuleTypeBinary,
	"rust_library":         RuleTypeLibrary,
	"rust_unittest":        RuleTypeTest,
	"rust_bindgen_library": RuleTypeBindgenLibrary,
}

func (t RuleType) String() string {
	for name, val := range ruleTypeNames {
		if val == t {
			return name
		}
	}
	return "unknown"
}

// IsLibrary reports whether other crates may depend on the rule. Only plain
// libraries qualify; bindgen libraries need generated sources Cargo cannot
// build, so they are rejected during processing like unknown kinds.
func (t RuleType) IsLibrary() bool {
	return t == RuleTypeLibrary
}

// Supported reports whether processing can turn rules of this kind into
// manifest output units.
func (t RuleType) Supported() bool {
	switch t {
	case RuleTypeBinary, RuleTypeLibrary, RuleTypeTest:
		return true
	default:
		return false
	}
}

// UnmarshalJSON decodes unknown kinds to [RuleTypeUnknown] rather than
// failing; rules of unknown kind are dropped later with a trace.
func (t *RuleType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*t = ruleTypeNames[s]
	return nil
}

// Platform selects one entry of an os_deps map.
type Platform int

const (
	// PlatformUnknown covers platforms this tool cannot express as a cargo
	// target block; their dependencies are dropped with a trace.
	PlatformUnknown Platform = iota
	PlatformLinux
	PlatformMacos
	PlatformWindows
)

var platformNames = map[string]Platform{
	"linux":   PlatformLinux,
	"macos":   PlatformMacos,
	"windows": PlatformWindows,
}

func (p Platform) String() string {
	for name, val := range platformNames {
		if val == p {
			return name
		}
	}
	return "unknown"
}

// UnmarshalText decodes os_deps map keys; unknown platforms decode to
// [PlatformUnknown] rather than failing.
func (p *Platform) UnmarshalText(b []byte) error {
	*p = platformNames[string(b)]
	return nil
}

// TargetKey returns the cfg expression the platform renders to in a
// manifest's [target.*] blocks.
func (p Platform) TargetKey() cargo.TargetKey {
	switch p {
	case PlatformLinux:
		return `'cfg(target_os = "linux")'`
	case PlatformMacos:
		return `'cfg(target_os = "macos")'`
	case PlatformWindows:
		return `'cfg(target_os = "windows")'`
	default:
		return ""
	}
}

// RawManifest is the JSON artifact a manifest rule emits: one Rust rule as
// Buck sees it, plus the user-authored cargo extension block. Raw manifests
// are immutable after decoding and shared by pointer.
type RawManifest struct {
	Name         string          `json:"name"`
	RuleType     RuleType        `json:"rule_type"`
	RustConfig   RustConfig      `json:"rust_config"`
	Sources      Sources         `json:"sources"`
	Dependencies RawDependencies `json:"dependencies"`
	Cargo        CargoExtension  `json:"cargo"`
}

// RustConfig is the rule's Rust-level configuration.
type RustConfig struct {
	Crate        string   `json:"crate"`
	CrateRoot    string   `json:"crate_root"`
	Edition      string   `json:"edition"`
	Features     []string `json:"features"`
	TestFeatures []string `json:"test_features"`
	ProcMacro    bool     `json:"proc_macro"`
	Unittests    bool     `json:"unittests"`
}

// Sources lists the rule's source files. Srcs are paths relative to the
// build file; MappedSrcs maps generated inputs to their destination paths.
type Sources struct {
	Srcs       []string          `json:"srcs"`
	MappedSrcs map[string]string `json:"mapped_srcs"`
}

// RawDependencies are the rule's dependency lists as rule reference strings,
// exactly as written in the build file.
type RawDependencies struct {
	Deps          []string          `json:"deps"`
	NamedDeps     map[string]string `json:"named_deps"`
	OsDeps        []OsDeps          `json:"os_deps"`
	Tests         []string          `json:"tests"`
	TestDeps      []string          `json:"test_deps"`
	TestNamedDeps map[string]string `json:"test_named_deps"`
	TestOsDeps    []OsDeps          `json:"test_os_deps"`
}

// OsDeps is one platform-conditional dependency group. The wire format is a
// two-element array so a platform may appear more than once; processing
// concatenates repeated groups.
type OsDeps struct {
	Platform Platform
	Rules    []string
}

func (d *OsDeps) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("os_deps entry must be a [platform, rules] pair, got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &d.Platform); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &d.Rules)
}

// CargoExtension is the user-authored block project owners write on their
// rules to steer generation. This block is the primary override contract.
type CargoExtension struct {
	// CargoTomlDir redirects the rule into the manifest of another
	// directory, relative to the rule's own build file dir.
	CargoTomlDir string `json:"cargo_toml_dir"`
	// IgnoreRule excludes the rule from generation entirely.
	IgnoreRule bool `json:"ignore_rule"`
	// TomlConfig adjusts the generated manifest. At most one rule per
	// manifest may carry it.
	TomlConfig *TomlConfig `json:"cargo_toml_config"`
	// TargetConfig adjusts the product section generated for this rule.
	TargetConfig TargetConfig `json:"cargo_target_config"`
	// Thrift marks the rule as a generated thrift library.
	Thrift *ThriftSpec `json:"thrift"`
}

// TomlConfig adjusts a generated manifest beyond what the rule graph
// provides.
type TomlConfig struct {
	CargoFeatures   *[]string              `json:"cargo_features"`
	Package         PackageConfig          `json:"package"`
	Workspace       *cargo.Workspace       `json:"workspace"`
	ExtraDeps       ExtraDeps              `json:"extra_buck_dependencies"`
	DepsOverride    DepsOverride           `json:"dependencies_override"`
	Features        *map[string][]string   `json:"features"`
	Lib             *ProductConfig         `json:"lib"`
	Bins            []ProductConfig        `json:"bin"`
	Examples        []ProductConfig        `json:"example"`
	Tests           []ProductConfig        `json:"test"`
	Benches         []ProductConfig        `json:"bench"`
	PatchGeneration *cargo.PatchGeneration `json:"patch_generation"`
	Patch           cargo.PatchInput       `json:"patch"`
	Profile         map[string]any         `json:"profile"`
	Lints           map[string]any         `json:"lints"`
}

// PackageConfig overrides [package] section fields. Unset fields inherit
// the project's package defaults. The cargo.Field fields additionally
// accept an explicit null to erase the default.
type PackageConfig struct {
	Name          *string             `json:"name"`
	Version       *string             `json:"version"`
	Authors       *[]string           `json:"authors"`
	Edition       *string             `json:"edition"`
	RustVersion   cargo.Field[string] `json:"rust_version"`
	Description   cargo.Field[string] `json:"description"`
	Documentation cargo.Field[string] `json:"documentation"`
	Readme        cargo.Field[string] `json:"readme"`
	Homepage      cargo.Field[string] `json:"homepage"`
	Repository    cargo.Field[string] `json:"repository"`
	License       cargo.Field[string] `json:"license"`
	LicenseFile   cargo.Field[string] `json:"license_file"`
	Keywords      *[]string           `json:"keywords"`
	Categories    *[]string           `json:"categories"`
	Workspace     cargo.Field[string] `json:"workspace"`
	Build         *string             `json:"build"`
	Links         cargo.Field[string] `json:"links"`
	Exclude       *[]string           `json:"exclude"`
	Include       *[]string           `json:"include"`
	Publish       *bool               `json:"publish"`
	Metadata      map[string]any      `json:"metadata"`
}

// ProductConfig declares an extra product section verbatim.
type ProductConfig struct {
	Name             string   `json:"name"`
	Path             string   `json:"path"`
	Test             *bool    `json:"test"`
	Doctest          *bool    `json:"doctest"`
	Bench            *bool    `json:"bench"`
	Doc              *bool    `json:"doc"`
	Plugin           *bool    `json:"plugin"`
	ProcMacro        *bool    `json:"proc_macro"`
	Harness          *bool    `json:"harness"`
	Edition          string   `json:"edition"`
	CrateType        []string `json:"crate_type"`
	RequiredFeatures []string `json:"required_features"`
}

// Product converts the config to its manifest form.
func (c *ProductConfig) Product() cargo.Product {
	return cargo.Product{
		Name:             c.Name,
		Path:             c.Path,
		Test:             c.Test,
		Doctest:          c.Doctest,
		Bench:            c.Bench,
		Doc:              c.Doc,
		Plugin:           c.Plugin,
		ProcMacro:        c.ProcMacro,
		Harness:          c.Harness,
		Edition:          c.Edition,
		CrateType:        c.CrateType,
		RequiredFeatures: c.RequiredFeatures,
	}
}

// TargetConfig adjusts the product section generated for one rule. Test,
// doctest, and edition are three-state: absent keeps the computed value,
// null suppresses the field, a value forces it.
type TargetConfig struct {
	Name             string              `json:"name"`
	Path             string              `json:"path"`
	Test             cargo.Field[bool]   `json:"test"`
	Doctest          cargo.Field[bool]   `json:"doctest"`
	Bench            *bool               `json:"bench"`
	Doc              *bool               `json:"doc"`
	Plugin           bool                `json:"plugin"`
	ProcMacro        *bool               `json:"proc_macro"`
	Harness          *bool               `json:"harness"`
	Edition          cargo.Field[string] `json:"edition"`
	CrateType        []string            `json:"crate_type"`
	RequiredFeatures []string            `json:"required_features"`
}

// ExtraDeps adds or removes dependency edges beyond what the build file
// declares, per table and optionally per target platform.
type ExtraDeps struct {
	DepChangeSet
	Target map[string]DepChangeSet `json:"target"`
}

// DepChangeSet groups changes for the three dependency tables.
type DepChangeSet struct {
	Dependencies      []DepChange `json:"dependencies"`
	DevDependencies   []DepChange `json:"dev-dependencies"`
	BuildDependencies []DepChange `json:"build-dependencies"`
}

// IsEmpty reports whether the set carries no changes.
func (s DepChangeSet) IsEmpty() bool {
	return len(s.Dependencies) == 0 && len(s.DevDependencies) == 0 && len(s.BuildDependencies) == 0
}

// DepChange is one extra_buck_dependencies entry. On the wire a plain rule
// string adds a dependency, an [alias, rule] pair adds it under an alias,
// and a [null, rule] pair removes it.
type DepChange struct {
	Rule   string
	Alias  string
	Remove bool
}

func (c *DepChange) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &c.Rule)
	}
	var pair []*string
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) != 2 || pair[1] == nil {
		return fmt.Errorf("dependency change must be a rule or an [alias, rule] pair, got %s", b)
	}
	c.Rule = *pair[1]
	if pair[0] == nil {
		c.Remove = true
	} else {
		c.Alias = *pair[0]
	}
	return nil
}

// DepsOverride mutates generated dependency entries by table key, per table
// and optionally per target platform.
type DepsOverride struct {
	DepOverrideSet
	Target map[string]DepOverrideSet `json:"target"`
}

// DepOverrideSet groups per-key overrides for the three dependency tables.
type DepOverrideSet struct {
	Dependencies      map[string]DependencyOverride `json:"dependencies"`
	DevDependencies   map[string]DependencyOverride `json:"dev-dependencies"`
	BuildDependencies map[string]DependencyOverride `json:"build-dependencies"`
}

// IsEmpty reports whether the set carries no overrides.
func (s DepOverrideSet) IsEmpty() bool {
	return len(s.Dependencies) == 0 && len(s.DevDependencies) == 0 && len(s.BuildDependencies) == 0
}

// DependencyOverride mutates one dependency entry. Source fields are
// three-state; features, optional, and default-features overwrite when
// present.
type DependencyOverride struct {
	Version         cargo.Field[string] `json:"version"`
	Registry        cargo.Field[string] `json:"registry"`
	RegistryIndex   cargo.Field[string] `json:"registry-index"`
	Path            cargo.Field[string] `json:"path"`
	Git             cargo.Field[string] `json:"git"`
	Branch          cargo.Field[string] `json:"branch"`
	Tag             cargo.Field[string] `json:"tag"`
	Rev             cargo.Field[string] `json:"rev"`
	Package         cargo.Field[string] `json:"package"`
	Features        *[]string           `json:"features"`
	Optional        *bool               `json:"optional"`
	DefaultFeatures *bool               `json:"default-features"`
}

// Apply resolves the override against a generated entry.
func (o DependencyOverride) Apply(d cargo.Dependency) cargo.Dependency {
	d.Version = applyStringField(o.Version, d.Version)
	d.Registry = applyStringField(o.Registry, d.Registry)
	d.RegistryIndex = applyStringField(o.RegistryIndex, d.RegistryIndex)
	d.Path = applyStringField(o.Path, d.Path)
	d.Git = applyStringField(o.Git, d.Git)
	d.Branch = applyStringField(o.Branch, d.Branch)
	d.Tag = applyStringField(o.Tag, d.Tag)
	d.Rev = applyStringField(o.Rev, d.Rev)
	d.Package = applyStringField(o.Package, d.Package)
	if o.Features != nil {
		d.Features = *o.Features
	}
	if o.Optional != nil {
		d.Optional = *o.Optional
	}
	if o.DefaultFeatures != nil {
		v := *o.DefaultFeatures
		d.DefaultFeatures = &v
	}
	return d
}

func applyStringField(f cargo.Field[string], cur string) string {
	if f.IsClear() {
		return ""
	}
	if v, ok := f.Get(); ok {
		return v
	}
	return cur
}

// GenContext selects which slice of thrift codegen a rule wraps. Cratemaps
// exist only for the types slice; the other slices reference it through the
// rule's unsuffixed name.
type GenContext string

const (
	GenContextTypes    GenContext = "types"
	GenContextClients  GenContext = "clients"
	GenContextServices GenContext = "services"
	GenContextMocks    GenContext = "mocks"
)

// UnmarshalJSON accepts the legacy "lib" spelling for the types slice.
func (g *GenContext) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "lib" {
		s = string(GenContextTypes)
	}
	*g = GenContext(s)
	return nil
}

// Ident returns the context's name as the thrift compiler's Rust API spells
// it, for use in generated build scripts.
func (g GenContext) Ident() string {
	switch g {
	case GenContextTypes:
		return "Types"
	case GenContextClients:
		return "Clients"
	case GenContextServices:
		return "Services"
	case GenContextMocks:
		return "Mocks"
	default:
		return ""
	}
}

// ThriftSpec marks a rule as a generated thrift library and carries what
// the build script needs to drive the thrift compiler.
type ThriftSpec struct {
	BasePath       string              `json:"base_path"`
	GenContext     GenContext          `json:"gen_context"`
	Options        ThriftOptions       `json:"options"`
	ThriftSrcs     map[string][]string `json:"thrift_srcs"`
	UnsuffixedName string              `json:"unsuffixed_name"`
}

// ThriftOptions are the compiler options of a thrift rule. Known fields are
// named; everything else lands in More and is forwarded to the compiler
// verbatim.
type ThriftOptions struct {
	// Cratemap is the artifact path Buck recorded for the generated
	// cratemap. The remote cache fills it with paths from other hosts, so
	// it is never read; cratemaps are rebuilt through the oracle instead.
	Cratemap            string
	TypesCrate          string
	ClientsCrate        *string
	ServicesCrate       *string
	TypesIncludeSrcs    *string
	TypesExtraSrcs      *string
	ClientsIncludeSrcs  *string
	ServicesIncludeSrcs *string
	More                map[string]*string
}

var thriftOptionFields = map[string]func(*ThriftOptions, *string){
	"cratemap": func(o *ThriftOptions, v *string) {
		if v != nil {
			o.Cratemap = *v
		}
	},
	"types_crate": func(o *ThriftOptions, v *string) {
		if v != nil {
			o.TypesCrate = *v
		}
	},
	"clients_crate":         func(o *ThriftOptions, v *string) { o.ClientsCrate = v },
	"services_crate":        func(o *ThriftOptions, v *string) { o.ServicesCrate = v },
	"types_include_srcs":    func(o *ThriftOptions, v *string) { o.TypesIncludeSrcs = v },
	"types_extra_srcs":      func(o *ThriftOptions, v *string) { o.TypesExtraSrcs = v },
	"clients_include_srcs":  func(o *ThriftOptions, v *string) { o.ClientsIncludeSrcs = v },
	"services_include_srcs": func(o *ThriftOptions, v *string) { o.ServicesIncludeSrcs = v },
}

// UnmarshalJSON splits known option keys from the free-form remainder.
func (o *ThriftOptions) UnmarshalJSON(b []byte) error {
	var raw map[string]*string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*o = ThriftOptions{}
	for key, val := range raw {
		if set, ok := thriftOptionFields[key]; ok {
			set(o, val)
			continue
		}
		if o.More == nil {
			o.More = make(map[string]*string)
		}
		o.More[key] = val
	}
	return nil
}
