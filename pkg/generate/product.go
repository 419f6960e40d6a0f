package generate

import (
	"fmt"
	"path"
	"slices"
	"sort"
	"strings"

	"github.com/matzehuels/buckcargo/pkg/buck"
	"github.com/matzehuels/buckcargo/pkg/cargo"
	"github.com/matzehuels/buckcargo/pkg/repo"
)

// rustKeywords are names a product cannot carry, so generation appends an
// underscore. core and std are not keywords but shadow the sysroot crates.
var rustKeywords = map[string]bool{
	"abstract": true, "alignof": true, "as": true, "become": true, "box": true,
	"break": true, "const": true, "continue": true, "crate": true, "do": true,
	"else": true, "enum": true, "extern": true, "false": true, "final": true,
	"fn": true, "for": true, "if": true, "impl": true, "in": true,
	"let": true, "loop": true, "macro": true, "match": true, "mod": true,
	"move": true, "mut": true, "offsetof": true, "override": true, "priv": true,
	"proc": true, "pub": true, "pure": true, "ref": true, "return": true,
	"Self": true, "self": true, "sizeof": true, "static": true, "struct": true,
	"super": true, "trait": true, "true": true, "type": true, "typeof": true,
	"unsafe": true, "unsized": true, "use": true, "virtual": true, "where": true,
	"while": true, "yield": true,

	"core": true,
	"std":  true,
}

// productName returns the name of the product a rule generates: the
// configured name verbatim, else the rule's crate attribute or the rule
// name with keyword collisions suffixed. The result keeps dashes so it can
// double as a package name; product sections escape them to underscores.
func productName(raw *buck.RawManifest) string {
	if name := raw.Cargo.TargetConfig.Name; name != "" {
		return name
	}
	name := raw.RustConfig.Crate
	if name == "" {
		name = raw.Name
	}
	if rustKeywords[name] {
		name += "_"
	}
	return name
}

// buildProduct generates the [lib], [[bin]], or [[test]] section for one
// rule. Values the manifest does not need are left out: bools matching
// what cargo assumes for the product kind, and editions matching the
// package's.
func buildProduct(kind buck.RuleType, raw *buck.RawManifest, targets repo.TargetsPath, dir repo.Path, pkgEdition string) (cargo.Product, error) {
	tc := &raw.Cargo.TargetConfig
	name := strings.ReplaceAll(productName(raw), "-", "_")

	productPath := tc.Path
	var err error
	switch {
	case productPath != "":
	case raw.Cargo.Thrift != nil:
		// Thrift libs build from a generated source next to the manifest.
		productPath = repo.ThriftLibFileName
	case raw.RustConfig.CrateRoot != "":
		if productPath, err = relativeCrateRoot(raw.RustConfig.CrateRoot, targets, dir); err != nil {
			return cargo.Product{}, err
		}
	default:
		root, err := findCrateRoot(kind, raw, name)
		if err != nil {
			return cargo.Product{}, err
		}
		if productPath, err = relativeCrateRoot(root, targets, dir); err != nil {
			return cargo.Product{}, err
		}
	}

	isLib := kind == buck.RuleTypeLibrary
	isTest := kind == buck.RuleTypeTest

	// Rules without unittests and proc-macro rules have no tests to run, so
	// cargo must be told to skip the default harness for them.
	var noTests *bool
	if !raw.RustConfig.Unittests || raw.RustConfig.ProcMacro {
		noTests = newBool(false)
	}

	p := cargo.Product{
		Name:             name,
		Path:             productPath,
		Test:             keepFalse(tc.Test.Apply(noTests)),
		CrateType:        tc.CrateType,
		RequiredFeatures: tc.RequiredFeatures,
	}
	if isLib {
		p.Doctest = keepFalse(tc.Doctest.Apply(noTests))
	}
	if isTest {
		// Cargo assumes bench and doc off for test products, on elsewhere.
		p.Bench = keepTrue(tc.Bench)
		p.Doc = keepTrue(tc.Doc)
	} else {
		p.Bench = keepFalse(tc.Bench)
		p.Doc = keepFalse(tc.Doc)
	}
	if tc.Plugin {
		p.Plugin = newBool(true)
	}
	if isLib && fieldOr(tc.ProcMacro, raw.RustConfig.ProcMacro) {
		p.ProcMacro = newBool(true)
	}
	if tc.Harness != nil && !*tc.Harness {
		p.Harness = newBool(false)
	}

	edition := raw.RustConfig.Edition
	if v, ok := tc.Edition.Get(); ok {
		edition = v
	} else if tc.Edition.IsClear() {
		edition = ""
	}
	if edition != pkgEdition {
		p.Edition = edition
	}
	return p, nil
}

// findCrateRoot searches the rule's sources for the crate root the way
// buck's rust rules do: shallowest paths first, conventional entrypoint
// names for the rule kind before <name>.rs.
func findCrateRoot(kind buck.RuleType, raw *buck.RawManifest, name string) (string, error) {
	var srcs []string
	if len(raw.Sources.Srcs) == 0 && len(raw.Sources.MappedSrcs) > 0 {
		// Mapped sources work for cargo only when the destination file is
		// checked in, by convention under src/.
		for _, dst := range raw.Sources.MappedSrcs {
			srcs = append(srcs, path.Join("src", dst))
		}
	} else {
		srcs = slices.Clone(raw.Sources.Srcs)
	}
	sort.Slice(srcs, func(i, j int) bool {
		di, dj := strings.Count(srcs[i], "/"), strings.Count(srcs[j], "/")
		if di != dj {
			return di < dj
		}
		return srcs[i] < srcs[j]
	})

	var candidates []string
	switch kind {
	case buck.RuleTypeBinary:
		candidates = []string{"main.rs", name + ".rs"}
	case buck.RuleTypeLibrary:
		candidates = []string{"lib.rs", name + ".rs"}
	default:
		candidates = []string{"main.rs", "lib.rs", name + ".rs"}
	}
	for _, candidate := range candidates {
		for _, src := range srcs {
			if src == candidate || strings.HasSuffix(src, "/"+candidate) {
				return src, nil
			}
		}
	}
	return "", fmt.Errorf("unable to find any of %v in %v while searching for crate root", candidates, srcs)
}

// relativeCrateRoot turns a crate root given relative to the build file
// into a path relative to the manifest dir.
func relativeCrateRoot(root string, targets repo.TargetsPath, dir repo.Path) (string, error) {
	p, err := targets.Dir().Join(root)
	if err != nil {
		return "", fmt.Errorf("while resolving crate root %s: %w", root, err)
	}
	return repo.Rel(dir, p), nil
}

func newBool(v bool) *bool { return &v }

// keepFalse drops a bool cargo assumes true for the product kind.
func keepFalse(v *bool) *bool {
	if v != nil && !*v {
		return v
	}
	return nil
}

// keepTrue drops a bool cargo assumes false for the product kind.
func keepTrue(v *bool) *bool {
	if v != nil && *v {
		return v
	}
	return nil
}
