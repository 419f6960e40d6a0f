package cargo

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// generatedTag is assembled from an escape so this source file does not mark
// itself as generated.
const generatedTag = "\x40generated"

// Preamble returns the header written at the top of every generated TOML
// file. identifier names the rules the file was generated from, in the
// //dir:name form.
func Preamble(identifier string) string {
	return fmt.Sprintf("# %s by buckcargo from %s\n", generatedTag, identifier)
}

// RustPreamble is [Preamble] for generated Rust sources.
func RustPreamble(identifier string) string {
	return fmt.Sprintf("// %s by buckcargo from %s\n", generatedTag, identifier)
}

var generatedPrefixes = [][]byte{
	[]byte("# " + generatedTag),
	[]byte("// " + generatedTag),
}

// IsGenerated reports whether content begins with a generated-file
// preamble, in either the TOML or the Rust comment form.
func IsGenerated(content []byte) bool {
	for _, prefix := range generatedPrefixes {
		if bytes.HasPrefix(content, prefix) {
			return true
		}
	}
	return false
}

// Encode renders m as TOML. The output is byte-stable: fixed section order,
// sorted keys, sorted arrays. The one exception is the authors list, which
// keeps the order its owners wrote. A non-empty identifier prepends the
// generated-file preamble. Encode never mutates m.
func Encode(m *Manifest, identifier string) []byte {
	var e encoder
	if identifier != "" {
		e.b.WriteString(Preamble(identifier))
		e.any = true
	}

	if len(m.CargoFeatures) > 0 {
		e.section()
		e.line("cargo-features = " + stringArray(m.CargoFeatures))
	}
	e.writePackage(&m.Package)
	if m.Lib != nil {
		e.writeProduct("[lib]", m.Lib)
	}
	e.writeProducts("[[bin]]", m.Bins)
	e.writeProducts("[[example]]", m.Examples)
	e.writeProducts("[[test]]", m.Tests)
	e.writeProducts("[[bench]]", m.Benches)
	e.writeDepsTable("dependencies", m.Dependencies)
	e.writeDepsTable("dev-dependencies", m.DevDependencies)
	e.writeDepsTable("build-dependencies", m.BuildDependencies)
	for _, key := range sortedTargetKeys(m.Target) {
		deps := m.Target[TargetKey(key)]
		e.writeDepsTable("target."+key+".dependencies", deps.Dependencies)
		e.writeDepsTable("target."+key+".dev-dependencies", deps.DevDependencies)
		e.writeDepsTable("target."+key+".build-dependencies", deps.BuildDependencies)
	}
	e.writeFeatures(m.Features)
	for _, reg := range sortedKeys(m.Patch) {
		e.writeDepsTable("patch."+tomlKey(reg), m.Patch[reg])
	}
	e.writeGenericTable("profile", m.Profile)
	if m.Workspace != nil {
		e.section()
		e.line("[workspace]")
		if len(m.Workspace.Members) > 0 {
			e.line("members = " + stringArray(m.Workspace.Members))
		}
		// The resolver matching the package edition's default is what
		// cargo assumes anyway; only virtual manifests, which have no
		// package to read an edition from, always spell it out.
		if r := m.Workspace.Resolver; r != "" {
			if m.Package.isEmpty() || r != DefaultResolver(m.Package.Edition) {
				e.line("resolver = " + tomlString(r))
			}
		}
	}
	e.writeGenericTable("lints", m.Lints)

	return []byte(e.b.String())
}

type encoder struct {
	b   strings.Builder
	any bool
}

// section separates the upcoming block from whatever precedes it.
func (e *encoder) section() {
	if e.any {
		e.b.WriteByte('\n')
	}
	e.any = true
}

func (e *encoder) line(s string) {
	e.b.WriteString(s)
	e.b.WriteByte('\n')
}

func (e *encoder) str(key, val string) {
	if val != "" {
		e.line(key + " = " + tomlString(val))
	}
}

func (e *encoder) strs(key string, vals []string) {
	if len(vals) > 0 {
		e.line(key + " = " + stringArray(vals))
	}
}

func (e *encoder) boolp(key string, val *bool) {
	if val != nil {
		e.line(key + " = " + strconv.FormatBool(*val))
	}
}

func (e *encoder) writePackage(p *Package) {
	if p.isEmpty() {
		return
	}
	e.section()
	e.line("[package]")
	e.str("name", p.Name)
	e.str("version", p.Version)
	// Authors are the one list emitted in declaration order.
	if len(p.Authors) > 0 {
		e.line("authors = " + orderedStringArray(p.Authors))
	}
	e.str("edition", p.Edition)
	e.str("rust-version", p.RustVersion)
	e.str("description", p.Description)
	e.str("documentation", p.Documentation)
	e.str("readme", p.Readme)
	e.str("homepage", p.Homepage)
	e.str("repository", p.Repository)
	e.str("license", p.License)
	e.str("license-file", p.LicenseFile)
	e.strs("keywords", p.Keywords)
	e.strs("categories", p.Categories)
	e.str("workspace", p.Workspace)
	if p.Build != nil {
		e.line("build = " + tomlString(*p.Build))
	}
	e.str("links", p.Links)
	e.strs("exclude", p.Exclude)
	e.strs("include", p.Include)
	e.boolp("publish", p.Publish)
	e.writeGenericTable("package.metadata", p.Metadata)
}

func (e *encoder) writeProducts(header string, products []Product) {
	ordered := make([]Product, len(products))
	copy(ordered, products)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })
	for i := range ordered {
		e.writeProduct(header, &ordered[i])
	}
}

func (e *encoder) writeProduct(header string, p *Product) {
	e.section()
	e.line(header)
	e.str("name", p.Name)
	e.str("path", p.Path)
	e.boolp("test", p.Test)
	e.boolp("doctest", p.Doctest)
	e.boolp("bench", p.Bench)
	e.boolp("doc", p.Doc)
	e.boolp("plugin", p.Plugin)
	e.boolp("proc-macro", p.ProcMacro)
	e.boolp("harness", p.Harness)
	e.str("edition", p.Edition)
	e.strs("crate-type", p.CrateType)
	e.strs("required-features", p.RequiredFeatures)
}

func (e *encoder) writeDepsTable(name string, deps DepsSet) {
	if len(deps) == 0 {
		return
	}
	e.section()
	e.line("[" + name + "]")
	for _, k := range sortedKeys(deps) {
		e.line(tomlKey(k) + " = " + renderDependency(deps[k]))
	}
}

func (e *encoder) writeFeatures(features map[string][]string) {
	if len(features) == 0 {
		return
	}
	e.section()
	e.line("[features]")
	for _, k := range sortedKeys(features) {
		e.line(tomlKey(k) + " = " + stringArray(features[k]))
	}
}

// writeGenericTable renders free-form tables (profile, lints, package
// metadata): scalar keys first under the table header, nested maps as
// sub-tables, everything sorted.
func (e *encoder) writeGenericTable(prefix string, table map[string]any) {
	if len(table) == 0 {
		return
	}
	var scalars, subs []string
	for _, k := range sortedKeys(table) {
		if _, ok := table[k].(map[string]any); ok {
			subs = append(subs, k)
		} else {
			scalars = append(scalars, k)
		}
	}
	if len(scalars) > 0 {
		e.section()
		e.line("[" + prefix + "]")
		for _, k := range scalars {
			e.line(tomlKey(k) + " = " + renderValue(table[k]))
		}
	}
	for _, k := range subs {
		e.writeGenericTable(prefix+"."+tomlKey(k), table[k].(map[string]any))
	}
}

func renderDependency(d Dependency) string {
	if d.IsSimple() {
		return tomlString(d.Version)
	}
	var parts []string
	add := func(key, val string) {
		if val != "" {
			parts = append(parts, key+" = "+tomlString(val))
		}
	}
	add("package", d.Package)
	add("version", d.Version)
	add("registry", d.Registry)
	add("registry-index", d.RegistryIndex)
	add("path", d.Path)
	add("git", d.Git)
	add("branch", d.Branch)
	add("tag", d.Tag)
	add("rev", d.Rev)
	if len(d.Features) > 0 {
		parts = append(parts, "features = "+stringArray(d.Features))
	}
	if d.Optional {
		parts = append(parts, "optional = true")
	}
	if d.DefaultFeatures != nil && !*d.DefaultFeatures {
		parts = append(parts, "default-features = false")
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

func renderValue(v any) string {
	switch t := v.(type) {
	case string:
		return tomlString(t)
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		s := strconv.FormatFloat(t, 'f', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	case []string:
		return stringArray(t)
	case []any:
		parts := make([]string, len(t))
		for i, el := range t {
			parts[i] = renderValue(el)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		parts := make([]string, 0, len(t))
		for _, k := range sortedKeys(t) {
			parts = append(parts, tomlKey(k)+" = "+renderValue(t[k]))
		}
		return "{ " + strings.Join(parts, ", ") + " }"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// stringArray renders a sorted inline array of strings.
func stringArray(vals []string) string {
	ordered := make([]string, len(vals))
	copy(ordered, vals)
	sort.Strings(ordered)
	return orderedStringArray(ordered)
}

// orderedStringArray renders an inline array of strings in the order
// given.
func orderedStringArray(vals []string) string {
	quoted := make([]string, len(vals))
	for i, v := range vals {
		quoted[i] = tomlString(v)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func tomlString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\u%04X`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

func tomlKey(k string) string {
	if isBareKey(k) {
		return k
	}
	return tomlString(k)
}

func isBareKey(k string) bool {
	if k == "" {
		return false
	}
	for _, r := range k {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedTargetKeys(m map[TargetKey]Deps) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	return keys
}
