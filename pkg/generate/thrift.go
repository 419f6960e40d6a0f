package generate

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/matzehuels/buckcargo/pkg/buck"
	"github.com/matzehuels/buckcargo/pkg/cargo"
	"github.com/matzehuels/buckcargo/pkg/repo"
)

// extraFiles renders the generated sources a unit needs next to its
// manifest. Only thrift units have any: thrift_lib.rs pulling in the
// codegen output and thrift_build.rs driving the thrift compiler at build
// time.
func (u *Unit) extraFiles() (map[repo.Path]string, error) {
	if u.Lib == nil || u.Lib.Thrift == nil || u.Lib.Raw.Cargo.Thrift == nil {
		return nil, nil
	}
	identifier := u.Identifier()

	libPath, err := u.Dir.Join(repo.ThriftLibFileName)
	if err != nil {
		return nil, err
	}
	buildPath, err := u.Dir.Join(repo.ThriftBuildFileName)
	if err != nil {
		return nil, err
	}
	build, err := u.thriftBuildSource(identifier)
	if err != nil {
		return nil, err
	}
	return map[repo.Path]string{
		libPath:   cargo.RustPreamble(identifier) + "\n::codegen_includer_proc_macro::include!();\n",
		buildPath: build,
	}, nil
}

// thriftBuildSource renders thrift_build.rs: the cratemap baked in as a
// constant and a thrift_compiler invocation with every path relative to
// the manifest dir.
func (u *Unit) thriftBuildSource(identifier string) (string, error) {
	spec := u.Lib.Raw.Cargo.Thrift
	opts := &spec.Options

	inputs := make([]string, 0, len(spec.ThriftSrcs))
	for _, src := range slices.Sorted(maps.Keys(spec.ThriftSrcs)) {
		rel, err := u.relativeSrc(src)
		if err != nil {
			return "", err
		}
		inputs = append(inputs, rel)
	}

	var includeSrcs, extraSrcs []string
	var include *string
	switch spec.GenContext {
	case buck.GenContextTypes:
		include = opts.TypesIncludeSrcs
	case buck.GenContextClients:
		include = opts.ClientsIncludeSrcs
	case buck.GenContextServices:
		include = opts.ServicesIncludeSrcs
	}
	for _, src := range splitColon(include) {
		rel, err := u.relativeSrc(src)
		if err != nil {
			return "", err
		}
		includeSrcs = append(includeSrcs, rel)
	}
	if spec.GenContext == buck.GenContextTypes {
		for _, src := range splitColon(opts.TypesExtraSrcs) {
			rel, err := u.relativeSrc(src)
			if err != nil {
				return "", err
			}
			extraSrcs = append(extraSrcs, rel)
		}
	}

	// Options the thrift compiler's Rust API sets through dedicated
	// methods or on its own are dropped from the free-form remainder.
	var optParts []string
	for _, k := range slices.Sorted(maps.Keys(opts.More)) {
		switch k {
		case "crate_name", "default_crate_name", "include_docs":
			continue
		}
		if v := opts.More[k]; v != nil {
			optParts = append(optParts, k+"="+*v)
		} else {
			optParts = append(optParts, k)
		}
	}

	lines := strings.Split(strings.TrimSuffix(u.Lib.Thrift.Cratemap, "\n"), "\n")
	slices.Sort(lines)

	var b strings.Builder
	b.WriteString(cargo.RustPreamble(identifier))
	b.WriteString("\nuse std::env;\nuse std::fs;\nuse std::path::Path;\n")
	b.WriteString("\nuse thrift_compiler::Config;\nuse thrift_compiler::GenContext;\n")
	b.WriteString("\nconst CRATEMAP: &str = \"\\\n")
	for _, line := range lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\";\n")
	b.WriteString("\n#[rustfmt::skip]\nfn main() {\n")
	fmt.Fprintf(&b, "    println!(%q);\n", "cargo:rerun-if-changed="+repo.ThriftBuildFileName)
	b.WriteString("    let out_dir = env::var_os(\"OUT_DIR\").expect(\"OUT_DIR env not provided\");\n")
	b.WriteString("    let cratemap_path = Path::new(&out_dir).join(\"cratemap\");\n")
	b.WriteString("    fs::write(cratemap_path, CRATEMAP).expect(\"Failed to write cratemap\");\n")
	fmt.Fprintf(&b, "    Config::from_env(GenContext::%s)\n", spec.GenContext.Ident())
	b.WriteString("        .expect(\"Failed to instantiate thrift_compiler::Config\")\n")
	fmt.Fprintf(&b, "        .base_path(%q)\n", repo.Rel(u.Dir, ""))
	fmt.Fprintf(&b, "        .types_crate(%q)\n", opts.TypesCrate)
	if opts.ClientsCrate != nil {
		fmt.Fprintf(&b, "        .clients_crate(%q)\n", *opts.ClientsCrate)
	}
	if opts.ServicesCrate != nil {
		fmt.Fprintf(&b, "        .services_crate(%q)\n", *opts.ServicesCrate)
	}
	if len(optParts) > 0 {
		fmt.Fprintf(&b, "        .options(%q)\n", strings.Join(optParts, ","))
	}
	if len(includeSrcs) > 0 {
		fmt.Fprintf(&b, "        .include_srcs(%s)\n", rustStringArray(includeSrcs))
	}
	if len(extraSrcs) > 0 {
		fmt.Fprintf(&b, "        .extra_srcs(%s)\n", rustStringArray(extraSrcs))
	}
	if len(inputs) == 0 {
		b.WriteString("        .run([] as [&Path; 0])\n")
	} else {
		fmt.Fprintf(&b, "        .run(%s)\n", rustStringArray(inputs))
	}
	b.WriteString("        .expect(\"Failed while running thrift compilation\");\n}\n")
	return b.String(), nil
}

// relativeSrc turns a source path given relative to the build file into a
// path relative to the manifest dir.
func (u *Unit) relativeSrc(src string) (string, error) {
	p, err := u.Targets.Dir().Join(src)
	if err != nil {
		return "", fmt.Errorf("while resolving thrift source %s: %w", src, err)
	}
	return repo.Rel(u.Dir, p), nil
}

// splitColon splits a colon-separated source list, tolerating a trailing
// separator. A nil or empty value has no elements.
func splitColon(s *string) []string {
	if s == nil || *s == "" {
		return nil
	}
	parts := strings.Split(*s, ":")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

func rustStringArray(vals []string) string {
	quoted := make([]string, len(vals))
	for i, v := range vals {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
