package buck

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/matzehuels/buckcargo/pkg/repo"
)

// RootCell is the cell name of the repository's own rules.
const RootCell = "root"

// Suffixes tying a Rust rule to its companion rules.
const (
	// ManifestRuleSuffix marks the genrule emitting a rule's JSON manifest.
	ManifestRuleSuffix = "-rust-manifest"
	// CratemapRuleSuffix marks the rule emitting a thrift library's
	// cratemap, derived from the unsuffixed rule name.
	CratemapRuleSuffix = "-dep-map"
	// ThriftLibSuffix ends the names of generated thrift library rules.
	ThriftLibSuffix = "-rust"
)

// RuleID identifies one Buck rule as cell//dir:name.
type RuleID struct {
	Cell string
	Dir  repo.Path
	Name string
}

func (r RuleID) String() string {
	return r.Cell + "//" + string(r.Dir) + ":" + r.Name
}

// Label returns the rule without its cell, the form used in generation
// identifiers and error messages.
func (r RuleID) Label() string {
	return "//" + string(r.Dir) + ":" + r.Name
}

// TargetsPath returns the build file package the rule lives in.
func (r RuleID) TargetsPath() repo.TargetsPath {
	return repo.TargetsPathForDir(r.Dir)
}

// ManifestRule returns the companion manifest rule of r.
func (r RuleID) ManifestRule() RuleID {
	return RuleID{Cell: r.Cell, Dir: r.Dir, Name: r.Name + ManifestRuleSuffix}
}

var (
	fullyQualifiedRe = regexp.MustCompile(`^([A-Za-z0-9._-]+)//([A-Za-z0-9/._-]*):([A-Za-z0-9_/.=,@~+-]+)$`)
	internalRe       = regexp.MustCompile(`^(?:` + RootCell + `)?//([A-Za-z0-9/._-]*):([A-Za-z0-9_/.=,@~+-]+)$`)
	bareRe           = regexp.MustCompile(`^:([A-Za-z0-9_/.=,@~+-]+?)(?:\[([a-z_]+)\])?$`)
)

// ParseRuleID parses a fully qualified cell//dir:name rule.
func ParseRuleID(s string) (RuleID, error) {
	m := fullyQualifiedRe.FindStringSubmatch(s)
	if m == nil {
		return RuleID{}, fmt.Errorf("%q is not a fully qualified rule", s)
	}
	dir, err := repo.NewPath(m[2])
	if err != nil {
		return RuleID{}, fmt.Errorf("rule %q: %w", s, err)
	}
	return RuleID{Cell: m[1], Dir: dir, Name: m[3]}, nil
}

// ParseInternalRuleID parses a rule of the root cell, with or without the
// explicit cell prefix: //dir:name or root//dir:name.
func ParseInternalRuleID(s string) (RuleID, error) {
	m := internalRe.FindStringSubmatch(s)
	if m == nil {
		return RuleID{}, fmt.Errorf("%q is not an internal rule", s)
	}
	dir, err := repo.NewPath(m[1])
	if err != nil {
		return RuleID{}, fmt.Errorf("rule %q: %w", s, err)
	}
	return RuleID{Cell: RootCell, Dir: dir, Name: m[2]}, nil
}

// parseBareRule parses a same-package :name reference, returning the rule
// name and optional [subtarget].
func parseBareRule(s string) (name, subtarget string, err error) {
	m := bareRe.FindStringSubmatch(s)
	if m == nil {
		return "", "", fmt.Errorf("%q is not a bare rule reference", s)
	}
	return m[1], m[2], nil
}

// Conventions are the repo-level naming agreements buckcargo relies on. The
// defaults match the standard monorepo layout; constructors take them
// explicitly so nothing is buried in the call graph.
type Conventions struct {
	// ThirdPartyPrefix is the rule prefix under which vendored third-party
	// crates are aliased. The remainder of such a rule is the crate name.
	ThirdPartyPrefix string
	// ThriftCompilerRule is injected as a build dependency of every crate
	// with generated thrift sources.
	ThriftCompilerRule string
	// CodegenIncluderRule is injected as a regular dependency of every
	// crate with generated thrift sources.
	CodegenIncluderRule string
}

// DefaultConventions returns the standard naming agreements.
func DefaultConventions() Conventions {
	return Conventions{
		ThirdPartyPrefix:    "third-party//rust:",
		ThriftCompilerRule:  "//common/rust/thrift_compiler:lib",
		CodegenIncluderRule: "//common/rust/codegen_includer_proc_macro:codegen_includer_proc_macro",
	}
}

// Validate fills unset fields with defaults and rejects malformed rules.
func (c *Conventions) Validate() error {
	def := DefaultConventions()
	if c.ThirdPartyPrefix == "" {
		c.ThirdPartyPrefix = def.ThirdPartyPrefix
	}
	if !strings.HasSuffix(c.ThirdPartyPrefix, ":") {
		return fmt.Errorf("third-party prefix %q must end in ':'", c.ThirdPartyPrefix)
	}
	if c.ThriftCompilerRule == "" {
		c.ThriftCompilerRule = def.ThriftCompilerRule
	}
	if c.CodegenIncluderRule == "" {
		c.CodegenIncluderRule = def.CodegenIncluderRule
	}
	for _, rule := range []string{c.ThriftCompilerRule, c.CodegenIncluderRule} {
		if _, err := ParseInternalRuleID(rule); err != nil {
			return fmt.Errorf("invalid convention rule: %w", err)
		}
	}
	return nil
}
