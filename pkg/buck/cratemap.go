package buck

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
)

// NeedsCratemap reports whether a manifest's thrift section requires a
// cratemap. Only types-context libraries own one; clients, services, and
// mocks reuse the map of the types crate they sit on top of.
func NeedsCratemap(m *RawManifest) bool {
	return m.Cargo.Thrift != nil && m.Cargo.Thrift.GenContext == GenContextTypes
}

// CratemapLoader builds thrift cratemap artifacts and reads their content.
type CratemapLoader struct {
	Oracle Oracle
	Logger *log.Logger
}

// NewCratemapLoader returns a cratemap loader over the given oracle. A nil
// logger uses the default logger.
func NewCratemapLoader(oracle Oracle, logger *log.Logger) *CratemapLoader {
	if logger == nil {
		logger = log.Default()
	}
	return &CratemapLoader{Oracle: oracle, Logger: logger}
}

// Load builds the cratemap rules of the given thrift library rules and
// returns their content keyed by library rule. Library names must carry the
// thrift library suffix; the cratemap rule appends the dep-map suffix to it.
func (l *CratemapLoader) Load(ctx context.Context, libraries []RuleID) (map[RuleID]string, error) {
	if len(libraries) == 0 {
		return map[RuleID]string{}, nil
	}
	rules := make([]string, 0, len(libraries))
	for _, lib := range libraries {
		if !strings.HasSuffix(lib.Name, ThriftLibSuffix) {
			return nil, fmt.Errorf("unexpected thrift library %s: name must end with %s", lib, ThriftLibSuffix)
		}
		cratemap := RuleID{Cell: lib.Cell, Dir: lib.Dir, Name: lib.Name + CratemapRuleSuffix}
		rules = append(rules, cratemap.String())
	}
	sort.Strings(rules)

	l.Logger.Debugf("Building %d thrift cratemaps", len(rules))
	artifacts, err := l.Oracle.BuildArtifacts(ctx, rules)
	if err != nil {
		return nil, err
	}

	out := make(map[RuleID]string, len(artifacts))
	for ruleStr, artifact := range artifacts {
		rid, err := ParseInternalRuleID(ruleStr)
		if err != nil {
			return nil, fmt.Errorf("parsing output of 'buck2 build cratemaps': %w", err)
		}
		name, ok := strings.CutSuffix(rid.Name, CratemapRuleSuffix)
		if !ok {
			return nil, fmt.Errorf("built rule %s does not end in %s", rid, CratemapRuleSuffix)
		}
		content, err := os.ReadFile(artifact)
		if err != nil {
			return nil, fmt.Errorf("reading cratemap %s: %w", artifact, err)
		}
		out[RuleID{Cell: rid.Cell, Dir: rid.Dir, Name: name}] = string(content)
	}
	return out, nil
}
