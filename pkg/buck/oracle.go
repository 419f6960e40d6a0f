package buck

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/buckcargo/pkg/procutil"
	"github.com/matzehuels/buckcargo/pkg/repo"
)

const buckCmd = "buck2"

// buckWarnAfter is how long a Buck invocation may run before a progress
// warning is logged. Buck is never cancelled for running long; a cold
// daemon can legitimately take minutes.
const buckWarnAfter = 5 * time.Second

// manifestRuleQuery matches the manifest rules among the packages piped on
// stdin: genrules or write_file rules labeled rust_manifest.
const manifestRuleQuery = `attrfilter('labels', 'rust_manifest', kind('^(genrule|write_file)$', %Ss))`

// Oracle answers questions about the Buck rule graph. Production code
// invokes buck2 through [Buck2Oracle]; tests script answers with a fake.
type Oracle interface {
	// QueryManifestRules returns every manifest rule declared in the
	// build files of the given package directories.
	QueryManifestRules(ctx context.Context, dirs []repo.Path) ([]string, error)
	// BuildArtifacts builds the given rules and returns the absolute
	// filesystem path of each rule's output artifact.
	BuildArtifacts(ctx context.Context, rules []string) (map[string]string, error)
}

// Buck2Oracle implements [Oracle] over the buck2 command line. Commands run
// from the repository root under a dedicated isolation dir, so that when
// buckcargo itself runs under Buck the nested invocations cannot interfere
// with the outer daemon.
type Buck2Oracle struct {
	Root   repo.Root
	Runner procutil.Runner
	Logger *log.Logger
}

// NewBuck2Oracle returns an oracle running buck2 from the given repository
// root. A nil runner uses [procutil.ExecRunner]; a nil logger uses the
// default logger.
func NewBuck2Oracle(root repo.Root, runner procutil.Runner, logger *log.Logger) *Buck2Oracle {
	if runner == nil {
		runner = procutil.ExecRunner{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Buck2Oracle{Root: root, Runner: runner, Logger: logger}
}

// buckArgs assembles the shared argument prefix of a buck2 invocation. The
// isolation dir comes before the subcommand; the attribution args identify
// buckcargo in Buck's logs.
func buckArgs(subcommand string, rest ...string) []string {
	args := []string{
		"--isolation-dir=buckcargo",
		subcommand,
		"--oncall=buckcargo",
		"--client-metadata=id=buckcargo",
	}
	return append(args, rest...)
}

// QueryManifestRules runs buck2 uquery over the given directories. The
// directories are piped on stdin as root//<dir>: patterns, one per line, so
// the command line stays short no matter how many packages are queried.
// Empty input returns no rules without invoking Buck.
func (o *Buck2Oracle) QueryManifestRules(ctx context.Context, dirs []repo.Path) ([]string, error) {
	if len(dirs) == 0 {
		return nil, nil
	}
	var stdin strings.Builder
	for _, dir := range dirs {
		fmt.Fprintf(&stdin, "%s//%s:\n", RootCell, dir)
	}
	stdout, _, err := procutil.RunLogged(ctx, o.Logger, o.Runner, procutil.Cmd{
		Name:  "buck2 query manifests",
		Path:  buckCmd,
		Args:  buckArgs("uquery", "--output-format=json", manifestRuleQuery, "@-"),
		Dir:   o.Root.String(),
		Stdin: stdin.String(),
	}, buckWarnAfter)
	if err != nil {
		return nil, err
	}
	var rules []string
	if err := json.Unmarshal(stdout, &rules); err != nil {
		return nil, fmt.Errorf("parsing output of 'buck2 query manifests': %w", err)
	}
	return rules, nil
}

// BuildArtifacts builds the given rules, piped on stdin one per line, and
// decodes the rule to artifact path map Buck prints. Empty input returns no
// artifacts without invoking Buck.
func (o *Buck2Oracle) BuildArtifacts(ctx context.Context, rules []string) (map[string]string, error) {
	if len(rules) == 0 {
		return nil, nil
	}
	var stdin strings.Builder
	for _, rule := range rules {
		stdin.WriteString(rule)
		stdin.WriteByte('\n')
	}
	stdout, _, err := procutil.RunLogged(ctx, o.Logger, o.Runner, procutil.Cmd{
		Name:  "buck2 build rules",
		Path:  buckCmd,
		Args:  buckArgs("build", "--show-full-json-output", "@-"),
		Dir:   o.Root.String(),
		Stdin: stdin.String(),
	}, buckWarnAfter)
	if err != nil {
		return nil, err
	}
	var artifacts map[string]string
	if err := json.Unmarshal(stdout, &artifacts); err != nil {
		return nil, fmt.Errorf("parsing output of 'buck2 build rules': %w", err)
	}
	return artifacts, nil
}
