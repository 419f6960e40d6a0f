package procutil

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Cmd describes one subprocess invocation. Name is a human-readable label
// used in log messages and errors; Path and Args are what actually runs.
type Cmd struct {
	Name  string
	Path  string
	Args  []string
	Dir   string
	Stdin string
}

func (c Cmd) commandLine() string {
	return strings.Join(append([]string{c.Path}, c.Args...), " ")
}

// Runner executes subprocesses. Production code uses [ExecRunner]; tests
// substitute a fake to script outputs without spawning anything.
type Runner interface {
	Run(ctx context.Context, c Cmd) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands through os/exec.
type ExecRunner struct{}

// Run executes c, capturing stdout and stderr separately. A non-zero exit
// returns the captured output alongside the exec error.
func (ExecRunner) Run(ctx context.Context, c Cmd) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	if c.Stdin != "" {
		cmd.Stdin = strings.NewReader(c.Stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// RunLogged executes c through r under a soft timeout. If the command
// outlives warnAfter, a warning is logged, and another when it eventually
// finishes. A failed command logs its full command line, stdout, and stderr
// before returning an error naming the command.
func RunLogged(ctx context.Context, logger *log.Logger, r Runner, c Cmd, warnAfter time.Duration) ([]byte, []byte, error) {
	var stdout, stderr []byte
	err := SoftTimeout(ctx, warnAfter,
		func(d time.Duration) {
			logger.Warnf("'%s' running for more than %s", c.Name, d)
		},
		func(d time.Duration) {
			logger.Warnf("'%s' finished after %s", c.Name, d.Round(time.Millisecond))
		},
		func(ctx context.Context) error {
			var runErr error
			stdout, stderr, runErr = r.Run(ctx, c)
			return runErr
		},
	)
	if err != nil {
		logger.Errorf("'%s' failed: %v\ncommand: %s\nstdout:\n%s\nstderr:\n%s",
			c.Name, err, c.commandLine(), stdout, stderr)
		return stdout, stderr, fmt.Errorf("running '%s': %w", c.Name, err)
	}
	return stdout, stderr, nil
}
