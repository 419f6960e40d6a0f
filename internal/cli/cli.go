// Package cli implements the buckcargo command-line interface.
//
// This package provides commands for generating Cargo.toml manifests from
// Buck rule graphs, inspecting the project catalog, and rendering the
// inter-project dependency graph. The CLI is built using cobra and supports
// verbose logging via the charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - generate: Derive Cargo manifests for the selected projects
//   - projects: List and validate the project catalog
//   - graph: Render the project dependency graph as DOT or SVG
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context to allow structured progress tracking.
//
// # Example
//
//	import "github.com/matzehuels/buckcargo/internal/cli"
//
//	func main() {
//	    c := cli.New(os.Stderr, cli.LogInfo)
//	    if err := c.RootCommand().Execute(); err != nil {
//	        os.Exit(1)
//	    }
//	}
package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/buckcargo/pkg/buildinfo"
	"github.com/matzehuels/buckcargo/pkg/project"
	"github.com/matzehuels/buckcargo/pkg/repo"
)

// appName is the application name used for display and the default
// isolation directory.
const appName = "buckcargo"

// defaultCatalogDir is the repo-relative directory holding project
// configuration files, one TOML document per project.
const defaultCatalogDir = "tools/buckcargo/projects"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	repoDir    string
	catalogDir string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Buckcargo derives Cargo manifests from Buck rules",
		Long:         `Buckcargo generates Cargo.toml files from the Rust rules of a Buck build graph, so that cargo's view of the tree stays consistent with the real build without hand-maintained manifests.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.repoDir, "repo", "", "repository root (default: discovered from the working directory)")
	root.PersistentFlags().StringVar(&c.catalogDir, "catalog", defaultCatalogDir, "project catalog directory, relative to the repository root")

	root.AddCommand(c.generateCommand())
	root.AddCommand(c.projectsCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// findRoot resolves the repository root from --repo or the working
// directory.
func (c *CLI) findRoot() (repo.Root, error) {
	dir := c.repoDir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		dir = wd
	}
	return repo.FindRoot(dir)
}

// loadCatalog reads and validates the project catalog under root.
func (c *CLI) loadCatalog(root repo.Root) (*project.Catalog, error) {
	dir := c.catalogDir
	if !filepath.IsAbs(dir) {
		p, err := repo.NewPath(dir)
		if err != nil {
			return nil, fmt.Errorf("catalog dir: %w", err)
		}
		dir = root.Abs(p)
	}
	return project.LoadDir(dir)
}

// repoPaths converts command-line path arguments, absolute or relative to
// the working directory, into root-relative paths.
func repoPaths(root repo.Root, args []string) ([]repo.Path, error) {
	paths := make([]repo.Path, 0, len(args))
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, fmt.Errorf("path %s: %w", arg, err)
		}
		p, err := root.Rel(abs)
		if err != nil {
			return nil, fmt.Errorf("path %s: %w", arg, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// stdinIsTTY reports whether standard input is attached to a terminal.
// The interactive project picker only runs when it is.
func stdinIsTTY() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
