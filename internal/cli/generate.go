package cli

import (
	"context"
	"fmt"
	"sort"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/buckcargo/pkg/buck"
	"github.com/matzehuels/buckcargo/pkg/generate"
	"github.com/matzehuels/buckcargo/pkg/procutil"
	"github.com/matzehuels/buckcargo/pkg/project"
	"github.com/matzehuels/buckcargo/pkg/repo"
)

// generateCommand creates the generate command, the main entry point of
// the tool.
func (c *CLI) generateCommand() *cobra.Command {
	var (
		projectNames []string
		check        bool
		skipLocks    bool
	)

	cmd := &cobra.Command{
		Use:   "generate [paths...]",
		Short: "Generate Cargo manifests from Buck rules",
		Long: `Generate Cargo.toml files for the selected projects.

Paths select every project covering them plus everything that depends on
those projects, since a change under a path invalidates the manifests of
all its dependents. Projects named with --project additionally pull in
their own dependencies. With no paths and no --project, all projects are
regenerated; on a terminal an interactive picker is offered instead.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runGenerate(cmd.Context(), args, projectNames, check, skipLocks)
		},
	}

	cmd.Flags().StringArrayVarP(&projectNames, "project", "p", nil, "project to generate (repeatable)")
	cmd.Flags().BoolVar(&check, "check", false, "report files that would change without writing anything")
	cmd.Flags().BoolVar(&skipLocks, "skip-locks", false, "skip Cargo.lock regeneration")

	return cmd
}

func (c *CLI) runGenerate(ctx context.Context, args, projectNames []string, check, skipLocks bool) error {
	logger := loggerFromContext(ctx)

	root, err := c.findRoot()
	if err != nil {
		return err
	}
	logger.Debug("Repository root", "dir", root)

	catalog, err := c.loadCatalog(root)
	if err != nil {
		return fmt.Errorf("load project catalog: %w", err)
	}

	paths, err := repoPaths(root, args)
	if err != nil {
		return err
	}

	sel, err := c.selectProjects(catalog, paths, projectNames)
	if err != nil {
		return err
	}
	if sel.Len() == 0 {
		printDetail("No projects selected")
		return nil
	}
	printInfo("Selected %s", StyleHighlight.Render(fmt.Sprintf("%d projects", sel.Len())))

	prog := newProgress(logger)
	files, err := project.Discover(ctx, root, sel)
	if err != nil {
		return fmt.Errorf("discover project files: %w", err)
	}
	if err := project.CheckUniqueness(files); err != nil {
		return err
	}
	targets := buildFiles(files)
	prog.done(fmt.Sprintf("Discovered %d build files", len(targets)))
	for _, f := range files {
		logger.Debug("Project files", "project", f.Project.Name,
			"build_files", len(f.BuildFiles), "manifests", len(f.Manifests))
	}
	if projectless := project.Projectless(paths, files); len(projectless) > 0 {
		for _, p := range projectless {
			logger.Warn("Path not covered by any selected project", "path", p)
		}
	}

	runner := procutil.ExecRunner{}
	oracle := buck.NewBuck2Oracle(root, runner, logger)
	loader := buck.NewLoader(oracle, logger)
	cratemaps := buck.NewCratemapLoader(oracle, logger)
	resolver, err := buck.NewResolver(loader, cratemaps, buck.DefaultConventions(), logger)
	if err != nil {
		return err
	}

	prog = newProgress(logger)
	spinner := newSpinnerWithContext(ctx, "Resolving Buck rules...")
	spinner.Start()
	resolved, err := resolver.Process(ctx, targets)
	spinner.Stop()
	if err != nil {
		return fmt.Errorf("process build files: %w", err)
	}
	prog.done(fmt.Sprintf("Resolved %d build files", len(resolved.Manifests)))
	if n := len(resolved.Unprocessed); n > 0 {
		logger.Debug("Dependency-only build files", "count", n)
	}

	registry, err := generate.LoadRegistry(root, logger)
	if err != nil {
		return err
	}

	prog = newProgress(logger)
	gen := generate.New(registry, catalog, files, resolved.Unprocessed, logger)
	out, err := gen.Generate(ctx, sel, resolved.Manifests)
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Generated %d manifests", len(out.Manifests)))

	stats, err := generate.Write(root, out, files, check, logger)
	if err != nil {
		return err
	}
	printWriteStats(stats, check)
	if check && stats.Dirty() {
		return fmt.Errorf("%d files out of date", len(stats.Written)+len(stats.Deleted))
	}

	if check || skipLocks {
		return nil
	}
	if err := generate.RegenerateLocks(ctx, root, sel, runner, logger); err != nil {
		return fmt.Errorf("regenerate lockfiles: %w", err)
	}

	printSuccess("Done")
	return nil
}

// selectProjects computes the project selection for the run. With no
// seeds, a terminal gets the interactive picker and everything else gets
// the full catalog.
func (c *CLI) selectProjects(catalog *project.Catalog, paths []repo.Path, names []string) (project.Selection, error) {
	if len(paths) == 0 && len(names) == 0 {
		if stdinIsTTY() {
			picked, err := pickProjects(catalog)
			if err != nil {
				return project.Selection{}, err
			}
			if len(picked) == 0 {
				return project.Selection{}, nil
			}
			return catalog.Select(nil, picked)
		}
		return catalog.SelectAll(), nil
	}
	return catalog.Select(paths, names)
}

// pickProjects runs the interactive project picker and returns the chosen
// project names.
func pickProjects(catalog *project.Catalog) ([]string, error) {
	m := NewProjectListModel(catalog.Projects())
	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return nil, err
	}
	fm, ok := final.(ProjectListModel)
	if !ok || !fm.Confirmed {
		printDetail("No selection made")
		return nil, nil
	}
	return fm.Picked(), nil
}

// buildFiles flattens the discovered per-project build files into one
// sorted target list.
func buildFiles(files []*project.Files) []repo.TargetsPath {
	seen := map[repo.TargetsPath]bool{}
	var all []repo.TargetsPath
	for _, f := range files {
		for _, tp := range f.BuildFiles {
			if !seen[tp] {
				seen[tp] = true
				all = append(all, tp)
			}
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Dir() < all[j].Dir() })
	return all
}
