package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// projectsCommand creates the projects command for inspecting the catalog.
func (c *CLI) projectsCommand() *cobra.Command {
	var validate bool

	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List the projects of the catalog",
		Long: `List the projects of the catalog with their coverage and dependencies.

With --validate, only load and validate the catalog: name uniqueness,
existence of every declared dependency, and lockfile coverage.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runProjects(validate)
		},
	}

	cmd.Flags().BoolVar(&validate, "validate", false, "validate the catalog and exit")

	return cmd
}

func (c *CLI) runProjects(validate bool) error {
	root, err := c.findRoot()
	if err != nil {
		return err
	}
	catalog, err := c.loadCatalog(root)
	if err != nil {
		return fmt.Errorf("load project catalog: %w", err)
	}

	projects := catalog.Projects()
	if validate {
		printSuccess("Catalog valid: %d projects", len(projects))
		return nil
	}

	for _, p := range projects {
		printInfo("%s", StyleHighlight.Render(p.Name))
		if p.Oncall != "" {
			printKeyValue("oncall", p.Oncall)
		}
		if len(p.Roots) > 0 {
			roots := make([]string, len(p.Roots))
			for i, r := range p.Roots {
				roots[i] = r.String()
			}
			printKeyValue("roots", strings.Join(roots, ", "))
		}
		if len(p.Dependencies) > 0 {
			printKeyValue("deps", strings.Join(p.Dependencies, ", "))
		}
		if p.ManualCargoToml {
			printDetail("manual Cargo.toml, not generated")
		}
		printNewline()
	}

	return nil
}
