package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/spf13/cobra"

	"github.com/matzehuels/buckcargo/pkg/project"
)

// graphCommand creates the graph command for rendering the inter-project
// dependency graph.
func (c *CLI) graphCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render the project dependency graph",
		Long: `Render the inter-project dependency graph of the catalog.

The output format follows the file extension: .dot writes the Graphviz
source, .svg renders it through Graphviz.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runGraph(cmd.Context(), output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "projects.svg", "output file (.dot or .svg)")

	return cmd
}

func (c *CLI) runGraph(ctx context.Context, output string) error {
	root, err := c.findRoot()
	if err != nil {
		return err
	}
	catalog, err := c.loadCatalog(root)
	if err != nil {
		return fmt.Errorf("load project catalog: %w", err)
	}

	dot := projectsDOT(catalog.Projects())

	var data []byte
	switch ext := filepath.Ext(output); ext {
	case ".dot":
		data = []byte(dot)
	case ".svg":
		data, err = renderSVG(ctx, dot)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported output format %q (want .dot or .svg)", ext)
	}

	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	printFile(output)
	return nil
}

// projectsDOT converts the catalog's dependency edges to Graphviz DOT.
// Nodes and edges are emitted sorted so the output is stable.
func projectsDOT(projects []*project.Config) string {
	var buf bytes.Buffer
	buf.WriteString("digraph projects {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, margin=\"0.2,0.1\"];\n")
	buf.WriteString("\n")

	for _, p := range projects {
		attrs := []string{fmt.Sprintf("label=%q", p.Name)}
		if p.ManualCargoToml {
			attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey")
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", p.Name, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, p := range projects {
		deps := append([]string(nil), p.Dependencies...)
		sort.Strings(deps)
		for _, d := range deps {
			fmt.Fprintf(&buf, "  %q -> %q;\n", p.Name, d)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// renderSVG renders a DOT graph to SVG using Graphviz.
func renderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
