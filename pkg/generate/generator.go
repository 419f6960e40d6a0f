package generate

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/buckcargo/pkg/buck"
	"github.com/matzehuels/buckcargo/pkg/cargo"
	"github.com/matzehuels/buckcargo/pkg/project"
	"github.com/matzehuels/buckcargo/pkg/repo"
)

// Generator turns resolved rule graphs into manifest files.
type Generator struct {
	registry *Registry
	logger   *log.Logger
	// owners maps every build file a dependency edge may point at to the
	// project covering it. Build files outside any project are absent.
	owners map[repo.TargetsPath]*project.Config
}

// New builds a generator over a loaded third-party registry. Ownership of
// build files that only appear as dependency targets is resolved through
// the catalog; the discovered files of the selected projects override it.
// A nil logger uses the default logger.
func New(registry *Registry, catalog *project.Catalog, files []*project.Files, unprocessed []repo.TargetsPath, logger *log.Logger) *Generator {
	if logger == nil {
		logger = log.Default()
	}
	owners := catalog.ResolveForDirs(unprocessed)
	for _, f := range files {
		for _, tp := range f.BuildFiles {
			owners[tp] = f.Project
		}
	}
	return &Generator{registry: registry, logger: logger, owners: owners}
}

// Result is one generated manifest and the identifier its preamble names.
// Manifests created only to hold a workspace section have no identifier
// and render without a preamble.
type Result struct {
	Manifest   *cargo.Manifest
	Identifier string
}

// Output is the outcome of one generation run: manifest content by
// manifest path plus companion sources by repository path.
type Output struct {
	Manifests map[repo.ManifestPath]*Result
	Extras    map[repo.Path]string
}

// Generate produces the manifests of the processed build files plus a
// workspace manifest for each selected project configuring one. Build
// files generate independently and concurrently; two build files
// generating the same path is an error.
func (g *Generator) Generate(ctx context.Context, sel project.Selection, manifests map[repo.TargetsPath][]*buck.Manifest) (*Output, error) {
	paths := make([]repo.TargetsPath, 0, len(manifests))
	for tp := range manifests {
		paths = append(paths, tp)
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i].String() < paths[j].String() })

	parts := make([]*Output, len(paths))
	eg, ctx := errgroup.WithContext(ctx)
	for i, tp := range paths {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			part, err := g.generateForTargets(tp, manifests[tp])
			if err != nil {
				return err
			}
			parts[i] = part
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out := &Output{
		Manifests: make(map[repo.ManifestPath]*Result),
		Extras:    make(map[repo.Path]string),
	}
	manifestOrigin := make(map[repo.ManifestPath]repo.TargetsPath)
	extraOrigin := make(map[repo.Path]repo.TargetsPath)
	for i, part := range parts {
		tp := paths[i]
		for mp, res := range part.Manifests {
			if other, ok := manifestOrigin[mp]; ok {
				return nil, fmt.Errorf("path %s has been generated by both build files at %s and %s", mp, tp, other)
			}
			manifestOrigin[mp] = tp
			out.Manifests[mp] = res
		}
		for p, content := range part.Extras {
			if other, ok := extraOrigin[p]; ok {
				return nil, fmt.Errorf("path %s has been generated by both build files at %s and %s", p, tp, other)
			}
			extraOrigin[p] = tp
			out.Extras[p] = content
		}
	}

	if err := g.generateWorkspaces(sel, out.Manifests); err != nil {
		return nil, err
	}
	return out, nil
}

// generateForTargets generates the manifests of one build file. Its rules
// may map into several manifest dirs, each producing one manifest; a dir
// generated twice from the same build file is an error.
func (g *Generator) generateForTargets(tp repo.TargetsPath, manifests []*buck.Manifest) (*Output, error) {
	// Manifests of manual projects are authored by hand, never generated.
	if conf := g.owners[tp]; conf != nil && conf.ManualCargoToml {
		return &Output{}, nil
	}
	out, err := g.generateDirs(tp, manifests)
	if err != nil {
		return nil, fmt.Errorf("while generating cargo files for build file at %s: %w", tp, err)
	}
	return out, nil
}

func (g *Generator) generateDirs(tp repo.TargetsPath, manifests []*buck.Manifest) (*Output, error) {
	byDir := make(map[repo.Path][]*buck.Manifest)
	for _, m := range manifests {
		dir, err := tp.Dir().Join(m.Raw.Cargo.CargoTomlDir)
		if err != nil {
			return nil, fmt.Errorf("while resolving manifest dir of %s: %w", m.Rule, err)
		}
		byDir[dir] = append(byDir[dir], m)
	}
	dirs := make([]repo.Path, 0, len(byDir))
	for dir := range byDir {
		dirs = append(dirs, dir)
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i] < dirs[j] })

	out := &Output{
		Manifests: make(map[repo.ManifestPath]*Result),
		Extras:    make(map[repo.Path]string),
	}
	manifestDir := make(map[repo.ManifestPath]repo.Path)
	extraDir := make(map[repo.Path]repo.Path)
	for _, dir := range dirs {
		part, err := g.generateForDir(tp, dir, byDir[dir])
		if err != nil {
			return nil, err
		}
		for mp, res := range part.Manifests {
			if other, ok := manifestDir[mp]; ok {
				return nil, fmt.Errorf("path %s has been generated by both manifests generating cargo in dirs %s and %s", mp, dir, other)
			}
			manifestDir[mp] = dir
			out.Manifests[mp] = res
		}
		for p, content := range part.Extras {
			if other, ok := extraDir[p]; ok {
				return nil, fmt.Errorf("path %s has been generated by both manifests generating cargo in dirs %s and %s", p, dir, other)
			}
			extraDir[p] = dir
			out.Extras[p] = content
		}
	}
	return out, nil
}

// generateForDir generates the manifest of the rules mapping into one
// manifest dir: the internal manifest, the published twin when the
// project has a public cargo dir, and the unit's companion sources.
func (g *Generator) generateForDir(tp repo.TargetsPath, dir repo.Path, manifests []*buck.Manifest) (*Output, error) {
	// Ignored rules are dropped during processing; filter again in case a
	// caller hands them in directly.
	var members []*buck.Manifest
	for _, m := range manifests {
		if !m.Raw.Cargo.IgnoreRule {
			members = append(members, m)
		}
	}
	if len(members) == 0 {
		return &Output{}, nil
	}

	conf := g.owners[tp]
	if conf == nil {
		return nil, fmt.Errorf("logic error: failed to find %s in list of all targets covered by projects", tp)
	}

	u, err := newUnit(tp, dir, members)
	if err != nil {
		return nil, fmt.Errorf("while preparing generation unit for targets %s and cargo in dir %s: %w", tp, dir, err)
	}

	manifest, err := g.buildManifest(u, conf, nil)
	if err != nil {
		return nil, err
	}
	out := &Output{
		Manifests: map[repo.ManifestPath]*Result{
			repo.ManifestPathForDir(dir): {Manifest: manifest, Identifier: u.Identifier()},
		},
	}

	if oss := conf.OSSGit; oss != nil && oss.PublicCargoDir != "" {
		mp, ossManifest, err := g.buildOSSManifest(u, conf, oss)
		if err != nil {
			return nil, err
		}
		out.Manifests[mp] = &Result{Manifest: ossManifest, Identifier: u.Identifier()}
	}

	if out.Extras, err = u.extraFiles(); err != nil {
		return nil, err
	}
	return out, nil
}

// buildOSSManifest generates the published twin of a unit's manifest,
// relocated under the project's public cargo dir. The public layout
// mirrors the internal one relative to the public dir's parent.
func (g *Generator) buildOSSManifest(u *Unit, conf *project.Config, oss *project.OSSGitConfig) (repo.ManifestPath, *cargo.Manifest, error) {
	mp, m, err := g.buildOSSManifestImpl(u, conf, oss)
	if err != nil {
		return repo.ManifestPath{}, nil, fmt.Errorf("while generating oss manifest for project %s: %w", conf.Name, err)
	}
	return mp, m, nil
}

func (g *Generator) buildOSSManifestImpl(u *Unit, conf *project.Config, oss *project.OSSGitConfig) (repo.ManifestPath, *cargo.Manifest, error) {
	m, err := g.buildManifest(u, conf, oss)
	if err != nil {
		return repo.ManifestPath{}, nil, err
	}
	parent := oss.PublicCargoDir.Dir()
	if !u.Dir.Under(parent) {
		return repo.ManifestPath{}, nil, fmt.Errorf(
			"failed to strip prefix %s from %s, make sure project's generated Cargo.toml files are all inside of public_cargo_dir parent directory",
			parent, repo.ManifestPathForDir(u.Dir))
	}
	rel := strings.TrimPrefix(strings.TrimPrefix(string(u.Dir), string(parent)), "/")
	dir, err := oss.PublicCargoDir.Join(rel)
	if err != nil {
		return repo.ManifestPath{}, nil, err
	}
	return repo.ManifestPathForDir(dir), m, nil
}

// generateWorkspaces adds a workspace section for each selected project
// configuring one. The workspace manifest folds into the generated
// manifest of its save dir when there is one, else it becomes a fresh
// virtual manifest.
func (g *Generator) generateWorkspaces(sel project.Selection, manifests map[repo.ManifestPath]*Result) error {
	for _, conf := range sel.Projects() {
		if conf.Workspace == nil {
			continue
		}
		if err := g.generateWorkspace(conf.Workspace, manifests); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) generateWorkspace(wc *project.WorkspaceConfig, manifests map[repo.ManifestPath]*Result) error {
	scraped := make([]repo.ManifestPath, 0, len(manifests))
	for mp := range manifests {
		if mp.Dir().Under(wc.ScrapeDir) {
			scraped = append(scraped, mp)
		}
	}
	sort.Slice(scraped, func(i, j int) bool { return scraped[i].String() < scraped[j].String() })

	seen := make(map[string]bool, len(scraped))
	members := make([]string, 0, len(scraped))
	for _, mp := range scraped {
		// Cargo rejects workspaces with colliding package names.
		if name := manifests[mp].Manifest.Package.Name; name != "" {
			if seen[name] {
				return fmt.Errorf("cannot generate workspace including %s: duplicate package name: %s", wc.ScrapeDir, name)
			}
			seen[name] = true
		}
		member := strings.TrimPrefix(strings.TrimPrefix(string(mp.Dir()), string(wc.ScrapeDir)), "/")
		if wc.PrefixForDir != "" {
			member = path.Join(wc.PrefixForDir, member)
		}
		if member == "" {
			member = "."
		}
		members = append(members, member)
	}

	patch, err := g.registry.GeneratePatch(wc.PatchGeneration, wc.Patch)
	if err != nil {
		return fmt.Errorf("while generating patch for workspace: %w", err)
	}

	saveDir := wc.SaveToDir
	if saveDir == "" {
		saveDir = wc.ScrapeDir
	}
	target := repo.ManifestPathForDir(saveDir)
	res := manifests[target]
	if res == nil {
		res = &Result{Manifest: &cargo.Manifest{}}
		manifests[target] = res
	}
	res.Manifest.Workspace = &cargo.Workspace{Members: members, Resolver: "2"}
	res.Manifest.Patch = patch
	return nil
}
