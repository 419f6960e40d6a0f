package project

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/buckcargo/pkg/repo"
)

// Files lists the repository files one project covers: the manifests to
// regenerate, the build files to process, and companion sources left by
// previous runs.
type Files struct {
	Project    *Config
	Manifests  []repo.ManifestPath
	BuildFiles []repo.TargetsPath
	Generated  []repo.Path
}

// searchNames are the base names discovery looks for.
var searchNames = func() map[string]bool {
	names := map[string]bool{repo.ManifestFileName: true}
	for _, n := range repo.BuildFileNames() {
		names[n] = true
	}
	for _, n := range repo.GeneratedFileNames() {
		names[n] = true
	}
	return names
}()

// Discover searches the repository for the files each selected project
// covers. Projects run concurrently; results keep the selection's name
// order.
func Discover(ctx context.Context, root repo.Root, sel Selection) ([]*Files, error) {
	projects := sel.Projects()
	out := make([]*Files, len(projects))
	g, ctx := errgroup.WithContext(ctx)
	for i, conf := range projects {
		g.Go(func() error {
			files, err := discoverProject(ctx, root, conf)
			if err != nil {
				return fmt.Errorf("while glob-searching files for project %s: %w", conf.Name, err)
			}
			out[i] = files
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func discoverProject(ctx context.Context, root repo.Root, conf *Config) (*Files, error) {
	files := &Files{Project: conf}
	seen := make(map[repo.Path]bool)
	for _, pat := range conf.searchPatterns() {
		err := walkPattern(ctx, root, pat, func(file repo.Path) error {
			if seen[file] {
				return nil
			}
			for _, excl := range conf.exclude {
				if excl.match(file) {
					return nil
				}
			}
			seen[file] = true
			switch base := file.Base(); {
			case base == repo.ManifestFileName:
				m, err := repo.NewManifestPath(file)
				if err != nil {
					return err
				}
				files.Manifests = append(files.Manifests, m)
			case repo.IsBuildFileName(base):
				tp, err := repo.NewTargetsPath(file)
				if err != nil {
					return err
				}
				files.BuildFiles = append(files.BuildFiles, tp)
			default:
				files.Generated = append(files.Generated, file)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(files.Manifests, func(i, j int) bool { return files.Manifests[i].Dir() < files.Manifests[j].Dir() })
	sort.Slice(files.BuildFiles, func(i, j int) bool { return files.BuildFiles[i].Dir() < files.BuildFiles[j].Dir() })
	sort.Slice(files.Generated, func(i, j int) bool { return files.Generated[i] < files.Generated[j] })
	return files, nil
}

// walkPattern visits every file under the pattern's literal prefix whose
// base name discovery cares about and whose directory the pattern matches.
// A missing prefix directory is not an error; the pattern just finds
// nothing.
func walkPattern(ctx context.Context, root repo.Root, pat pattern, visit func(file repo.Path) error) error {
	start := root.Abs(pat.literalPrefix())
	if _, err := os.Stat(start); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return ctx.Err()
		}
		if !searchNames[d.Name()] {
			return nil
		}
		rel, err := root.Rel(p)
		if err != nil {
			return err
		}
		// Matching the file's directory against the pattern is the same
		// as matching the file against pattern/<name>: the trailing
		// literal element consumes exactly the base name.
		if !pat.match(rel.Dir()) {
			return nil
		}
		return visit(rel)
	})
}

// CheckUniqueness verifies that no file is covered by two projects, which
// would make generation order-dependent.
func CheckUniqueness(files []*Files) error {
	manifests := make(map[repo.ManifestPath]string)
	builds := make(map[repo.TargetsPath]string)
	generated := make(map[repo.Path]string)
	for _, f := range files {
		name := f.Project.Name
		for _, m := range f.Manifests {
			if prev, dup := manifests[m]; dup {
				return fmt.Errorf("file %s is covered by both %s and %s projects", m, prev, name)
			}
			manifests[m] = name
		}
		for _, tp := range f.BuildFiles {
			if prev, dup := builds[tp]; dup {
				return fmt.Errorf("file %s is covered by both %s and %s projects", tp.BuildFile(), prev, name)
			}
			builds[tp] = name
		}
		for _, g := range f.Generated {
			if prev, dup := generated[g]; dup {
				return fmt.Errorf("file %s is covered by both %s and %s projects", g, prev, name)
			}
			generated[g] = name
		}
	}
	return nil
}

// Projectless returns the input paths that name files buckcargo manages but
// that no discovered project covers. Inputs naming other files are ignored.
func Projectless(inputs []repo.Path, files []*Files) []repo.Path {
	manifests := make(map[repo.ManifestPath]bool)
	builds := make(map[repo.TargetsPath]bool)
	generated := make(map[repo.Path]bool)
	for _, f := range files {
		for _, m := range f.Manifests {
			manifests[m] = true
		}
		for _, tp := range f.BuildFiles {
			builds[tp] = true
		}
		for _, g := range f.Generated {
			generated[g] = true
		}
	}

	var out []repo.Path
	for _, in := range inputs {
		covered := true
		switch base := in.Base(); {
		case base == repo.ManifestFileName:
			m, err := repo.NewManifestPath(in)
			covered = err == nil && manifests[m]
		case repo.IsBuildFileName(base):
			tp, err := repo.NewTargetsPath(in)
			covered = err == nil && builds[tp]
		case searchNames[base]:
			covered = generated[in]
		}
		if !covered {
			out = append(out, in)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
