package generate

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/buckcargo/pkg/cargo"
	"github.com/matzehuels/buckcargo/pkg/procutil"
	"github.com/matzehuels/buckcargo/pkg/project"
	"github.com/matzehuels/buckcargo/pkg/repo"
)

// WriteStats summarizes one reconciliation of generated output against the
// working tree.
type WriteStats struct {
	// Written lists files that were created or rewritten. In check mode it
	// lists the files a real run would have touched.
	Written []repo.Path
	// Deleted lists stale generated files that were removed, or would be in
	// check mode.
	Deleted []repo.Path
	// Unchanged counts files already holding the generated content.
	Unchanged int
}

// Dirty reports whether the working tree differed from the generated output.
func (s *WriteStats) Dirty() bool {
	return len(s.Written)+len(s.Deleted) > 0
}

// Write reconciles out with the working tree under root. Files already
// holding the generated content are left untouched, everything else is
// written atomically. Files that discovery found but generation no longer
// produces are leftovers of earlier runs and get deleted, though only when
// they carry the generated preamble: a hand-written Cargo.toml has no
// preamble and is never removed. With check set nothing on disk is touched
// and the stats report what a real run would have done.
func Write(root repo.Root, out *Output, files []*project.Files, check bool, logger *log.Logger) (*WriteStats, error) {
	if logger == nil {
		logger = log.Default()
	}

	desired := make(map[repo.Path][]byte, len(out.Manifests)+len(out.Extras))
	for mp, res := range out.Manifests {
		desired[mp.File()] = cargo.Encode(res.Manifest, res.Identifier)
	}
	for p, content := range out.Extras {
		desired[p] = []byte(content)
	}

	stats := &WriteStats{}
	for _, p := range slices.Sorted(maps.Keys(desired)) {
		content := desired[p]
		old, err := os.ReadFile(root.Abs(p))
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("while reading %s: %w", p, err)
		}
		if err == nil && bytes.Equal(old, content) {
			stats.Unchanged++
			continue
		}
		if !check {
			logger.Debugf("Writing %s", p)
			if err := writeAtomic(root.Abs(p), content); err != nil {
				return nil, fmt.Errorf("while writing %s: %w", p, err)
			}
		}
		stats.Written = append(stats.Written, p)
	}

	stale, err := staleFiles(root, desired, files)
	if err != nil {
		return nil, err
	}
	for _, p := range stale {
		if !check {
			logger.Debugf("Deleting %s", p)
			if err := os.Remove(root.Abs(p)); err != nil && !os.IsNotExist(err) {
				return nil, fmt.Errorf("while deleting %s: %w", p, err)
			}
		}
		stats.Deleted = append(stats.Deleted, p)
	}
	return stats, nil
}

// staleFiles returns the discovered manifests and companion sources that
// desired does not cover, keeping only files marked as generated.
func staleFiles(root repo.Root, desired map[repo.Path][]byte, files []*project.Files) ([]repo.Path, error) {
	var stale []repo.Path
	seen := make(map[repo.Path]bool)
	for _, f := range files {
		candidates := make([]repo.Path, 0, len(f.Manifests)+len(f.Generated))
		for _, mp := range f.Manifests {
			candidates = append(candidates, mp.File())
		}
		candidates = append(candidates, f.Generated...)

		for _, p := range candidates {
			if _, ok := desired[p]; ok || seen[p] {
				continue
			}
			seen[p] = true
			content, err := os.ReadFile(root.Abs(p))
			if os.IsNotExist(err) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("while reading %s: %w", p, err)
			}
			if cargo.IsGenerated(content) {
				stale = append(stale, p)
			}
		}
	}
	slices.Sort(stale)
	return stale, nil
}

// writeAtomic writes content to a uniquely named sibling and renames it into
// place, so a crashed run never leaves a half-written manifest behind.
func writeAtomic(abs string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return err
	}
	tmp := abs + ".tmp-" + uuid.NewString()
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, abs); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// lockWarnAfter is how long a lockfile regeneration may run before progress
// warnings start.
const lockWarnAfter = 10 * time.Second

// RegenerateLocks refreshes Cargo.lock in every lock dir the selected
// projects configure. Runs are serial because cargo holds a lock on the
// package cache.
func RegenerateLocks(ctx context.Context, root repo.Root, sel project.Selection, runner procutil.Runner, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}
	if runner == nil {
		runner = procutil.ExecRunner{}
	}
	for _, conf := range sel.Projects() {
		for _, dir := range conf.CargoLocks {
			logger.Infof("Running 'cargo generate-lockfile' for '%s'", dir)
			cmd := procutil.Cmd{
				Name: fmt.Sprintf("cargo generate-lockfile for '%s'", dir),
				Path: "cargo",
				Args: []string{"generate-lockfile", "--offline"},
				Dir:  root.Abs(dir),
			}
			if _, _, err := procutil.RunLogged(ctx, logger, runner, cmd, lockWarnAfter); err != nil {
				return err
			}
		}
	}
	return nil
}
