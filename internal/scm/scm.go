// Package scm defines the SCM capability the engine consumes (spec §1):
// branch/SHA/changed-file probing is an external collaborator's job. The
// engine only needs a list of "tracked" files under a directory, which is
// what the default implementation here provides without shelling out to
// git — it just respects .gitignore, which is enough to approximate "all
// tracked files" for the `$TURBO_DEFAULT$` input expansion (spec §4.F.2).
package scm

import (
	"os"
	"path/filepath"

	ignore "github.com/sabhiram/go-gitignore"
)

// SCM is the capability the hasher consumes for "all files in this
// directory that the developer would consider part of the project",
// independent of whatever globs a task declares.
type SCM interface {
	// TrackedFiles returns every forward-slash path under dir, relative to
	// dir, that is not excluded by ignore rules.
	TrackedFiles(dir string) ([]string, error)
}

// GitignoreSCM is the default, git-free SCM implementation: it walks the
// filesystem and excludes anything matched by a .gitignore it finds at the
// repo root (if any), plus the universal `.git` directory.
type GitignoreSCM struct {
	RepoRoot string
}

// TrackedFiles implements SCM.
func (g *GitignoreSCM) TrackedFiles(dir string) ([]string, error) {
	var matcher *ignore.GitIgnore
	if m, err := ignore.CompileIgnoreFile(filepath.Join(g.RepoRoot, ".gitignore")); err == nil {
		matcher = m
	}

	var out []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(g.RepoRoot, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if matcher != nil && matcher.MatchesPath(rel) {
			return nil
		}
		dirRel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}
		out = append(out, filepath.ToSlash(dirRel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
