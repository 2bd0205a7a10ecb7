package lockfile

import (
	"os"
	"path/filepath"

	yarnlock "github.com/iseki0/go-yarnlock"
)

// YarnLockfile is a concrete Lockfile adapter backed by a parsed yarn.lock.
// It is the one package-manager adapter this repo wires concretely; the
// others named in spec §1 (npm, pnpm, bun) are external collaborators with
// no in-tree implementation, since lockfile parsing itself is out of scope.
type YarnLockfile struct {
	entries map[string]string // "name@range" -> resolved version
}

// LoadYarnLockfile parses the yarn.lock found at repoRoot.
func LoadYarnLockfile(repoRoot string) (*YarnLockfile, error) {
	f, err := os.Open(filepath.Join(repoRoot, "yarn.lock"))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	parsed, err := yarnlock.Parse(f)
	if err != nil {
		return nil, err
	}

	entries := make(map[string]string, len(parsed.Entries))
	for _, entry := range parsed.Entries {
		for _, spec := range entry.Specs {
			entries[spec] = entry.Version
		}
	}
	return &YarnLockfile{entries: entries}, nil
}

// ResolvedPackages implements Lockfile.
func (y *YarnLockfile) ResolvedPackages(_ string, dependencies map[string]string) ([]Package, error) {
	out := make([]Package, 0, len(dependencies))
	for name, rangeSpec := range dependencies {
		version, ok := y.entries[name+"@"+rangeSpec]
		if !ok {
			// Lockfile doesn't pin this one (e.g. it was added but `yarn
			// install` hasn't run); fall back to the declared range so the
			// hash still reflects what was asked for.
			version = rangeSpec
		}
		out = append(out, Package{Name: name, Version: version})
	}
	return out, nil
}
