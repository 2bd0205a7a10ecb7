// Package lockfile defines the Lockfile capability the engine consumes.
// Parsing any particular package manager's lockfile format is explicitly out
// of core scope (spec §1); the engine only needs two things from whichever
// collaborator is wired in: a way to resolve a package's external
// (non-workspace) dependencies, and a stable hash of those resolutions for
// the task hash (spec §4.F.3).
package lockfile

// Package is one resolved external dependency: its declared name and the
// concrete version the lockfile pinned it to.
type Package struct {
	Name    string
	Version string
}

// Lockfile is the capability the hasher consumes. Implementations parse one
// package manager's lockfile format; the engine never shells out to a
// package manager itself.
type Lockfile interface {
	// ResolvedPackages returns every external dependency resolution
	// reachable from the given package's declared (name, versionRange)
	// pairs.
	ResolvedPackages(workspacePath string, dependencies map[string]string) ([]Package, error)
}

// ExternalDependencyHash computes the TaskDefinition-independent hash
// contribution described in spec §3 ("Package... the external-dependency
// hash (supplied by the Lockfile collaborator)"). It is deterministic in
// the resolved packages' (name, version) pairs, independent of input order.
func ExternalDependencyHash(lf Lockfile, workspacePath string, dependencies map[string]string) (string, error) {
	resolved, err := lf.ResolvedPackages(workspacePath, dependencies)
	if err != nil {
		return "", err
	}
	pairs := make(map[string]string, len(resolved))
	for _, pkg := range resolved {
		pairs[pkg.Name] = pkg.Version
	}
	return hashPairs(pairs), nil
}
