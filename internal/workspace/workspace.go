// Package workspace holds the Package data model (spec §3): one entry per
// workspace package, keyed by its declared name.
package workspace

import "github.com/turbine-build/turbine/internal/turbopath"

// Package is one workspace package: its declared scripts, its in-workspace
// dependency names (used for WorkspaceGraph edges), and the externally
// supplied dependency hash that feeds the task hash (spec §4.F.3).
type Package struct {
	// Name is the package's declared name, unique within the workspace.
	Name string
	// Dir is the repo-relative directory this package lives in.
	Dir turbopath.AnchoredSystemPath
	// Scripts is the set of declared script names (package.json "scripts").
	Scripts map[string]string
	// InternalDeps are the names of in-workspace packages this package
	// depends on; only these participate in WorkspaceGraph edges.
	InternalDeps []string
	// ExternalDepsHash is supplied by the Lockfile collaborator (spec §1,
	// "out of scope"): a fingerprint of this package's non-workspace
	// dependency versions as resolved by the package manager's lockfile.
	ExternalDepsHash string
	// Engines mirrors package.json's "engines" field, e.g. {"turbine":
	// ">=1.0.0"}. Only the root package's entry is consulted today.
	Engines map[string]string
}

// HasScript reports whether this package declares a script named task.
func (p *Package) HasScript(task string) bool {
	_, ok := p.Scripts[task]
	return ok
}

// Catalog is every known Package, keyed by name, plus the root pseudo-package
// name used to address root-level tasks.
type Catalog struct {
	Packages map[string]*Package
}

// RootPackageName addresses tasks declared at the monorepo root rather than
// inside any particular workspace package (`//#task` in `pkg#task` syntax).
const RootPackageName = "//"

// NewCatalog returns an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{Packages: map[string]*Package{}}
}
