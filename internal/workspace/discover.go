package workspace

import (
	"encoding/json"

	"github.com/turbine-build/turbine/internal/globwalk"
	"github.com/turbine-build/turbine/internal/turbopath"
)

// manifest is the subset of package.json this engine reads (spec §2
// "Workspace discovery"): enough to find scripts, in-workspace
// dependencies, and nested workspace globs.
type manifest struct {
	Name            string            `json:"name"`
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
	Engines         map[string]string `json:"engines"`
	Workspaces      workspacesField   `json:"workspaces"`
}

// workspacesField accepts both the plain-array form (`["packages/*"]`) and
// the object form (`{"packages": ["packages/*"]}`) package managers use.
type workspacesField []string

func (w *workspacesField) UnmarshalJSON(data []byte) error {
	var alt struct {
		Packages []string `json:"packages"`
	}
	if err := json.Unmarshal(data, &alt); err == nil && alt.Packages != nil {
		*w = alt.Packages
		return nil
	}
	var plain []string
	if err := json.Unmarshal(data, &plain); err != nil {
		return err
	}
	*w = plain
	return nil
}

// Discover reads the root package.json, expands its workspaces globs, and
// loads every member package.json into a Catalog (spec §2 "Workspace
// discovery"). The root package itself is always present, keyed by
// RootPackageName.
func Discover(repoRoot turbopath.AbsoluteSystemPath) (*Catalog, error) {
	cat := NewCatalog()

	rootManifest, err := readManifest(repoRoot, "")
	if err != nil {
		return nil, err
	}
	cat.Packages[RootPackageName] = &Package{
		Name:    RootPackageName,
		Dir:     turbopath.AnchoredSystemPath(""),
		Scripts: rootManifest.Scripts,
		Engines: rootManifest.Engines,
	}

	manifests := map[string]*manifest{RootPackageName: rootManifest}

	// A single-package repo declares no workspaces glob; only the root
	// package exists and there is nothing further to discover.
	if len(rootManifest.Workspaces) == 0 {
		for name, pkg := range cat.Packages {
			pkg.InternalDeps = internalDepNames(cat, manifests[name])
		}
		return cat, nil
	}

	patterns := make([]string, 0, len(rootManifest.Workspaces)+1)
	for _, glob := range rootManifest.Workspaces {
		patterns = append(patterns, glob+"/package.json")
	}
	patterns = append(patterns, "!**/node_modules/**")

	manifestPaths, err := globwalk.Enumerate(repoRoot.ToString(), patterns)
	if err != nil {
		return nil, err
	}

	for _, rel := range manifestPaths {
		dir := turbopath.AnchoredUnixPath(dirname(rel)).ToSystemPath()
		m, err := readManifest(repoRoot, dir.ToString())
		if err != nil {
			return nil, err
		}
		if m.Name == "" {
			continue
		}
		cat.Packages[m.Name] = &Package{
			Name:    m.Name,
			Dir:     dir,
			Scripts: m.Scripts,
		}
		manifests[m.Name] = m
	}

	for name, pkg := range cat.Packages {
		pkg.InternalDeps = internalDepNames(cat, manifests[name])
	}
	return cat, nil
}

func internalDepNames(cat *Catalog, m *manifest) []string {
	var deps []string
	for dep := range m.Dependencies {
		if _, ok := cat.Packages[dep]; ok {
			deps = append(deps, dep)
		}
	}
	for dep := range m.DevDependencies {
		if _, ok := cat.Packages[dep]; ok {
			deps = append(deps, dep)
		}
	}
	return deps
}

func readManifest(repoRoot turbopath.AbsoluteSystemPath, dir string) (*manifest, error) {
	path := repoRoot.UntypedJoin(dir, "package.json")
	raw, err := path.ReadFile()
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func dirname(manifestRelPath string) string {
	for i := len(manifestRelPath) - 1; i >= 0; i-- {
		if manifestRelPath[i] == '/' {
			return manifestRelPath[:i]
		}
	}
	return ""
}
