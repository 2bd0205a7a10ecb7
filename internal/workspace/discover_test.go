package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/turbine-build/turbine/internal/turbopath"
)

func writeJSON(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverFindsWorkspacePackagesAndInternalDeps(t *testing.T) {
	root := t.TempDir()
	writeJSON(t, filepath.Join(root, "package.json"), `{
		"name": "monorepo",
		"workspaces": ["packages/*"],
		"scripts": {"build": "turbo run build"}
	}`)
	writeJSON(t, filepath.Join(root, "packages/app/package.json"), `{
		"name": "app",
		"scripts": {"build": "next build"},
		"dependencies": {"ui": "workspace:*"}
	}`)
	writeJSON(t, filepath.Join(root, "packages/ui/package.json"), `{
		"name": "ui",
		"scripts": {"build": "tsc"}
	}`)

	cat, err := Discover(turbopath.AbsoluteSystemPath(root))
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	if _, ok := cat.Packages[RootPackageName]; !ok {
		t.Fatal("expected root package to be present")
	}
	app, ok := cat.Packages["app"]
	if !ok {
		t.Fatal("expected to discover package \"app\"")
	}
	if len(app.InternalDeps) != 1 || app.InternalDeps[0] != "ui" {
		t.Fatalf("expected app.InternalDeps = [ui], got %v", app.InternalDeps)
	}
	if _, ok := cat.Packages["ui"]; !ok {
		t.Fatal("expected to discover package \"ui\"")
	}
}

func TestDiscoverSinglePackageRepoHasOnlyRoot(t *testing.T) {
	root := t.TempDir()
	writeJSON(t, filepath.Join(root, "package.json"), `{"name": "solo", "scripts": {"build": "tsc"}}`)

	cat, err := Discover(turbopath.AbsoluteSystemPath(root))
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(cat.Packages) != 1 {
		t.Fatalf("expected only the root package, got %v", cat.Packages)
	}
}
