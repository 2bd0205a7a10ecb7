package pipeline

import (
	"testing"

	"github.com/turbine-build/turbine/internal/config"
	"github.com/turbine-build/turbine/internal/turbopath"
	"github.com/turbine-build/turbine/internal/util"
	"github.com/turbine-build/turbine/internal/workspace"
)

func newCatalog() *workspace.Catalog {
	cat := workspace.NewCatalog()
	cat.Packages["app"] = &workspace.Package{
		Name:         "app",
		Dir:          turbopath.AnchoredSystemPath("apps/app"),
		Scripts:      map[string]string{"build": "tsc", "dev": "tsc --watch"},
		InternalDeps: []string{"ui"},
	}
	cat.Packages["ui"] = &workspace.Package{
		Name:         "ui",
		Dir:          turbopath.AnchoredSystemPath("packages/ui"),
		Scripts:      map[string]string{"build": "tsc"},
		InternalDeps: nil,
	}
	return cat
}

func newResolver(t *testing.T, tasks map[string]config.RawTaskDefinition) *config.Resolver {
	t.Helper()
	return config.NewResolver(&config.RootConfig{Tasks: tasks}, nil)
}

func TestBuildResolvesTopologicalDependency(t *testing.T) {
	cat := newCatalog()
	resolver := newResolver(t, map[string]config.RawTaskDefinition{
		"build": {DependsOn: []string{"^build"}},
	})
	b := NewBuilder(cat, resolver)

	tg, err := b.Build(BuildOptions{Packages: []string{"app", "ui"}, Tasks: []string{"build"}})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	appBuild := util.GetTaskID("app", "build")
	uiBuild := util.GetTaskID("ui", "build")

	downstream := tg.Graph.DownEdges(appBuild)
	found := false
	for _, d := range downstream {
		if d == uiBuild {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s to depend on %s, got downstream %v", appBuild, uiBuild, downstream)
	}
}

func TestBuildDetectsMissingTask(t *testing.T) {
	cat := newCatalog()
	resolver := newResolver(t, map[string]config.RawTaskDefinition{})
	b := NewBuilder(cat, resolver)

	_, err := b.Build(BuildOptions{Packages: []string{"app"}, Tasks: []string{"nonexistent"}})
	if err == nil {
		t.Fatal("expected error for undeclared task, got nil")
	}
}

func TestBuildRejectsTurboLoopInDryRun(t *testing.T) {
	cat := newCatalog()
	cat.Packages["app"].Scripts["build"] = "turbo run build"
	resolver := newResolver(t, map[string]config.RawTaskDefinition{
		"build": {},
	})
	b := NewBuilder(cat, resolver)

	_, err := b.Build(BuildOptions{Packages: []string{"app"}, Tasks: []string{"build"}, DryRun: true})
	if err == nil {
		t.Fatal("expected loop-guard error in dry run, got nil")
	}
}

func TestBuildWarnsTurboLoopOutsideDryRun(t *testing.T) {
	cat := newCatalog()
	cat.Packages["app"].Scripts["build"] = "turbo run build"
	resolver := newResolver(t, map[string]config.RawTaskDefinition{
		"build": {},
	})
	b := NewBuilder(cat, resolver)

	tg, err := b.Build(BuildOptions{Packages: []string{"app"}, Tasks: []string{"build"}})
	if err != nil {
		t.Fatalf("Build() error = %v, want nil outside dry run", err)
	}
	if _, ok := tg.Instances[util.GetTaskID("app", "build")]; !ok {
		t.Fatal("expected the looped task to still be built into the graph")
	}
}

func TestBuildRejectsPersistentDependency(t *testing.T) {
	cat := newCatalog()
	persistent := true
	resolver := newResolver(t, map[string]config.RawTaskDefinition{
		"dev":   {Persistent: &persistent},
		"build": {DependsOn: []string{"dev"}},
	})
	b := NewBuilder(cat, resolver)

	_, err := b.Build(BuildOptions{Packages: []string{"app"}, Tasks: []string{"build"}})
	if err == nil {
		t.Fatal("expected persistent-dependency validation error, got nil")
	}
}
