package executor

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/turbine-build/turbine/internal/cache"
	"github.com/turbine-build/turbine/internal/config"
	"github.com/turbine-build/turbine/internal/graph"
	"github.com/turbine-build/turbine/internal/pipeline"
	"github.com/turbine-build/turbine/internal/turbopath"
	"github.com/turbine-build/turbine/internal/util"
	"github.com/turbine-build/turbine/internal/workspace"
)

func newTestCatalog(repoRoot string) *workspace.Catalog {
	cat := workspace.NewCatalog()
	cat.Packages["app"] = &workspace.Package{
		Name: "app",
		Dir:  turbopath.AnchoredSystemPath("packages/app"),
		Scripts: map[string]string{
			"build": "echo built > out.txt",
		},
	}
	cat.Packages["lib"] = &workspace.Package{
		Name: "lib",
		Dir:  turbopath.AnchoredSystemPath("packages/lib"),
		Scripts: map[string]string{
			"build": "exit 1",
		},
	}
	for _, pkg := range cat.Packages {
		_ = os.MkdirAll(filepath.Join(repoRoot, pkg.Dir.ToString()), 0o755)
	}
	return cat
}

func newDefinition() *config.TaskDefinition {
	return &config.TaskDefinition{
		Outputs:    []string{"out.txt"},
		Cache:      true,
		OutputMode: util.FullTaskOutput,
	}
}

func TestExecuteRunsAndCachesASuccessfulTask(t *testing.T) {
	repoRoot := t.TempDir()
	cat := newTestCatalog(repoRoot)

	tg := &pipeline.TaskGraph{Graph: graph.New(), Instances: map[string]*pipeline.TaskInstance{}}
	tg.Instances["app#build"] = &pipeline.TaskInstance{ID: "app#build", Package: "app", Task: "build", Definition: newDefinition()}
	tg.Graph.AddVertex("app#build")

	c := cache.New(cache.Opts{
		RepoRoot: turbopath.AbsoluteSystemPath(repoRoot),
		CacheDir: turbopath.AbsoluteSystemPath(filepath.Join(repoRoot, ".cache")),
	})

	var stdout bytes.Buffer
	run := New(Opts{
		RepoRoot: turbopath.AbsoluteSystemPath(repoRoot),
		Catalog:  cat,
		Graph:    tg,
		Cache:    c,
		Hash:     func(inst *pipeline.TaskInstance) (string, error) { return "hash-" + inst.ID, nil },
		Stdout:   &stdout,
	})

	results, err := run.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(results) != 1 || results[0].Status != "built" {
		t.Fatalf("unexpected results: %+v", results)
	}

	ex := c.Exists(context.Background(), "hash-app#build")
	if !ex.Local {
		t.Fatal("expected the task's output to have been cached locally")
	}
}

func TestExecutePrintsCacheHitOnReplay(t *testing.T) {
	repoRoot := t.TempDir()
	cat := newTestCatalog(repoRoot)

	newRun := func() (*Run, *pipeline.TaskGraph, *bytes.Buffer) {
		tg := &pipeline.TaskGraph{Graph: graph.New(), Instances: map[string]*pipeline.TaskInstance{}}
		tg.Instances["app#build"] = &pipeline.TaskInstance{ID: "app#build", Package: "app", Task: "build", Definition: newDefinition()}
		tg.Graph.AddVertex("app#build")

		c := cache.New(cache.Opts{
			RepoRoot: turbopath.AbsoluteSystemPath(repoRoot),
			CacheDir: turbopath.AbsoluteSystemPath(filepath.Join(repoRoot, ".cache")),
		})

		var stdout bytes.Buffer
		run := New(Opts{
			RepoRoot: turbopath.AbsoluteSystemPath(repoRoot),
			Catalog:  cat,
			Graph:    tg,
			Cache:    c,
			Hash:     func(inst *pipeline.TaskInstance) (string, error) { return "samehash", nil },
			Stdout:   &stdout,
		})
		return run, tg, &stdout
	}

	firstRun, _, firstOut := newRun()
	if _, err := firstRun.Execute(context.Background()); err != nil {
		t.Fatalf("first Execute() error = %v", err)
	}
	if !strings.Contains(firstOut.String(), "cache miss, executing") {
		t.Fatalf("expected a cache-miss line on the first run, got %q", firstOut.String())
	}

	secondRun, _, secondOut := newRun()
	results, err := secondRun.Execute(context.Background())
	if err != nil {
		t.Fatalf("second Execute() error = %v", err)
	}
	if len(results) != 1 || results[0].Status != "cached" {
		t.Fatalf("expected a cache hit on the second run, got %+v", results)
	}
	if !strings.Contains(secondOut.String(), "cache hit, replaying output samehash") {
		t.Fatalf("expected the literal cache-hit line, got %q", secondOut.String())
	}
}

func TestExecuteSkipsDependentsOfAFailedTaskWithContinue(t *testing.T) {
	repoRoot := t.TempDir()
	cat := newTestCatalog(repoRoot)

	tg := &pipeline.TaskGraph{Graph: graph.New(), Instances: map[string]*pipeline.TaskInstance{}}
	tg.Instances["lib#build"] = &pipeline.TaskInstance{ID: "lib#build", Package: "lib", Task: "build", Definition: newDefinition()}
	tg.Instances["app#build"] = &pipeline.TaskInstance{ID: "app#build", Package: "app", Task: "build", Definition: newDefinition()}
	tg.Graph.AddEdge("lib#build", "app#build")

	c := cache.New(cache.Opts{
		RepoRoot: turbopath.AbsoluteSystemPath(repoRoot),
		CacheDir: turbopath.AbsoluteSystemPath(filepath.Join(repoRoot, ".cache")),
	})

	var stdout bytes.Buffer
	run := New(Opts{
		RepoRoot: turbopath.AbsoluteSystemPath(repoRoot),
		Catalog:  cat,
		Graph:    tg,
		Cache:    c,
		Hash:     func(inst *pipeline.TaskInstance) (string, error) { return "hash-" + inst.ID, nil },
		Continue: true,
		Stdout:   &stdout,
	})

	results, _ := run.Execute(context.Background())
	statuses := map[string]string{}
	for _, r := range results {
		statuses[r.Instance.ID] = r.Status
	}
	if statuses["lib#build"] != "failed" {
		t.Fatalf("expected lib#build to fail, got %q", statuses["lib#build"])
	}
	if statuses["app#build"] != "skipped" {
		t.Fatalf("expected app#build to be skipped, got %q", statuses["app#build"])
	}
}
