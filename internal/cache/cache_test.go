package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/turbine-build/turbine/internal/turbopath"
)

func TestPutThenFetchRoundTripsLocally(t *testing.T) {
	repoRoot := t.TempDir()
	cacheDir := filepath.Join(repoRoot, ".cache")

	outputRel := turbopath.AnchoredSystemPath("packages/app/dist/index.js")
	outputAbs := outputRel.RestoreAnchor(turbopath.AbsoluteSystemPath(repoRoot))
	if err := os.MkdirAll(filepath.Dir(outputAbs.ToString()), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(outputAbs.ToString(), []byte("console.log(1)"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := New(Opts{
		RepoRoot: turbopath.AbsoluteSystemPath(repoRoot),
		CacheDir: turbopath.AbsoluteSystemPath(cacheDir),
	})

	const hash = "deadbeef"
	if err := c.Put(context.Background(), hash, "app#build", 100, []turbopath.AnchoredSystemPath{outputRel}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	// Remove the original so Fetch has to restore it from the archive.
	if err := os.Remove(outputAbs.ToString()); err != nil {
		t.Fatal(err)
	}

	status, err := c.Fetch(context.Background(), hash)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !status.Hit || status.Source != SourceLocal {
		t.Fatalf("expected local hit, got %+v", status)
	}

	got, err := os.ReadFile(outputAbs.ToString())
	if err != nil {
		t.Fatalf("expected restored file, read error: %v", err)
	}
	if string(got) != "console.log(1)" {
		t.Fatalf("restored content = %q, want %q", got, "console.log(1)")
	}
}

func TestFetchMissReturnsNoHit(t *testing.T) {
	repoRoot := t.TempDir()
	c := New(Opts{
		RepoRoot: turbopath.AbsoluteSystemPath(repoRoot),
		CacheDir: turbopath.AbsoluteSystemPath(filepath.Join(repoRoot, ".cache")),
	})

	status, err := c.Fetch(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if status.Hit {
		t.Fatal("expected a miss for an unknown hash")
	}
}

func TestExistsReflectsLocalLayer(t *testing.T) {
	repoRoot := t.TempDir()
	c := New(Opts{
		RepoRoot: turbopath.AbsoluteSystemPath(repoRoot),
		CacheDir: turbopath.AbsoluteSystemPath(filepath.Join(repoRoot, ".cache")),
	})

	if ex := c.Exists(context.Background(), "abc"); ex.Local {
		t.Fatal("expected no local entry before Put")
	}
	if err := c.Put(context.Background(), "abc", "app#build", 1, nil); err != nil {
		t.Fatal(err)
	}
	if ex := c.Exists(context.Background(), "abc"); !ex.Local {
		t.Fatal("expected local entry after Put")
	}
}
