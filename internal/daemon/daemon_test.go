package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/turbine-build/turbine/internal/turbopath"
)

func startTestServer(t *testing.T, repoRoot string) (turbopath.AbsoluteSystemPath, func()) {
	t.Helper()
	root := turbopath.AbsoluteSystemPath(repoRoot)
	srv := New(root, "test", time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(SocketPath(root).ToString()); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	return root, func() {
		cancel()
		<-done
	}
}

func TestServerRespondsToHelloAndStatus(t *testing.T) {
	repoRoot := t.TempDir()
	root, stop := startTestServer(t, repoRoot)
	defer stop()

	client, err := Dial(root, time.Second)
	assert.NilError(t, err, "Dial")
	defer func() { _ = client.Close() }()

	assert.NilError(t, client.Hello("test"), "Hello")

	status, err := client.Status()
	assert.NilError(t, err, "Status")
	assert.Assert(t, status.WatchedDirs >= 1, "expected at least the repo root to be watched, got %d", status.WatchedDirs)
}

func TestGetChangedOutputsUnknownHashReportsEveryGlob(t *testing.T) {
	repoRoot := t.TempDir()
	root, stop := startTestServer(t, repoRoot)
	defer stop()

	client, err := Dial(root, time.Second)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer func() { _ = client.Close() }()

	changed, err := client.GetChangedOutputs("unknown-hash", "packages/app", []string{"dist/**"})
	if err != nil {
		t.Fatalf("GetChangedOutputs() error = %v", err)
	}
	if len(changed) != 1 || changed[0] != "dist/**" {
		t.Fatalf("expected every glob for an unknown hash, got %v", changed)
	}
}

func TestGetChangedOutputsNoChangeReportsEmpty(t *testing.T) {
	repoRoot := t.TempDir()
	if err := os.MkdirAll(filepath.Join(repoRoot, "packages/app/dist"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(repoRoot, "packages/app/dist/out.txt"), []byte("built"), 0o644); err != nil {
		t.Fatal(err)
	}
	root, stop := startTestServer(t, repoRoot)
	defer stop()

	client, err := Dial(root, time.Second)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer func() { _ = client.Close() }()

	if err := client.NotifyOutputsWritten("hash1", "packages/app", []string{"dist/**"}); err != nil {
		t.Fatalf("NotifyOutputsWritten() error = %v", err)
	}

	changed, err := client.GetChangedOutputs("hash1", "packages/app", []string{"dist/**"})
	if err != nil {
		t.Fatalf("GetChangedOutputs() error = %v", err)
	}
	if len(changed) != 0 {
		t.Fatalf("expected no changed globs, got %v", changed)
	}
}

func TestGetChangedOutputsReflectsWatchedWrites(t *testing.T) {
	repoRoot := t.TempDir()
	if err := os.MkdirAll(filepath.Join(repoRoot, "packages/app/dist"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(repoRoot, "packages/app/dist/out.txt"), []byte("built"), 0o644); err != nil {
		t.Fatal(err)
	}
	root, stop := startTestServer(t, repoRoot)
	defer stop()

	client, err := Dial(root, time.Second)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer func() { _ = client.Close() }()

	if err := client.NotifyOutputsWritten("hash1", "packages/app", []string{"dist/**"}); err != nil {
		t.Fatalf("NotifyOutputsWritten() error = %v", err)
	}

	if err := os.WriteFile(filepath.Join(repoRoot, "packages/app/dist/out.txt"), []byte("rebuilt"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	var changed []string
	for time.Now().Before(deadline) {
		changed, err = client.GetChangedOutputs("hash1", "packages/app", []string{"dist/**"})
		if err != nil {
			t.Fatalf("GetChangedOutputs() error = %v", err)
		}
		if len(changed) > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if len(changed) == 0 {
		t.Fatal("expected the rewritten file to show up as changed")
	}
}

func TestServeFailsWhenAlreadyLocked(t *testing.T) {
	repoRoot := t.TempDir()
	root, stop := startTestServer(t, repoRoot)
	defer stop()

	second := New(root, "test", time.Hour)
	err := second.Serve(context.Background())
	assert.Equal(t, err, ErrAlreadyRunning)
}
