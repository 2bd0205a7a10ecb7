package taskhash

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/turbine-build/turbine/internal/config"
	"github.com/turbine-build/turbine/internal/env"
	"github.com/turbine-build/turbine/internal/graph"
	"github.com/turbine-build/turbine/internal/pipeline"
	"github.com/turbine-build/turbine/internal/scm"
	"github.com/turbine-build/turbine/internal/turbopath"
	"github.com/turbine-build/turbine/internal/util"
	"github.com/turbine-build/turbine/internal/workspace"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestHashIsStableAndDependsOnUpstream(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "packages/lib/src/index.js"), "module.exports = 1;\n")
	writeFile(t, filepath.Join(root, "packages/app/src/index.js"), "require('lib');\n")

	cat := workspace.NewCatalog()
	cat.Packages["lib"] = &workspace.Package{Name: "lib", Dir: turbopath.AnchoredSystemPath("packages/lib")}
	cat.Packages["app"] = &workspace.Package{Name: "app", Dir: turbopath.AnchoredSystemPath("packages/app")}

	tg := &pipeline.TaskGraph{Graph: graph.New(), Instances: map[string]*pipeline.TaskInstance{}}
	libDef := &config.TaskDefinition{Cache: true, OutputMode: util.FullTaskOutput}
	appDef := &config.TaskDefinition{Cache: true, OutputMode: util.FullTaskOutput}
	tg.Instances["lib#build"] = &pipeline.TaskInstance{ID: "lib#build", Package: "lib", Task: "build", Definition: libDef}
	tg.Instances["app#build"] = &pipeline.TaskInstance{ID: "app#build", Package: "app", Task: "build", Definition: appDef}
	tg.Graph.AddEdge("lib#build", "app#build")

	sourceControl := &scm.GitignoreSCM{RepoRoot: root}

	tracker := NewTracker(
		turbopath.AbsoluteSystemPath(root),
		cat,
		tg,
		sourceControl,
		"global-hash",
		env.Map{},
		util.LooseEnvMode,
		nil,
		false,
		nil,
	)

	libHash, err := tracker.Hash(tg.Instances["lib#build"])
	if err != nil {
		t.Fatalf("Hash(lib#build) error = %v", err)
	}
	again, err := tracker.Hash(tg.Instances["lib#build"])
	if err != nil {
		t.Fatalf("Hash(lib#build) second call error = %v", err)
	}
	if libHash != again {
		t.Fatalf("expected a cached, stable hash: %q != %q", libHash, again)
	}

	appHash, err := tracker.Hash(tg.Instances["app#build"])
	if err != nil {
		t.Fatalf("Hash(app#build) error = %v", err)
	}
	if appHash == libHash {
		t.Fatal("expected app#build's hash to differ from lib#build's")
	}

	// Changing lib's source must change app's hash, since app depends on it.
	writeFile(t, filepath.Join(root, "packages/lib/src/index.js"), "module.exports = 2;\n")
	tracker2 := NewTracker(turbopath.AbsoluteSystemPath(root), cat, tg, sourceControl, "global-hash", env.Map{}, util.LooseEnvMode, nil, false, nil)
	newLibHash, _ := tracker2.Hash(tg.Instances["lib#build"])
	newAppHash, _ := tracker2.Hash(tg.Instances["app#build"])
	if newLibHash == libHash {
		t.Fatal("expected lib#build's hash to change after its source changed")
	}
	if newAppHash == appHash {
		t.Fatal("expected app#build's hash to change when its upstream hash changed")
	}
}

func TestBuildGlobalHashReportsPassThroughSet(t *testing.T) {
	root := t.TempDir()
	rootCfg := &config.RootConfig{GlobalPassThroughEnv: []string{"CI"}}
	resolver := config.NewResolver(rootCfg, nil)

	hash, inferredStrict, err := BuildGlobalHash(GlobalHashOpts{
		RepoRoot:     turbopath.AbsoluteSystemPath(root),
		Root:         rootCfg,
		Resolver:     resolver,
		TurboVersion: "0.0.0-test",
		OSEnv:        env.Map{},
	})
	if err != nil {
		t.Fatalf("BuildGlobalHash() error = %v", err)
	}
	if hash == "" {
		t.Fatal("expected a non-empty hash")
	}
	if !inferredStrict {
		t.Fatal("expected globalPassThroughEnv to report strict-mode inference")
	}
}
