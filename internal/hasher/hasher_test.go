package hasher

import (
	"testing"

	"github.com/turbine-build/turbine/internal/config"
	"github.com/turbine-build/turbine/internal/env"
	"github.com/turbine-build/turbine/internal/fingerprint"
	"github.com/turbine-build/turbine/internal/util"
)

func TestComputeTaskHashChangesWithResolvedDefinition(t *testing.T) {
	base := TaskHashInputs{
		GlobalHash:             "g",
		ResolvedTaskDefinition: &config.TaskDefinition{Cache: true},
	}
	changed := base
	changed.ResolvedTaskDefinition = &config.TaskDefinition{Cache: false}

	if ComputeTaskHash(base) == ComputeTaskHash(changed) {
		t.Fatal("expected hash to change when cache flag flips")
	}
}

func TestComputeTaskHashUpstreamOrderIndependent(t *testing.T) {
	a := TaskHashInputs{UpstreamTaskHashes: []fingerprint.Hash{"x", "y"}}
	b := TaskHashInputs{UpstreamTaskHashes: []fingerprint.Hash{"y", "x"}}
	if ComputeTaskHash(a) != ComputeTaskHash(b) {
		t.Fatal("expected upstream hash order to not matter")
	}
}

func TestResolveEnvModeInfersStrictWhenPassThroughSet(t *testing.T) {
	def := &config.TaskDefinition{PassThroughSet: true}
	mode, inferred := ResolveEnvMode(util.InferEnvMode, def, false)
	if mode != util.StrictEnvMode || !inferred {
		t.Fatalf("got mode=%v inferred=%v, want strict/true", mode, inferred)
	}
}

func TestResolveEnvModeInfersLooseByDefault(t *testing.T) {
	def := &config.TaskDefinition{}
	mode, inferred := ResolveEnvMode(util.InferEnvMode, def, false)
	if mode != util.LooseEnvMode || !inferred {
		t.Fatalf("got mode=%v inferred=%v, want loose/true", mode, inferred)
	}
}

func TestSelectEnvVarsStrictModeHashesOnlyDeclared(t *testing.T) {
	def := &config.TaskDefinition{Env: []string{"MY_VAR"}}
	osEnv := env.Map{"MY_VAR": "1", "OTHER": "2", "PATH": "/bin"}

	hashed, exposed, err := SelectEnvVars(util.StrictEnvMode, def, osEnv, nil)
	if err != nil {
		t.Fatalf("SelectEnvVars() error = %v", err)
	}
	if _, ok := hashed["OTHER"]; ok {
		t.Fatal("strict mode should not hash undeclared vars")
	}
	if _, ok := exposed["PATH"]; !ok {
		t.Fatal("strict mode should still expose the fixed allow-list")
	}
}
