// Package hasher computes the content-addressed hash of a TaskInstance
// (spec §4.F), in the fixed field order the spec mandates so that equal
// hashes imply equal resolved inputs and any semantic difference changes
// the hash.
package hasher

import (
	"sort"

	"github.com/turbine-build/turbine/internal/config"
	"github.com/turbine-build/turbine/internal/env"
	"github.com/turbine-build/turbine/internal/fingerprint"
	"github.com/turbine-build/turbine/internal/globwalk"
	"github.com/turbine-build/turbine/internal/scm"
	"github.com/turbine-build/turbine/internal/util"
)

// GlobalHashInputs is everything that feeds into global_hash (spec
// §4.F.1): every task's hash is invalidated when any of this changes.
type GlobalHashInputs struct {
	RootExternalDepsHash string
	GlobalEnv            env.Map
	GlobalDotEnvContents string
	GlobalFileHashes     map[string]fingerprint.Hash
	TurboVersion         string
	RootTaskDefinitions  map[string]*config.TaskDefinition
}

// ComputeGlobalHash implements spec §4.F.1.
func ComputeGlobalHash(in GlobalHashInputs) fingerprint.Hash {
	return fingerprint.HashObject(struct {
		RootExternalDepsHash string
		GlobalEnv            []string
		GlobalDotEnvContents string
		GlobalFileHashes     map[string]fingerprint.Hash
		TurboVersion         string
		RootTaskDefinitions  map[string]*config.TaskDefinition
	}{
		RootExternalDepsHash: in.RootExternalDepsHash,
		GlobalEnv:            in.GlobalEnv.ToHashable(),
		GlobalDotEnvContents: in.GlobalDotEnvContents,
		GlobalFileHashes:     in.GlobalFileHashes,
		TurboVersion:         in.TurboVersion,
		RootTaskDefinitions:  in.RootTaskDefinitions,
	})
}

// PackageSourceHash hashes every input path enumerated from pkgDir (spec
// §4.F.2). When inputs is empty or contains the `$TURBO_DEFAULT$`
// sentinel, the enumerated set is restricted to files the SCM considers
// tracked; declared globs are still applied on top of that set.
func PackageSourceHash(pkgDir string, inputs []string, sourceControl scm.SCM) (map[string]fingerprint.Hash, fingerprint.Hash, error) {
	useDefault := len(inputs) == 0
	patterns := inputs
	for _, p := range inputs {
		if p == globwalk.DefaultToken {
			useDefault = true
		}
	}
	if useDefault {
		patterns = replaceDefaultToken(inputs)
	}

	var candidates []string
	if useDefault {
		tracked, err := sourceControl.TrackedFiles(pkgDir)
		if err != nil {
			return nil, "", err
		}
		candidates = tracked
		if len(patterns) > 0 {
			filtered := candidates[:0]
			for _, c := range candidates {
				if globwalk.Matches(c, patterns) {
					filtered = append(filtered, c)
				}
			}
			candidates = filtered
		}
	} else {
		enumerated, err := globwalk.Enumerate(pkgDir, patterns)
		if err != nil {
			return nil, "", err
		}
		candidates = enumerated
	}

	hashes := make(map[string]fingerprint.Hash, len(candidates))
	for _, rel := range candidates {
		h, err := fingerprint.HashFile(join(pkgDir, rel))
		if err != nil {
			return nil, "", err
		}
		hashes[rel] = h
	}
	return hashes, fingerprint.HashObject(hashes), nil
}

// replaceDefaultToken swaps the `$TURBO_DEFAULT$` sentinel for "**", so the
// whole tracked set is included at the sentinel's position and every later
// glob, negations included, is applied on top of it.
func replaceDefaultToken(inputs []string) []string {
	out := make([]string, 0, len(inputs))
	for _, p := range inputs {
		if p == globwalk.DefaultToken {
			out = append(out, "**")
			continue
		}
		out = append(out, p)
	}
	return out
}

func join(dir, rel string) string {
	if dir == "" {
		return rel
	}
	return dir + "/" + rel
}

// TaskHashInputs is every field spec §4.F.1-7 requires, already resolved
// for one TaskInstance.
type TaskHashInputs struct {
	GlobalHash             fingerprint.Hash
	PackageSourceHash       fingerprint.Hash
	ExternalDependencyHash  string
	ResolvedTaskDefinition  *config.TaskDefinition
	EnvVarValues            env.Map
	UpstreamTaskHashes      []fingerprint.Hash
	CLIArgs                 []string
}

// ComputeTaskHash implements spec §4.F's fixed seven-field order.
func ComputeTaskHash(in TaskHashInputs) fingerprint.Hash {
	upstream := make([]string, len(in.UpstreamTaskHashes))
	for i, h := range in.UpstreamTaskHashes {
		upstream[i] = string(h)
	}
	sort.Strings(upstream)

	return fingerprint.HashObject(struct {
		GlobalHash             string
		PackageSourceHash      string
		ExternalDependencyHash string
		ResolvedTaskDefinition *config.TaskDefinition
		EnvVarValues           []string
		UpstreamTaskHashes     []string
		CLIArgs                []string
	}{
		GlobalHash:             string(in.GlobalHash),
		PackageSourceHash:      string(in.PackageSourceHash),
		ExternalDependencyHash: in.ExternalDependencyHash,
		ResolvedTaskDefinition: in.ResolvedTaskDefinition,
		EnvVarValues:           in.EnvVarValues.ToHashable(),
		UpstreamTaskHashes:     upstream,
		CLIArgs:                in.CLIArgs,
	})
}

// ResolveEnvMode applies spec §4.F's `infer` rule: strict if any
// passThroughEnv (task-level or global) is set, else loose. inferred is
// true when the mode had to be inferred, so callers can emit the warning
// spec §4.F requires.
func ResolveEnvMode(requested util.EnvMode, def *config.TaskDefinition, globalPassThroughSet bool) (resolved util.EnvMode, inferred bool) {
	if requested != util.InferEnvMode {
		return requested, false
	}
	if def.PassThroughSet || globalPassThroughSet {
		return util.StrictEnvMode, true
	}
	return util.LooseEnvMode, true
}

// SelectEnvVars picks which declared env vars participate in the hash and
// which are exposed to the child process, per spec §4.F's strict/loose
// rules.
func SelectEnvVars(mode util.EnvMode, def *config.TaskDefinition, osEnv env.Map, globalPassThrough []string) (hashed env.Map, exposed env.Map, err error) {
	declared, err := osEnv.FromWildcards(def.Env)
	if err != nil {
		return nil, nil, err
	}
	if declared == nil {
		declared = env.Map{}
	}

	switch mode {
	case util.LooseEnvMode:
		return declared, osEnv, nil
	case util.StrictEnvMode, util.InferEnvMode:
		exposed = env.Map{}
		exposed.Union(declared)
		for _, name := range strictAllowlist {
			if v, ok := osEnv[name]; ok {
				exposed[name] = v
			}
		}
		passThrough, err := osEnv.FromWildcards(append(append([]string{}, def.PassThroughEnv...), globalPassThrough...))
		if err != nil {
			return nil, nil, err
		}
		exposed.Union(passThrough)
		return declared, exposed, nil
	default:
		return declared, declared, nil
	}
}

// strictAllowlist is always exposed in strict mode regardless of
// declaration (spec §4.F "Env modes").
var strictAllowlist = []string{"PATH", "SHELL", "SYSTEMROOT"}
