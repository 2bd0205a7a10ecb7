// Package taskhash bridges internal/hasher to the rest of the engine: it
// computes the one global_hash for a run and then, as each task in the
// graph is visited, its task hash (spec §4.F). Task hashes are cached so a
// dependent only ever looks up its dependencies' already-computed hashes,
// which is why a Tracker is only safe to query in dependency order (the
// same order internal/executor's graph walk already guarantees).
package taskhash

import (
	"fmt"
	"sync"

	"github.com/turbine-build/turbine/internal/config"
	"github.com/turbine-build/turbine/internal/env"
	"github.com/turbine-build/turbine/internal/fingerprint"
	"github.com/turbine-build/turbine/internal/globwalk"
	"github.com/turbine-build/turbine/internal/hasher"
	"github.com/turbine-build/turbine/internal/pipeline"
	"github.com/turbine-build/turbine/internal/scm"
	"github.com/turbine-build/turbine/internal/turbopath"
	"github.com/turbine-build/turbine/internal/util"
	"github.com/turbine-build/turbine/internal/workspace"
)

// Tracker computes and caches task hashes for one run. Its Hash method has
// the shape internal/executor.TaskHasher expects.
type Tracker struct {
	repoRoot turbopath.AbsoluteSystemPath
	catalog  *workspace.Catalog
	graph    *pipeline.TaskGraph
	scm      scm.SCM

	globalHash           fingerprint.Hash
	envSnapshot          env.Map
	envMode              util.EnvMode
	globalPassThrough    []string
	globalPassThroughSet bool
	cliArgs              []string

	mu   sync.Mutex
	done map[string]fingerprint.Hash
}

// NewTracker builds a Tracker around an already-computed global hash.
func NewTracker(
	repoRoot turbopath.AbsoluteSystemPath,
	catalog *workspace.Catalog,
	graph *pipeline.TaskGraph,
	sourceControl scm.SCM,
	globalHash fingerprint.Hash,
	envSnapshot env.Map,
	envMode util.EnvMode,
	globalPassThrough []string,
	globalPassThroughSet bool,
	cliArgs []string,
) *Tracker {
	return &Tracker{
		repoRoot:             repoRoot,
		catalog:              catalog,
		graph:                graph,
		scm:                  sourceControl,
		globalHash:           globalHash,
		envSnapshot:          envSnapshot,
		envMode:              envMode,
		globalPassThrough:    globalPassThrough,
		globalPassThroughSet: globalPassThroughSet,
		cliArgs:              cliArgs,
		done:                 map[string]fingerprint.Hash{},
	}
}

// Hash implements internal/executor.TaskHasher. Callers must only invoke it
// after every upstream dependency of inst has already been hashed (the
// graph walk in internal/executor guarantees this).
func (t *Tracker) Hash(inst *pipeline.TaskInstance) (string, error) {
	if h, ok := t.cached(inst.ID); ok {
		return string(h), nil
	}

	pkg, ok := t.catalog.Packages[inst.Package]
	if !ok {
		return "", fmt.Errorf("taskhash: unknown package %q", inst.Package)
	}

	_, sourceHash, err := hasher.PackageSourceHash(pkg.Dir.RestoreAnchor(t.repoRoot).ToString(), inst.Definition.Inputs, t.scm)
	if err != nil {
		return "", fmt.Errorf("hashing sources for %s: %w", inst.ID, err)
	}

	mode, _ := hasher.ResolveEnvMode(t.envMode, inst.Definition, t.globalPassThroughSet)
	hashedEnv, _, err := hasher.SelectEnvVars(mode, inst.Definition, t.envSnapshot, t.globalPassThrough)
	if err != nil {
		return "", fmt.Errorf("selecting env vars for %s: %w", inst.ID, err)
	}

	upstream := t.upstreamHashes(inst.ID)

	hash := hasher.ComputeTaskHash(hasher.TaskHashInputs{
		GlobalHash:             t.globalHash,
		PackageSourceHash:      sourceHash,
		ExternalDependencyHash: pkg.ExternalDepsHash,
		ResolvedTaskDefinition: inst.Definition,
		EnvVarValues:           hashedEnv,
		UpstreamTaskHashes:     upstream,
		CLIArgs:                t.cliArgs,
	})

	t.mu.Lock()
	t.done[inst.ID] = hash
	t.mu.Unlock()
	return string(hash), nil
}

func (t *Tracker) cached(id string) (fingerprint.Hash, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.done[id]
	return h, ok
}

func (t *Tracker) upstreamHashes(id string) []fingerprint.Hash {
	t.mu.Lock()
	defer t.mu.Unlock()
	var upstream []fingerprint.Hash
	for _, dep := range t.graph.Graph.DownEdges(id) {
		if dep == t.graph.RootID() {
			continue
		}
		if h, ok := t.done[dep]; ok {
			upstream = append(upstream, h)
		}
	}
	return upstream
}

// GlobalHashOpts is everything BuildGlobalHash needs from the rest of the
// engine to assemble hasher.GlobalHashInputs (spec §4.F.1).
type GlobalHashOpts struct {
	RepoRoot             turbopath.AbsoluteSystemPath
	Root                 *config.RootConfig
	Resolver             *config.Resolver
	RootExternalDepsHash string
	TurboVersion         string
	OSEnv                env.Map
}

// BuildGlobalHash resolves spec §4.F.1's global_hash inputs from root
// config and computes the hash, also reporting whether
// globalPassThroughEnv was declared (strict-mode inference needs this).
func BuildGlobalHash(opts GlobalHashOpts) (fingerprint.Hash, bool, error) {
	globalEnv, err := opts.OSEnv.FromWildcards(opts.Root.GlobalEnv)
	if err != nil {
		return "", false, fmt.Errorf("resolving globalEnv: %w", err)
	}

	var dotEnvContents string
	for _, rel := range opts.Root.GlobalDotEnv {
		raw, err := opts.RepoRoot.UntypedJoin(rel).ReadFile()
		if err != nil {
			continue
		}
		dotEnvContents += string(raw)
	}

	fileHashes := map[string]fingerprint.Hash{}
	if len(opts.Root.GlobalDependencies) > 0 {
		matched, err := globwalk.Enumerate(opts.RepoRoot.ToString(), opts.Root.GlobalDependencies)
		if err != nil {
			return "", false, fmt.Errorf("enumerating globalDependencies: %w", err)
		}
		for _, rel := range matched {
			h, err := fingerprint.HashFile(opts.RepoRoot.UntypedJoin(rel).ToString())
			if err != nil {
				return "", false, fmt.Errorf("hashing global dependency %s: %w", rel, err)
			}
			fileHashes[rel] = h
		}
	}

	rootTasks := map[string]*config.TaskDefinition{}
	for name := range opts.Root.Tasks {
		if util.IsPackageTask(name) {
			continue
		}
		if def, ok := opts.Resolver.Resolve(workspace.RootPackageName, name); ok {
			rootTasks[name] = def
		}
	}

	hash := hasher.ComputeGlobalHash(hasher.GlobalHashInputs{
		RootExternalDepsHash: opts.RootExternalDepsHash,
		GlobalEnv:            globalEnv,
		GlobalDotEnvContents: dotEnvContents,
		GlobalFileHashes:     fileHashes,
		TurboVersion:         opts.TurboVersion,
		RootTaskDefinitions:  rootTasks,
	})
	return hash, len(opts.Root.GlobalPassThroughEnv) > 0, nil
}
