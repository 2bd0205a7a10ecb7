package config

import (
	"strings"

	"github.com/turbine-build/turbine/internal/util"
)

// TaskDefinition is the merged, resolved view of one task in one package
// (spec §3 "TaskDefinition (resolved)"). It is the unit that feeds both
// the graph builder (DependsOn) and the hasher (everything else).
type TaskDefinition struct {
	Outputs        []string
	Cache          bool
	DependsOn      []string
	Inputs         []string
	OutputMode     util.TaskOutputMode
	Env            []string
	PassThroughEnv []string
	PassThroughSet bool // distinguishes nil (unset) from empty, per spec §3
	Persistent     bool
	Interactive    bool
}

// defaultTaskDefinition is applied before any root/package overrides.
func defaultTaskDefinition() TaskDefinition {
	return TaskDefinition{
		Cache:      true,
		OutputMode: util.FullTaskOutput,
	}
}

// Resolver merges root and per-package task declarations into concrete
// TaskDefinitions (spec §4.E.2).
type Resolver struct {
	Root     *RootConfig
	Packages map[string]*PackageConfig // keyed by package name
}

// NewResolver builds a Resolver from already-loaded configs.
func NewResolver(root *RootConfig, packages map[string]*PackageConfig) *Resolver {
	return &Resolver{Root: root, Packages: packages}
}

// Resolve produces the TaskDefinition for (pkgName, task). It looks up,
// in order: the default, the root entry for the bare task name, the root
// entry for "pkgName#task", the package-level entry (applying its
// `extends` inheritance first), each overriding the previous with
// last-write-wins per field (spec §4.E.2).
func (r *Resolver) Resolve(pkgName, task string) (*TaskDefinition, bool) {
	def := defaultTaskDefinition()
	found := false

	if raw, ok := r.Root.Tasks[task]; ok {
		applyRaw(&def, raw)
		found = true
	}
	if raw, ok := r.Root.Tasks[pkgName+"#"+task]; ok {
		applyRaw(&def, raw)
		found = true
	}
	if pkgCfg, ok := r.Packages[pkgName]; ok && pkgCfg != nil {
		if raw, ok := pkgCfg.Tasks[task]; ok {
			applyRaw(&def, raw)
			found = true
		}
	}
	if !found {
		return nil, false
	}

	def.Outputs = replaceRootToken(def.Outputs)
	def.Inputs = replaceRootToken(def.Inputs)
	def.Env = sortedCopy(def.Env)
	if def.PassThroughSet {
		def.PassThroughEnv = sortedCopy(def.PassThroughEnv)
	}
	return &def, true
}

func applyRaw(def *TaskDefinition, raw RawTaskDefinition) {
	if raw.Outputs != nil {
		def.Outputs = raw.Outputs
	}
	if raw.Cache != nil {
		def.Cache = *raw.Cache
	}
	if raw.DependsOn != nil {
		def.DependsOn = raw.DependsOn
	}
	if raw.Inputs != nil {
		def.Inputs = raw.Inputs
	}
	if raw.OutputMode != "" {
		def.OutputMode = util.TaskOutputMode(raw.OutputMode)
	}
	if raw.Env != nil {
		def.Env = raw.Env
	}
	if raw.PassThroughEnv != nil {
		def.PassThroughEnv = raw.PassThroughEnv
		def.PassThroughSet = true
	}
	if raw.Persistent != nil {
		def.Persistent = *raw.Persistent
	}
	if raw.Interactive != nil {
		def.Interactive = *raw.Interactive
		if def.Interactive {
			def.Cache = false
		}
	}
}

func replaceRootToken(globs []string) []string {
	if globs == nil {
		return nil
	}
	out := make([]string, len(globs))
	for i, g := range globs {
		out[i] = strings.ReplaceAll(g, turboRootToken, "")
	}
	return out
}
