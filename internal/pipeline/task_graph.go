// Package pipeline merges root and per-package turbo.json declarations into
// concrete TaskInstances and assembles the TaskGraph that the executor walks
// (spec §4.E).
package pipeline

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"

	mapset "github.com/deckarep/golang-set"

	"github.com/turbine-build/turbine/internal/config"
	"github.com/turbine-build/turbine/internal/graph"
	"github.com/turbine-build/turbine/internal/util"
	"github.com/turbine-build/turbine/internal/workspace"
)

func setFromStrings(items []string) mapset.Set {
	s := mapset.NewThreadUnsafeSet()
	for _, i := range items {
		s.Add(i)
	}
	return s
}

// looksLikeTurboRe matches a command that invokes `turbo` as a standalone
// word, the loop guard described in spec §4.E.5.
var looksLikeTurboRe = regexp.MustCompile(`(?:^|\s)turbo(?:$|\s)`)

// rootVertexID is the synthetic sink every dependency-free task attaches to,
// so the walker has something to visit it from (spec §4.E.3).
const rootVertexID = "___ROOT___"

// TaskInstance is a concrete (package, task) pair with its resolved
// definition (spec §3 "TaskInstance"). Hash and command materialisation
// happen later, in internal/hasher and internal/executor respectively.
type TaskInstance struct {
	ID         string
	Package    string
	Task       string
	Definition *config.TaskDefinition
}

// TaskGraph is the DAG of TaskInstances plus the root sink (spec §3
// "TaskGraph").
type TaskGraph struct {
	Graph     *graph.Graph
	Instances map[string]*TaskInstance
}

// RootID exposes the synthetic sink id so callers can skip it explicitly
// where they must (e.g. the executor excludes it from upstream hashing).
func (tg *TaskGraph) RootID() string { return rootVertexID }

// BuildOptions mirrors the subset of `turbo run` flags that shape graph
// construction (spec §4.H "CLI surface"): --only and --no-deps change graph
// shape, not just which tasks run.
type BuildOptions struct {
	// Packages are the in-scope package names (from --filter/--scope
	// resolution, which is out of core scope per spec §1; callers supply
	// the already-resolved list).
	Packages []string
	// Tasks are the requested task names.
	Tasks []string
	// Only restricts execution to exactly the requested tasks, dropping
	// non-target dependency edges after validation.
	Only bool
	// NoDeps prunes the graph down to just the scoped vertices.
	NoDeps bool
	// DryRun makes the loop guard (spec §4.E.5) a fatal GraphPrepError
	// instead of a logged diagnostic.
	DryRun bool
}

// Builder assembles a TaskGraph from workspace metadata and a config
// resolver (spec §4.E).
type Builder struct {
	Catalog  *workspace.Catalog
	Resolver *config.Resolver
	// Logger receives the loop-guard diagnostic outside --dry-run. Defaults
	// to hclog.Default() if nil.
	Logger hclog.Logger
}

// NewBuilder constructs a Builder.
func NewBuilder(catalog *workspace.Catalog, resolver *config.Resolver) *Builder {
	return &Builder{Catalog: catalog, Resolver: resolver}
}

func (b *Builder) logger() hclog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return hclog.Default()
}

// GraphPrepError reports an unresolvable dependsOn entry or dry-run loop
// detection (spec §7 "GraphPrepError").
type GraphPrepError struct {
	Msg string
}

func (e *GraphPrepError) Error() string { return e.Msg }

// Build runs the breadth-first expansion described in spec §4.E.3-5:
// starting from the requested (packages, tasks), it materialises vertices
// on demand by walking each task's dependsOn list, resolves `^task` edges
// against direct workspace dependencies, and validates the result.
func (b *Builder) Build(opts BuildOptions) (*TaskGraph, error) {
	tg := &TaskGraph{Graph: graph.New(), Instances: map[string]*TaskInstance{}}
	rootEnabled := mapset.NewThreadUnsafeSet()

	type queued struct{ pkg, task string }
	var queue []queued
	missing := setFromStrings(opts.Tasks)

	for _, pkg := range opts.Packages {
		for _, task := range opts.Tasks {
			def, ok := b.Resolver.Resolve(pkg, task)
			if !ok {
				continue
			}
			missing.Remove(task)
			if pkg == workspace.RootPackageName {
				rootEnabled.Add(task)
			}
			id := util.GetTaskID(pkg, task)
			tg.Instances[id] = &TaskInstance{ID: id, Package: pkg, Task: task, Definition: def}
			queue = append(queue, queued{pkg, task})
		}
	}

	if missing.Cardinality() > 0 {
		return nil, &GraphPrepError{Msg: fmt.Sprintf("could not find the following tasks in project: %s", joinSorted(missing))}
	}

	visited := mapset.NewThreadUnsafeSet()
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		taskID := util.GetTaskID(cur.pkg, cur.task)
		if visited.Contains(taskID) {
			continue
		}
		visited.Add(taskID)

		if cur.pkg == workspace.RootPackageName && !rootEnabled.Contains(cur.task) {
			return nil, &GraphPrepError{Msg: fmt.Sprintf("%s needs an entry in turbo.json before it can be depended on, since it is a root task", taskID)}
		}

		inst, ok := tg.Instances[taskID]
		if !ok {
			def, found := b.Resolver.Resolve(cur.pkg, cur.task)
			if !found {
				return nil, &GraphPrepError{Msg: fmt.Sprintf("task %s was referenced but has no definition", taskID)}
			}
			inst = &TaskInstance{ID: taskID, Package: cur.pkg, Task: cur.task, Definition: def}
			tg.Instances[taskID] = inst
		}
		tg.Graph.AddVertex(taskID)

		if b.looksLikeTurbo(inst) {
			msg := fmt.Sprintf("%s looks like it invokes turbo and might cause a loop", taskID)
			if opts.DryRun {
				return nil, &GraphPrepError{Msg: msg}
			}
			b.logger().Warn(msg)
		}

		hasEdge := false
		for _, dep := range inst.Definition.DependsOn {
			switch {
			case util.IsTopologicalDependency(dep):
				depTask := util.StripTopologicalPrefix(dep)
				for _, depPkg := range b.internalDependents(cur.pkg) {
					if depPkgObj, ok := b.Catalog.Packages[depPkg]; ok && !depPkgObj.HasScript(depTask) {
						continue
					}
					fromID := util.GetTaskID(depPkg, depTask)
					if err := b.connect(tg, fromID, taskID); err != nil {
						return nil, err
					}
					queue = append(queue, queued{depPkg, depTask})
					hasEdge = true
				}
			case util.IsPackageTask(dep):
				depPkg, depTask := util.GetPackageTaskFromID(dep)
				fromID := util.GetTaskID(depPkg, depTask)
				if err := b.connect(tg, fromID, taskID); err != nil {
					return nil, err
				}
				queue = append(queue, queued{depPkg, depTask})
				hasEdge = true
			default:
				fromID := util.GetTaskID(cur.pkg, dep)
				if err := b.connect(tg, fromID, taskID); err != nil {
					return nil, err
				}
				queue = append(queue, queued{cur.pkg, dep})
				hasEdge = true
			}
		}

		if !hasEdge {
			tg.Graph.AddVertex(rootVertexID)
			tg.Graph.AddEdge(rootVertexID, taskID)
		}
	}

	if opts.NoDeps {
		pruneToScope(tg, opts.Packages, opts.Tasks)
	}

	if err := tg.Graph.Validate(); err != nil {
		return nil, err
	}
	if err := validatePersistentDeps(tg); err != nil {
		return nil, err
	}

	if opts.Only {
		pruneNonTargetDeps(tg, setFromStrings(opts.Tasks))
	}

	return tg, nil
}

func (b *Builder) connect(tg *TaskGraph, fromID, toID string) error {
	fromPkg, fromTask := util.GetPackageTaskFromID(fromID)
	def, ok := b.Resolver.Resolve(fromPkg, fromTask)
	if !ok {
		return &GraphPrepError{Msg: fmt.Sprintf("task %s depends on undeclared task %s", toID, fromID)}
	}
	if _, ok := tg.Instances[fromID]; !ok {
		tg.Instances[fromID] = &TaskInstance{ID: fromID, Package: fromPkg, Task: fromTask, Definition: def}
	}
	tg.Graph.AddEdge(fromID, toID)
	return nil
}

// internalDependents returns the direct in-workspace dependencies of pkg.
func (b *Builder) internalDependents(pkg string) []string {
	p, ok := b.Catalog.Packages[pkg]
	if !ok {
		return nil
	}
	return p.InternalDeps
}

// looksLikeTurbo reports whether inst's package.json script invokes `turbo`
// as a standalone word (spec §4.E.5 loop guard). Root tasks with no script
// (synthetic entries) never match.
func (b *Builder) looksLikeTurbo(inst *TaskInstance) bool {
	pkg, ok := b.Catalog.Packages[inst.Package]
	if !ok {
		return false
	}
	command, ok := pkg.Scripts[inst.Task]
	if !ok {
		return false
	}
	return looksLikeTurboRe.MatchString(command)
}

func validatePersistentDeps(tg *TaskGraph) error {
	for id, inst := range tg.Instances {
		for _, dep := range tg.Graph.DownEdges(id) {
			if dep == tg.RootID() {
				continue
			}
			depInst, ok := tg.Instances[dep]
			if ok && depInst.Definition.Persistent {
				return &GraphPrepError{Msg: fmt.Sprintf("%q depends on %q which is persistent and cannot be depended on", inst.ID, depInst.ID)}
			}
		}
	}
	return nil
}

func pruneNonTargetDeps(tg *TaskGraph, targets mapset.Set) {
	for id := range tg.Instances {
		_, task := util.GetPackageTaskFromID(id)
		if !targets.Contains(task) {
			delete(tg.Instances, id)
		}
	}
}

func pruneToScope(tg *TaskGraph, packages, tasks []string) {
	scope := mapset.NewThreadUnsafeSet()
	for _, p := range packages {
		for _, t := range tasks {
			scope.Add(util.GetTaskID(p, t))
		}
	}
	for id := range tg.Instances {
		if !scope.Contains(id) {
			delete(tg.Instances, id)
		}
	}
}

func joinSorted(s mapset.Set) string {
	items := make([]string, 0, s.Cardinality())
	for _, v := range s.ToSlice() {
		items = append(items, v.(string))
	}
	sort.Strings(items)
	return strings.Join(items, ", ")
}
