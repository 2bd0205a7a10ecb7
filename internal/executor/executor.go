// Package executor walks a pipeline.TaskGraph and runs each task's
// command, consulting the cache before spawning a process and writing
// results back afterward (spec §4.H "Execution").
package executor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/turbine-build/turbine/internal/cache"
	"github.com/turbine-build/turbine/internal/colorcache"
	"github.com/turbine-build/turbine/internal/daemon"
	"github.com/turbine-build/turbine/internal/globwalk"
	"github.com/turbine-build/turbine/internal/pipeline"
	"github.com/turbine-build/turbine/internal/process"
	"github.com/turbine-build/turbine/internal/runsummary"
	"github.com/turbine-build/turbine/internal/turbopath"
	"github.com/turbine-build/turbine/internal/util"
	"github.com/turbine-build/turbine/internal/workspace"
)

// Shell is the interpreter used to invoke a package.json script, matching
// how the rest of the JS ecosystem's task runners spawn scripts.
var Shell = []string{"sh", "-c"}

// TaskHasher computes the content hash for one task instance, bridging the
// executor to internal/hasher without importing it directly (hasher needs
// per-task inputs the graph doesn't carry, so callers supply a closure).
type TaskHasher func(inst *pipeline.TaskInstance) (string, error)

// Opts configures a Run.
type Opts struct {
	RepoRoot    turbopath.AbsoluteSystemPath
	Catalog     *workspace.Catalog
	Graph       *pipeline.TaskGraph
	Cache       *cache.Cache
	// Daemon, when non-nil, is consulted before Cache.Fetch to skip a
	// restore entirely when the on-disk outputs are already known good
	// (spec §4.H.2). Daemon calls are best-effort: any error falls back to
	// the normal Cache.Fetch path (spec §4.I).
	Daemon      *daemon.Client
	Hash        TaskHasher
	Concurrency int
	Continue    bool
	DryRun      bool
	ColorCache  *colorcache.Cache
	Stdout      io.Writer
}

// TaskResult is what a single task produced, used both for live reporting
// and for the final RunSummary.
type TaskResult struct {
	Instance *pipeline.TaskInstance
	Hash     string
	Status   string
	CacheHit bool
	CacheSrc string
	Err      error
	Duration time.Duration
	LogFile  turbopath.AbsoluteSystemPath
}

// Run executes every task instance in opts.Graph in dependency order and
// returns one TaskResult per task plus the first failure encountered (nil
// if every task succeeded, or if --continue was set and only some failed).
type Run struct {
	opts    Opts
	manager *process.Manager

	mu      sync.Mutex
	results map[string]*TaskResult
}

// New prepares a Run. Call Execute to walk the graph.
func New(opts Opts) *Run {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 10
	}
	if opts.ColorCache == nil {
		opts.ColorCache = colorcache.New()
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	return &Run{
		opts:    opts,
		manager: process.NewManager(10 * time.Second),
		results: map[string]*TaskResult{},
	}
}

// Execute walks the graph, running each task after its dependencies
// complete (spec §4.H.2 "Scheduling"). It returns the per-task results in
// no particular order; RunSummary ordering is the caller's job.
func (r *Run) Execute(ctx context.Context) ([]*TaskResult, error) {
	errs := r.opts.Graph.Graph.Walk(r.opts.Graph.RootID(), r.opts.Concurrency, func(id string) error {
		inst, ok := r.opts.Graph.Instances[id]
		if !ok {
			return nil
		}
		res := r.runOne(ctx, inst)
		r.mu.Lock()
		r.results[id] = res
		r.mu.Unlock()
		if res.Err != nil && !r.opts.Continue {
			// Halts admission of new work; tasks already running finish.
			return res.Err
		}
		return nil
	})

	out := make([]*TaskResult, 0, len(r.results))
	for _, res := range r.results {
		out = append(out, res)
	}
	if len(errs) > 0 {
		return out, errs[0]
	}
	return out, nil
}

// dependencyFailed reports whether any direct dependency of id already
// failed or was skipped, so --continue propagates a failure only to that
// task's own dependents, not to unrelated branches (spec §4.H.5).
func (r *Run) dependencyFailed(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, dep := range r.opts.Graph.Graph.DownEdges(id) {
		if dep == r.opts.Graph.RootID() {
			continue
		}
		if depRes, ok := r.results[dep]; ok {
			if depRes.Status == runsummary.StatusFailed || depRes.Status == runsummary.StatusSkipped {
				return true
			}
		}
	}
	return false
}

func (r *Run) runOne(ctx context.Context, inst *pipeline.TaskInstance) *TaskResult {
	start := time.Now()
	res := &TaskResult{Instance: inst}

	if r.dependencyFailed(inst.ID) {
		res.Status = runsummary.StatusSkipped
		return res
	}

	hash, err := r.opts.Hash(inst)
	if err != nil {
		res.Err = fmt.Errorf("hashing %s: %w", inst.ID, err)
		res.Status = runsummary.StatusFailed
		return res
	}
	res.Hash = hash

	if r.opts.DryRun {
		res.Status = runsummary.StatusDryRun
		return res
	}

	pkg, ok := r.opts.Catalog.Packages[inst.Package]
	if !ok {
		res.Err = fmt.Errorf("unknown package %q", inst.Package)
		res.Status = runsummary.StatusFailed
		return res
	}
	command, ok := pkg.Scripts[inst.Task]
	if !ok {
		// A root or synthetic task with no script is a no-op success: its
		// only purpose is to gate its dependents.
		res.Status = runsummary.StatusBuilt
		res.Duration = time.Since(start)
		return res
	}

	outputMode := inst.Definition.OutputMode
	logFile := logFilePath(r.opts.RepoRoot, r.opts.Catalog, inst)
	res.LogFile = logFile

	if inst.Definition.Cache && r.opts.Cache != nil {
		if r.daemonConfirmsUnchanged(hash, pkg, inst) {
			res.CacheHit = true
			res.CacheSrc = string(cache.SourceDaemon)
			res.Status = runsummary.StatusCached
			res.Duration = time.Since(start)
			r.printCacheHit(outputMode, inst, hash)
			r.replayOutput(outputMode, inst, logFile)
			return res
		}

		status, err := r.opts.Cache.Fetch(ctx, hash)
		if err != nil {
			res.Err = fmt.Errorf("cache fetch for %s: %w", inst.ID, err)
			res.Status = runsummary.StatusFailed
			return res
		}
		if status.Hit {
			res.CacheHit = true
			res.CacheSrc = string(status.Source)
			res.Status = runsummary.StatusCached
			res.Duration = time.Since(start)
			r.printCacheHit(outputMode, inst, hash)
			r.replayOutput(outputMode, inst, logFile)
			return res
		}
	}

	if outputMode != util.NoTaskOutput && outputMode != util.ErrorsTaskOutput {
		prefix := r.opts.ColorCache.Prefix(inst.Package, inst.ID)
		fmt.Fprintf(r.opts.Stdout, "%scache miss, executing %s\n", prefix, shortHash(hash))
	}

	if err := r.runCommand(ctx, inst, pkg, command, outputMode, logFile); err != nil {
		if outputMode == util.ErrorsTaskOutput {
			r.replayOutput(util.FullTaskOutput, inst, logFile)
		}
		res.Err = err
		res.Status = runsummary.StatusFailed
		res.Duration = time.Since(start)
		return res
	}

	res.Status = runsummary.StatusBuilt
	res.Duration = time.Since(start)

	if inst.Definition.Cache && r.opts.Cache != nil {
		if err := r.saveOutputs(ctx, inst, pkg, hash, int(res.Duration.Milliseconds())); err != nil {
			res.Err = fmt.Errorf("caching outputs for %s: %w", inst.ID, err)
			res.Status = runsummary.StatusFailed
		}
	}
	return res
}

func (r *Run) runCommand(ctx context.Context, inst *pipeline.TaskInstance, pkg *workspace.Package, command string, outputMode util.TaskOutputMode, logFile turbopath.AbsoluteSystemPath) error {
	if err := logFile.EnsureDir(); err != nil {
		return err
	}
	logHandle, err := logFile.Create()
	if err != nil {
		return err
	}
	defer func() { _ = logHandle.Close() }()
	bufWriter := bufio.NewWriter(logHandle)
	defer func() { _ = bufWriter.Flush() }()

	var out io.Writer = bufWriter
	if outputMode == util.FullTaskOutput || outputMode == util.NewTaskOutput {
		prefix := r.opts.ColorCache.Prefix(inst.Package, inst.ID)
		out = io.MultiWriter(bufWriter, prefixWriter{w: r.opts.Stdout, prefix: prefix})
	}

	cmd := exec.CommandContext(ctx, Shell[0], Shell[1], command)
	cmd.Dir = pkg.Dir.RestoreAnchor(r.opts.RepoRoot).ToString()
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.Env = os.Environ()

	return r.manager.Exec(cmd)
}

// daemonConfirmsUnchanged asks the daemon whether hash's recorded outputs
// for inst are still intact on disk, so Cache.Fetch can be skipped
// entirely (spec §4.H.2). Any daemon error, or the daemon reporting outputs
// changed, falls through to the ordinary Cache.Fetch path.
func (r *Run) daemonConfirmsUnchanged(hash string, pkg *workspace.Package, inst *pipeline.TaskInstance) bool {
	if r.opts.Daemon == nil || len(inst.Definition.Outputs) == 0 {
		return false
	}
	changed, err := r.opts.Daemon.GetChangedOutputs(hash, pkg.Dir.ToString(), inst.Definition.Outputs)
	if err != nil {
		return false
	}
	return len(changed) == 0
}

func (r *Run) printCacheHit(outputMode util.TaskOutputMode, inst *pipeline.TaskInstance, hash string) {
	if outputMode == util.NoTaskOutput || outputMode == util.ErrorsTaskOutput {
		return
	}
	prefix := r.opts.ColorCache.Prefix(inst.Package, inst.ID)
	fmt.Fprintf(r.opts.Stdout, "%scache hit, replaying output %s\n", prefix, shortHash(hash))
}

func (r *Run) replayOutput(outputMode util.TaskOutputMode, inst *pipeline.TaskInstance, logFile turbopath.AbsoluteSystemPath) {
	if outputMode != util.FullTaskOutput || !logFile.FileExists() {
		return
	}
	f, err := logFile.Open()
	if err != nil {
		return
	}
	defer func() { _ = f.Close() }()
	prefix := r.opts.ColorCache.Prefix(inst.Package, inst.ID)
	scan := bufio.NewScanner(f)
	for scan.Scan() {
		fmt.Fprintf(r.opts.Stdout, "%s%s\n", prefix, scan.Text())
	}
}

func (r *Run) saveOutputs(ctx context.Context, inst *pipeline.TaskInstance, pkg *workspace.Package, hash string, durationMs int) error {
	base := pkg.Dir.RestoreAnchor(r.opts.RepoRoot)
	matched, err := globwalk.Enumerate(base.ToString(), inst.Definition.Outputs)
	if err != nil {
		return err
	}
	files := make([]turbopath.AnchoredSystemPath, 0, len(matched)+1)
	for _, rel := range matched {
		abs := base.UntypedJoin(rel)
		anchored, err := abs.RelativeTo(r.opts.RepoRoot)
		if err != nil {
			continue
		}
		files = append(files, anchored)
	}
	logRel, err := logFilePath(r.opts.RepoRoot, r.opts.Catalog, inst).RelativeTo(r.opts.RepoRoot)
	if err == nil {
		files = append(files, logRel)
	}
	if err := r.opts.Cache.Put(ctx, hash, inst.ID, durationMs, files); err != nil {
		return err
	}
	if r.opts.Daemon != nil && len(inst.Definition.Outputs) > 0 {
		_ = r.opts.Daemon.NotifyOutputsWritten(hash, pkg.Dir.ToString(), inst.Definition.Outputs)
	}
	return nil
}

// Shutdown force-stops every running task (spec §4.H.5 "Cancellation").
func (r *Run) Shutdown() {
	r.manager.Close()
}

// logFilePath is <pkg>/.turbo/turbo-<task>.log, spec §3 "TaskInstance" and
// §6 "Per-task logs".
func logFilePath(repoRoot turbopath.AbsoluteSystemPath, catalog *workspace.Catalog, inst *pipeline.TaskInstance) turbopath.AbsoluteSystemPath {
	pkgDir := repoRoot
	if pkg, ok := catalog.Packages[inst.Package]; ok {
		pkgDir = pkg.Dir.RestoreAnchor(repoRoot)
	}
	return pkgDir.UntypedJoin(".turbo", "turbo-"+inst.Task+".log")
}

func shortHash(hash string) string {
	if len(hash) > 16 {
		return hash[:16]
	}
	return hash
}

type prefixWriter struct {
	w      io.Writer
	prefix string
}

func (p prefixWriter) Write(b []byte) (int, error) {
	n := len(b)
	_, err := fmt.Fprintf(p.w, "%s%s", p.prefix, b)
	return n, err
}
