package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/turbine-build/turbine/internal/cache"
	"github.com/turbine-build/turbine/internal/colorcache"
	"github.com/turbine-build/turbine/internal/config"
	"github.com/turbine-build/turbine/internal/daemon"
	"github.com/turbine-build/turbine/internal/env"
	"github.com/turbine-build/turbine/internal/executor"
	"github.com/turbine-build/turbine/internal/graph"
	"github.com/turbine-build/turbine/internal/pipeline"
	"github.com/turbine-build/turbine/internal/runsummary"
	"github.com/turbine-build/turbine/internal/scm"
	"github.com/turbine-build/turbine/internal/taskhash"
	"github.com/turbine-build/turbine/internal/turbopath"
	"github.com/turbine-build/turbine/internal/ui"
	"github.com/turbine-build/turbine/internal/workspace"
)

func newRunCmd() *cobra.Command {
	var loadOpts func() (*config.RunOptions, error)

	cmd := &cobra.Command{
		Use:   "run <task> [<task>...] [flags] [-- <pass-through args>]",
		Short: "Run the given tasks across every workspace package that declares them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cc *cobra.Command, args []string) error {
			opts, err := loadOpts()
			if err != nil {
				return err
			}
			return runTasks(cc.Context(), args, opts, cc.Root().Version)
		},
	}
	loadOpts = config.BindRunFlags(cmd.Flags())
	return cmd
}

// runTasks implements `turbine run` end to end: discover the workspace,
// build the task graph, hash and execute it, and (with --summarize) persist
// a run summary (spec §4.H "turbo run").
func runTasks(ctx context.Context, tasks []string, opts *config.RunOptions, turboVersion string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	repoRoot, err := findRepoRoot(turbopath.AbsoluteSystemPath(cwd))
	if err != nil {
		return err
	}

	rootCfg, err := config.LoadRootConfig(repoRoot.ToString())
	if err != nil {
		return err
	}

	catalog, err := workspace.Discover(repoRoot)
	if err != nil {
		return err
	}
	if err := config.CheckVersionCompatibility(turboVersion, catalog.Packages[workspace.RootPackageName].Engines); err != nil {
		return err
	}

	packageConfigs := map[string]*config.PackageConfig{}
	for name, pkg := range catalog.Packages {
		if name == workspace.RootPackageName {
			continue
		}
		pkgCfg, err := config.LoadPackageConfig(pkg.Dir.RestoreAnchor(repoRoot).ToString())
		if err != nil {
			return err
		}
		if pkgCfg != nil {
			packageConfigs[name] = pkgCfg
		}
	}
	resolver := config.NewResolver(rootCfg, packageConfigs)

	packages := scopedPackages(catalog, opts)

	builder := pipeline.NewBuilder(catalog, resolver)
	taskGraph, err := builder.Build(pipeline.BuildOptions{
		Packages: packages,
		Tasks:    tasks,
		Only:     opts.Only,
		NoDeps:   opts.NoDeps,
		DryRun:   opts.DryRun != "",
	})
	if err != nil {
		return err
	}

	if opts.Graph != "" {
		return writeTaskGraph(repoRoot, taskGraph.Graph, opts.Graph)
	}

	sourceControl := &scm.GitignoreSCM{RepoRoot: repoRoot.ToString()}
	osEnv := env.FromOSEnviron()

	globalHash, globalPassThroughSet, err := taskhash.BuildGlobalHash(taskhash.GlobalHashOpts{
		RepoRoot:             repoRoot,
		Root:                 rootCfg,
		Resolver:             resolver,
		RootExternalDepsHash: catalog.Packages[workspace.RootPackageName].ExternalDepsHash,
		TurboVersion:         turboVersion,
		OSEnv:                osEnv,
	})
	if err != nil {
		return err
	}

	tracker := taskhash.NewTracker(
		repoRoot,
		catalog,
		taskGraph,
		sourceControl,
		globalHash,
		osEnv,
		opts.EnvMode,
		rootCfg.GlobalPassThroughEnv,
		globalPassThroughSet,
		opts.PassThroughArgs,
	)

	taskCache, err := buildCache(repoRoot, opts)
	if err != nil {
		return err
	}

	concurrency, err := parseConcurrency(opts.Concurrency)
	if err != nil {
		return err
	}

	// Dialing the daemon is opportunistic: a run must succeed without one,
	// so a dial failure just means every task falls back to Cache.Fetch
	// (spec §4.I "daemon calls are best-effort").
	daemonClient, _ := daemon.Dial(repoRoot, 200*time.Millisecond)
	if daemonClient != nil {
		defer func() { _ = daemonClient.Close() }()
	}

	run := executor.New(executor.Opts{
		RepoRoot:    repoRoot,
		Catalog:     catalog,
		Graph:       taskGraph,
		Cache:       taskCache,
		Daemon:      daemonClient,
		Hash:        tracker.Hash,
		Concurrency: concurrency,
		Continue:    opts.Continue,
		DryRun:      opts.DryRun != "",
		ColorCache:  colorcache.New(),
		Stdout:      os.Stdout,
	})
	defer run.Shutdown()

	results, runErr := run.Execute(ctx)

	rs := runsummary.New(packages, opts.EnvMode, string(globalHash), start)
	for _, r := range results {
		rs.AddTask(taskSummaryFor(catalog, r, start))
	}
	rs.Finish(time.Now())
	ui.Default().Info(fmt.Sprintf("Session: %s", rs.SessionID))
	if opts.Summarize {
		if err := rs.WriteJSON(repoRoot); err != nil {
			fmt.Fprintln(os.Stderr, "turbine: failed to write run summary:", err)
		}
	}
	printRunReport(results)

	if runErr == nil {
		for _, r := range results {
			if r.Status == runsummary.StatusFailed {
				runErr = fmt.Errorf("task %s failed", r.Instance.ID)
				break
			}
		}
	}
	return runErr
}

// scopedPackages resolves which packages participate in this run.
// --filter (or, failing that, --scope) values are taken as literal package
// names; no selector syntax is parsed. Absent either flag, every discovered
// package runs.
func scopedPackages(catalog *workspace.Catalog, opts *config.RunOptions) []string {
	if len(opts.Filter) > 0 {
		return opts.Filter
	}
	if len(opts.Scope) > 0 {
		return opts.Scope
	}
	names := make([]string, 0, len(catalog.Packages))
	for name := range catalog.Packages {
		names = append(names, name)
	}
	return names
}

func buildCache(repoRoot turbopath.AbsoluteSystemPath, opts *config.RunOptions) (*cache.Cache, error) {
	if opts.NoCache {
		return nil, nil
	}

	apiCfg, err := config.ResolveAPIConfig(repoRoot.ToString(), os.Getenv)
	if err != nil {
		return nil, err
	}

	var remote *cache.RemoteConfig
	if apiCfg.Token != "" {
		remote = &cache.RemoteConfig{
			BaseURL:  apiCfg.APIURL,
			Token:    apiCfg.Token,
			TeamID:   apiCfg.TeamID,
			TeamSlug: apiCfg.TeamSlug,
		}
	}

	cacheDir := repoRoot.UntypedJoin(".turbo", "cache")
	if opts.CacheDir != "" {
		cacheDir = turbopath.AbsoluteSystemPath(opts.CacheDir)
	}

	return cache.New(cache.Opts{
		RepoRoot:     repoRoot,
		CacheDir:     cacheDir,
		Remote:       remote,
		RemoteOnly:   opts.RemoteOnly,
		CacheWorkers: opts.CacheWorkers,
	}), nil
}

// runtimeNumCPU is a var so tests can pin it to a fixed value.
var runtimeNumCPU = defaultRuntimeNumCPU

func defaultRuntimeNumCPU() int { return runtime.NumCPU() }

// parseConcurrency accepts either a bare positive integer ("12") or a
// percentage of the machine's CPU count ("150%"), rounding the percentage
// form down to the nearest integer with a floor of 1.
func parseConcurrency(raw string) (int, error) {
	if strings.HasSuffix(raw, "%") {
		pct, err := strconv.ParseFloat(strings.TrimSuffix(raw, "%"), 64)
		if err != nil || pct <= 0 {
			return 0, fmt.Errorf("invalid concurrency percentage %q", raw)
		}
		n := int(pct / 100 * float64(runtimeNumCPU()))
		if n < 1 {
			n = 1
		}
		return n, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid concurrency %q: must be a positive integer or percentage", raw)
	}
	return n, nil
}

// writeTaskGraph renders g in dot format to target ("-" for stdout) instead
// of executing any task, matching the teacher's `--graph` short-circuit.
func writeTaskGraph(repoRoot turbopath.AbsoluteSystemPath, g *graph.Graph, target string) error {
	dot := g.DOT()
	if target == "-" {
		fmt.Println(dot)
		return nil
	}
	path := repoRoot.UntypedJoin(target)
	if err := os.WriteFile(path.ToString(), []byte(dot), 0o644); err != nil {
		return fmt.Errorf("writing task graph: %w", err)
	}
	ui.Default().Output(fmt.Sprintf("Generated task graph in %s", path.ToString()))
	return nil
}

func findRepoRoot(start turbopath.AbsoluteSystemPath) (turbopath.AbsoluteSystemPath, error) {
	path, err := turbopath.FindupFrom("turbo.json", start)
	if err == nil && path != "" {
		return path.Dir(), nil
	}
	path, err = turbopath.FindupFrom("turbo.jsonc", start)
	if err != nil || path == "" {
		return "", fmt.Errorf("no turbo.json or turbo.jsonc found above %s", start)
	}
	return path.Dir(), nil
}

func taskSummaryFor(catalog *workspace.Catalog, r *executor.TaskResult, start time.Time) *runsummary.TaskSummary {
	command := ""
	if pkg, ok := catalog.Packages[r.Instance.Package]; ok {
		command = pkg.Scripts[r.Instance.Task]
	}
	return &runsummary.TaskSummary{
		TaskID:   r.Instance.ID,
		Package:  r.Instance.Package,
		Task:     r.Instance.Task,
		Hash:     r.Hash,
		Command:  command,
		CacheHit: r.CacheHit,
		CacheSrc: r.CacheSrc,
		Status:   r.Status,
		Error:    errString(r.Err),
		StartAt:  start,
		Duration: r.Duration,
		LogFile:  r.LogFile.ToString(),
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// printRunReport prints the final "Cached: N cached, M total" line (spec
// §8 scenario 1), with a "FULL TURBO" suffix when every task in the run was
// served from cache.
func printRunReport(results []*executor.TaskResult) {
	var failed, cached int
	for _, r := range results {
		switch r.Status {
		case runsummary.StatusCached:
			cached++
		case runsummary.StatusFailed:
			failed++
		}
	}
	total := len(results)
	line := fmt.Sprintf("Cached: %d cached, %d total", cached, total)
	if total > 0 && cached == total {
		line += "  >>> FULL TURBO"
	}
	if failed > 0 {
		ui.Default().Error(line)
		return
	}
	ui.Default().Info(line)
}
