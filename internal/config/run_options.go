package config

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/turbine-build/turbine/internal/util"
)

// RunOptions is the resolved set of `turbo run` flags (spec §4.H "CLI
// surface"). Values are bound through viper so that every flag can also
// be supplied as a TURBO_-prefixed environment variable, matching the
// rest of the CLI's config precedence (env overrides file, flag
// overrides env).
type RunOptions struct {
	Filter               []string
	Scope                []string
	Since                string
	Concurrency          string
	Parallel             bool
	Continue             bool
	DryRun               string // "", "json", or "text"
	Only                 bool
	NoDeps               bool
	IncludeDependencies  bool
	Force                bool
	NoCache              bool
	RemoteOnly           bool
	CacheDir             string
	CacheWorkers         int
	OutputLogs           util.TaskOutputMode
	EnvMode              util.EnvMode
	Graph                string
	Summarize            bool
	Profile              string
	FrameworkInference   bool
	PassThroughArgs      []string
}

// BindRunFlags registers `turbo run`'s flags on fs and layers viper's
// TURBO_-prefixed environment lookup on top, returning a loader that
// produces the resolved RunOptions once flags have been parsed.
func BindRunFlags(fs *pflag.FlagSet) func() (*RunOptions, error) {
	v := viper.New()
	v.SetEnvPrefix("turbo")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs.StringSlice("filter", nil, "Package name(s) to act as entry points (literal names; no selector syntax).")
	fs.StringSlice("scope", nil, "Specify package(s) to act as entry points for task graph execution (deprecated).")
	fs.String("since", "", "Ignored by turbine run.")
	fs.String("concurrency", "10", "Limit the number of concurrent tasks.")
	fs.Bool("parallel", false, "Ignored by turbine run: tasks still run in dependsOn order.")
	fs.Bool("continue", false, "Continue executing unrelated tasks after a task failure.")
	fs.String("dry", "", "Hash tasks without executing them. text and json print the same count-only report; no per-task list is printed.")
	fs.Lookup("dry").NoOptDefVal = "text"
	fs.Bool("only", false, "Restrict execution to the specified tasks only, not their dependencies.")
	fs.Bool("no-deps", false, "Exclude dependent tasks from the execution graph.")
	fs.Bool("include-dependencies", false, "Ignored by turbine run.")
	fs.Bool("force", false, "Ignored by turbine run: cache hits are still used.")
	fs.Bool("no-cache", false, "Avoid saving task results to the cache.")
	fs.Bool("remote-only", false, "Ignore the local filesystem cache for all tasks.")
	fs.String("cache-dir", "", "Override the cache directory.")
	fs.Int("cache-workers", 0, "Number of concurrent cache operations (0 = 10).")
	fs.String("output-logs", "full", "Validated (full, hash-only, new-only, errors-only, none) but ignored by turbine run: each task's outputMode applies.")
	fs.String("env-mode", "infer", "Set environment variable access mode (strict, loose, infer).")
	fs.String("graph", "", "Generate a visualization of the task graph instead of running it.")
	fs.Bool("summarize", false, "Generate a run summary in .turbo/runs.")
	fs.String("profile", "", "Ignored by turbine run; no trace is written.")
	fs.Bool("framework-inference", true, "Ignored by turbine run.")

	if err := v.BindPFlags(fs); err != nil {
		panic(err)
	}

	return func() (*RunOptions, error) {
		outputLogs, err := util.ParseTaskOutputMode(v.GetString("output-logs"))
		if err != nil {
			return nil, &ConfigError{Msg: err.Error()}
		}
		envMode, err := util.ParseEnvMode(v.GetString("env-mode"))
		if err != nil {
			return nil, &ConfigError{Msg: err.Error()}
		}
		return &RunOptions{
			Filter:              v.GetStringSlice("filter"),
			Scope:               v.GetStringSlice("scope"),
			Since:               v.GetString("since"),
			Concurrency:         v.GetString("concurrency"),
			Parallel:            v.GetBool("parallel"),
			Continue:            v.GetBool("continue"),
			DryRun:              v.GetString("dry"),
			Only:                v.GetBool("only"),
			NoDeps:              v.GetBool("no-deps"),
			IncludeDependencies: v.GetBool("include-dependencies"),
			Force:               v.GetBool("force"),
			NoCache:             v.GetBool("no-cache"),
			RemoteOnly:          v.GetBool("remote-only"),
			CacheDir:            v.GetString("cache-dir"),
			CacheWorkers:        v.GetInt("cache-workers"),
			OutputLogs:          outputLogs,
			EnvMode:             envMode,
			Graph:               v.GetString("graph"),
			Summarize:           v.GetBool("summarize"),
			Profile:             v.GetString("profile"),
			FrameworkInference:  v.GetBool("framework-inference"),
		}, nil
	}
}
