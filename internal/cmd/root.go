// Package cmd wires together the engine's internal packages behind the
// `turbine` CLI surface (spec §4.H "CLI surface").
package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/turbine-build/turbine/internal/config"
	"github.com/turbine-build/turbine/internal/pipeline"
	"github.com/turbine-build/turbine/internal/ui"
)

// Run parses args, dispatches to the matching subcommand, and returns the
// process exit code: 0 on success, 1 when a task failed, 2 on a
// configuration or usage error (spec §7 "exit codes").
func Run(args []string, version string) int {
	root := newRootCmd(version)
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		ui.Default().Error("turbine: " + err.Error())
		var cfgErr *config.ConfigError
		var graphErr *pipeline.GraphPrepError
		if errors.As(err, &cfgErr) || errors.As(err, &graphErr) {
			return 2
		}
		return 1
	}
	return 0
}

func newRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "turbine",
		Short:         "Run workspace tasks, fast, with caching",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newDaemonCmd())
	return root
}
