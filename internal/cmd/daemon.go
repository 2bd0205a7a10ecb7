package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/turbine-build/turbine/internal/daemon"
	"github.com/turbine-build/turbine/internal/turbopath"
)

func newDaemonCmd() *cobra.Command {
	var idleTimeout time.Duration

	root := &cobra.Command{
		Use:   "daemon",
		Short: "Run or query the background file-watching daemon",
	}

	start := &cobra.Command{
		Use:   "start",
		Short: "Run the daemon in the foreground",
		RunE: func(cc *cobra.Command, args []string) error {
			repoRoot, err := findRepoRoot(cwdPath())
			if err != nil {
				return err
			}
			srv := daemon.New(repoRoot, cc.Root().Version, idleTimeout)
			return srv.Serve(cc.Context())
		},
	}
	start.Flags().DurationVar(&idleTimeout, "idle-timeout", daemon.DefaultIdleTimeout, "shut down after this long without a request")
	root.AddCommand(start)

	root.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Report whether the daemon is running and what it's watching",
		RunE: func(cc *cobra.Command, args []string) error {
			repoRoot, err := findRepoRoot(cwdPath())
			if err != nil {
				return err
			}
			client, err := daemon.Dial(repoRoot, 2*time.Second)
			if err != nil {
				fmt.Println("daemon is not running")
				return nil
			}
			defer func() { _ = client.Close() }()
			status, err := client.Status()
			if err != nil {
				return err
			}
			fmt.Printf("daemon up for %ds, watching %d directories\n", status.UptimeSeconds, status.WatchedDirs)
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "stop",
		Short: "Ask a running daemon to shut down",
		RunE: func(cc *cobra.Command, args []string) error {
			repoRoot, err := findRepoRoot(cwdPath())
			if err != nil {
				return err
			}
			client, err := daemon.Dial(repoRoot, 2*time.Second)
			if err != nil {
				fmt.Println("daemon is not running")
				return nil
			}
			defer func() { _ = client.Close() }()
			return client.Shutdown()
		},
	})

	return root
}

func cwdPath() turbopath.AbsoluteSystemPath {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return turbopath.AbsoluteSystemPath(cwd)
}
