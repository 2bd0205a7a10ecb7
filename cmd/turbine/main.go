// Command turbine runs and caches tasks across a JavaScript/TypeScript
// monorepo workspace.
package main

import (
	"os"

	"github.com/turbine-build/turbine/internal/cmd"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(cmd.Run(os.Args[1:], version))
}
