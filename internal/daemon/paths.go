package daemon

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/turbine-build/turbine/internal/turbopath"
)

// repoHash derives a short, filesystem-safe identifier for repoRoot, used
// to namespace this repo's socket/pid/log files alongside any other
// repo's, all under the OS temp directory.
func repoHash(repoRoot turbopath.AbsoluteSystemPath) string {
	sum := sha256.Sum256([]byte(repoRoot.ToString()))
	return hex.EncodeToString(sum[:])[:16]
}

func daemonDir(repoRoot turbopath.AbsoluteSystemPath) turbopath.AbsoluteSystemPath {
	return turbopath.AbsoluteSystemPath(filepath.Join(os.TempDir(), "turbine-daemon", repoHash(repoRoot)))
}

// SocketPath is the unix domain socket the daemon listens on for repoRoot.
// Unix socket paths are limited to ~108 bytes, hence the hashed directory.
func SocketPath(repoRoot turbopath.AbsoluteSystemPath) turbopath.AbsoluteSystemPath {
	return daemonDir(repoRoot).UntypedJoin("turbine.sock")
}

// PIDPath is the lockfile that ensures only one daemon runs per repo.
func PIDPath(repoRoot turbopath.AbsoluteSystemPath) turbopath.AbsoluteSystemPath {
	return daemonDir(repoRoot).UntypedJoin("turbine.pid")
}

// LogPath is where the daemon's own log output is appended.
func LogPath(repoRoot turbopath.AbsoluteSystemPath) turbopath.AbsoluteSystemPath {
	return daemonDir(repoRoot).UntypedJoin("turbine.log")
}
