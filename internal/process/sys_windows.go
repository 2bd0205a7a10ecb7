//go:build windows
// +build windows

package process

import "os/exec"

func setpgid(cmd *exec.Cmd) {}

func killGroup(cmd *exec.Cmd, force bool) error {
	return cmd.Process.Kill()
}
