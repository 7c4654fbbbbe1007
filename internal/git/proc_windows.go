//go:build windows

package git

import "os/exec"

func setProcessGroup(*exec.Cmd) {}

// killProcessGroup kills git itself; WaitDelay releases the pipes held by its children
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
