//go:build !unix

package supervise

import "os/exec"

func setProcessGroup(*exec.Cmd) {}

func signalTerminate(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}

func signalKill(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}

func signalExitCode(*exec.ExitError) (int, bool) {
	return 0, false
}
