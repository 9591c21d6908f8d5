//go:build unix || linux || darwin

package process

import (
	"os"
	"os/exec"
	"syscall"
)

// configureProcess starts the subprocess in its own process group.
// Terminate signals only the subprocess's pid, not the whole group.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func sendGracefulSignal(process *os.Process) error {
	return process.Signal(syscall.SIGTERM)
}

// isProcessRunning is permission-aware: syscall.Kill with signal 0 can
// return EPERM in sandboxed environments even though the process
// exists, which we still count as running.
func isProcessRunning(pid int) bool {
	err := syscall.Kill(pid, 0)
	if err == nil || err == syscall.EPERM {
		return true
	}
	return false
}
