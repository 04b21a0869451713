//go:build !windows

package supervisor

import (
	"os/exec"
	"syscall"
)

// setProcAttrs puts the child in its own process group so Stop/Kill
// can signal the whole tree (sendSignal negates the pid), the same
// technique the teacher's exec_direct.go uses for timeout cancellation.
func setProcAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
