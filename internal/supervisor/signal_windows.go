//go:build windows

package supervisor

import (
	"os"

	"github.com/lsh-sh/lsh/internal/joberr"
)

// pauseSupported is false on Windows: there is no SIGSTOP/SIGCONT
// equivalent, so Pause/Resume return Unsupported.
const pauseSupported = false

// sendSignal on Windows can only approximate soft-terminate (best
// effort via Process.Kill, since Go's os.Process.Signal support is
// limited to os.Kill on this platform) and hard-kill (Process.Kill).
// Signaling an already-gone process is not an error.
func sendSignal(pid int, sig Signal) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	err = proc.Kill()
	if err != nil && isAlreadyGone(err) {
		return nil
	}
	return err
}

func isAlreadyGone(err error) bool {
	return os.IsNotExist(err)
}

// setPriority is unsupported on Windows in this build; renice
// requests are logged and otherwise ignored by the caller.
func setPriority(pid, priority int) error {
	return joberr.Unsupported("", "priority renice is not supported on Windows")
}
