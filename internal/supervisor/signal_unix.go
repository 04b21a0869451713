//go:build !windows

package supervisor

import (
	"syscall"

	"github.com/lsh-sh/lsh/internal/joberr"
)

func osSignal(sig Signal) syscall.Signal {
	switch sig {
	case SignalTerm:
		return syscall.SIGTERM
	case SignalKill:
		return syscall.SIGKILL
	case SignalStop:
		return syscall.SIGSTOP
	case SignalCont:
		return syscall.SIGCONT
	case SignalInt:
		return syscall.SIGINT
	default:
		return syscall.SIGTERM
	}
}

// sendSignal delivers sig to the process group led by pid, so a
// shell job's children die with it. Signaling an already-gone process
// is not an error.
func sendSignal(pid int, sig Signal) error {
	err := syscall.Kill(-pid, osSignal(sig))
	if err == syscall.ESRCH {
		return nil
	}
	return err
}

// pauseSupported is true on platforms with SIGSTOP/SIGCONT.
const pauseSupported = true

// setPriority applies a nice value to the live process. Failure is
// reported to the caller, who treats it as a non-fatal warning.
func setPriority(pid, priority int) error {
	if err := syscall.Setpriority(syscall.PRIO_PROCESS, pid, priority); err != nil {
		return joberr.IOError("setpriority failed", err)
	}
	return nil
}
