//go:build windows

package supervisor

import "os/exec"

// setProcAttrs is a no-op on Windows: process groups are handled
// through job objects, which this build does not set up. Stop/Kill
// fall back to signaling the single process (sendSignal).
func setProcAttrs(cmd *exec.Cmd) {}
