//go:build windows

package supervisor

import "os"

// sampleProcess on Windows reports liveness only; no CPU/memory
// percentages without additional platform API bindings this build
// doesn't carry. os.FindProcess always succeeds on Windows (it
// doesn't probe the process table), so this is necessarily
// optimistic: the supervisor's own handle map, not this call, is
// what determines whether a job is still tracked as live.
func sampleProcess(pid int) (cpuPct, memPct float64, state string, err error) {
	if _, err := os.FindProcess(pid); err != nil {
		return 0, 0, "", err
	}
	return 0, 0, "running", nil
}
