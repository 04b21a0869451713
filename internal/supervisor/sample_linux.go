//go:build linux

package supervisor

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// clockTicksPerSec is the kernel's USER_HZ; 100 on every mainstream
// Linux distribution this daemon targets.
const clockTicksPerSec = 100

// sampleProcess reads /proc/<pid>/stat and /proc/<pid>/status for a
// best-effort CPU/memory snapshot. CPU percent is computed against
// the process's own wall-clock lifetime (process CPU time / elapsed
// time), which is a coarser number than a rolling window but needs no
// prior sample and matches what `ps` reports for a "since start" view.
func sampleProcess(pid int) (cpuPct, memPct float64, state string, err error) {
	statPath := fmt.Sprintf("/proc/%d/stat", pid)
	raw, err := os.ReadFile(statPath)
	if err != nil {
		return 0, 0, "", err
	}
	// Fields after the parenthesized comm name are space-separated;
	// comm itself may contain spaces/parens, so split on the last ')'.
	text := string(raw)
	idx := strings.LastIndexByte(text, ')')
	if idx < 0 || idx+2 >= len(text) {
		return 0, 0, "", fmt.Errorf("unexpected stat format for pid %d", pid)
	}
	fields := strings.Fields(text[idx+2:])
	// fields[0] = state (index 2 overall), fields[11] = utime (14),
	// fields[12] = stime (15), fields[19] = starttime (22) — all
	// offset by the two fields (pid, comm) we stripped plus state.
	if len(fields) < 20 {
		return 0, 0, "", fmt.Errorf("short stat fields for pid %d", pid)
	}
	state = fields[0]
	utime, _ := strconv.ParseFloat(fields[11], 64)
	stime, _ := strconv.ParseFloat(fields[12], 64)
	startTimeTicks, _ := strconv.ParseFloat(fields[19], 64)
	cpuSeconds := (utime + stime) / clockTicksPerSec

	elapsedSeconds := systemUptimeSeconds() - (startTimeTicks / clockTicksPerSec)
	if elapsedSeconds > 0 {
		cpuPct = (cpuSeconds / elapsedSeconds) * 100
	}

	memPct = rssPercent(pid)
	return cpuPct, memPct, stateName(state), nil
}

func stateName(code string) string {
	switch code {
	case "R":
		return "running"
	case "S":
		return "sleeping"
	case "D":
		return "disk-sleep"
	case "T":
		return "stopped"
	case "Z":
		return "zombie"
	default:
		return code
	}
}

func systemUptimeSeconds() float64 {
	raw, err := os.ReadFile("/proc/uptime")
	if err != nil {
		return 0
	}
	fields := strings.Fields(string(raw))
	if len(fields) == 0 {
		return 0
	}
	uptime, _ := strconv.ParseFloat(fields[0], 64)
	return uptime
}

func rssPercent(pid int) float64 {
	statusPath := fmt.Sprintf("/proc/%d/status", pid)
	raw, err := os.ReadFile(statusPath)
	if err != nil {
		return 0
	}
	var vmRSSKB float64
	for _, line := range strings.Split(string(raw), "\n") {
		if strings.HasPrefix(line, "VmRSS:") {
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				vmRSSKB, _ = strconv.ParseFloat(fields[1], 64)
			}
			break
		}
	}
	totalKB := totalMemoryKB()
	if totalKB == 0 {
		return 0
	}
	return (vmRSSKB / totalKB) * 100
}

func totalMemoryKB() float64 {
	raw, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return 0
	}
	for _, line := range strings.Split(string(raw), "\n") {
		if strings.HasPrefix(line, "MemTotal:") {
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				v, _ := strconv.ParseFloat(fields[1], 64)
				return v
			}
		}
	}
	return 0
}
