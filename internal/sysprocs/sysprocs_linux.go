//go:build linux

package sysprocs

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// List enumerates every PID directory under /proc, parsing the
// minimum of /proc/<pid>/stat needed for name, parent, and state.
// Processes that exit mid-scan (ReadFile failure) are skipped rather
// than failing the whole listing.
func List() ([]ProcessInfo, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, err
	}
	uptime := systemUptime()

	out := make([]ProcessInfo, 0, len(entries))
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		info, ok := readProcessStat(pid, uptime)
		if !ok {
			continue
		}
		out = append(out, info)
	}
	return out, nil
}

func systemUptime() float64 {
	data, err := os.ReadFile("/proc/uptime")
	if err != nil {
		return 0
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0
	}
	v, _ := strconv.ParseFloat(fields[0], 64)
	return v
}

func readProcessStat(pid int, uptime float64) (ProcessInfo, bool) {
	data, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return ProcessInfo{}, false
	}
	s := string(data)
	open, close := strings.IndexByte(s, '('), strings.LastIndexByte(s, ')')
	if open < 0 || close < 0 || close < open {
		return ProcessInfo{}, false
	}
	name := s[open+1 : close]
	rest := strings.Fields(s[close+2:])
	if len(rest) < 20 {
		return ProcessInfo{}, false
	}

	state := stateName(rest[0])
	ppid, _ := strconv.Atoi(rest[1])
	startTicks, _ := strconv.ParseInt(rest[19], 10, 64)
	elapsed := uptime - float64(startTicks)/clockTicksPerSec
	if elapsed < 0 {
		elapsed = 0
	}

	return ProcessInfo{
		PID:     pid,
		PPID:    ppid,
		Name:    name,
		State:   state,
		Elapsed: time.Duration(elapsed * float64(time.Second)),
	}, true
}

const clockTicksPerSec = 100

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
		return "unknown"
	}
}
