//go:build windows

package supervisor

import "os"

// shellCommand resolves the interpreter used for type=shell spawns on
// Windows: COMSPEC (normally cmd.exe) with /C.
func shellCommand(command string) (string, []string) {
	shell := os.Getenv("COMSPEC")
	if shell == "" {
		shell = "cmd.exe"
	}
	return shell, []string{"/C", command}
}
