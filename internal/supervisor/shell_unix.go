//go:build !windows

package supervisor

import "os"

// shellCommand resolves the interpreter and flag used for type=shell
// spawns. $SHELL is honored so a job sees the same shell the daemon's
// operator uses interactively, falling back to /bin/sh.
func shellCommand(command string) (string, []string) {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}
	return shell, []string{"-c", command}
}
