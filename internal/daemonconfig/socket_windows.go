//go:build windows

package daemonconfig

import (
	"fmt"
	"os"
)

// defaultSocketPath returns the well-known named pipe path for this
// user. The IPC package's Windows stub does not yet listen on it, but
// the config layer still reports the right-shaped default rather than
// a Unix path.
func defaultSocketPath() string {
	return fmt.Sprintf(`\\.\pipe\lsh-daemon-%s`, currentUser())
}

func currentUser() string {
	if u := os.Getenv("USERNAME"); u != "" {
		return u
	}
	return "default"
}
