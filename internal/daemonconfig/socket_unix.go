//go:build !windows

package daemonconfig

import (
	"fmt"
	"os"
	"path/filepath"
)

// defaultSocketPath returns a control socket under the temp directory,
// namespaced by user so two accounts on the same host never collide.
func defaultSocketPath() string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("lsh-daemon-%s.sock", currentUser()))
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "default"
}
