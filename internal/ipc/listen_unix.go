//go:build !windows

package ipc

import (
	"net"
	"os"
)

// removeStaleSocket clears a leftover socket file from a previous,
// uncleanly terminated daemon so a fresh Listen can bind the path.
func removeStaleSocket(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func listen(path string) (net.Listener, error) {
	return net.Listen("unix", path)
}
