//go:build windows

package ipc

import (
	"net"

	"github.com/lsh-sh/lsh/internal/joberr"
)

// removeStaleSocket is a no-op on Windows; the named-pipe path below
// is never actually bindable in this build.
func removeStaleSocket(path string) error { return nil }

// listen is an explicit stub: a named pipe under \\.\pipe\<app>-daemon-
// <user> requires platform APIs (or a library such as Microsoft/go-winio)
// this pack does not carry. Rather than fabricate a fake dependency,
// Windows IPC is left unimplemented; the daemon core, store,
// supervisor, and scheduler are all still fully functional without it.
func listen(path string) (net.Listener, error) {
	return nil, joberr.Unsupported("", "IPC socket listener is not implemented on windows")
}
