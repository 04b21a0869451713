// Package main is the entry point for the lsh job daemon CLI. It
// wires cobra-based commands to the daemon's control API, either by
// running the daemon in-process (`lsh daemon serve`) or by dialing an
// already-running one over its control socket.
package main

import (
	"fmt"
	"os"

	"github.com/lsh-sh/lsh/cmd/lsh/commands"
)

// version is injected at build time via ldflags.
var version = "dev"

func main() {
	rootCmd := commands.NewRootCmd(version)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
