//go:build linux

package sysprocs

import (
	"os"
	"testing"
)

func TestListIncludesSelf(t *testing.T) {
	procs, err := List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	self := os.Getpid()
	for _, p := range procs {
		if p.PID == self {
			return
		}
	}
	t.Fatalf("want pid %d among %d listed processes", self, len(procs))
}
