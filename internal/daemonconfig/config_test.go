package daemonconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfigUsesSpecPaths(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Persistence.Path != "/tmp/lsh-jobs.json" {
		t.Fatalf("want default snapshot path /tmp/lsh-jobs.json, got %q", cfg.Persistence.Path)
	}
	if cfg.IPC.SocketPath == "" {
		t.Fatal("want a non-empty default socket path")
	}
	if !strings.Contains(cfg.IPC.SocketPath, "lsh-daemon") {
		t.Fatalf("want default socket path namespaced per user, got %q", cfg.IPC.SocketPath)
	}
}

func TestLoadFromFileMissingUsesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Scheduler.MinIntervalMs != 100 {
		t.Fatalf("want default min interval 100, got %d", cfg.Scheduler.MinIntervalMs)
	}
}

func TestLoadFromFileOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lshd.yaml")
	body := []byte("persistence:\n  path: custom.json\nscheduler:\n  min_interval_ms: 250\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Persistence.Path != "custom.json" {
		t.Fatalf("want overridden path, got %q", cfg.Persistence.Path)
	}
	if cfg.Scheduler.MinIntervalMs != 250 {
		t.Fatalf("want overridden min interval, got %d", cfg.Scheduler.MinIntervalMs)
	}
	// Fields untouched by the file keep their defaults.
	if cfg.Scheduler.MaxIntervalMs != 60000 {
		t.Fatalf("want default max interval preserved, got %d", cfg.Scheduler.MaxIntervalMs)
	}
}
