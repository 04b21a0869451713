// Package daemonconfig loads the daemon's YAML configuration, adapted
// from the teacher's copilot.LoadConfigFromFile: defaults first, then
// overlay from file, with .env files loaded into the process
// environment ahead of parsing (spawned jobs inherit that environment).
// The YAML is parsed as written; ${VAR} references in it are not
// expanded.
package daemonconfig

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// StoreConfig has no tunables yet; present for forward compatibility
// and so the YAML schema has a stable `store:` key.
type StoreConfig struct{}

// PersistenceConfig configures the snapshot file the store is
// flushed to.
type PersistenceConfig struct {
	Path string `yaml:"path"`
}

// SupervisorConfig configures process spawning defaults.
type SupervisorConfig struct {
	MaxCaptureBytes int `yaml:"max_capture_bytes"`
}

// SchedulerConfig configures the priority-queue scheduler's tick
// cadence.
type SchedulerConfig struct {
	MinIntervalMs int `yaml:"min_interval_ms"`
	MaxIntervalMs int `yaml:"max_interval_ms"`
	DueBufferMs   int `yaml:"due_buffer_ms"`
}

// LoggingConfig selects slog's handler and level.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// IPCConfig configures the control-plane transport.
type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

// Config is the top-level daemon configuration document.
type Config struct {
	Store       StoreConfig       `yaml:"store"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Supervisor  SupervisorConfig  `yaml:"supervisor"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Logging     LoggingConfig     `yaml:"logging"`
	IPC         IPCConfig         `yaml:"ipc"`

	// GracePeriodMs bounds how long a draining daemon waits for jobs
	// to exit on their own before escalating to SIGKILL.
	GracePeriodMs int `yaml:"grace_period_ms"`

	// CleanupOlderThanHours is read from the file, but nothing acts on
	// it: the daemon runs no periodic sweep, and terminal jobs are
	// removed only by an explicit CleanupJobs call.
	CleanupOlderThanHours int `yaml:"cleanup_older_than_hours"`
}

// DefaultConfig returns the configuration a fresh daemon runs with
// when no file is supplied.
func DefaultConfig() *Config {
	return &Config{
		Persistence: PersistenceConfig{Path: "/tmp/lsh-jobs.json"},
		Supervisor:  SupervisorConfig{MaxCaptureBytes: 1 << 20},
		Scheduler: SchedulerConfig{
			MinIntervalMs: 100,
			MaxIntervalMs: 60000,
			DueBufferMs:   50,
		},
		Logging:       LoggingConfig{Level: "info", Format: "text"},
		IPC:           IPCConfig{SocketPath: defaultSocketPath()},
		GracePeriodMs: 5000,
	}
}

// LoadFromFile reads and parses a YAML config file, starting from
// DefaultConfig and overlaying whatever the file sets. A missing file
// is not an error: the caller gets defaults.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFiles()

	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	return cfg, nil
}

// loadEnvFiles loads .env/.env.local from the working directory,
// ignoring absence; existing environment variables are never
// overwritten.
func loadEnvFiles() {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}
}

// TickDurations converts the YAML durations into the scheduler's native
// time.Duration config.
func (c *Config) TickDurations() (min, max, due time.Duration) {
	min = time.Duration(c.Scheduler.MinIntervalMs) * time.Millisecond
	max = time.Duration(c.Scheduler.MaxIntervalMs) * time.Millisecond
	due = time.Duration(c.Scheduler.DueBufferMs) * time.Millisecond
	return
}
