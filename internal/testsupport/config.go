// Package testsupport builds per-test configurations on unique temp
// directories.
package testsupport

import (
	"path/filepath"
	"testing"

	"alfred/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with a unique temp data directory per
// test. The daemon port is 0 so each test binds its own ephemeral port, and
// auto-start is off so CLI paths never launch real processes.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = base
	cfg.ModelPath = filepath.Join(base, "models", "test.gguf")
	cfg.Daemon.Port = 0
	cfg.Daemon.AutoStart = false
	cfg.Daemon.ShutdownGraceSeconds = 1

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithIdleTimeout sets the idle timeout in minutes.
func WithIdleTimeout(minutes int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Daemon.IdleTimeoutMinutes = minutes
	}
}

// WithPort pins the daemon port.
func WithPort(port int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Daemon.Port = port
	}
}
