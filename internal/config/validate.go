package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for values the daemon cannot run with.
// All problems are reported at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Daemon.Port < 0 || c.Daemon.Port > 65535 {
		problems = append(problems, fmt.Sprintf("daemon.port must be between 0 and 65535, got %d", c.Daemon.Port))
	}
	if c.Daemon.IdleTimeoutMinutes < 0 {
		problems = append(problems, fmt.Sprintf("daemon.idle_timeout_minutes must be >= 0, got %d", c.Daemon.IdleTimeoutMinutes))
	}
	if c.Daemon.ShutdownGraceSeconds < 0 {
		problems = append(problems, fmt.Sprintf("daemon.shutdown_grace_seconds must be >= 0, got %d", c.Daemon.ShutdownGraceSeconds))
	}
	if c.Generation.MaxTokens <= 0 {
		problems = append(problems, fmt.Sprintf("generation.max_tokens must be > 0, got %d", c.Generation.MaxTokens))
	}
	if c.Generation.ContextSize <= 0 {
		problems = append(problems, fmt.Sprintf("generation.context_size must be > 0, got %d", c.Generation.ContextSize))
	}
	if c.Generation.Temperature < 0 {
		problems = append(problems, fmt.Sprintf("generation.temperature must be >= 0, got %g", c.Generation.Temperature))
	}
	if c.Generation.TopK < 0 {
		problems = append(problems, fmt.Sprintf("generation.top_k must be >= 0, got %d", c.Generation.TopK))
	}
	if c.Generation.TopP < 0 || c.Generation.TopP > 1 {
		problems = append(problems, fmt.Sprintf("generation.top_p must be between 0 and 1, got %g", c.Generation.TopP))
	}
	if c.Generation.Threads < 0 {
		problems = append(problems, fmt.Sprintf("generation.threads must be >= 0, got %d", c.Generation.Threads))
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format must be console or json, got %q", c.Logging.Format))
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration:\n  - " + strings.Join(problems, "\n  - "))
	}
	return nil
}
