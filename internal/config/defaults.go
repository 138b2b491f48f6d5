package config

const (
	defaultDataDir   = "~/.local/share/alfred"
	defaultModelFile = "phi-3-mini-q4.gguf"

	defaultLogLevel  = "info"
	defaultLogFormat = "console"

	defaultPort                 = 7654
	defaultIdleTimeoutMinutes   = 30
	defaultShutdownGraceSeconds = 5

	defaultMaxTokens   = 256
	defaultContextSize = 2048
	defaultTemperature = 0.7
	defaultTopK        = 40
	defaultTopP        = 0.9
)

// Default returns the built-in configuration. Paths are normalized later by
// Load; callers constructing a Config directly should call Validate
// themselves.
func Default() Config {
	return Config{
		DataDir: defaultDataDir,
		Daemon: Daemon{
			Port:                 defaultPort,
			IdleTimeoutMinutes:   defaultIdleTimeoutMinutes,
			AutoStart:            true,
			ShutdownGraceSeconds: defaultShutdownGraceSeconds,
		},
		Generation: Generation{
			MaxTokens:   defaultMaxTokens,
			ContextSize: defaultContextSize,
			Temperature: defaultTemperature,
			TopK:        defaultTopK,
			TopP:        defaultTopP,
			Threads:     0,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
