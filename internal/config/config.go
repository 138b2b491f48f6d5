package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Daemon contains configuration for the background inference daemon.
type Daemon struct {
	Port                 int  `toml:"port"`
	IdleTimeoutMinutes   int  `toml:"idle_timeout_minutes"`
	AutoStart            bool `toml:"auto_start"`
	ShutdownGraceSeconds int  `toml:"shutdown_grace_seconds"`
}

// Generation contains model generation parameters shared by the daemon and
// the in-process fallback path.
type Generation struct {
	MaxTokens   int     `toml:"max_tokens"`
	ContextSize int     `toml:"context_size"`
	Temperature float64 `toml:"temperature"`
	TopK        int     `toml:"top_k"`
	TopP        float64 `toml:"top_p"`
	Threads     int     `toml:"threads"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config encapsulates all configuration values for alfred.
//
// Sections by subsystem:
//   - ModelPath / DataDir: model file location and the data directory that
//     holds downloaded models, logs, and the daemon pid record
//   - Daemon: loopback port, idle shutdown, drain grace
//   - Generation: sampling parameters for the inference engine
//   - Logging: log level and format
type Config struct {
	ModelPath  string     `toml:"model_path"`
	DataDir    string     `toml:"data_dir"`
	Daemon     Daemon     `toml:"daemon"`
	Generation Generation `toml:"generation"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath("~/.config/alfred/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. An absent file is not
// an error; defaults apply.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	var err error
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = defaultDataDir
	}
	if c.DataDir, err = ExpandPath(c.DataDir); err != nil {
		return fmt.Errorf("data_dir: %w", err)
	}
	if c.ModelPath == "" {
		if value, ok := os.LookupEnv("ALFRED_MODEL_PATH"); ok {
			c.ModelPath = value
		}
	}
	if strings.TrimSpace(c.ModelPath) == "" {
		c.ModelPath = filepath.Join(c.ModelsDir(), defaultModelFile)
	} else if c.ModelPath, err = ExpandPath(c.ModelPath); err != nil {
		return fmt.Errorf("model_path: %w", err)
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	return nil
}

// EnsureDirectories creates the directories the daemon and CLI rely on.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.DataDir, c.LogDir(), c.ModelsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LogDir returns the directory that holds daemon log output.
func (c *Config) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// LogFilePath returns the path of the daemon log file.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.LogDir(), "alferd.log")
}

// ModelsDir returns the directory downloaded models are stored in.
func (c *Config) ModelsDir() string {
	return filepath.Join(c.DataDir, "models")
}

// PIDFilePath returns the path of the daemon pid record.
func (c *Config) PIDFilePath() string {
	return filepath.Join(c.DataDir, "alferd.pid")
}

// ListenAddr returns the daemon's loopback listen address.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(c.Daemon.Port))
}

// CreateSample writes the embedded sample configuration to path.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Save writes the configuration to path in TOML form.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	encoded, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ExpandPath resolves a leading ~ and returns an absolute, cleaned path.
func ExpandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
