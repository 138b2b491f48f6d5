package daemonctl

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"alfred/internal/config"
	"alfred/internal/daemon"
)

// ErrNotRunning indicates no daemon answered on the configured port.
var ErrNotRunning = errors.New("daemon not running")

// StatusInfo is the offline status snapshot: pid record plus liveness probe,
// no RPC round trip.
type StatusInfo struct {
	Running            bool
	PID                int
	Port               int
	StartedAt          time.Time
	IdleTimeoutMinutes int
	ServiceInstalled   bool
}

// IsRunning reports whether a daemon answers a ping on the configured port.
func IsRunning(cfg *config.Config) bool {
	client, err := Dial(cfg.ListenAddr())
	if err != nil {
		return false
	}
	client.Close()
	return true
}

// Connect dials the configured daemon address.
func Connect(cfg *config.Config) (*Client, error) {
	client, err := Dial(cfg.ListenAddr())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotRunning, err)
	}
	return client, nil
}

// Launch starts a detached alferd process.
func Launch(executablePath, configPath string) (int, error) {
	if strings.TrimSpace(executablePath) == "" {
		return 0, errors.New("resolve executable: executable path is empty")
	}

	var args []string
	if cfgPath := strings.TrimSpace(configPath); cfgPath != "" {
		args = append(args, "--config", cfgPath)
	}

	proc := exec.Command(executablePath, args...)
	if err := proc.Start(); err != nil {
		return 0, fmt.Errorf("launch daemon: %w", err)
	}
	pid := proc.Process.Pid
	if err := proc.Process.Release(); err != nil {
		return pid, fmt.Errorf("detach daemon process: %w", err)
	}
	return pid, nil
}

// WaitForClient polls the daemon port until it answers or timeout passes.
func WaitForClient(addr string, timeout time.Duration) (*Client, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		client, err := Dial(addr)
		if err == nil {
			return client, nil
		}
		lastErr = err
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = errors.New("timeout waiting for daemon")
	}
	return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted makes sure a daemon is up, launching one when needed.
// Returns true when this call launched the process.
func EnsureStarted(cfg *config.Config, configPath string, waitTimeout time.Duration) (bool, error) {
	if IsRunning(cfg) {
		return false, nil
	}

	executable, err := FindDaemonBinary()
	if err != nil {
		return false, err
	}
	if _, err := Launch(executable, configPath); err != nil {
		return false, err
	}
	client, err := WaitForClient(cfg.ListenAddr(), waitTimeout)
	if err != nil {
		return true, err
	}
	client.Close()
	return true, nil
}

// StopAndWait stops the daemon, preferring the shutdown RPC and falling back
// to SIGTERM via the pid record, then waits for the process to exit.
func StopAndWait(cfg *config.Config, timeout time.Duration) error {
	record, recordErr := daemon.ReadPIDRecord(cfg.PIDFilePath())

	client, err := Connect(cfg)
	if err == nil {
		_, shutdownErr := client.Shutdown()
		client.Close()
		if shutdownErr == nil {
			return waitForExit(cfg, record.PID, timeout)
		}
	}

	// No RPC path. Fall back to the pid record.
	if recordErr != nil {
		if errors.Is(recordErr, os.ErrNotExist) {
			return ErrNotRunning
		}
		return fmt.Errorf("read pid record: %w", recordErr)
	}
	if !daemon.ProcessAlive(record.PID) {
		return ErrNotRunning
	}
	if err := unix.Kill(record.PID, unix.SIGTERM); err != nil {
		return fmt.Errorf("signal daemon (pid %d): %w", record.PID, err)
	}
	return waitForExit(cfg, record.PID, timeout)
}

func waitForExit(cfg *config.Config, pid int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if pid > 0 {
			if !daemon.ProcessAlive(pid) {
				return nil
			}
		} else if !IsRunning(cfg) {
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("daemon did not stop within %s", timeout)
}

// Status builds the offline status snapshot from the pid record and config.
func Status(cfg *config.Config) StatusInfo {
	info := StatusInfo{
		Port:               cfg.Daemon.Port,
		IdleTimeoutMinutes: cfg.Daemon.IdleTimeoutMinutes,
		ServiceInstalled:   Installed(),
	}
	record, err := daemon.ReadPIDRecord(cfg.PIDFilePath())
	if err != nil {
		return info
	}
	if !daemon.ProcessAlive(record.PID) {
		return info
	}
	info.Running = true
	info.PID = record.PID
	info.StartedAt = record.StartedAt
	if record.Port > 0 {
		info.Port = record.Port
	}
	return info
}

// FindDaemonBinary locates alferd: next to the current executable first,
// then PATH, then common install locations.
func FindDaemonBinary() (string, error) {
	if executable, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(executable), "alferd")
		if info, statErr := os.Stat(candidate); statErr == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	if path, err := exec.LookPath("alferd"); err == nil {
		return path, nil
	}

	home, _ := os.UserHomeDir()
	for _, candidate := range []string{
		"/usr/local/bin/alferd",
		"/usr/bin/alferd",
		filepath.Join(home, "go", "bin", "alferd"),
	} {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", errors.New("could not find alferd binary; install it next to alfred or on PATH")
}
