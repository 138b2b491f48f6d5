package daemonctl

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

const systemdUnit = `[Unit]
Description=Alfred AI Daemon
After=network.target

[Service]
Type=simple
ExecStart=%s
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target
`

const launchdPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>com.alfred.daemon</string>
    <key>ProgramArguments</key>
    <array>
        <string>%s</string>
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <false/>
    <key>StandardOutPath</key>
    <string>%s</string>
    <key>StandardErrorPath</key>
    <string>%s</string>
</dict>
</plist>
`

// ServicePath returns the user service definition location for this OS, or
// empty when service install is unsupported.
func ServicePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	switch runtime.GOOS {
	case "linux":
		return filepath.Join(home, ".config", "systemd", "user", "alfred.service")
	case "darwin":
		return filepath.Join(home, "Library", "LaunchAgents", "com.alfred.daemon.plist")
	default:
		return ""
	}
}

// Installed reports whether the user service definition exists.
func Installed() bool {
	path := ServicePath()
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Install writes the user service definition and enables it so the daemon
// starts at login.
func Install(executablePath, logDir string) error {
	path := ServicePath()
	if path == "" {
		return fmt.Errorf("service install not supported on %s; run alferd manually", runtime.GOOS)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create service directory: %w", err)
	}

	switch runtime.GOOS {
	case "linux":
		content := fmt.Sprintf(systemdUnit, executablePath)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write service file: %w", err)
		}
		if err := runCommand("systemctl", "--user", "daemon-reload"); err != nil {
			return err
		}
		return runCommand("systemctl", "--user", "enable", "--now", "alfred")
	case "darwin":
		stdout := filepath.Join(logDir, "alferd.log")
		stderr := filepath.Join(logDir, "alferd.error.log")
		content := fmt.Sprintf(launchdPlist, executablePath, stdout, stderr)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write plist: %w", err)
		}
		return runCommand("launchctl", "load", "-w", path)
	default:
		return fmt.Errorf("service install not supported on %s", runtime.GOOS)
	}
}

// Uninstall disables and removes the user service definition.
func Uninstall() error {
	path := ServicePath()
	if path == "" {
		return fmt.Errorf("service install not supported on %s", runtime.GOOS)
	}
	if !Installed() {
		return os.ErrNotExist
	}

	switch runtime.GOOS {
	case "linux":
		// Best effort; the unit may already be stopped.
		_ = runCommand("systemctl", "--user", "disable", "--now", "alfred")
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove service file: %w", err)
		}
		return runCommand("systemctl", "--user", "daemon-reload")
	case "darwin":
		_ = runCommand("launchctl", "unload", "-w", path)
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove plist: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("service install not supported on %s", runtime.GOOS)
	}
}

func runCommand(name string, args ...string) error {
	output, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if detail != "" {
			return fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, detail)
		}
		return fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return nil
}
