package daemon

import (
	"time"

	"alfred/internal/logging"
)

// idleLoop shuts the daemon down after the configured quiet period. The
// clock starts at daemon startup, so an untouched daemon still exits.
func (d *Daemon) idleLoop() {
	timeout := time.Duration(d.cfg.Daemon.IdleTimeoutMinutes) * time.Minute
	ticker := time.NewTicker(d.idleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.shutdownCh:
			return
		case <-ticker.C:
			last := time.Unix(0, d.lastActivity.Load())
			if idle := time.Since(last); idle >= timeout {
				d.logger.Info("idle timeout reached",
					logging.Duration("idle", idle),
					logging.Duration("timeout", timeout))
				d.Shutdown("idle timeout")
				return
			}
		}
	}
}
