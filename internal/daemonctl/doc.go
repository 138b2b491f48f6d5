// Package daemonctl is the client side of the daemon: the line-protocol
// client, start/stop orchestration, the offline status snapshot, and user
// service install for systemd and launchd.
package daemonctl
