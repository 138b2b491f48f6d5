// Package daemon implements the alferd inference daemon: the singleton pid
// lease, the loopback TCP listener, per-connection request handling, idle
// shutdown, and the drain sequence.
package daemon
