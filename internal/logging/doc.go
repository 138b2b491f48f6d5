// Package logging assembles the structured slog loggers used by the alfred
// CLI and the alferd daemon.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes attr helpers plus standardized field keys so daemon
// code tags log lines consistently. A no-op logger is provided for tests and
// wiring code that cannot fail.
package logging
