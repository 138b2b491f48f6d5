// Package config loads and validates the TOML configuration shared by the
// alfred CLI and the alferd daemon.
package config
